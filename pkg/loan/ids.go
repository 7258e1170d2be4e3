package loan

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	idNode     *snowflake.Node
	idNodeOnce sync.Once
)

// InitIDNode initializes the snowflake node used for alert IDs. nodeID
// must be unique per running instance (0-1023); safe to call more than
// once, only the first call takes effect.
func InitIDNode(nodeID int64) error {
	var err error
	idNodeOnce.Do(func() {
		idNode, err = snowflake.NewNode(nodeID)
	})
	return err
}

// NewAlertID returns a new snowflake-derived alert ID. InitIDNode is
// called with node 0 on first use if the caller never initialized it.
func NewAlertID() string {
	if idNode == nil {
		InitIDNode(0)
	}
	return strconv.FormatInt(idNode.Generate().Int64(), 10)
}

// NewLoanToken returns a 48-hex-character bearer token (spec §3: "48
// hex chars"), the loan's sole identity and access credential.
func NewLoanToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
