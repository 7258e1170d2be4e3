// Package dashboard implements the WebSocket broadcast boundary (spec
// §6): every price:update is rebroadcast verbatim as
// {"type":"price","data":PriceUpdate} to connected dashboard clients.
// The core only needs Broadcaster.OnPriceUpdate as a bus.PriceHandler;
// client management lives entirely here.
package dashboard

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"loanwatch.io/pkg/price"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	clientSendBuf  = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// client is one connected dashboard socket, grounded on the hub/client
// split in poaiw-blockchain-paw's explorer websocket hub: a buffered
// send channel decouples the broadcaster from slow readers.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Broadcaster fans price:update out to every connected dashboard
// client. Broadcaster authenticates nothing: every connected client
// receives every update (spec Non-goals). The monitor's /risk endpoint
// on the same HTTP server is not token-gated either: without a token
// query it returns every loan's snapshot.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]bool
}

// New creates an empty broadcaster.
func New() *Broadcaster {
	return &Broadcaster{clients: make(map[*client]bool)}
}

// ServeWS upgrades r to a WebSocket and registers the connection for
// broadcast. Intended to be mounted as an http.HandlerFunc.
func (b *Broadcaster) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[dashboard] upgrade failed: %v", err)
		return
	}

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, clientSendBuf)}
	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()
	log.Printf("[dashboard] client %s connected", c.id)

	go b.writePump(c)
	go b.readPump(c)
}

// OnPriceUpdate is registered as a bus.PriceHandler; it rebroadcasts
// the update verbatim per spec §6.
func (b *Broadcaster) OnPriceUpdate(update price.Update) {
	data, err := json.Marshal(envelope{Type: "price", Data: update})
	if err != nil {
		log.Printf("[dashboard] marshal price update: %v", err)
		return
	}
	b.broadcast(data)
}

func (b *Broadcaster) broadcast(data []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			// Slow client; drop rather than block the broadcaster.
		}
	}
}

func (b *Broadcaster) remove(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
		log.Printf("[dashboard] client %s disconnected", c.id)
	}
}

func (b *Broadcaster) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (b *Broadcaster) readPump(c *client) {
	defer b.remove(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// Dashboard clients are read-only consumers; any inbound frame
		// just resets the deadline, any error tears the client down.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
