// Package notify implements the outbound notification boundary (spec
// §6): notify(chat_id, text). The core depends only on the Sender
// interface; how a message actually reaches a user is an external
// concern.
package notify

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
)

// Sender delivers text to chatID. A failed send is logged by the
// caller and never retried or treated as un-triggering the alert
// (spec §7: notification delivery failure).
type Sender interface {
	Notify(chatID int64, text string) error
}

// LoggingSender writes notifications to the process log. Useful as a
// default and in tests; the monitor binary wraps a real transport
// around (or in place of) it.
type LoggingSender struct{}

func (LoggingSender) Notify(chatID int64, text string) error {
	log.Printf("[notify] chat=%d: %s", chatID, text)
	return nil
}

// message is the JSON envelope published to NATS; the chat front-end
// subscribes and forwards to the actual messaging platform.
type message struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// NatsSender publishes notifications to a NATS subject rather than
// delivering them directly, decoupling the core from the chat
// front-end's transport. Grounded on the teacher's nats.Publisher
// (pkg/nats/publisher.go).
type NatsSender struct {
	conn    *nats.Conn
	subject string
}

// NewNatsSender connects to url and returns a sender publishing to subject.
func NewNatsSender(url, subject string) (*NatsSender, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NatsSender{conn: conn, subject: subject}, nil
}

func (s *NatsSender) Notify(chatID int64, text string) error {
	data, err := json.Marshal(message{ChatID: chatID, Text: text})
	if err != nil {
		return err
	}
	return s.conn.Publish(s.subject, data)
}

func (s *NatsSender) Close() { s.conn.Close() }
