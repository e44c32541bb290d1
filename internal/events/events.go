// Package events publishes domain events about folders and memes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/YashLadlapure/meme-vault/internal/logger"
)

const (
	SubjectMemeCreated   = "memes.created"
	SubjectMemeUpdated   = "memes.updated"
	SubjectMemeLiked     = "memes.liked"
	SubjectMemeDeleted   = "memes.deleted"
	SubjectFolderCreated = "folders.created"
	SubjectFolderDeleted = "folders.deleted"
)

// Noop drops every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error {
	return nil
}

func (Noop) Close() error {
	return nil
}

// NATS publishes JSON encoded events.
type NATS struct {
	conn *nats.Conn
}

// NewNATS connects to the broker at url.
func NewNATS(url string, connectionTimeout time.Duration) (*NATS, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("meme-vault"),
		nats.Timeout(connectionTimeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Log.Infoln("NATS disconnected:", err)
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			logger.Log.Infoln("NATS reconnected to", conn.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("in internal/events/events.go/NewNATS(): error while `nats.Connect()` calling: %w", err)
	}

	return &NATS{conn: conn}, nil
}

// NewNATSFromConn wraps an established connection.
func NewNATSFromConn(conn *nats.Conn) *NATS {
	return &NATS{conn: conn}
}

func (n *NATS) Publish(_ context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("in internal/events/events.go/Publish(): error while `json.Marshal()` calling: %w", err)
	}

	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("in internal/events/events.go/Publish(): error while `n.conn.Publish()` calling: %w", err)
	}

	return nil
}

// Close flushes pending messages and closes the connection.
func (n *NATS) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}

	return nil
}
