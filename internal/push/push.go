// Package push delivers out-of-app notifications through Kafka.
// Producers publish per-user payloads to the push topic; a consumer
// group on the other side fans them out to connected devices.
package push

import (
	"context"
	"encoding/json"
	"time"
)

// Payload is the message body published to the push topic.
// The target UID doubles as the partition key so one user's
// notifications stay ordered.
type Payload struct {
	TargetUID string    `json:"target_uid"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sent_at"`
}

// Sender dispatches a push notification to a single user.
type Sender interface {
	Send(ctx context.Context, targetUID, title, body string) error
}

// Nop is a Sender that drops everything. Used when Kafka is not
// configured, so callers never need a nil check.
type Nop struct{}

func (Nop) Send(context.Context, string, string, string) error { return nil }

func encodePayload(targetUID, title, body string) ([]byte, error) {
	return json.Marshal(Payload{
		TargetUID: targetUID,
		Title:     title,
		Body:      body,
		SentAt:    time.Now().UTC(),
	})
}
