// Package mail renders and delivers outgoing Cornerwise mail.
package mail

import (
	"context"
	"encoding/json"
	"sync"

	"cloud.google.com/go/pubsub"
	log "github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Kinds of outgoing mail
const (
	KindDigest            = "digest"
	KindStaffNotification = "staff_notification"
)

// Message is one rendered email
type Message struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// NewMessage returns a message with a fresh delivery ID
func NewMessage(kind, to, subject, html string) Message {
	return Message{
		ID:      uuid.New().String(),
		Kind:    kind,
		To:      to,
		Subject: subject,
		HTML:    html,
	}
}

// Deliverer hands a message to whatever sends it
type Deliverer interface {
	Deliver(ctx context.Context, msg Message) error
}

// LogDeliverer logs messages instead of sending them
type LogDeliverer struct{}

// Deliver logs the message envelope
func (LogDeliverer) Deliver(ctx context.Context, msg Message) error {
	log.Infof("Mail %s (%s) to %s: %q, %d bytes", msg.ID, msg.Kind, msg.To, msg.Subject, len(msg.HTML))
	return nil
}

// PubSubDeliverer publishes messages to a Pub/Sub topic consumed by the
// mail sender
type PubSubDeliverer struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubDeliverer connects to project and publishes to topicID
func NewPubSubDeliverer(ctx context.Context, projectID, topicID string) (*PubSubDeliverer, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create pubsub client")
	}
	return &PubSubDeliverer{client: client, topic: client.Topic(topicID)}, nil
}

// Deliver publishes msg and waits for the server to accept it
func (d *PubSubDeliverer) Deliver(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	res := d.topic.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"kind": msg.Kind,
			"id":   msg.ID,
		},
	})
	if _, err := res.Get(ctx); err != nil {
		return errors.Wrapf(err, "failed to publish mail %s", msg.ID)
	}
	return nil
}

// Close flushes pending publishes and closes the client
func (d *PubSubDeliverer) Close() error {
	d.topic.Stop()
	return d.client.Close()
}

// MemoryDeliverer keeps delivered messages, for tests and previews
type MemoryDeliverer struct {
	mu       sync.Mutex
	messages []Message
}

// Deliver records msg
func (d *MemoryDeliverer) Deliver(ctx context.Context, msg Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, msg)
	return nil
}

// Messages returns what has been delivered so far
func (d *MemoryDeliverer) Messages() []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Message(nil), d.messages...)
}
