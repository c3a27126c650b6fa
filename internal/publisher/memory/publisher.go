// Package memory keeps published snapshot events in process. It backs the
// "memory" publisher driver and the status API's recent events view.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Message captures one publish call.
type Message struct {
	Topic   string
	Payload any
}

// Publisher stores published payloads, keeping at most limit of the newest.
type Publisher struct {
	mu       sync.RWMutex
	limit    int
	seq      int
	messages []Message
}

// New returns a memory Publisher. A limit <= 0 keeps every message.
func New(limit int) *Publisher {
	return &Publisher{limit: limit}
}

// Publish records the message and returns a sequential ID.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	p.messages = append(p.messages, Message{Topic: topic, Payload: payload})
	if p.limit > 0 && len(p.messages) > p.limit {
		p.messages = append([]Message(nil), p.messages[len(p.messages)-p.limit:]...)
	}
	return fmt.Sprintf("memory-%d", p.seq), nil
}

// Messages returns a copy of the retained messages, oldest first.
func (p *Publisher) Messages() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}
