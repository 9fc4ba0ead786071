// Package events carries the notifications emitted after each committed
// phase transition.
package events

import (
	"sync"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"

	"roulette/internal/models"
)

// Topic names one kind of notification.
type Topic string

const (
	TopicCommitted  Topic = "committed"
	TopicRegistered Topic = "registered"
	TopicClosed     Topic = "closed"
	TopicWinner     Topic = "winner"
)

// Committed is the payload of TopicCommitted.
type Committed struct {
	Commitment models.Digest `json:"commitment"`
}

// Registered is the payload of TopicRegistered.
type Registered struct {
	Count uint32 `json:"count"`
}

// Closed is the payload of TopicClosed.
type Closed struct {
	Count uint32 `json:"count"`
}

// Winner is the payload of TopicWinner.
type Winner struct {
	WinnerIndex uint32          `json:"winnerIndex"`
	Winner      models.Identity `json:"winner"`
	Secret      uint64          `json:"secret,string"`
	Count       uint32          `json:"count"`
}

// Event is one published notification.
type Event struct {
	ID        string      `json:"id"`
	Topic     Topic       `json:"topic"`
	SessionID uint32      `json:"sessionId"`
	Payload   interface{} `json:"payload"`
	At        time.Time   `json:"at"`
}

// New stamps an event with a fresh id and the current time.
func New(topic Topic, sessionID uint32, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		SessionID: sessionID,
		Payload:   payload,
		At:        time.Now().UTC(),
	}
}

// Sink receives events. Publish must not block and cannot fail.
type Sink interface {
	Publish(ev Event)
}

// Multi fans an event out to several sinks.
type Multi []Sink

// Publish implements Sink.
func (m Multi) Publish(ev Event) {
	for _, s := range m {
		s.Publish(ev)
	}
}

// LogSink writes every event to the process log.
type LogSink struct{}

// Publish implements Sink.
func (LogSink) Publish(ev Event) {
	logger.Infof("event %s session=%d id=%s payload=%+v", ev.Topic, ev.SessionID, ev.ID, ev.Payload)
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Sink.
func (r *Recorder) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Topics lists the recorded topics in publish order.
func (r *Recorder) Topics() (topics []Topic) {
	for _, ev := range r.Events() {
		topics = append(topics, ev.Topic)
	}
	return
}
