// Package journal keeps the user-facing side of the engine: chat-style
// messages, the status banner and the last validation report.
package journal

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/ifcsync/internal/core/conflict"
	"github.com/agenthands/ifcsync/internal/logger"
)

type Sender string

const (
	SenderBot  Sender = "bot"
	SenderUser Sender = "user"
)

type StatusKind string

const (
	StatusIdle    StatusKind = "idle"
	StatusLoading StatusKind = "loading"
	StatusError   StatusKind = "error"
	StatusSuccess StatusKind = "success"
)

type Message struct {
	ID     string    `json:"id"`
	At     time.Time `json:"at"`
	Sender Sender    `json:"sender"`
	Text   string    `json:"text"`
}

type Status struct {
	Kind StatusKind `json:"kind"`
	Text string     `json:"text"`
}

type Snapshot struct {
	Messages []Message         `json:"messages"`
	Status   Status            `json:"status"`
	Report   *conflict.Summary `json:"report,omitempty"`
}

// Journal holds the most recent messages up to its capacity.
type Journal struct {
	mu       sync.RWMutex
	capacity int
	messages []Message
	status   Status
	report   *conflict.Summary
	now      func() time.Time
	log      *logger.Logger
}

func New(capacity int, log *logger.Logger) *Journal {
	if capacity <= 0 {
		capacity = 200
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Journal{
		capacity: capacity,
		status:   Status{Kind: StatusIdle, Text: "Aguardando arquivo IFC."},
		now:      time.Now,
		log:      log.With("component", "journal"),
	}
}

func (j *Journal) Bot(text string) Message {
	return j.add(SenderBot, text)
}

func (j *Journal) Botf(format string, args ...any) Message {
	return j.add(SenderBot, fmt.Sprintf(format, args...))
}

func (j *Journal) User(text string) Message {
	return j.add(SenderUser, text)
}

func (j *Journal) add(sender Sender, text string) Message {
	m := Message{
		ID:     uuid.NewString(),
		At:     j.now(),
		Sender: sender,
		Text:   text,
	}

	j.mu.Lock()
	j.messages = append(j.messages, m)
	if over := len(j.messages) - j.capacity; over > 0 {
		j.messages = append(j.messages[:0:0], j.messages[over:]...)
	}
	j.mu.Unlock()

	j.log.Debug("journal message", "sender", sender, "text", text)
	return m
}

func (j *Journal) SetStatus(kind StatusKind, text string) {
	j.mu.Lock()
	j.status = Status{Kind: kind, Text: text}
	j.mu.Unlock()
}

func (j *Journal) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

func (j *Journal) SetReport(s conflict.Summary) {
	j.mu.Lock()
	j.report = &s
	j.mu.Unlock()
}

func (j *Journal) Messages() []Message {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]Message(nil), j.messages...)
}

func (j *Journal) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	s := Snapshot{
		Messages: append([]Message(nil), j.messages...),
		Status:   j.status,
	}
	if j.report != nil {
		r := *j.report
		s.Report = &r
	}
	return s
}
