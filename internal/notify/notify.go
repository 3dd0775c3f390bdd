// Package notify carries user-visible notifications (the dashboard's toasts)
// from the API client and feature controllers to whatever surfaces them.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/vaidashi/getmethis-dashboard/pkg/logger"
)

// Level is the severity shown to the user
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Well-known notification codes
const (
	CodeSessionExpired = "session_expired"
	CodeServerError    = "server_error"
	CodeLoadFailed     = "load_failed"
	CodePayment        = "payment"
	CodeAuth           = "auth"
)

// Notification is one toast
type Notification struct {
	Level   Level     `json:"level"`
	Code    string    `json:"code,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier delivers notifications to the user
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// New builds a notification stamped with the current time
func New(level Level, code, message string) Notification {
	return Notification{Level: level, Code: code, Message: message, At: time.Now().UTC()}
}

// LogNotifier writes notifications to the logger
type LogNotifier struct {
	logger logger.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger logger.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, note Notification) {
	switch note.Level {
	case LevelError:
		n.logger.Error("Notification", "code", note.Code, "message", note.Message)
	case LevelWarning:
		n.logger.Warn("Notification", "code", note.Code, "message", note.Message)
	default:
		n.logger.Info("Notification", "level", note.Level, "code", note.Code, "message", note.Message)
	}
}

// Recorder keeps notifications in memory until drained
type Recorder struct {
	mu    sync.Mutex
	notes []Notification
}

// NewRecorder creates an empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(ctx context.Context, note Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.notes = append(r.notes, note)
}

// All returns a copy of every recorded notification
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Notification, len(r.notes))
	copy(out, r.notes)
	return out
}

// Drain returns the recorded notifications and forgets them
func (r *Recorder) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.notes
	r.notes = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}

// Count returns how many notifications with code were recorded
func (r *Recorder) Count(code string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, note := range r.notes {
		if note.Code == code {
			n++
		}
	}
	return n
}

// Multi fans a notification out to several notifiers
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, note Notification) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, note)
		}
	}
}

// Nop discards notifications
type Nop struct{}

func (Nop) Notify(context.Context, Notification) {}
