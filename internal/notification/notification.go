package notification

import (
	"context"
	"log/slog"
	"sync"
)

const (
	// KindContactMismatch tells a user the shared contact is not their own.
	KindContactMismatch = "contact_mismatch"
	// KindContactSaved confirms a phone number was stored.
	KindContactSaved = "contact_saved"
	// KindContactFailed reports that the phone number could not be stored.
	KindContactFailed = "contact_failed"
)

// Message describes a notification payload. Destination is channel specific;
// for the bot it is the chat id.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger. It stands in for the bot
// when the bot is disabled.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("body", message.Body),
	)
	return nil
}

// Recorder keeps every message in memory. Tests use it to assert what a user
// was told.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Send records message.
func (r *Recorder) Send(_ context.Context, message Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

// Messages returns a copy of what was sent so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}
