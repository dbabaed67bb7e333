// Package registration attaches phone numbers shared through the bot to
// identities created by the web login.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/watasiwa/tradegate/internal/identity"
	"github.com/watasiwa/tradegate/internal/metrics"
	"github.com/watasiwa/tradegate/internal/notification"
	"github.com/watasiwa/tradegate/internal/retry"
)

var (
	// ErrContactOwnerMismatch means a user shared somebody else's contact card.
	ErrContactOwnerMismatch = errors.New("contact does not belong to sender")
	// ErrRegistrationRaceExhausted means the identity never showed up (or
	// kept failing to update) within the attempt budget.
	ErrRegistrationRaceExhausted = errors.New("registration sync attempts exhausted")
	// ErrInvalidContact means the event carried no usable sender or phone.
	ErrInvalidContact = errors.New("invalid contact event")
)

const (
	msgMismatch = "This phone number doesn't match you. Please share your own contact."
	msgFailed   = "We couldn't save your phone number. Please try again or check the app later."
	msgSaved    = "Your phone number has been saved."
)

// ContactEvent is a contact card received on the bot channel.
type ContactEvent struct {
	ChatID string
	// SenderID is the platform id of whoever sent the message.
	SenderID string
	// OwnerID is the platform id the contact card declares as its owner.
	OwnerID     string
	PhoneNumber string
	FirstName   string
	LastName    string
	Username    string
}

// Policy bounds the find-then-update loop.
type Policy struct {
	Attempts int
	Interval time.Duration
}

// DefaultPolicy is five tries one second apart.
var DefaultPolicy = Policy{Attempts: 5, Interval: time.Second}

// Service runs RegistrationSync.
type Service struct {
	repo     identity.Repository
	policy   Policy
	notifier notification.Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	// ConfirmSaved sends msgSaved after a successful update.
	ConfirmSaved bool
}

// NewService wires a registration service. A nil notifier or metrics set is
// replaced with a no-op one.
func NewService(repo identity.Repository, policy Policy, notifier notification.Notifier, logger *slog.Logger, m *metrics.Metrics) *Service {
	if policy.Attempts < 1 {
		policy.Attempts = DefaultPolicy.Attempts
	}
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(logger)
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Service{repo: repo, policy: policy, notifier: notifier, logger: logger, metrics: m}
}

// SyncContact writes the shared phone number onto the sender's identity.
//
// The identity may not exist yet when the contact arrives, since the web
// login that creates it races the bot message. The loop therefore retries
// find-then-update a bounded number of times and never creates a row itself.
// It runs detached from ctx cancellation; only the attempt budget ends it.
func (s *Service) SyncContact(ctx context.Context, ev ContactEvent) error {
	if ev.SenderID == "" || ev.PhoneNumber == "" {
		s.metrics.ContactSyncs.WithLabelValues("invalid").Inc()
		return ErrInvalidContact
	}
	if ev.OwnerID != ev.SenderID {
		s.metrics.ContactSyncs.WithLabelValues("mismatch").Inc()
		s.notify(ctx, notification.KindContactMismatch, ev.ChatID, msgMismatch)
		return ErrContactOwnerMismatch
	}

	update := identity.ContactUpdate{
		PhoneNumber: identity.NormalizePhone(ev.PhoneNumber),
		FirstName:   ev.FirstName,
		LastName:    ev.LastName,
		Username:    ev.Username,
	}

	used := 0
	err := retry.Do(context.WithoutCancel(ctx), retry.Policy{
		Attempts: s.policy.Attempts,
		Delay:    s.policy.Interval,
	}, func(ctx context.Context, attempt int) error {
		used = attempt
		if _, err := s.repo.FindByID(ctx, ev.SenderID); err != nil {
			s.logAttempt(ev.SenderID, attempt, err)
			return err
		}
		if err := s.repo.UpdateContact(ctx, ev.SenderID, update); err != nil {
			s.logAttempt(ev.SenderID, attempt, err)
			return err
		}
		return nil
	})
	s.metrics.ContactSyncAttempts.Observe(float64(used))

	if err != nil {
		s.metrics.ContactSyncs.WithLabelValues("exhausted").Inc()
		if s.logger != nil {
			s.logger.Error("contact sync gave up",
				slog.String("user_id", ev.SenderID),
				slog.Int("attempts", used),
				slog.Any("error", err),
			)
		}
		s.notify(ctx, notification.KindContactFailed, ev.ChatID, msgFailed)
		last := err
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			last = exhausted.Last
		}
		return fmt.Errorf("%w: %w", ErrRegistrationRaceExhausted, last)
	}

	s.metrics.ContactSyncs.WithLabelValues("saved").Inc()
	if s.logger != nil {
		s.logger.Info("contact saved", slog.String("user_id", ev.SenderID), slog.Int("attempts", used))
	}
	if s.ConfirmSaved {
		s.notify(ctx, notification.KindContactSaved, ev.ChatID, msgSaved)
	}
	return nil
}

func (s *Service) logAttempt(userID string, attempt int, err error) {
	if s.logger == nil {
		return
	}
	if errors.Is(err, identity.ErrNotFound) {
		s.logger.Info("identity not registered yet",
			slog.String("user_id", userID),
			slog.Int("attempt", attempt),
		)
		return
	}
	s.logger.Warn("contact sync attempt failed",
		slog.String("user_id", userID),
		slog.Int("attempt", attempt),
		slog.Any("error", err),
	)
}

func (s *Service) notify(ctx context.Context, kind, chatID, body string) {
	if chatID == "" {
		return
	}
	err := s.notifier.Send(context.WithoutCancel(ctx), notification.Message{Kind: kind, Destination: chatID, Body: body})
	if err != nil && s.logger != nil {
		s.logger.Warn("notify user failed", slog.String("kind", kind), slog.Any("error", err))
	}
}
