// Package notify delivers user notifications emitted by the lifecycle
// service. Delivery is best-effort: callers log and count failures.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"volunteermatch/internal/domain"
	"volunteermatch/internal/repo"
)

// Notification types.
const (
	TypeJobInvitation    = "job_invitation"
	TypeJobResponse      = "job_response"
	TypeJobStatusChanged = "job_status_changed"
)

// Message is one notification addressed to one or more users.
type Message struct {
	UserIDs   []string
	Text      string
	Type      string
	Link      string
	CreatedBy string
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, msg Message) error

func (f Func) Notify(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Nop drops every message.
type Nop struct{}

func (Nop) Notify(context.Context, Message) error { return nil }

// Store persists one notifications row per recipient.
type Store struct {
	Repo repo.Repo
	Now  func() time.Time
}

func (s Store) Notify(ctx context.Context, msg Message) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	var errs []error
	for _, uid := range msg.UserIDs {
		n := domain.Notification{
			ID:        uuid.NewString(),
			UserID:    uid,
			Message:   msg.Text,
			Type:      msg.Type,
			Link:      msg.Link,
			CreatedBy: msg.CreatedBy,
			CreatedAt: ts,
		}
		if err := s.Repo.InsertNotification(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Multi fans a message out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
