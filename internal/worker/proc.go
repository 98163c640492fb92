package worker

import (
	"context"
	"fmt"

	"todo_app/internal/queue"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SessionRevoker removes stored sessions of a user.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, userID uuid.UUID, except ...string) (int, error)
}

func handleEvent(ctx context.Context, revoker SessionRevoker, event *queue.AccountEvent, workerID int) error {
	if event.UserID == uuid.Nil {
		return fmt.Errorf("%s event without user_id", event.Type)
	}

	switch event.Type {
	case queue.EventUserRegistered:
		logrus.WithFields(logrus.Fields{
			"worker":  workerID,
			"user_id": event.UserID,
		}).Info("New user registered")
		return nil
	case queue.EventUserPasswordChanged:
		return purgeSessions(ctx, revoker, event, workerID, event.KeepSessionID)
	case queue.EventUserDeleted:
		return purgeSessions(ctx, revoker, event, workerID)
	default:
		return fmt.Errorf("unknown event type: %s", event.Type)
	}
}

func purgeSessions(ctx context.Context, revoker SessionRevoker, event *queue.AccountEvent, workerID int, keep ...string) error {
	keep = nonEmpty(keep)

	n, err := revoker.RevokeAll(ctx, event.UserID, keep...)
	if err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"worker":  workerID,
		"event":   event.Type,
		"user_id": event.UserID,
		"revoked": n,
	}).Info("Sessions purged")
	return nil
}

func nonEmpty(ids []string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
