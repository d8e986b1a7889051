// Package service orchestrates the ledger rules with storage, events and
// the audit log. Services receive a verified principal from the caller and
// never trust ownership fields in request bodies.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
)

// recorder publishes change events on the owner's channel and appends the
// matching audit entry. Both are best-effort; failures are logged and the
// mutation that triggered them stands.
type recorder struct {
	bus       domain.EventBus
	audit     domain.AuditStore
	logger    *slog.Logger
	component string
}

func (r recorder) record(ctx context.Context, userID, event string, payload any, detail map[string]any) {
	if r.bus != nil {
		data, err := json.Marshal(domain.Event{
			Type:    event,
			UserID:  userID,
			Payload: payload,
			At:      time.Now().UTC(),
		})
		if err == nil {
			err = r.bus.Publish(ctx, domain.UserChannel(userID), data)
		}
		if err != nil {
			r.logger.WarnContext(ctx, r.component+": publish event failed",
				slog.String("event", event),
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	if r.audit == nil {
		return
	}
	if detail == nil {
		detail = map[string]any{}
	}
	detail["user_id"] = userID
	if err := r.audit.Log(ctx, event, detail); err != nil {
		r.logger.WarnContext(ctx, r.component+": audit log failed",
			slog.String("event", event),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

func utcNow() time.Time { return time.Now().UTC() }

func newID() string { return uuid.NewString() }
