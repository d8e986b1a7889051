package memory

import (
	"context"
	"maps"
	"time"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
)

type auditRow = domain.AuditEntry

// AuditStore implements domain.AuditStore in memory.
type AuditStore struct{ s *Store }

// Log appends an audit entry.
func (r *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, auditRow{
		ID:        r.s.next(),
		Event:     event,
		Detail:    maps.Clone(detail),
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// List returns audit entries newest first.
func (r *AuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.AuditEntry, 0, len(r.s.audit))
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		e := r.s.audit[i]
		if opts.Since != nil && e.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.CreatedAt.After(*opts.Until) {
			continue
		}
		out = append(out, e)
	}
	return page(out, opts.Limit, opts.Offset), nil
}
