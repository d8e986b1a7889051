package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/optionsdesk/internal/cache/local"
	"github.com/alanyoungcy/optionsdesk/internal/domain"
	"github.com/alanyoungcy/optionsdesk/internal/store/memory"
)

var (
	alice = domain.Principal{UserID: "alice", Email: "alice@example.com", Role: domain.RoleUser}
	bob   = domain.Principal{UserID: "bob", Email: "bob@example.com", Role: domain.RoleUser}
	admin = domain.Principal{UserID: "root", Email: "root@example.com", Role: domain.RoleAdmin}
)

type harness struct {
	store      *memory.Store
	bus        *local.EventBus
	locks      *local.LockManager
	blobs      *memBlob
	trades     *TradeService
	portfolios *PortfolioService
	positions  *PositionService
	exports    *ExportService
	clock      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store: memory.New(),
		bus:   local.NewEventBus(),
		locks: local.NewLockManager(),
		blobs: newMemBlob(),
		clock: time.Date(2025, 2, 3, 14, 0, 0, 0, time.UTC),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := h.store

	h.trades = NewTradeService(st.Trades(), st.Portfolios(), h.bus, st.Audit(), logger)
	h.portfolios = NewPortfolioService(st.Portfolios(), st.Positions(), st.Trades(), h.locks, h.bus, st.Audit(), logger)
	h.positions = NewPositionService(st.Positions(), st.Portfolios(), h.bus, st.Audit(), logger)
	h.exports = NewExportService(st.Trades(), h.blobs, h.blobs, st.Audit(), logger)

	var n int
	ids := func() string {
		n++
		return fmt.Sprintf("id-%02d", n)
	}
	now := func() time.Time {
		h.clock = h.clock.Add(time.Second)
		return h.clock
	}
	h.trades.now, h.trades.newID = now, ids
	h.portfolios.now, h.portfolios.newID = now, ids
	h.positions.now, h.positions.newID = now, ids
	h.exports.now = now
	return h
}

func (h *harness) auditEvents(t *testing.T) []string {
	t.Helper()
	entries, err := h.store.Audit().List(context.Background(), domain.ListOpts{})
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Event)
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func wantKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("err=%v want kind %v", err, kind)
	}
}

func wantField(t *testing.T, err error, field string) {
	t.Helper()
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err=%v want validation error", err)
	}
	for _, f := range ve.Fields {
		if f.Field == field {
			return
		}
	}
	t.Fatalf("fields=%+v want %s", ve.Fields, field)
}

// memBlob is an in-memory BlobWriter and BlobReader.
type memBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBlob() *memBlob { return &memBlob{objects: map[string][]byte{}} }

func (m *memBlob) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[path] = b
	m.mu.Unlock()
	return nil
}

func (m *memBlob) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return m.Put(ctx, path, data, "")
}

func (m *memBlob) Get(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBlob) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BlobInfo
	for p, b := range m.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, domain.BlobInfo{Path: p, Size: int64(len(b))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
