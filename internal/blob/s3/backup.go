package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
)

// TradeSource is the slice of domain.TradeStore the backup reads.
type TradeSource interface {
	List(ctx context.Context, f domain.TradeFilter) ([]domain.Trade, error)
}

// PositionSource is the slice of domain.PositionStore the backup reads.
type PositionSource interface {
	ListAll(ctx context.Context) ([]domain.Position, error)
}

// Backup implements domain.Backuper. Each run writes a full JSONL snapshot
// of trades and positions under backups/YYYY-MM-DD/ and records the run in
// the audit log. Nothing is removed from the primary store.
type Backup struct {
	writer    domain.BlobWriter
	trades    TradeSource
	positions PositionSource
	audit     domain.AuditStore
}

// NewBackup creates a Backup.
func NewBackup(writer domain.BlobWriter, trades TradeSource, positions PositionSource, audit domain.AuditStore) *Backup {
	return &Backup{
		writer:    writer,
		trades:    trades,
		positions: positions,
		audit:     audit,
	}
}

// Backup snapshots the ledger as of at.
func (b *Backup) Backup(ctx context.Context, at time.Time) (domain.BackupResult, error) {
	trades, err := b.trades.List(ctx, domain.TradeFilter{})
	if err != nil {
		return domain.BackupResult{}, fmt.Errorf("s3blob: backup trades query: %w", err)
	}
	positions, err := b.positions.ListAll(ctx)
	if err != nil {
		return domain.BackupResult{}, fmt.Errorf("s3blob: backup positions query: %w", err)
	}

	res := domain.BackupResult{
		TradesPath:    backupPath("trades", at),
		Trades:        len(trades),
		PositionsPath: backupPath("positions", at),
		Positions:     len(positions),
	}

	if err := upload(ctx, b.writer, res.TradesPath, trades); err != nil {
		return domain.BackupResult{}, err
	}
	if err := upload(ctx, b.writer, res.PositionsPath, positions); err != nil {
		return domain.BackupResult{}, err
	}

	if err := b.audit.Log(ctx, "backup.completed", map[string]any{
		"trades_path":    res.TradesPath,
		"trades":         res.Trades,
		"positions_path": res.PositionsPath,
		"positions":      res.Positions,
		"at":             at.Format(time.RFC3339),
	}); err != nil {
		return res, fmt.Errorf("s3blob: backup audit log: %w", err)
	}
	return res, nil
}

func upload[T any](ctx context.Context, w domain.BlobWriter, path string, rows []T) error {
	buf, err := marshalJSONL(rows)
	if err != nil {
		return fmt.Errorf("s3blob: backup marshal %s: %w", path, err)
	}
	if int64(len(buf)) > minPartSize {
		err = w.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = w.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return fmt.Errorf("s3blob: backup upload %s: %w", path, err)
	}
	return nil
}

// backupPath builds the key of one snapshot file, partitioned by day.
//
//	backups/2025-01-31/trades.jsonl
func backupPath(kind string, at time.Time) string {
	return fmt.Sprintf("backups/%s/%s.jsonl", at.UTC().Format("2006-01-02"), kind)
}

// marshalJSONL encodes items one JSON object per line.
func marshalJSONL[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range items {
		if err := enc.Encode(items[i]); err != nil {
			return nil, fmt.Errorf("encode item %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Backuper = (*Backup)(nil)
