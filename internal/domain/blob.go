package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

// BackupResult reports what a backup run wrote.
type BackupResult struct {
	TradesPath    string `json:"tradesPath"`
	Trades        int    `json:"trades"`
	PositionsPath string `json:"positionsPath"`
	Positions     int    `json:"positions"`
}

// Backuper snapshots the ledger to cold storage.
type Backuper interface {
	Backup(ctx context.Context, at time.Time) (BackupResult, error)
}
