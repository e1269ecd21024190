// Package store persists scan artifacts: the raw document blob and the
// structured health record. Both writes are best-effort.
package store

import (
	"context"
	"io"
	"log/slog"

	"github.com/nfarrow/vitalink/internal/record"
)

// BlobStore uploads raw scan documents and returns a public reference URL.
type BlobStore interface {
	Upload(ctx context.Context, key string, mimeType string, data []byte) (string, error)
}

// RecordStore appends finished health records.
type RecordStore interface {
	Append(ctx context.Context, rec record.HealthRecord) error
}

// Outcome reports the combined result of the dual write. There is no
// rollback: a record without its blob, or an unpersisted record returned to
// the caller, are both acceptable partial successes.
type Outcome struct {
	Record        record.HealthRecord
	BlobWriteOK   bool
	RecordWriteOK bool
}

// Gateway performs the two-step write: blob first (so the record can carry
// the reference), then the structured record.
type Gateway struct {
	logger  *slog.Logger
	blobs   BlobStore
	records RecordStore
}

func NewGateway(logger *slog.Logger, blobs BlobStore, records RecordStore) *Gateway {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Gateway{logger: logger, blobs: blobs, records: records}
}

// Persist uploads the document under key, stamps the record with the blob
// reference on success, and appends the record. Failures in either step are
// logged and reflected in the Outcome, never raised.
func (g *Gateway) Persist(ctx context.Context, rec record.HealthRecord, key string, mimeType string, data []byte) Outcome {
	out := Outcome{}

	if g.blobs != nil && len(data) > 0 {
		url, err := g.blobs.Upload(ctx, key, mimeType, data)
		if err != nil {
			g.logger.Warn("blob upload failed", "key", key, "error", err)
		} else {
			rec.BlobRef = url
			out.BlobWriteOK = true
		}
	}

	if g.records != nil {
		if err := g.records.Append(ctx, rec); err != nil {
			g.logger.Warn("record write failed", "user", rec.UserID, "error", err)
		} else {
			out.RecordWriteOK = true
		}
	}

	out.Record = rec
	return out
}
