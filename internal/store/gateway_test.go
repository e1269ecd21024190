package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nfarrow/vitalink/internal/record"
)

type fakeBlobStore struct {
	err   error
	url   string
	calls int
	key   string
}

func (f *fakeBlobStore) Upload(_ context.Context, key string, _ string, _ []byte) (string, error) {
	f.calls++
	f.key = key
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type fakeRecordStore struct {
	err      error
	appended []record.HealthRecord
}

func (f *fakeRecordStore) Append(_ context.Context, rec record.HealthRecord) error {
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, rec)
	return nil
}

func TestPersistBothWritesSucceed(t *testing.T) {
	blobs := &fakeBlobStore{url: "https://blobs/object/public/health-reports/u1/uploads/abc-labs.pdf"}
	records := &fakeRecordStore{}
	g := NewGateway(nil, blobs, records)

	rec := record.HealthRecord{UserID: "u1", Status: "Healthy"}
	out := g.Persist(context.Background(), rec, "u1/uploads/abc-labs.pdf", "application/pdf", []byte("data"))

	require.True(t, out.BlobWriteOK)
	require.True(t, out.RecordWriteOK)
	require.Equal(t, blobs.url, out.Record.BlobRef)
	require.Equal(t, "u1/uploads/abc-labs.pdf", blobs.key)
	require.Len(t, records.appended, 1)
	require.Equal(t, blobs.url, records.appended[0].BlobRef, "persisted record carries the blob reference")
}

func TestPersistBlobFailureIsNonFatal(t *testing.T) {
	blobs := &fakeBlobStore{err: errors.New("storage down")}
	records := &fakeRecordStore{}
	g := NewGateway(nil, blobs, records)

	out := g.Persist(context.Background(), record.HealthRecord{UserID: "u1"}, "k", "application/pdf", []byte("data"))

	require.False(t, out.BlobWriteOK)
	require.True(t, out.RecordWriteOK)
	require.Empty(t, out.Record.BlobRef, "record must carry no blob reference when upload failed")
	require.Len(t, records.appended, 1)
}

func TestPersistRecordFailureStillReturnsRecord(t *testing.T) {
	blobs := &fakeBlobStore{url: "https://blobs/x"}
	records := &fakeRecordStore{err: errors.New("db locked")}
	g := NewGateway(nil, blobs, records)

	rec := record.HealthRecord{UserID: "u1", Status: "Healthy"}
	out := g.Persist(context.Background(), rec, "k", "application/pdf", []byte("data"))

	require.True(t, out.BlobWriteOK)
	require.False(t, out.RecordWriteOK)
	require.Equal(t, "Healthy", out.Record.Status)
	require.Equal(t, "https://blobs/x", out.Record.BlobRef)
}

func TestPersistWithoutStoresConfigured(t *testing.T) {
	g := NewGateway(nil, nil, nil)

	out := g.Persist(context.Background(), record.HealthRecord{UserID: "u1"}, "k", "", []byte("data"))
	require.False(t, out.BlobWriteOK)
	require.False(t, out.RecordWriteOK)
	require.Equal(t, "u1", out.Record.UserID)
}
