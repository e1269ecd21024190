package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nfarrow/vitalink/internal/record"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "records.sqlite"))
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteAppendAndReadBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := record.HealthRecord{
		UserID:     "u1",
		Status:     "Healthy",
		Score:      "88",
		Hydration:  "High",
		Velocity:   "Improving",
		RiskFactor: "None",
		Summary:    "Strong panel.",
		Correlations: []record.Correlation{
			{Title: "Sleep", Description: "Deep sleep up 12%", Polarity: record.PolarityPositive},
		},
		BlobRef:   "https://blobs/u1/uploads/x.pdf",
		FileName:  "x.pdf",
		FileType:  "application/pdf",
		Timestamp: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Append(ctx, rec))

	got, err := s.RecentForUser(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, rec, got[0])
}

func TestSQLiteRecentForUserOrdersNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Append(ctx, record.HealthRecord{
			UserID:       "u1",
			Status:       "Healthy",
			Score:        "80",
			Hydration:    "Medium",
			Velocity:     "Stable",
			RiskFactor:   "None",
			Summary:      "ok",
			Correlations: []record.Correlation{},
			Timestamp:    base.Add(time.Duration(i) * time.Hour),
		}))
	}

	got, err := s.RecentForUser(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.True(t, got[0].Timestamp.After(got[1].Timestamp))
}

func TestSQLiteIsolatesUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, record.HealthRecord{
		UserID: "u1", Status: "Healthy", Score: "80", Hydration: "Medium",
		Velocity: "Stable", RiskFactor: "None", Summary: "ok",
		Correlations: []record.Correlation{}, Timestamp: time.Now().UTC().Truncate(time.Second),
	}))

	got, err := s.RecentForUser(ctx, "u2", 10)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSQLiteAppendBeforeInit(t *testing.T) {
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "records.sqlite"))
	err := s.Append(context.Background(), record.HealthRecord{UserID: "u1"})
	require.Error(t, err)
}
