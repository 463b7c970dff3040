package repo_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snipvault/snipvault/internal/model"
	appErr "github.com/snipvault/snipvault/internal/pkg/errors"
	"github.com/snipvault/snipvault/internal/repo"
	"github.com/snipvault/snipvault/test/testutil"
)

func newEntry(tokenID string, at int64) *model.AccessLogEntry {
	return &model.AccessLogEntry{
		ID:         testID("log"),
		TokenID:    tokenID,
		SnippetID:  "snip-1",
		IPAddress:  "203.0.113.9",
		Source:     "direct",
		Browser:    "Chrome",
		OS:         "Linux",
		DeviceType: "desktop",
		IsSuccess:  true,
		AccessDay:  "2026-08-31",
		AccessHour: 12,
		AccessedAt: at,
	}
}

func TestAccessLogRepoInsertListCount(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	logs := repo.NewAccessLogRepo(db)
	tokenID := testID("tok")

	first := newEntry(tokenID, 1000)
	second := newEntry(tokenID, 2000)
	second.IsSuccess = false
	second.FailureReason = "LimitReached"
	second.IPAddress = "198.51.100.7"
	require.NoError(t, logs.Insert(context.Background(), first))
	require.NoError(t, logs.Insert(context.Background(), second))

	items, err := logs.List(context.Background(), model.AccessLogFilter{TokenID: tokenID, OrderDesc: true, Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, second.ID, items[0].ID)
	require.Equal(t, "LimitReached", items[0].FailureReason)

	success := true
	count, err := logs.Count(context.Background(), model.AccessLogFilter{TokenID: tokenID, IsSuccess: &success})
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	count, err = logs.Count(context.Background(), model.AccessLogFilter{TokenID: tokenID, From: 1500})
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	require.NoError(t, logs.SetDuration(context.Background(), first.ID, 1234))
	require.ErrorIs(t, logs.SetDuration(context.Background(), "no-such-id", 1), appErr.ErrNotFound)

	seen, err := logs.HasSuccessFrom(context.Background(), tokenID, "203.0.113.9")
	require.NoError(t, err)
	require.True(t, seen)
	seen, err = logs.HasSuccessFrom(context.Background(), tokenID, "198.51.100.7")
	require.NoError(t, err)
	require.False(t, seen)
}

func TestAccessLogRepoNextAccessNumber(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	logs := repo.NewAccessLogRepo(db)
	tokenID := testID("tok")

	for want := int64(1); want <= 3; want++ {
		seq, err := logs.NextAccessNumber(context.Background(), tokenID, "2026-08-30")
		require.NoError(t, err)
		require.Equal(t, want, seq)
	}

	// A new day starts its own sequence.
	seq, err := logs.NextAccessNumber(context.Background(), tokenID, "2026-08-31")
	require.NoError(t, err)
	require.Equal(t, int64(1), seq)
}

func TestAccessLogRepoNextAccessNumberConcurrent(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	logs := repo.NewAccessLogRepo(db)
	tokenID := testID("tok")

	const attempts = 16
	seqs := make([]int64, attempts)
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seqs[i], errs[i] = logs.NextAccessNumber(context.Background(), tokenID, "2026-08-31")
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, attempts)
	for i := 0; i < attempts; i++ {
		require.NoError(t, errs[i])
		require.False(t, seen[seqs[i]], "duplicate sequence %d", seqs[i])
		seen[seqs[i]] = true
	}
	for n := int64(1); n <= attempts; n++ {
		require.True(t, seen[n], "missing sequence %d", n)
	}
}

func TestAccessLogRepoAggregates(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	logs := repo.NewAccessLogRepo(db)
	tokenID := testID("tok")

	first := newEntry(tokenID, 1000)
	first.DurationMs = 400
	second := newEntry(tokenID, 2000)
	second.DurationMs = 600
	second.AccessDay = "2026-09-01"
	second.AccessHour = 9
	second.Source = "google.com"
	third := newEntry(tokenID, 3000)
	third.IsSuccess = false
	third.FailureReason = "Expired"
	third.IPAddress = "198.51.100.7"
	third.AccessDay = "2026-09-01"
	third.AccessHour = 9
	for _, entry := range []*model.AccessLogEntry{first, second, third} {
		require.NoError(t, logs.Insert(context.Background(), entry))
	}

	totals, err := logs.Totals(context.Background(), tokenID)
	require.NoError(t, err)
	require.Equal(t, int64(3), totals.TotalAccessCount)
	require.Equal(t, int64(2), totals.UniqueAccessCount)
	require.Equal(t, int64(2), totals.SuccessCount)
	require.Equal(t, int64(1), totals.FailedCount)
	require.InDelta(t, 500, totals.AverageDurationMs, 0.001)
	require.Equal(t, int64(1000), *totals.FirstAccessedAt)
	require.Equal(t, int64(3000), *totals.LastAccessedAt)

	count, err := logs.CountBetween(context.Background(), tokenID, 1000, 3000)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	daily, err := logs.DailyBuckets(context.Background(), tokenID, "2026-08-31", "2026-09-01")
	require.NoError(t, err)
	require.Len(t, daily, 2)
	require.Equal(t, "2026-08-31", daily[0].Key)
	require.Equal(t, int64(1), daily[0].Count)
	require.Equal(t, int64(2), daily[1].Count)
	require.Equal(t, int64(1), daily[1].SuccessCount)

	hourly, err := logs.HourlyBuckets(context.Background(), tokenID)
	require.NoError(t, err)
	require.Len(t, hourly, 2)
	require.Equal(t, "9", hourly[0].Key)

	bySource, err := logs.BreakdownBy(context.Background(), tokenID, "source")
	require.NoError(t, err)
	require.Len(t, bySource, 2)
	require.Equal(t, "direct", bySource[0].Value)
	require.Equal(t, int64(2), bySource[0].Count)
	require.Equal(t, int64(2), bySource[0].UniqueVisitors)

	_, err = logs.BreakdownBy(context.Background(), tokenID, "accessed_at; DROP TABLE share_access_logs")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestAccessLogRepoRetentionAndDelete(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	logs := repo.NewAccessLogRepo(db)
	tokenID := testID("tok")

	old := newEntry(tokenID, 100)
	fresh := newEntry(tokenID, 10_000_000_000)
	require.NoError(t, logs.Insert(context.Background(), old))
	require.NoError(t, logs.Insert(context.Background(), fresh))
	_, err := logs.NextAccessNumber(context.Background(), tokenID, "2026-08-31")
	require.NoError(t, err)

	expired, err := logs.ListBefore(context.Background(), 1000, 10)
	require.NoError(t, err)
	found := false
	for _, entry := range expired {
		if entry.ID == old.ID {
			found = true
		}
		require.Less(t, entry.AccessedAt, int64(1000))
	}
	require.True(t, found)

	deleted, err := logs.DeleteByIDs(context.Background(), []string{old.ID})
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	require.NoError(t, logs.DeleteByToken(context.Background(), tokenID))
	count, err := logs.Count(context.Background(), model.AccessLogFilter{TokenID: tokenID})
	require.NoError(t, err)
	require.Zero(t, count)

	// Sequence rows were purged too, so the next day restarts at 1.
	seq, err := logs.NextAccessNumber(context.Background(), tokenID, "2026-08-31")
	require.NoError(t, err)
	require.Equal(t, int64(1), seq)
}
