package service

import (
	"context"

	"github.com/snipvault/snipvault/internal/model"
)

// TokenStore is the durable home of share tokens. The counter fields
// (access_count, last_accessed_at) are mutated only through ConsumeAccess,
// which must be atomic with respect to concurrent calls on the same token;
// Update covers the remaining mutable configuration.
type TokenStore interface {
	Create(ctx context.Context, token *model.ShareToken) error
	GetByToken(ctx context.Context, token string) (*model.ShareToken, error)
	GetByID(ctx context.Context, id string) (*model.ShareToken, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset uint) ([]model.ShareToken, error)
	Update(ctx context.Context, token *model.ShareToken) error
	ConsumeAccess(ctx context.Context, id string, now int64) (bool, error)
	SetActive(ctx context.Context, id string, active bool, mtime int64) error
	Extend(ctx context.Context, id string, hours int64, now int64) error
	Delete(ctx context.Context, id string) error
}

// AccessLogStore persists and aggregates access-log entries. Entries are
// append-only apart from the late SetDuration write; NextAccessNumber must
// hand out a strictly increasing sequence per (token, day) under concurrency.
type AccessLogStore interface {
	Insert(ctx context.Context, entry *model.AccessLogEntry) error
	SetDuration(ctx context.Context, id string, durationMs int64) error
	HasSuccessFrom(ctx context.Context, tokenID, ip string) (bool, error)
	NextAccessNumber(ctx context.Context, tokenID, day string) (int64, error)
	List(ctx context.Context, filter model.AccessLogFilter) ([]model.AccessLogEntry, error)
	Count(ctx context.Context, filter model.AccessLogFilter) (int64, error)
	Totals(ctx context.Context, tokenID string) (*model.AccessTotals, error)
	CountBetween(ctx context.Context, tokenID string, from, to int64) (int64, error)
	DailyBuckets(ctx context.Context, tokenID, fromDay, toDay string) ([]model.AccessBucket, error)
	HourlyBuckets(ctx context.Context, tokenID string) ([]model.AccessBucket, error)
	BreakdownBy(ctx context.Context, tokenID, dimension string) ([]model.AccessCategory, error)
	ListBefore(ctx context.Context, cutoff int64, limit uint) ([]model.AccessLogEntry, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	DeleteByToken(ctx context.Context, tokenID string) error
}
