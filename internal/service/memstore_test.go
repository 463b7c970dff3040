package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/snipvault/snipvault/internal/model"
	appErr "github.com/snipvault/snipvault/internal/pkg/errors"
)

// memStore is an in-memory TokenStore + AccessLogStore used to exercise the
// services, including the atomicity contract of ConsumeAccess and
// NextAccessNumber, without a database.
type memStore struct {
	mu      sync.Mutex
	tokens  map[string]*model.ShareToken
	byToken map[string]string
	entries []model.AccessLogEntry
	seq     map[string]int64
}

func newMemStore() *memStore {
	return &memStore{
		tokens:  make(map[string]*model.ShareToken),
		byToken: make(map[string]string),
		seq:     make(map[string]int64),
	}
}

var (
	_ TokenStore     = (*memStore)(nil)
	_ AccessLogStore = (*memStore)(nil)
)

func (m *memStore) Create(ctx context.Context, token *model.ShareToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tokens[token.ID]; exists {
		return appErr.ErrConflict
	}
	if _, exists := m.byToken[token.Token]; exists {
		return appErr.ErrConflict
	}
	clone := *token
	m.tokens[token.ID] = &clone
	m.byToken[token.Token] = token.ID
	return nil
}

func (m *memStore) GetByToken(ctx context.Context, tokenString string) (*model.ShareToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byToken[tokenString]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	clone := *m.tokens[id]
	return &clone, nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*model.ShareToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	clone := *token
	return &clone, nil
}

func (m *memStore) ListByOwner(ctx context.Context, ownerID string, limit, offset uint) ([]model.ShareToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]model.ShareToken, 0)
	for _, token := range m.tokens {
		if token.CreatedBy == ownerID {
			items = append(items, *token)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Ctime > items[j].Ctime })
	if int(offset) >= len(items) {
		return []model.ShareToken{}, nil
	}
	items = items[offset:]
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items, nil
}

func (m *memStore) Update(ctx context.Context, token *model.ShareToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tokens[token.ID]
	if !ok {
		return appErr.ErrNotFound
	}
	stored.Description = token.Description
	stored.Permission = token.Permission
	stored.PasswordHash = token.PasswordHash
	stored.IsActive = token.IsActive
	stored.MaxAccessCount = token.MaxAccessCount
	stored.AllowDownload = token.AllowDownload
	stored.AllowCopy = token.AllowCopy
	stored.ExpiresAt = token.ExpiresAt
	stored.Mtime = token.Mtime
	return nil
}

func (m *memStore) ConsumeAccess(ctx context.Context, id string, now int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[id]
	if !ok {
		return false, nil
	}
	if !token.Usable(now) {
		return false, nil
	}
	token.AccessCount++
	last := now
	token.LastAccessedAt = &last
	token.Mtime = now
	return true, nil
}

func (m *memStore) SetActive(ctx context.Context, id string, active bool, mtime int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[id]
	if !ok {
		return appErr.ErrNotFound
	}
	token.IsActive = active
	token.Mtime = mtime
	return nil
}

func (m *memStore) Extend(ctx context.Context, id string, hours int64, now int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[id]
	if !ok {
		return appErr.ErrNotFound
	}
	anchor := now
	if token.ExpiresAt != nil {
		anchor = *token.ExpiresAt
	}
	expiresAt := anchor + hours*3600
	token.ExpiresAt = &expiresAt
	token.Mtime = now
	return nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[id]
	if !ok {
		return appErr.ErrNotFound
	}
	delete(m.byToken, token.Token)
	delete(m.tokens, id)
	return nil
}

func (m *memStore) Insert(ctx context.Context, entry *model.AccessLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memStore) SetDuration(ctx context.Context, id string, durationMs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries[i].DurationMs = durationMs
			return nil
		}
	}
	return appErr.ErrNotFound
}

func (m *memStore) HasSuccessFrom(ctx context.Context, tokenID, ip string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].TokenID == tokenID && m.entries[i].IPAddress == ip && m.entries[i].IsSuccess {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) NextAccessNumber(ctx context.Context, tokenID, day string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tokenID + "|" + day
	m.seq[key]++
	return m.seq[key], nil
}

func (m *memStore) matches(entry *model.AccessLogEntry, filter model.AccessLogFilter) bool {
	if entry.TokenID != filter.TokenID {
		return false
	}
	if filter.From > 0 && entry.AccessedAt < filter.From {
		return false
	}
	if filter.To > 0 && entry.AccessedAt >= filter.To {
		return false
	}
	if filter.IsSuccess != nil && entry.IsSuccess != *filter.IsSuccess {
		return false
	}
	if filter.Source != "" && entry.Source != filter.Source {
		return false
	}
	if filter.Country != "" && entry.Country != filter.Country {
		return false
	}
	if filter.DeviceType != "" && entry.DeviceType != filter.DeviceType {
		return false
	}
	if filter.Browser != "" && entry.Browser != filter.Browser {
		return false
	}
	if filter.OS != "" && entry.OS != filter.OS {
		return false
	}
	return true
}

func (m *memStore) List(ctx context.Context, filter model.AccessLogFilter) ([]model.AccessLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]model.AccessLogEntry, 0)
	for i := range m.entries {
		if m.matches(&m.entries[i], filter) {
			items = append(items, m.entries[i])
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if filter.OrderDesc {
			return items[i].AccessedAt > items[j].AccessedAt
		}
		return items[i].AccessedAt < items[j].AccessedAt
	})
	if int(filter.Offset) >= len(items) {
		return []model.AccessLogEntry{}, nil
	}
	items = items[filter.Offset:]
	if filter.Limit > 0 && int(filter.Limit) < len(items) {
		items = items[:filter.Limit]
	}
	return items, nil
}

func (m *memStore) Count(ctx context.Context, filter model.AccessLogFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for i := range m.entries {
		if m.matches(&m.entries[i], filter) {
			count++
		}
	}
	return count, nil
}

func (m *memStore) Totals(ctx context.Context, tokenID string) (*model.AccessTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	totals := &model.AccessTotals{}
	ips := make(map[string]struct{})
	var durationSum, durationCount int64
	for i := range m.entries {
		entry := &m.entries[i]
		if entry.TokenID != tokenID {
			continue
		}
		totals.TotalAccessCount++
		ips[entry.IPAddress] = struct{}{}
		if entry.IsSuccess {
			totals.SuccessCount++
			if entry.DurationMs > 0 {
				durationSum += entry.DurationMs
				durationCount++
			}
		} else {
			totals.FailedCount++
		}
		at := entry.AccessedAt
		if totals.FirstAccessedAt == nil || at < *totals.FirstAccessedAt {
			first := at
			totals.FirstAccessedAt = &first
		}
		if totals.LastAccessedAt == nil || at > *totals.LastAccessedAt {
			last := at
			totals.LastAccessedAt = &last
		}
	}
	totals.UniqueAccessCount = int64(len(ips))
	if durationCount > 0 {
		totals.AverageDurationMs = float64(durationSum) / float64(durationCount)
	}
	return totals, nil
}

func (m *memStore) CountBetween(ctx context.Context, tokenID string, from, to int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for i := range m.entries {
		entry := &m.entries[i]
		if entry.TokenID == tokenID && entry.AccessedAt >= from && entry.AccessedAt < to {
			count++
		}
	}
	return count, nil
}

type bucketAccum struct {
	count, unique, success, durationSum, durationCount int64
	ips                                                map[string]struct{}
}

func (m *memStore) buckets(tokenID string, keyOf func(*model.AccessLogEntry) (string, bool)) []model.AccessBucket {
	accum := make(map[string]*bucketAccum)
	for i := range m.entries {
		entry := &m.entries[i]
		if entry.TokenID != tokenID {
			continue
		}
		key, ok := keyOf(entry)
		if !ok {
			continue
		}
		b := accum[key]
		if b == nil {
			b = &bucketAccum{ips: make(map[string]struct{})}
			accum[key] = b
		}
		b.count++
		b.ips[entry.IPAddress] = struct{}{}
		if entry.IsSuccess {
			b.success++
			if entry.DurationMs > 0 {
				b.durationSum += entry.DurationMs
				b.durationCount++
			}
		}
	}
	keys := make([]string, 0, len(accum))
	for key := range accum {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	items := make([]model.AccessBucket, 0, len(keys))
	for _, key := range keys {
		b := accum[key]
		bucket := model.AccessBucket{
			Key:            key,
			Count:          b.count,
			UniqueVisitors: int64(len(b.ips)),
			SuccessCount:   b.success,
		}
		if b.durationCount > 0 {
			bucket.AverageDurationMs = float64(b.durationSum) / float64(b.durationCount)
		}
		items = append(items, bucket)
	}
	return items
}

func (m *memStore) DailyBuckets(ctx context.Context, tokenID, fromDay, toDay string) ([]model.AccessBucket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buckets(tokenID, func(entry *model.AccessLogEntry) (string, bool) {
		return entry.AccessDay, entry.AccessDay >= fromDay && entry.AccessDay <= toDay
	}), nil
}

func (m *memStore) HourlyBuckets(ctx context.Context, tokenID string) ([]model.AccessBucket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buckets(tokenID, func(entry *model.AccessLogEntry) (string, bool) {
		return strconv.Itoa(entry.AccessHour), true
	}), nil
}

func (m *memStore) BreakdownBy(ctx context.Context, tokenID, dimension string) ([]model.AccessCategory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	valueOf := map[string]func(*model.AccessLogEntry) string{
		"source":      func(e *model.AccessLogEntry) string { return e.Source },
		"device_type": func(e *model.AccessLogEntry) string { return e.DeviceType },
		"browser":     func(e *model.AccessLogEntry) string { return e.Browser },
		"os":          func(e *model.AccessLogEntry) string { return e.OS },
		"country":     func(e *model.AccessLogEntry) string { return e.Country },
		"city":        func(e *model.AccessLogEntry) string { return e.City },
	}[dimension]
	if valueOf == nil {
		return nil, appErr.ErrInvalid
	}
	counts := make(map[string]int64)
	uniques := make(map[string]map[string]struct{})
	for i := range m.entries {
		entry := &m.entries[i]
		if entry.TokenID != tokenID {
			continue
		}
		value := valueOf(entry)
		counts[value]++
		if uniques[value] == nil {
			uniques[value] = make(map[string]struct{})
		}
		uniques[value][entry.IPAddress] = struct{}{}
	}
	items := make([]model.AccessCategory, 0, len(counts))
	for value, count := range counts {
		items = append(items, model.AccessCategory{
			Value:          value,
			Count:          count,
			UniqueVisitors: int64(len(uniques[value])),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Value < items[j].Value
	})
	return items, nil
}

func (m *memStore) ListBefore(ctx context.Context, cutoff int64, limit uint) ([]model.AccessLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]model.AccessLogEntry, 0)
	for i := range m.entries {
		if m.entries[i].AccessedAt < cutoff {
			items = append(items, m.entries[i])
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].AccessedAt < items[j].AccessedAt })
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items, nil
}

func (m *memStore) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := m.entries[:0]
	var deleted int64
	for i := range m.entries {
		if _, ok := drop[m.entries[i].ID]; ok {
			deleted++
			continue
		}
		kept = append(kept, m.entries[i])
	}
	m.entries = kept
	return deleted, nil
}

func (m *memStore) DeleteByToken(ctx context.Context, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	for i := range m.entries {
		if m.entries[i].TokenID == tokenID {
			continue
		}
		kept = append(kept, m.entries[i])
	}
	m.entries = kept
	for key := range m.seq {
		if strings.HasPrefix(key, tokenID+"|") {
			delete(m.seq, key)
		}
	}
	return nil
}
