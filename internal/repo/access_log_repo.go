package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/didi/gendry/builder"

	"github.com/snipvault/snipvault/internal/model"
	"github.com/snipvault/snipvault/internal/pkg/dbutil"
	appErr "github.com/snipvault/snipvault/internal/pkg/errors"
)

var accessLogColumns = []string{
	"id", "token_id", "snippet_id", "ip_address", "user_agent", "referer",
	"source", "session_id", "country", "city", "browser", "os", "device_type",
	"is_success", "failure_reason", "duration_ms", "is_first_access",
	"access_number", "access_day", "access_hour", "accessed_at",
}

// breakdown dimensions are whitelisted to keep them out of SQL identifiers.
var breakdownColumns = map[string]string{
	"source":      "source",
	"device_type": "device_type",
	"browser":     "browser",
	"os":          "os",
	"country":     "country",
	"city":        "city",
}

type AccessLogRepo struct {
	db *sql.DB
}

func NewAccessLogRepo(db *sql.DB) *AccessLogRepo {
	return &AccessLogRepo{db: db}
}

func (r *AccessLogRepo) Insert(ctx context.Context, entry *model.AccessLogEntry) error {
	data := map[string]interface{}{
		"id":              entry.ID,
		"token_id":        entry.TokenID,
		"snippet_id":      entry.SnippetID,
		"ip_address":      entry.IPAddress,
		"user_agent":      entry.UserAgent,
		"referer":         entry.Referer,
		"source":          entry.Source,
		"session_id":      entry.SessionID,
		"country":         entry.Country,
		"city":            entry.City,
		"browser":         entry.Browser,
		"os":              entry.OS,
		"device_type":     entry.DeviceType,
		"is_success":      entry.IsSuccess,
		"failure_reason":  entry.FailureReason,
		"duration_ms":     entry.DurationMs,
		"is_first_access": entry.IsFirstAccess,
		"access_number":   entry.AccessNumber,
		"access_day":      entry.AccessDay,
		"access_hour":     entry.AccessHour,
		"accessed_at":     entry.AccessedAt,
	}
	sqlStr, args, err := builder.BuildInsert("share_access_logs", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

// SetDuration is the late write path for duration_ms, which arrives after the
// access completes.
func (r *AccessLogRepo) SetDuration(ctx context.Context, id string, durationMs int64) error {
	where := map[string]interface{}{"id": id}
	update := map[string]interface{}{"duration_ms": durationMs}
	sqlStr, args, err := builder.BuildUpdate("share_access_logs", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *AccessLogRepo) HasSuccessFrom(ctx context.Context, tokenID, ip string) (bool, error) {
	const sqlStr = `
		SELECT EXISTS (
			SELECT 1 FROM share_access_logs
			WHERE token_id = $1 AND ip_address = $2 AND is_success
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, sqlStr, tokenID, ip).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// NextAccessNumber advances the per-token-per-day sequence atomically via an
// upsert, so concurrent recordings for the same token-day never share a value.
func (r *AccessLogRepo) NextAccessNumber(ctx context.Context, tokenID, day string) (int64, error) {
	const sqlStr = `
		INSERT INTO share_access_seq (token_id, day, seq) VALUES ($1, $2, 1)
		ON CONFLICT (token_id, day) DO UPDATE SET seq = share_access_seq.seq + 1
		RETURNING seq
	`
	var seq int64
	if err := r.db.QueryRowContext(ctx, sqlStr, tokenID, day).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func filterWhere(filter model.AccessLogFilter) (string, []interface{}) {
	conds := []string{"token_id = ?"}
	args := []interface{}{filter.TokenID}
	if filter.From > 0 {
		conds = append(conds, "accessed_at >= ?")
		args = append(args, filter.From)
	}
	if filter.To > 0 {
		conds = append(conds, "accessed_at < ?")
		args = append(args, filter.To)
	}
	if filter.IsSuccess != nil {
		conds = append(conds, "is_success = ?")
		args = append(args, *filter.IsSuccess)
	}
	for col, value := range map[string]string{
		"source":      filter.Source,
		"country":     filter.Country,
		"device_type": filter.DeviceType,
		"browser":     filter.Browser,
		"os":          filter.OS,
	} {
		if value != "" {
			conds = append(conds, col+" = ?")
			args = append(args, value)
		}
	}
	return strings.Join(conds, " AND "), args
}

func (r *AccessLogRepo) List(ctx context.Context, filter model.AccessLogFilter) ([]model.AccessLogEntry, error) {
	where, args := filterWhere(filter)
	order := "ASC"
	if filter.OrderDesc {
		order = "DESC"
	}
	sqlStr := fmt.Sprintf(
		"SELECT %s FROM share_access_logs WHERE %s ORDER BY accessed_at %s",
		strings.Join(accessLogColumns, ", "), where, order,
	)
	if filter.Limit > 0 {
		sqlStr += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.AccessLogEntry, 0)
	for rows.Next() {
		entry, err := scanAccessLog(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *entry)
	}
	return items, rows.Err()
}

func (r *AccessLogRepo) Count(ctx context.Context, filter model.AccessLogFilter) (int64, error) {
	where, args := filterWhere(filter)
	sqlStr := "SELECT COUNT(1) FROM share_access_logs WHERE " + where
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var count int64
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *AccessLogRepo) Totals(ctx context.Context, tokenID string) (*model.AccessTotals, error) {
	const sqlStr = `
		SELECT COUNT(1),
		       COUNT(DISTINCT ip_address),
		       COUNT(1) FILTER (WHERE is_success),
		       COUNT(1) FILTER (WHERE NOT is_success),
		       COALESCE(AVG(duration_ms) FILTER (WHERE is_success AND duration_ms > 0), 0),
		       MIN(accessed_at),
		       MAX(accessed_at)
		FROM share_access_logs WHERE token_id = $1
	`
	var totals model.AccessTotals
	var first, last sql.NullInt64
	if err := r.db.QueryRowContext(ctx, sqlStr, tokenID).Scan(
		&totals.TotalAccessCount, &totals.UniqueAccessCount,
		&totals.SuccessCount, &totals.FailedCount,
		&totals.AverageDurationMs, &first, &last,
	); err != nil {
		return nil, err
	}
	if first.Valid {
		totals.FirstAccessedAt = &first.Int64
	}
	if last.Valid {
		totals.LastAccessedAt = &last.Int64
	}
	return &totals, nil
}

func (r *AccessLogRepo) CountBetween(ctx context.Context, tokenID string, from, to int64) (int64, error) {
	const sqlStr = `
		SELECT COUNT(1) FROM share_access_logs
		WHERE token_id = $1 AND accessed_at >= $2 AND accessed_at < $3
	`
	var count int64
	if err := r.db.QueryRowContext(ctx, sqlStr, tokenID, from, to).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *AccessLogRepo) DailyBuckets(ctx context.Context, tokenID string, fromDay, toDay string) ([]model.AccessBucket, error) {
	const sqlStr = `
		SELECT access_day,
		       COUNT(1),
		       COUNT(DISTINCT ip_address),
		       COUNT(1) FILTER (WHERE is_success),
		       COALESCE(AVG(duration_ms) FILTER (WHERE is_success AND duration_ms > 0), 0)
		FROM share_access_logs
		WHERE token_id = $1 AND access_day >= $2 AND access_day <= $3
		GROUP BY access_day
		ORDER BY access_day ASC
	`
	return r.queryBuckets(ctx, sqlStr, tokenID, fromDay, toDay)
}

func (r *AccessLogRepo) HourlyBuckets(ctx context.Context, tokenID string) ([]model.AccessBucket, error) {
	const sqlStr = `
		SELECT CAST(access_hour AS VARCHAR),
		       COUNT(1),
		       COUNT(DISTINCT ip_address),
		       COUNT(1) FILTER (WHERE is_success),
		       COALESCE(AVG(duration_ms) FILTER (WHERE is_success AND duration_ms > 0), 0)
		FROM share_access_logs
		WHERE token_id = $1
		GROUP BY access_hour
		ORDER BY access_hour ASC
	`
	return r.queryBuckets(ctx, sqlStr, tokenID)
}

func (r *AccessLogRepo) queryBuckets(ctx context.Context, sqlStr string, args ...interface{}) ([]model.AccessBucket, error) {
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.AccessBucket, 0)
	for rows.Next() {
		var bucket model.AccessBucket
		if err := rows.Scan(&bucket.Key, &bucket.Count, &bucket.UniqueVisitors,
			&bucket.SuccessCount, &bucket.AverageDurationMs); err != nil {
			return nil, err
		}
		items = append(items, bucket)
	}
	return items, rows.Err()
}

func (r *AccessLogRepo) BreakdownBy(ctx context.Context, tokenID, dimension string) ([]model.AccessCategory, error) {
	column, ok := breakdownColumns[dimension]
	if !ok {
		return nil, appErr.ErrInvalid
	}
	sqlStr := fmt.Sprintf(`
		SELECT %s, COUNT(1), COUNT(DISTINCT ip_address)
		FROM share_access_logs
		WHERE token_id = $1
		GROUP BY %s
		ORDER BY COUNT(1) DESC, %s ASC
	`, column, column, column)
	rows, err := r.db.QueryContext(ctx, sqlStr, tokenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.AccessCategory, 0)
	for rows.Next() {
		var category model.AccessCategory
		if err := rows.Scan(&category.Value, &category.Count, &category.UniqueVisitors); err != nil {
			return nil, err
		}
		items = append(items, category)
	}
	return items, rows.Err()
}

func (r *AccessLogRepo) ListBefore(ctx context.Context, cutoff int64, limit uint) ([]model.AccessLogEntry, error) {
	sqlStr := fmt.Sprintf(
		"SELECT %s FROM share_access_logs WHERE accessed_at < ? ORDER BY accessed_at ASC LIMIT ?",
		strings.Join(accessLogColumns, ", "),
	)
	args := []interface{}{cutoff, limit}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.AccessLogEntry, 0)
	for rows.Next() {
		entry, err := scanAccessLog(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *entry)
	}
	return items, rows.Err()
}

func (r *AccessLogRepo) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	sqlStr, args, err := builder.BuildDelete("share_access_logs", map[string]interface{}{"id in": ids})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteByToken removes all log and sequence rows for a hard-deleted token.
func (r *AccessLogRepo) DeleteByToken(ctx context.Context, tokenID string) error {
	for _, table := range []string{"share_access_logs", "share_access_seq"} {
		sqlStr, args, err := builder.BuildDelete(table, map[string]interface{}{"token_id": tokenID})
		if err != nil {
			return err
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
		if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
			return err
		}
	}
	return nil
}

func scanAccessLog(rows *sql.Rows) (*model.AccessLogEntry, error) {
	var entry model.AccessLogEntry
	if err := rows.Scan(
		&entry.ID, &entry.TokenID, &entry.SnippetID, &entry.IPAddress,
		&entry.UserAgent, &entry.Referer, &entry.Source, &entry.SessionID,
		&entry.Country, &entry.City, &entry.Browser, &entry.OS,
		&entry.DeviceType, &entry.IsSuccess, &entry.FailureReason,
		&entry.DurationMs, &entry.IsFirstAccess, &entry.AccessNumber,
		&entry.AccessDay, &entry.AccessHour, &entry.AccessedAt,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}
