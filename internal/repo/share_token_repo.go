package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/snipvault/snipvault/internal/model"
	"github.com/snipvault/snipvault/internal/pkg/dbutil"
	appErr "github.com/snipvault/snipvault/internal/pkg/errors"
)

var shareTokenColumns = []string{
	"id", "token", "snippet_id", "created_by", "description", "permission",
	"password_hash", "is_active", "access_count", "max_access_count",
	"allow_download", "allow_copy", "expires_at", "last_accessed_at",
	"ctime", "mtime",
}

type ShareTokenRepo struct {
	db *sql.DB
}

func NewShareTokenRepo(db *sql.DB) *ShareTokenRepo {
	return &ShareTokenRepo{db: db}
}

func (r *ShareTokenRepo) Create(ctx context.Context, token *model.ShareToken) error {
	data := map[string]interface{}{
		"id":               token.ID,
		"token":            token.Token,
		"snippet_id":       token.SnippetID,
		"created_by":       token.CreatedBy,
		"description":      token.Description,
		"permission":       string(token.Permission),
		"password_hash":    token.PasswordHash,
		"is_active":        token.IsActive,
		"access_count":     token.AccessCount,
		"max_access_count": token.MaxAccessCount,
		"allow_download":   token.AllowDownload,
		"allow_copy":       token.AllowCopy,
		"expires_at":       token.ExpiresAt,
		"last_accessed_at": token.LastAccessedAt,
		"ctime":            token.Ctime,
		"mtime":            token.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("share_tokens", []map[string]interface{}{data})
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

func (r *ShareTokenRepo) GetByToken(ctx context.Context, token string) (*model.ShareToken, error) {
	return r.getOne(ctx, map[string]interface{}{"token": token})
}

func (r *ShareTokenRepo) GetByID(ctx context.Context, id string) (*model.ShareToken, error) {
	return r.getOne(ctx, map[string]interface{}{"id": id})
}

func (r *ShareTokenRepo) getOne(ctx context.Context, where map[string]interface{}) (*model.ShareToken, error) {
	sqlStr, args, err := builder.BuildSelect("share_tokens", where, shareTokenColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	return scanShareToken(rows)
}

func (r *ShareTokenRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset uint) ([]model.ShareToken, error) {
	where := map[string]interface{}{
		"created_by": ownerID,
		"_orderby":   "ctime desc",
		"_limit":     []uint{offset, limit},
	}
	sqlStr, args, err := builder.BuildSelect("share_tokens", where, shareTokenColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.ShareToken, 0)
	for rows.Next() {
		token, err := scanShareToken(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *token)
	}
	return items, rows.Err()
}

// Update persists the mutable configuration fields of a token. access_count
// and last_accessed_at are owned by ConsumeAccess and never written here.
func (r *ShareTokenRepo) Update(ctx context.Context, token *model.ShareToken) error {
	fields := map[string]interface{}{
		"description":      token.Description,
		"permission":       string(token.Permission),
		"password_hash":    token.PasswordHash,
		"is_active":        token.IsActive,
		"max_access_count": token.MaxAccessCount,
		"allow_download":   token.AllowDownload,
		"allow_copy":       token.AllowCopy,
		"expires_at":       token.ExpiresAt,
		"mtime":            token.Mtime,
	}
	return r.updateFields(ctx, token.ID, fields)
}

func (r *ShareTokenRepo) updateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	where := map[string]interface{}{"id": id}
	sqlStr, args, err := builder.BuildUpdate("share_tokens", where, fields)
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

// ConsumeAccess performs the limit check and increment in one conditional
// update so that two racing attempts on the last slot cannot both succeed.
// It reports false when no usable row matched; the caller re-reads the token
// to classify the refusal.
func (r *ShareTokenRepo) ConsumeAccess(ctx context.Context, id string, now int64) (bool, error) {
	const sqlStr = `
		UPDATE share_tokens
		SET access_count = access_count + 1, last_accessed_at = $2, mtime = $2
		WHERE id = $1
		  AND is_active
		  AND (max_access_count = 0 OR access_count < max_access_count)
		  AND (expires_at IS NULL OR expires_at > $2)
	`
	result, err := r.db.ExecContext(ctx, sqlStr, id, now)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *ShareTokenRepo) SetActive(ctx context.Context, id string, active bool, mtime int64) error {
	return r.updateFields(ctx, id, map[string]interface{}{"is_active": active, "mtime": mtime})
}

// Extend pushes expires_at forward by the given hours, anchoring at now when
// the token had no expiry.
func (r *ShareTokenRepo) Extend(ctx context.Context, id string, hours int64, now int64) error {
	const sqlStr = `
		UPDATE share_tokens
		SET expires_at = CASE WHEN expires_at IS NULL THEN $2 + $3 ELSE expires_at + $3 END,
		    mtime = $2
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, sqlStr, id, now, hours*3600)
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

func (r *ShareTokenRepo) Delete(ctx context.Context, id string) error {
	sqlStr, args, err := builder.BuildDelete("share_tokens", map[string]interface{}{"id": id})
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

func scanShareToken(rows *sql.Rows) (*model.ShareToken, error) {
	var token model.ShareToken
	var permission string
	var expiresAt, lastAccessedAt sql.NullInt64
	if err := rows.Scan(
		&token.ID, &token.Token, &token.SnippetID, &token.CreatedBy,
		&token.Description, &permission, &token.PasswordHash, &token.IsActive,
		&token.AccessCount, &token.MaxAccessCount, &token.AllowDownload,
		&token.AllowCopy, &expiresAt, &lastAccessedAt, &token.Ctime, &token.Mtime,
	); err != nil {
		return nil, err
	}
	token.Permission = model.SharePermission(permission)
	if expiresAt.Valid {
		token.ExpiresAt = &expiresAt.Int64
	}
	if lastAccessedAt.Valid {
		token.LastAccessedAt = &lastAccessedAt.Int64
	}
	return &token, nil
}
