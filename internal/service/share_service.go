package service

import (
	"context"

	"github.com/snipvault/snipvault/internal/config"
	"github.com/snipvault/snipvault/internal/model"
	appErr "github.com/snipvault/snipvault/internal/pkg/errors"
	"github.com/snipvault/snipvault/internal/pkg/password"
	"github.com/snipvault/snipvault/internal/pkg/timeutil"
)

type CreateShareInput struct {
	SnippetID      string
	Description    string
	Permission     model.SharePermission
	Password       string
	ExpiresInHours int64
	MaxAccessCount int64
	AllowDownload  bool
	AllowCopy      bool
}

type UpdateShareInput struct {
	Description    *string
	Permission     *model.SharePermission
	Password       *string
	ClearPassword  bool
	MaxAccessCount *int64
	ExtendHours    int64
	AllowDownload  *bool
	AllowCopy      *bool
}

// ShareView is the owner-facing projection of a token. The plaintext token
// string is present only on the create response; the password hash never is.
type ShareView struct {
	model.ShareToken
	HasPassword bool `json:"has_password"`
}

func newShareView(token *model.ShareToken, includeToken bool) ShareView {
	view := ShareView{ShareToken: *token, HasPassword: token.PasswordProtected()}
	view.PasswordHash = ""
	if !includeToken {
		view.Token = ""
	}
	return view
}

type ShareService struct {
	tokens TokenStore
	logs   AccessLogStore
	limits config.ShareConfig
	now    func() int64
}

func NewShareService(tokens TokenStore, logs AccessLogStore, limits config.ShareConfig) *ShareService {
	return &ShareService{tokens: tokens, logs: logs, limits: limits, now: timeutil.NowUnix}
}

// Create issues a new share token. The returned view carries the plaintext
// token string; it is not re-derivable afterwards.
func (s *ShareService) Create(ctx context.Context, ownerID string, input CreateShareInput) (*ShareView, error) {
	if ownerID == "" {
		return nil, appErr.ErrUnauthorized
	}
	if input.Permission == "" {
		input.Permission = model.PermissionView
	}
	if err := validateCreateShare(input, s.limits); err != nil {
		return nil, err
	}

	now := s.now()
	token := &model.ShareToken{
		ID:             newID(),
		Token:          newToken(),
		SnippetID:      input.SnippetID,
		CreatedBy:      ownerID,
		Description:    input.Description,
		Permission:     input.Permission,
		IsActive:       true,
		AccessCount:    0,
		MaxAccessCount: input.MaxAccessCount,
		AllowDownload:  input.AllowDownload,
		AllowCopy:      input.AllowCopy,
		Ctime:          now,
		Mtime:          now,
	}
	if input.ExpiresInHours > 0 {
		expiresAt := now + input.ExpiresInHours*3600
		token.ExpiresAt = &expiresAt
	}
	if input.Password != "" {
		hash, err := password.Hash(input.Password)
		if err != nil {
			return nil, err
		}
		token.PasswordHash = hash
	}

	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, err
	}
	view := newShareView(token, true)
	return &view, nil
}

func (s *ShareService) Get(ctx context.Context, ownerID, id string) (*ShareView, error) {
	token, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	view := newShareView(token, false)
	return &view, nil
}

func (s *ShareService) List(ctx context.Context, ownerID string, limit, offset uint) ([]ShareView, error) {
	if limit == 0 || limit > 200 {
		limit = 50
	}
	tokens, err := s.tokens.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	views := make([]ShareView, 0, len(tokens))
	for i := range tokens {
		views = append(views, newShareView(&tokens[i], false))
	}
	return views, nil
}

func (s *ShareService) Update(ctx context.Context, ownerID, id string, input UpdateShareInput) (*ShareView, error) {
	if err := validateUpdateShare(input, s.limits); err != nil {
		return nil, err
	}
	token, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if input.Description != nil {
		token.Description = *input.Description
	}
	if input.Permission != nil {
		token.Permission = *input.Permission
	}
	if input.MaxAccessCount != nil {
		token.MaxAccessCount = *input.MaxAccessCount
	}
	if input.AllowDownload != nil {
		token.AllowDownload = *input.AllowDownload
	}
	if input.AllowCopy != nil {
		token.AllowCopy = *input.AllowCopy
	}
	if input.ClearPassword {
		token.PasswordHash = ""
	} else if input.Password != nil && *input.Password != "" {
		hash, err := password.Hash(*input.Password)
		if err != nil {
			return nil, err
		}
		token.PasswordHash = hash
	}
	now := s.now()
	if input.ExtendHours > 0 {
		anchor := now
		if token.ExpiresAt != nil {
			anchor = *token.ExpiresAt
		}
		expiresAt := anchor + input.ExtendHours*3600
		token.ExpiresAt = &expiresAt
	}
	token.Mtime = now

	if err := s.tokens.Update(ctx, token); err != nil {
		return nil, err
	}
	view := newShareView(token, false)
	return &view, nil
}

// Revoke is idempotent: revoking an already-revoked token succeeds.
func (s *ShareService) Revoke(ctx context.Context, ownerID, id string) error {
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return err
	}
	return s.tokens.SetActive(ctx, id, false, s.now())
}

// Delete hard-removes the token together with its access log, per the log
// retention policy for deleted shares.
func (s *ShareService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.tokens.Delete(ctx, id); err != nil {
		return err
	}
	return s.logs.DeleteByToken(ctx, id)
}

func (s *ShareService) owned(ctx context.Context, ownerID, id string) (*model.ShareToken, error) {
	token, err := s.tokens.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if token.CreatedBy != ownerID {
		return nil, appErr.ErrForbidden
	}
	return token, nil
}
