package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/snipvault/snipvault/internal/model"
	appErr "github.com/snipvault/snipvault/internal/pkg/errors"
	"github.com/snipvault/snipvault/internal/pkg/password"
	"github.com/snipvault/snipvault/internal/pkg/timeutil"
	"github.com/snipvault/snipvault/internal/uaclass"
)

// AccessOutcome is the closed classification of an access attempt. Denials
// are values, not errors; only transient storage faults surface as errors.
type AccessOutcome string

const (
	OutcomeSuccess           AccessOutcome = "Success"
	OutcomeNotFound          AccessOutcome = "NotFound"
	OutcomeRevoked           AccessOutcome = "Revoked"
	OutcomeExpired           AccessOutcome = "Expired"
	OutcomePasswordRequired  AccessOutcome = "PasswordRequired"
	OutcomePasswordIncorrect AccessOutcome = "PasswordIncorrect"
	OutcomeLimitReached      AccessOutcome = "LimitReached"
)

func (o AccessOutcome) Granted() bool {
	return o == OutcomeSuccess
}

// AccessContext is the raw request context attached to the log entry.
type AccessContext struct {
	IPAddress string
	UserAgent string
	Referer   string
	Source    string
	SessionID string
}

type AccessGrant struct {
	Outcome       AccessOutcome         `json:"outcome"`
	Permission    model.SharePermission `json:"permission,omitempty"`
	AllowDownload bool                  `json:"allow_download"`
	AllowCopy     bool                  `json:"allow_copy"`
	SnippetID     string                `json:"snippet_id,omitempty"`
	LogID         string                `json:"log_id,omitempty"`
}

const classifyTimeout = 1 * time.Second

type AccessService struct {
	tokens         TokenStore
	logs           AccessLogStore
	classifier     uaclass.Classifier
	storageTimeout time.Duration
	loc            *time.Location
	now            func() time.Time
}

func NewAccessService(tokens TokenStore, logs AccessLogStore, classifier uaclass.Classifier, storageTimeout time.Duration, loc *time.Location) *AccessService {
	if storageTimeout <= 0 {
		storageTimeout = 3 * time.Second
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AccessService{
		tokens:         tokens,
		logs:           logs,
		classifier:     classifier,
		storageTimeout: storageTimeout,
		loc:            loc,
		now:            time.Now,
	}
}

// Attempt is the per-request enforcement path. Every decided attempt is
// recorded, successful or not; a record is skipped only when storage itself
// failed transiently before a decision was reached.
func (s *AccessService) Attempt(ctx context.Context, tokenString, suppliedPassword string, accessCtx AccessContext) (*AccessGrant, error) {
	now := s.now()
	nowUnix := now.Unix()

	token, err := s.lookup(ctx, tokenString)
	if err != nil {
		if appErr.IsNotFound(err) {
			logID := s.record(ctx, nil, accessCtx, OutcomeNotFound, now)
			return &AccessGrant{Outcome: OutcomeNotFound, LogID: logID}, nil
		}
		return nil, err
	}

	if outcome, ok := s.check(token, suppliedPassword, nowUnix); !ok {
		logID := s.record(ctx, token, accessCtx, outcome, now)
		return &AccessGrant{Outcome: outcome, LogID: logID}, nil
	}

	granted, err := s.consume(ctx, token.ID, nowUnix)
	if err != nil {
		return nil, err
	}
	if !granted {
		// Zero rows means another attempt won a race or the token changed
		// under us; re-read to classify, defaulting to LimitReached.
		outcome := OutcomeLimitReached
		if fresh, err := s.lookup(ctx, tokenString); err == nil {
			if refused, ok := s.check(fresh, suppliedPassword, nowUnix); !ok {
				outcome = refused
			}
		}
		logID := s.record(ctx, token, accessCtx, outcome, now)
		return &AccessGrant{Outcome: outcome, LogID: logID}, nil
	}

	logID := s.record(ctx, token, accessCtx, OutcomeSuccess, now)
	return &AccessGrant{
		Outcome:       OutcomeSuccess,
		Permission:    token.Permission,
		AllowDownload: token.AllowDownload,
		AllowCopy:     token.AllowCopy,
		SnippetID:     token.SnippetID,
		LogID:         logID,
	}, nil
}

// RecordDuration is the late write path for duration_ms, called once the
// underlying resource access finished.
func (s *AccessService) RecordDuration(ctx context.Context, logID string, durationMs int64) error {
	if logID == "" || durationMs < 0 {
		return appErr.ErrInvalid
	}
	sctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()
	return s.translateTimeout(sctx, s.logs.SetDuration(sctx, logID, durationMs))
}

func (s *AccessService) lookup(ctx context.Context, tokenString string) (*model.ShareToken, error) {
	sctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()
	token, err := s.tokens.GetByToken(sctx, tokenString)
	if err != nil {
		return nil, s.translateTimeout(sctx, err)
	}
	return token, nil
}

func (s *AccessService) consume(ctx context.Context, tokenID string, now int64) (bool, error) {
	sctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()
	granted, err := s.tokens.ConsumeAccess(sctx, tokenID, now)
	if err != nil {
		return false, s.translateTimeout(sctx, err)
	}
	return granted, nil
}

// check applies the ordered refusal rules short of the counter. The counter
// itself is enforced by the conditional update in consume.
func (s *AccessService) check(token *model.ShareToken, suppliedPassword string, now int64) (AccessOutcome, bool) {
	if !token.IsActive {
		return OutcomeRevoked, false
	}
	if token.Expired(now) {
		return OutcomeExpired, false
	}
	if token.PasswordProtected() {
		if suppliedPassword == "" {
			return OutcomePasswordRequired, false
		}
		if password.Compare(token.PasswordHash, suppliedPassword) != nil {
			return OutcomePasswordIncorrect, false
		}
	}
	if token.LimitReached() {
		return OutcomeLimitReached, false
	}
	return OutcomeSuccess, true
}

// record persists the log entry for a decided attempt. It runs on a context
// detached from the caller's cancellation: once the counter has been
// consumed the matching log write must not be abandoned.
func (s *AccessService) record(ctx context.Context, token *model.ShareToken, accessCtx AccessContext, outcome AccessOutcome, now time.Time) string {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storageTimeout)
	defer cancel()

	nowUnix := now.Unix()
	entry := &model.AccessLogEntry{
		ID:         newID(),
		IPAddress:  strings.TrimSpace(accessCtx.IPAddress),
		UserAgent:  strings.TrimSpace(accessCtx.UserAgent),
		Referer:    strings.TrimSpace(accessCtx.Referer),
		Source:     strings.TrimSpace(accessCtx.Source),
		SessionID:  strings.TrimSpace(accessCtx.SessionID),
		IsSuccess:  outcome.Granted(),
		AccessDay:  timeutil.DayOf(nowUnix, s.loc),
		AccessHour: timeutil.HourOf(nowUnix, s.loc),
		AccessedAt: nowUnix,
	}
	if !outcome.Granted() {
		entry.FailureReason = string(outcome)
	}
	if entry.Source == "" {
		entry.Source = detectSource(entry.Referer)
	}
	s.classify(rctx, entry)

	if token != nil {
		entry.TokenID = token.ID
		entry.SnippetID = token.SnippetID
		if number, err := s.logs.NextAccessNumber(rctx, token.ID, entry.AccessDay); err == nil {
			entry.AccessNumber = number
		} else {
			logutil.GetLogger(rctx).Error("access number allocation failed",
				zap.String("token_id", token.ID), zap.Error(err))
		}
		if outcome.Granted() && entry.IPAddress != "" {
			seen, err := s.logs.HasSuccessFrom(rctx, token.ID, entry.IPAddress)
			if err != nil {
				logutil.GetLogger(rctx).Warn("first-access lookup failed",
					zap.String("token_id", token.ID), zap.Error(err))
			}
			entry.IsFirstAccess = err == nil && !seen
		}
	}

	if err := s.logs.Insert(rctx, entry); err != nil {
		// The increment may already be committed; a missing log row breaks
		// the increment/log pairing, so shout.
		logutil.GetLogger(rctx).Error("access log write failed",
			zap.String("token_id", entry.TokenID),
			zap.String("outcome", string(outcome)),
			zap.Error(err))
		return ""
	}
	return entry.ID
}

// classify enriches the entry with browser/OS/device/geo fields. Classifier
// failure or timeout leaves them empty and never blocks recording.
func (s *AccessService) classify(ctx context.Context, entry *model.AccessLogEntry) {
	if s.classifier == nil || (entry.UserAgent == "" && entry.IPAddress == "") {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()
	result, err := s.classifier.Classify(cctx, entry.UserAgent, entry.IPAddress)
	if err != nil {
		logutil.GetLogger(ctx).Warn("user-agent classification failed", zap.Error(err))
	}
	entry.Browser = result.Browser
	entry.OS = result.OS
	entry.DeviceType = result.DeviceType
	entry.Country = result.Country
	entry.City = result.City
}

func (s *AccessService) translateTimeout(ctx context.Context, err error) error {
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return appErr.ErrTimeout
	}
	return err
}

// detectSource derives an analytics source from the referer host when the
// caller did not state one explicitly.
func detectSource(referer string) string {
	ref := strings.TrimSpace(referer)
	if ref == "" {
		return "direct"
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return "unknown"
	}
	host := strings.ToLower(strings.TrimSpace(parsed.Hostname()))
	if host == "" {
		return "unknown"
	}
	return strings.TrimPrefix(host, "www.")
}
