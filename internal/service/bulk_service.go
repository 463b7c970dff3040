package service

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/snipvault/snipvault/internal/pkg/errors"
	"github.com/snipvault/snipvault/internal/pkg/timeutil"
)

type BulkOperation string

const (
	BulkRevoke   BulkOperation = "revoke"
	BulkDelete   BulkOperation = "delete"
	BulkExtend   BulkOperation = "extend"
	BulkActivate BulkOperation = "activate"
)

func (op BulkOperation) Valid() bool {
	switch op {
	case BulkRevoke, BulkDelete, BulkExtend, BulkActivate:
		return true
	}
	return false
}

// BulkResult reports per-item failures positionally: FailedIDs[i] failed
// with FailureReasons[i].
type BulkResult struct {
	TotalCount     int      `json:"total_count"`
	SuccessCount   int      `json:"success_count"`
	FailureCount   int      `json:"failure_count"`
	FailedIDs      []string `json:"failed_ids"`
	FailureReasons []string `json:"failure_reasons"`
}

const maxBulkBatch = 500

type BulkService struct {
	tokens TokenStore
	logs   AccessLogStore
	now    func() int64
}

func NewBulkService(tokens TokenStore, logs AccessLogStore) *BulkService {
	return &BulkService{tokens: tokens, logs: logs, now: timeutil.NowUnix}
}

// Apply runs one operation across the batch. Items are independent: a
// failing id is reported in the result and never aborts the rest.
func (s *BulkService) Apply(ctx context.Context, ownerID string, tokenIDs []string, op BulkOperation, extendHours int64) (*BulkResult, error) {
	if !op.Valid() {
		return nil, &appErr.ValidationError{Violations: []appErr.FieldViolation{
			{Field: "operation", Message: "must be one of revoke, delete, extend, activate"},
		}}
	}
	if op == BulkExtend && extendHours <= 0 {
		return nil, &appErr.ValidationError{Violations: []appErr.FieldViolation{
			{Field: "param", Message: "extend requires a positive hour count"},
		}}
	}
	if len(tokenIDs) == 0 || len(tokenIDs) > maxBulkBatch {
		return nil, &appErr.ValidationError{Violations: []appErr.FieldViolation{
			{Field: "token_ids", Message: "must contain between 1 and 500 ids"},
		}}
	}

	result := &BulkResult{
		TotalCount:     len(tokenIDs),
		FailedIDs:      make([]string, 0),
		FailureReasons: make([]string, 0),
	}
	start := time.Now()
	for _, id := range tokenIDs {
		if err := s.applyOne(ctx, ownerID, id, op, extendHours); err != nil {
			result.FailureCount++
			result.FailedIDs = append(result.FailedIDs, id)
			result.FailureReasons = append(result.FailureReasons, failureReason(err))
			continue
		}
		result.SuccessCount++
	}
	logutil.GetLogger(ctx).Info("bulk operation finished",
		zap.String("operation", string(op)),
		zap.Int("total", result.TotalCount),
		zap.Int("failed", result.FailureCount),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}

func (s *BulkService) applyOne(ctx context.Context, ownerID, id string, op BulkOperation, extendHours int64) error {
	token, err := s.tokens.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if token.CreatedBy != ownerID {
		return appErr.ErrForbidden
	}
	now := s.now()
	switch op {
	case BulkRevoke:
		// Idempotent so that batch retries stay safe.
		return s.tokens.SetActive(ctx, id, false, now)
	case BulkActivate:
		return s.tokens.SetActive(ctx, id, true, now)
	case BulkExtend:
		return s.tokens.Extend(ctx, id, extendHours, now)
	case BulkDelete:
		if err := s.tokens.Delete(ctx, id); err != nil {
			return err
		}
		return s.logs.DeleteByToken(ctx, id)
	}
	return appErr.ErrInvalid
}

func failureReason(err error) string {
	switch {
	case appErr.IsNotFound(err):
		return "NotFound"
	case err == appErr.ErrForbidden:
		return "Forbidden"
	case err == appErr.ErrInvalid:
		return "Invalid"
	default:
		return "Internal"
	}
}
