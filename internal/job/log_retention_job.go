package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/snipvault/snipvault/internal/archive"
	"github.com/snipvault/snipvault/internal/model"
)

const retentionBatchSize = 1000

// LogStore is the slice of log storage the retention job needs.
type LogStore interface {
	ListBefore(ctx context.Context, cutoff int64, limit uint) ([]model.AccessLogEntry, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

// LogRetentionJob drains access-log rows older than the retention window,
// dumping each batch to the archive store as JSON lines before deleting it.
// Archival failure aborts the run so no row is lost unarchived.
type LogRetentionJob struct {
	logs      LogStore
	store     archive.Store
	retention time.Duration
}

func NewLogRetentionJob(logs LogStore, store archive.Store, retentionDays int) *LogRetentionJob {
	if retentionDays <= 0 {
		retentionDays = 180
	}
	return &LogRetentionJob{
		logs:      logs,
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
	}
}

func (j *LogRetentionJob) Name() string {
	return "access_log_retention"
}

func (j *LogRetentionJob) Run(ctx context.Context) error {
	if j.logs == nil {
		return nil
	}
	cutoff := time.Now().Add(-j.retention).Unix()
	var archived int64
	for {
		entries, err := j.logs.ListBefore(ctx, cutoff, retentionBatchSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			break
		}

		if j.store != nil {
			data := make([]byte, 0, len(entries)*256)
			for _, entry := range entries {
				line, err := json.Marshal(entry)
				if err != nil {
					return err
				}
				data = append(data, line...)
				data = append(data, '\n')
			}
			key := fmt.Sprintf("access-logs/%s/%s.jsonl",
				time.Now().UTC().Format("2006-01-02"), entries[0].ID)
			if err := j.store.Put(ctx, key, data); err != nil {
				return fmt.Errorf("archive batch: %w", err)
			}
		}

		ids := make([]string, 0, len(entries))
		for _, entry := range entries {
			ids = append(ids, entry.ID)
		}
		deleted, err := j.logs.DeleteByIDs(ctx, ids)
		if err != nil {
			return err
		}
		archived += deleted
		if len(entries) < retentionBatchSize {
			break
		}
	}
	if archived > 0 {
		logutil.GetLogger(ctx).Info("access logs archived", zap.Int64("rows", archived))
	}
	return nil
}
