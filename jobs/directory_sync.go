package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gatehouse-io/gatehouse/internal/directory"
	jobmetrics "github.com/gatehouse-io/gatehouse/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// DirectorySyncJob refreshes the local org and branch mirror from the
// directory.
type DirectorySyncJob struct {
	Client  directory.Client
	Mirror  *directory.Mirror
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewDirectorySyncJob wires dependencies for the sync handler.
func NewDirectorySyncJob(client directory.Client, mirror *directory.Mirror, logger *slog.Logger, metrics *jobmetrics.Metrics) *DirectorySyncJob {
	return &DirectorySyncJob{Client: client, Mirror: mirror, Logger: logger, Metrics: metrics}
}

// Handle processes TaskDirectorySync tasks.
func (j *DirectorySyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Client == nil || j.Mirror == nil {
		return errors.New("directory sync: handler not configured")
	}
	var payload DirectorySyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskDirectorySync)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("reason", payload.Reason))
	start := time.Now()

	snap, err := j.Client.Snapshot(ctx)
	if err != nil {
		resultErr = err
		logger.Error("fetch directory snapshot", slog.Any("error", err))
		return resultErr
	}
	if err := j.Mirror.ReplaceSnapshot(ctx, snap); err != nil {
		resultErr = err
		logger.Error("replace mirror snapshot", slog.Any("error", err))
		return resultErr
	}

	logger.Info("directory mirror refreshed",
		slog.Int("orgs", len(snap.Orgs)),
		slog.Int("branches", len(snap.Branches)),
		slog.Int("teams", len(snap.Teams)),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *DirectorySyncJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDirectorySync))
	}
	return slog.Default().With(slog.String("job", TaskDirectorySync))
}

func (j *DirectorySyncJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
