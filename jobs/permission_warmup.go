package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/gatehouse-io/gatehouse/internal/jobs"
	"github.com/gatehouse-io/gatehouse/internal/roles"
)

// RoleWarmer loads a role's permissions through the caching path, leaving a
// fresh cache entry behind.
type RoleWarmer interface {
	RolePermissions(ctx context.Context, roleSlug string) ([]string, error)
}

// RoleLister enumerates the role catalog.
type RoleLister interface {
	ListRoles(ctx context.Context, orgID string) ([]roles.Role, error)
}

// PermissionWarmupJob pre-populates the role permission cache so the first
// authorization check after a deploy or cache flush does not pay the store
// read.
type PermissionWarmupJob struct {
	Warmer  RoleWarmer
	Lister  RoleLister
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewPermissionWarmupJob wires dependencies for the warmup handler.
func NewPermissionWarmupJob(warmer RoleWarmer, lister RoleLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *PermissionWarmupJob {
	return &PermissionWarmupJob{Warmer: warmer, Lister: lister, Logger: logger, Metrics: metrics}
}

// Handle processes TaskPermissionWarmup tasks.
func (j *PermissionWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Warmer == nil || j.Lister == nil {
		return errors.New("permission warmup: handler not configured")
	}
	var payload PermissionWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskPermissionWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := time.Now()

	slugs := payload.Roles
	if len(slugs) == 0 {
		catalog, err := j.Lister.ListRoles(ctx, "")
		if err != nil {
			resultErr = err
			logger.Error("list roles for warmup", slog.Any("error", err))
			return resultErr
		}
		slugs = make([]string, 0, len(catalog))
		for _, role := range catalog {
			slugs = append(slugs, role.Slug)
		}
	}

	warmed := 0
	for _, slug := range slugs {
		if _, err := j.Warmer.RolePermissions(ctx, slug); err != nil {
			resultErr = err
			logger.Error("warm role", slog.String("role", slug), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}

	logger.Info("permission cache warmed",
		slog.Int("roles", warmed),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *PermissionWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPermissionWarmup))
	}
	return slog.Default().With(slog.String("job", TaskPermissionWarmup))
}

func (j *PermissionWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
