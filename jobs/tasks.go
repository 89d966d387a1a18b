// Package jobs defines the background tasks of the service: directory
// mirror refresh and permission cache warmup.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDirectorySync refreshes the local org and branch mirror from
	// the directory.
	TaskDirectorySync = "directory:sync"
	// TaskPermissionWarmup pre-populates role permission cache entries.
	TaskPermissionWarmup = "permissions:warmup"
)

// DirectorySyncPayload configures a directory sync run.
type DirectorySyncPayload struct {
	// Reason is recorded in logs: "cron", "manual", "startup".
	Reason string `json:"reason"`
}

// NewDirectorySyncTask constructs an Asynq task.
func NewDirectorySyncTask(payload DirectorySyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDirectorySync, data), nil
}

// PermissionWarmupPayload configures a warmup run. An empty role list warms
// every role in the catalog.
type PermissionWarmupPayload struct {
	Roles []string `json:"roles,omitempty"`
}

// NewPermissionWarmupTask constructs an Asynq task.
func NewPermissionWarmupTask(payload PermissionWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPermissionWarmup, data), nil
}
