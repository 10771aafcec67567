// Package jobs hosts the background maintenance tasks of the document
// subsystem and the Asynq worker that runs them.
package jobs

import "github.com/hibiken/asynq"

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTemplateRepair is the task type for the template repair pass.
	TaskTemplateRepair = "templates:repair"
)

// NewTemplateRepairTask constructs the repair task. The pass is idempotent,
// so the task carries no payload and duplicate enqueues are harmless.
func NewTemplateRepairTask() *asynq.Task {
	return asynq.NewTask(TaskTemplateRepair, nil, asynq.Queue(QueueDefault))
}
