package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/liftline-crm/liftline/internal/observability"
	"github.com/liftline-crm/liftline/internal/templates"
)

// TemplateRepairJob runs the repair pass over stored templates.
type TemplateRepairJob struct {
	repairer *templates.Repairer
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewTemplateRepairJob wires the repair job.
func NewTemplateRepairJob(repairer *templates.Repairer, logger *slog.Logger, metrics *observability.Metrics) *TemplateRepairJob {
	return &TemplateRepairJob{repairer: repairer, logger: logger, metrics: metrics}
}

// Handle processes one TaskTemplateRepair task.
func (j *TemplateRepairJob) Handle(ctx context.Context, _ *asynq.Task) error {
	reports, err := j.repairer.RepairAll(ctx)
	if err != nil {
		j.logger.Error("template repair pass failed", slog.Any("error", err))
		return err
	}

	columns := 0
	changed := 0
	for _, report := range reports {
		if !report.Changed() {
			continue
		}
		changed++
		for _, rewritten := range []bool{report.Elements, report.Layout, report.Settings, report.Branding} {
			if rewritten {
				columns++
			}
		}
	}
	j.metrics.ObserveRepairedColumns(columns)
	j.logger.Info("template repair pass complete",
		slog.Int("scanned", len(reports)),
		slog.Int("changed", changed))
	return nil
}
