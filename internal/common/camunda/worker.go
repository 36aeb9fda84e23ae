// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"book-availability/internal/common/config"
	"book-availability/internal/common/errors"
	"book-availability/internal/common/logger"
	"book-availability/internal/common/metrics"
)

// StartWorker opens a job worker for taskType. Disabled workers return nil.
func StartWorker(
	client zbc.Client,
	taskType string,
	wcfg config.WorkerConfig,
	handler worker.JobHandler,
	log logger.Logger,
) worker.JobWorker {
	if !wcfg.Enabled {
		log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return nil
	}

	jw := client.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return jw
}

// DecodeVariables unmarshals the job variables into dst.
func DecodeVariables(job entities.Job, dst interface{}) error {
	if err := json.Unmarshal([]byte(job.Variables), dst); err != nil {
		return errors.NewInvalidQueryError(fmt.Sprintf("parse job variables: %v", err))
	}
	return nil
}

// CompleteJob sends the output as the job's result variables.
func CompleteJob(client worker.JobClient, job entities.Job, output interface{}, log logger.Logger) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		log.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		log.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
	}
}

// RecordJob counts a finished job and its duration.
func RecordJob(taskType string, started time.Time, err error) {
	metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(taskType, string(errors.AsStandardError(err).Code)).Inc()
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
}
