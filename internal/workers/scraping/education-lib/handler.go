// internal/workers/scraping/education-lib/handler.go
package educationlib

import (
	"context"
	"net/url"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"book-availability/internal/common/camunda"
	apperrors "book-availability/internal/common/errors"
	"book-availability/internal/common/logger"
	"book-availability/internal/common/scrape"
	"book-availability/internal/models"
	"book-availability/pkg/registry"
)

const (
	TaskType        = "scrape-education-lib"
	Source          = "education-lib"
	DefaultBranchID = "songpa-education"
)

type Handler struct {
	config     *Config
	fetcher    scrape.Fetcher
	parser     *Parser
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, fetcher scrape.Fetcher, reg *registry.Registry, log logger.Logger) *Handler {
	if config.BranchID == "" {
		config.BranchID = DefaultBranchID
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		fetcher:    fetcher,
		parser:     NewParser(config.BranchID, reg, log),
		errHandler: apperrors.NewErrorHandler(log),
		logger:     log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := camunda.DecodeVariables(job, &input); err != nil {
		camunda.RecordJob(TaskType, started, err)
		h.errHandler.HandleJobError(context.Background(), client, job, err)
		return
	}
	query, err := input.Query()
	if err != nil {
		err = apperrors.NewInvalidQueryError(err.Error())
		camunda.RecordJob(TaskType, started, err)
		h.errHandler.HandleJobError(context.Background(), client, job, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	result := h.Execute(ctx, query)
	camunda.RecordJob(TaskType, started, nil)
	camunda.CompleteJob(client, job, &Output{EducationLib: result}, h.logger)
}

// Execute scrapes the education office catalog; failures degrade to no match.
func (h *Handler) Execute(ctx context.Context, q models.SearchQuery) models.SourceResult {
	return scrape.Run(ctx, Source, h.SearchURL(q), h.fetcher, h.logger, h.parser.Parse)
}

func (h *Handler) Name() string { return Source }

// SearchURL sets only the non-empty query fields.
func (h *Handler) SearchURL(q models.SearchQuery) string {
	params := url.Values{}
	if q.Title != "" {
		params.Set("query", q.Title)
	}
	if q.Author != "" {
		params.Set("author", q.Author)
	}
	if q.Publisher != "" {
		params.Set("publisher", q.Publisher)
	}
	return h.config.BaseURL + "?" + params.Encode()
}
