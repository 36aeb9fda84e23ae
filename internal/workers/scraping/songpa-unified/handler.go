// internal/workers/scraping/songpa-unified/handler.go
package songpaunified

import (
	"context"
	"net/url"
	"strings"
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
	TaskType = "scrape-songpa-unified"
	Source   = "songpa-unified"
)

type Handler struct {
	config     *Config
	fetcher    scrape.Fetcher
	parser     *Parser
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, fetcher scrape.Fetcher, reg *registry.Registry, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		fetcher:    fetcher,
		parser:     NewParser(origin(config.BaseURL), reg, log),
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
	camunda.CompleteJob(client, job, &Output{SongpaUnified: result}, h.logger)
}

// Execute scrapes the unified catalog. It never fails: an unreachable site or
// unreadable page yields a no-match result.
func (h *Handler) Execute(ctx context.Context, q models.SearchQuery) models.SourceResult {
	return scrape.Run(ctx, Source, h.SearchURL(q), h.fetcher, h.logger, h.parser.Parse)
}

// Name identifies the source for the aggregator.
func (h *Handler) Name() string { return Source }

// SearchURL builds the simple-search URL for a query.
func (h *Handler) SearchURL(q models.SearchQuery) string {
	params := url.Values{}
	params.Set("searchType", "SIMPLE")
	params.Set("searchCategory", "BOOK")
	params.Set("searchKey", "ALL")
	params.Set("searchKeyword", strings.Join(q.Fields(), " "))
	params.Set("searchLibrary", "ALL")
	return h.config.BaseURL + "?" + params.Encode()
}

func origin(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return "https://www.splib.or.kr"
	}
	return u.Scheme + "://" + u.Host
}
