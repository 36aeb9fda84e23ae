// internal/workers/search/search-books/handler.go
package searchbooks

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"book-availability/internal/common/camunda"
	apperrors "book-availability/internal/common/errors"
	"book-availability/internal/common/logger"
	"book-availability/internal/common/observability"
	"book-availability/internal/models"
	"book-availability/internal/ratelimit"
	aggregateholdings "book-availability/internal/workers/search/aggregate-holdings"
)

const TaskType = "search-books"

type RateLimiter interface {
	Check(ctx context.Context, identifier string) models.RateDecision
}

type ResultCache interface {
	GetSearch(ctx context.Context, q models.SearchQuery) (*models.AggregatedResult, bool)
	SetSearch(ctx context.Context, q models.SearchQuery, res *models.AggregatedResult)
	SetBook(ctx context.Context, book models.BookRecord)
}

type Aggregator interface {
	Execute(ctx context.Context, q models.SearchQuery) (*models.AggregatedResult, error)
}

type Handler struct {
	config     *Config
	limiter    RateLimiter
	cache      ResultCache
	aggregator Aggregator
	obs        *observability.Observability
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(
	config *Config,
	limiter RateLimiter,
	cache ResultCache,
	aggregator Aggregator,
	obs *observability.Observability,
	log logger.Logger,
) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		limiter:    limiter,
		cache:      cache,
		aggregator: aggregator,
		obs:        obs,
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

	output, err := h.Execute(context.Background(), &input)
	camunda.RecordJob(TaskType, started, err)
	if err != nil {
		h.errHandler.HandleJobError(context.Background(), client, job, err)
		return
	}
	camunda.CompleteJob(client, job, output, h.logger)
}

// Execute answers one search. Validation comes first, then the rate check,
// then the cache, then a live aggregation. Rejected requests never reach the
// cache or the catalogs.
//
// The returned Output is never nil. Every outcome other than a cache hit or a
// successful aggregation also returns a *StandardError.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	started := time.Now()
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}
	out := &Output{RequestID: input.RequestID}
	if out.RequestID == "" {
		out.RequestID = uuid.NewString()
	}
	log := h.logger.WithFields(map[string]interface{}{"requestId": out.RequestID})

	finish := func(outcome Outcome, err error) (*Output, error) {
		out.Outcome = outcome
		elapsed := time.Since(started)
		h.obs.RecordQuery(ctx, string(outcome), elapsed)
		fields := map[string]interface{}{
			"outcome":     outcome,
			"duration_ms": elapsed.Milliseconds(),
		}
		if err != nil {
			fields["error"] = err.Error()
		}
		log.Info("search finished", fields)
		return out, err
	}

	q, err := models.NewSearchQuery(input.Title, input.Author, input.Publisher)
	if err != nil {
		return finish(OutcomeInvalid, apperrors.NewInvalidQueryError(err.Error()))
	}

	client := input.ClientID
	if client == "" {
		client = ratelimit.Anonymous
	}
	out.RateLimit = h.limiter.Check(ctx, client)
	if !out.RateLimit.Allowed {
		return finish(OutcomeRejected, apperrors.NewRateLimitExceededError(out.RateLimit.Remaining, out.RateLimit.ResetAt))
	}

	if cached, ok := h.cache.GetSearch(ctx, q); ok {
		out.Result = cached
		out.FromCache = true
		return finish(OutcomeCacheHit, nil)
	}

	res, err := h.aggregator.Execute(ctx, q)
	switch {
	case errors.Is(err, aggregateholdings.ErrNotFound):
		return finish(OutcomeNotFound, apperrors.NewNoResultsError(strings.Join(q.Fields(), " ")))
	case err != nil:
		return finish(OutcomeFailed, apperrors.NewAggregationFailedError(err))
	}

	h.cache.SetSearch(ctx, q, res)
	h.cache.SetBook(ctx, res.Book)
	out.Result = res
	return finish(OutcomeSuccess, nil)
}
