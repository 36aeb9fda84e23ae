// internal/workers/search/aggregate-holdings/handler.go
package aggregateholdings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"book-availability/internal/common/camunda"
	apperrors "book-availability/internal/common/errors"
	"book-availability/internal/common/logger"
	"book-availability/internal/models"
)

const TaskType = "aggregate-holdings"

// ErrNotFound means neither source matched the query.
var ErrNotFound = errors.New("no book found")

// Source is one catalog scraper. Execute never fails; an unreachable catalog
// reports no match.
type Source interface {
	Execute(ctx context.Context, q models.SearchQuery) models.SourceResult
	Name() string
}

type disabledSource string

// Disabled stands in for a catalog switched off in configuration. It always
// reports no match.
func Disabled(name string) Source { return disabledSource(name) }

func (d disabledSource) Execute(context.Context, models.SearchQuery) models.SourceResult {
	return models.NoMatch(string(d))
}

func (d disabledSource) Name() string { return string(d) }

type Handler struct {
	config     *Config
	primary    Source
	secondary  Source
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

// NewHandler wires the two catalogs. The primary's bibliographic record and
// holdings take precedence.
func NewHandler(config *Config, primary, secondary Source, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		primary:    primary,
		secondary:  secondary,
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

	result, err := h.handle(job)
	camunda.RecordJob(TaskType, started, err)
	if err != nil {
		h.errHandler.HandleJobError(context.Background(), client, job, err)
		return
	}
	camunda.CompleteJob(client, job, &Output{Book: result.Book, Holdings: result.Holdings}, h.logger)
}

func (h *Handler) handle(job entities.Job) (*models.AggregatedResult, error) {
	var input Input
	if err := camunda.DecodeVariables(job, &input); err != nil {
		return nil, err
	}

	var (
		result *models.AggregatedResult
		err    error
		query  = strings.Join([]string{input.Title, input.Author, input.Publisher}, "/")
	)
	if input.HasSourceResults() {
		result, err = Merge(*input.SongpaUnified, *input.EducationLib)
	} else {
		q, qerr := input.Query()
		if qerr != nil {
			return nil, apperrors.NewInvalidQueryError(qerr.Error())
		}
		result, err = h.Execute(context.Background(), q)
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return nil, apperrors.NewNoResultsError(query)
	case err != nil:
		return nil, apperrors.NewAggregationFailedError(err)
	}
	return result, nil
}

// Execute queries both catalogs concurrently and merges what they report. It
// waits for both regardless of how either ends.
func (h *Handler) Execute(ctx context.Context, q models.SearchQuery) (*models.AggregatedResult, error) {
	started := time.Now()
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	var (
		g       errgroup.Group
		results [2]models.SourceResult
	)
	for i, src := range []Source{h.primary, h.secondary} {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("source %s panicked: %v", src.Name(), r)
				}
			}()
			results[i] = src.Execute(ctx, q)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.logger.Error("aggregation failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	primary, secondary := results[0], results[1]
	if primary.Source == "" {
		primary = models.NoMatch(h.primary.Name())
	}
	if secondary.Source == "" {
		secondary = models.NoMatch(h.secondary.Name())
	}

	res, err := Merge(primary, secondary)
	fields := map[string]interface{}{
		"duration_ms":      time.Since(started).Milliseconds(),
		"primaryMatched":   primary.Matched(),
		"secondaryMatched": secondary.Matched(),
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			fields["error"] = ctxErr.Error()
			h.logger.Warn("aggregation deadline reached without a match", fields)
		} else {
			h.logger.Info("no source matched", fields)
		}
		return nil, err
	}
	fields["holdings"] = len(res.Holdings)
	h.logger.Info("aggregation completed", fields)
	return res, nil
}

// Merge combines two source results. The book comes from primary when it
// matched, else secondary. Holdings are deduplicated by branch ID with the
// first occurrence kept, then ordered available first, holding first, then by
// branch name in Korean collation order.
func Merge(primary, secondary models.SourceResult) (*models.AggregatedResult, error) {
	var book *models.BookRecord
	switch {
	case primary.Matched():
		book = primary.Book
	case secondary.Matched():
		book = secondary.Book
	default:
		return nil, ErrNotFound
	}

	seen := make(map[string]struct{}, len(primary.Holdings)+len(secondary.Holdings))
	holdings := make([]models.HoldingRecord, 0, len(primary.Holdings)+len(secondary.Holdings))
	for _, list := range [][]models.HoldingRecord{primary.Holdings, secondary.Holdings} {
		for _, h := range list {
			if _, dup := seen[h.BranchID]; dup {
				continue
			}
			seen[h.BranchID] = struct{}{}
			holdings = append(holdings, h)
		}
	}

	SortHoldings(holdings)
	return &models.AggregatedResult{Book: *book, Holdings: holdings}, nil
}

// SortHoldings orders holdings in place. A collator is not safe for concurrent
// use, so each call builds its own.
func SortHoldings(holdings []models.HoldingRecord) {
	col := collate.New(language.Korean)
	sort.SliceStable(holdings, func(i, j int) bool {
		a, b := holdings[i], holdings[j]
		if a.IsAvailable != b.IsAvailable {
			return a.IsAvailable
		}
		if a.HasBook != b.HasBook {
			return a.HasBook
		}
		return col.CompareString(a.BranchName, b.BranchName) < 0
	})
}
