// Package agent turns a natural-language accommodation query into a
// conversational answer: the model writes SQL, the SQL is cleaned and gated,
// executed read-only, and the rows are handed back to the model to describe.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nestquery/nestquery/internal/listings"
	"github.com/nestquery/nestquery/internal/llm"
	"github.com/nestquery/nestquery/internal/observability"
	"github.com/nestquery/nestquery/internal/preferences"
	"github.com/nestquery/nestquery/internal/query"
	"github.com/nestquery/nestquery/internal/sqlguard"
)

type Options struct {
	Completer      llm.Completer
	Executor       query.Executor
	Logger         *slog.Logger
	Schema         string
	TopN           int
	MaxQueryLength int
}

// Agent holds no per-request state and is safe for concurrent use.
type Agent struct {
	completer      llm.Completer
	executor       query.Executor
	logger         *slog.Logger
	schema         string
	topN           int
	maxQueryLength int
}

type Request struct {
	Query       string
	Preferences preferences.Preferences
}

func New(opts Options) (*Agent, error) {
	if opts.Completer == nil {
		return nil, errors.New("completer is required")
	}
	if opts.Executor == nil {
		return nil, errors.New("executor is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	schema := opts.Schema
	if schema == "" {
		schema = listings.SchemaDescription()
	}
	topN := opts.TopN
	if topN <= 0 || topN > MaxAccommodations {
		topN = MaxAccommodations
	}
	return &Agent{
		completer:      opts.Completer,
		executor:       opts.Executor,
		logger:         logger,
		schema:         schema,
		topN:           topN,
		maxQueryLength: opts.MaxQueryLength,
	}, nil
}

// Process runs the full pipeline. It never fails: errors are reported inside
// the returned record.
func (a *Agent) Process(ctx context.Context, req Request) Response {
	start := time.Now()
	resp := a.process(ctx, req)

	errorKind := ""
	if resp.Error != nil {
		errorKind = resp.Error.Kind
	}
	observability.ObserveAgentResponse(resp.Type, errorKind)

	attrs := []any{
		"type", resp.Type,
		"results_count", resp.ResultsCount,
		"duration_ms", time.Since(start).Milliseconds(),
		"trace_id", observability.TraceIDFromContext(ctx),
	}
	if resp.Error != nil {
		a.logger.Warn("query degraded", append(attrs, "error_kind", resp.Error.Kind, "error", resp.Error.Message)...)
	} else {
		a.logger.Info("query processed", attrs...)
	}
	return resp
}

func (a *Agent) process(ctx context.Context, req Request) Response {
	if err := a.validateInput(req.Query); err != nil {
		return Degraded(req.Query, "", req.Preferences, err)
	}
	formattedPrefs := preferences.Format(req.Preferences)

	stageStart := time.Now()
	raw, err := GenerateSQL(ctx, a.completer, a.schema, req.Query, formattedPrefs)
	observability.ObserveStage(StageGenerateSQL, time.Since(stageStart))
	if err != nil {
		return Degraded(req.Query, "", req.Preferences, err)
	}

	cleaned, err := sqlguard.Clean(raw)
	if err != nil {
		observability.IncrementSQLRejection(KindEmptySQL)
		return Degraded(req.Query, strings.TrimSpace(raw), req.Preferences, err)
	}
	stmt, err := sqlguard.Check(cleaned)
	if err != nil {
		var unsafeErr *sqlguard.UnsafeSQLError
		if errors.As(err, &unsafeErr) {
			observability.IncrementSQLRejection(unsafeErr.Reason)
		}
		a.logger.Warn("generated sql rejected", "sql", cleaned, "error", err)
		return Degraded(req.Query, cleaned, req.Preferences, err)
	}

	stageStart = time.Now()
	result, err := a.executor.Execute(ctx, stmt)
	observability.ObserveStage(StageExecute, time.Since(stageStart))
	if err != nil {
		return Degraded(req.Query, stmt.String(), req.Preferences, err)
	}
	observability.ObserveResultRows(len(result.Rows))

	top := topRows(result.Rows, a.topN)
	stageStart = time.Now()
	text, err := FormatResponse(ctx, a.completer, req.Query, top, formattedPrefs)
	observability.ObserveStage(StageFormatResponse, time.Since(stageStart))
	if err != nil {
		return Degraded(req.Query, stmt.String(), req.Preferences, err)
	}

	return Assemble(AssembleInput{
		Query:       req.Query,
		SQL:         stmt.String(),
		Rows:        result.Rows,
		Text:        text,
		Preferences: req.Preferences,
		TopN:        a.topN,
	})
}

func (a *Agent) validateInput(userQuery string) error {
	trimmed := strings.TrimSpace(userQuery)
	if trimmed == "" {
		return &InputError{Reason: "query is empty"}
	}
	if a.maxQueryLength > 0 && utf8.RuneCountInString(trimmed) > a.maxQueryLength {
		return &InputError{Reason: "query is too long"}
	}
	return nil
}
