package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/ltreme/biasbench/internal/errkind"
	"github.com/ltreme/biasbench/internal/gateway"
	"github.com/ltreme/biasbench/internal/metrics"
	"github.com/ltreme/biasbench/internal/postprocess"
	"github.com/ltreme/biasbench/internal/promptfactory"
	"github.com/ltreme/biasbench/internal/promptlog"
	"github.com/ltreme/biasbench/internal/store"
)

// ErrCancelled is returned by Run when cancelCheck reported true before the
// source stream was exhausted.
var ErrCancelled = errors.New("pipeline: cancelled")

const defaultSnippetLen = 500

// livenessTimeout is how long Run will tolerate zero completed requests
// while items are in flight before logging a stall diagnostic. It never
// aborts the run — a slow backend is still a working backend.
const livenessTimeout = 5 * time.Second

// Engine streams WorkItems to completion: render, call the gateway,
// post-process, persist or retry.
type Engine struct {
	factory *promptfactory.Factory
	gw      Gateway
	pst     Persister
	cfg     Config
}

// New builds an Engine.
func New(factory *promptfactory.Factory, gw Gateway, pst Persister, cfg Config) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &Engine{factory: factory, gw: gw, pst: pst, cfg: cfg}
}

// outcome is one item's processed result, handed from a worker goroutine
// back to Run's single consumer loop for routing.
type outcome struct {
	item       promptfactory.WorkItem
	promptText string
	result     gateway.Result
	pp         postprocess.Outcome
}

// Run drives a single continuous sliding window over items: at most
// Concurrency requests are in flight at once, and a freed slot is refilled
// immediately from the retry queue or the source rather than waiting for
// the rest of a fixed-size batch to finish, interleaving rendering,
// post-processing, retry re-submission, and batched persistence with the
// gateway calls themselves.
//
// Per-item attempt ordering is still sequential: handleOutcome — and the
// PersistFailure/PersistResults calls inside it — run only on this single
// goroutine, never inside a worker, so the persister's write-serialization
// invariants hold exactly as before. Workers only render, call the
// gateway, and post-process.
func (e *Engine) Run(ctx context.Context, items <-chan promptfactory.WorkItem, cancelCheck func() bool) (Summary, error) {
	runStart := time.Now()
	var summary Summary
	var successBuf []store.BenchmarkResult

	results := make(chan outcome, e.cfg.Concurrency)
	p := pool.New().WithMaxGoroutines(e.cfg.Concurrency)
	var inFlight int64

	submit := func(item promptfactory.WorkItem) {
		atomic.AddInt64(&inFlight, 1)
		p.Go(func() {
			results <- e.process(ctx, item)
		})
	}

	flush := func() error {
		if len(successBuf) == 0 {
			return nil
		}
		if _, err := e.pst.PersistResults(ctx, successBuf); err != nil {
			return fmt.Errorf("persist batch: %w", err)
		}
		successBuf = successBuf[:0]
		return nil
	}

	source := items
	cancelled := false

	liveness := time.NewTicker(time.Second)
	defer liveness.Stop()
	lastProgress := time.Now()
	stalled := false

	for {
		if !cancelled && cancelCheck != nil && cancelCheck() {
			cancelled = true
			source = nil
		}
		if (cancelled || source == nil) && atomic.LoadInt64(&inFlight) == 0 {
			break
		}

		// A full window reads nothing new from the source; only a completion
		// (and its possible retry) frees a slot.
		src := source
		if atomic.LoadInt64(&inFlight) >= int64(e.cfg.Concurrency) {
			src = nil
		}

		select {
		case o := <-results:
			atomic.AddInt64(&inFlight, -1)
			lastProgress = time.Now()
			stalled = false

			retry, err := e.handleOutcome(ctx, o, &successBuf, &summary)
			if err != nil {
				return summary, err
			}
			if retry != nil && !cancelled {
				submit(*retry)
			}
			if len(successBuf) >= e.cfg.BatchSize {
				if err := flush(); err != nil {
					return summary, err
				}
			}

		case item, ok := <-src:
			if !ok {
				source = nil
			} else {
				submit(item)
			}

		case <-liveness.C:
			if atomic.LoadInt64(&inFlight) > 0 && !stalled && time.Since(lastProgress) >= livenessTimeout {
				stalled = true
				slog.Warn("pipeline: no gateway response completed recently, still waiting",
					"in_flight", atomic.LoadInt64(&inFlight), "idle_for", time.Since(lastProgress).Round(time.Second))
			}

		case <-ctx.Done():
			cancelled = true
			source = nil
		}
	}

	summary.Cancelled = cancelled
	if err := flush(); err != nil {
		return summary, err
	}
	if cancelled {
		metrics.RecordBatchDuration("cancelled", time.Since(runStart))
		return summary, ErrCancelled
	}
	metrics.RecordBatchDuration("completed", time.Since(runStart))
	return summary, nil
}

// process renders, calls the gateway, and post-processes one item. It runs
// on a worker goroutine and must stay free of any shared mutable state
// beyond what gateway.Client/metrics already guard internally.
func (e *Engine) process(ctx context.Context, item promptfactory.WorkItem) outcome {
	spec, err := e.factory.Render(item)
	var result gateway.Result
	var promptText string
	if err != nil {
		result = gateway.Result{Err: err}
	} else {
		promptText = spec.PromptText
		reqStart := time.Now()
		result = e.gw.Complete(ctx, gateway.PromptSpec{
			ID:           spec.PersonaUUID + ":" + spec.CaseID,
			PromptText:   spec.PromptText,
			MaxNewTokens: spec.MaxNewTokens,
		})
		outcomeLabel := "success"
		errKind := ""
		if result.Err != nil {
			outcomeLabel = "error"
			errKind = string(errkind.TransportError)
		}
		metrics.RecordGatewayRequest(outcomeLabel, time.Since(reqStart), errKind)
	}

	var pp postprocess.Outcome
	if result.Err == nil {
		pp = postprocess.Process(postprocess.Input{
			RawText:          result.RawText,
			ScaleOrder:       store.ScaleOrder(item.ScaleOrder),
			IncludeRationale: item.IncludeRationale,
		})
	} else {
		pp = postprocess.Outcome{Kind: errkind.TransportError}
	}

	return outcome{item: item, promptText: promptText, result: result, pp: pp}
}

// handleOutcome routes one processed item: success goes to the buffer,
// a failure under the attempt budget is returned for re-enqueue, and a
// failure at the budget is recorded as max_attempts_exceeded.
func (e *Engine) handleOutcome(ctx context.Context, o outcome, successBuf *[]store.BenchmarkResult, summary *Summary) (*promptfactory.WorkItem, error) {
	personaUUID, err := uuid.Parse(o.item.PersonaUUID)
	if err != nil {
		return nil, fmt.Errorf("parse persona uuid: %w", err)
	}
	e.logPrompt(o)

	if o.pp.Ok() {
		rating := o.pp.Rating
		ratingRaw := o.pp.RatingRaw
		genTimeMs := o.result.GenTimeMs
		(*successBuf) = append(*successBuf, store.BenchmarkResult{
			RunID:           o.item.BenchmarkRunID,
			PersonaUUID:     personaUUID,
			CaseID:          o.item.CaseID,
			ScaleOrder:      store.ScaleOrder(o.item.ScaleOrder),
			Attempt:         o.item.Attempt,
			AnswerRaw:       o.result.RawText,
			Rating:          &rating,
			RatingRaw:       &ratingRaw,
			GenTimeMs:       &genTimeMs,
			ModelName:       o.item.ModelName,
			TemplateVersion: o.item.TemplateVersion,
		})
		summary.Succeeded++
		metrics.RecordItemOutcome("success")
		return nil, nil
	}

	fail := store.FailLog{
		RunID:          o.item.BenchmarkRunID,
		PersonaUUID:    personaUUID,
		ModelID:        o.item.ModelName,
		Attempt:        o.item.Attempt,
		RawTextSnippet: truncate(o.result.RawText, defaultSnippetLen),
	}

	// Every failed attempt is logged under its own classification, whether
	// or not it's the last one.
	if err := e.pst.PersistFailure(ctx, fail, o.pp.Kind); err != nil {
		return nil, fmt.Errorf("persist failure: %w", err)
	}

	if o.item.Attempt < e.cfg.MaxAttempts {
		retry := o.item
		retry.Attempt++
		metrics.RecordItemOutcome("retry")
		return &retry, nil
	}

	if err := e.pst.PersistFailure(ctx, fail, errkind.MaxAttemptsExceeded); err != nil {
		return nil, fmt.Errorf("persist max-attempts failure: %w", err)
	}
	summary.MaxAttemptsExceeded++
	metrics.RecordItemOutcome("max_attempts_exceeded")
	return nil, nil
}

// logPrompt writes one side-channel entry for the attempt, if a prompt
// log is configured. Never fails the caller — Sink.Write swallows its
// own errors.
func (e *Engine) logPrompt(o outcome) {
	if e.cfg.PromptLog == nil {
		return
	}
	entry := promptlog.Entry{
		Timestamp: time.Now(),
		RunID:     o.item.BenchmarkRunID,
		Persona:   o.item.PersonaUUID,
		Case:      o.item.CaseID,
		Scale:     string(o.item.ScaleOrder),
		Attempt:   o.item.Attempt,
		Model:     o.item.ModelName,
		Prompt:    o.promptText,
		Response:  o.result.RawText,
		GenTimeMs: o.result.GenTimeMs,
		OK:        o.pp.Ok(),
	}
	if o.pp.Ok() {
		rating := o.pp.Rating
		entry.Rating = &rating
	} else {
		entry.Error = string(o.pp.Kind)
	}
	e.cfg.PromptLog.Write(entry)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
