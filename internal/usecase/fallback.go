package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"MacroPull/internal/domain/models"
	drepo "MacroPull/internal/domain/repository"
	applogger "MacroPull/pkg/logger"
	"MacroPull/pkg/metrics"
)

// Candidate is one adapter call in a fallback chain.
type Candidate struct {
	Source  drepo.SeriesSource
	Dataset string
	Country string
}

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeEmpty
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return models.OutcomeSuccess
	case OutcomeEmpty:
		return models.OutcomeEmpty
	default:
		return models.OutcomeFailure
	}
}

// FetchOutcome is the classified result of one candidate attempt.
type FetchOutcome struct {
	Kind   OutcomeKind
	Series *models.Series
	Err    error
}

// Classify turns an adapter result into an outcome. A series without any
// reported value counts as empty.
func Classify(s *models.Series, err error) FetchOutcome {
	if err != nil {
		var empty *models.EmptyResultError
		if errors.As(err, &empty) {
			return FetchOutcome{Kind: OutcomeEmpty, Err: err}
		}
		return FetchOutcome{Kind: OutcomeFailure, Err: err}
	}
	if s.UsablePoints() == 0 {
		return FetchOutcome{Kind: OutcomeEmpty}
	}
	return FetchOutcome{Kind: OutcomeSuccess, Series: s}
}

// Resolution is a successful chain result.
type Resolution struct {
	Series     *models.Series
	SourceUsed string
	Attempts   int
}

// ChainError reports that every candidate of a chain failed.
type ChainError struct {
	Failures []error
}

func (e *ChainError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("all %d sources failed: %s", len(e.Failures), strings.Join(msgs, "; "))
}

func (e *ChainError) Unwrap() []error { return e.Failures }

// FallbackOrchestrator tries candidates strictly in order, one at a time.
type FallbackOrchestrator struct {
	metrics drepo.Metrics
	log     *applogger.Logger
}

func NewFallbackOrchestrator(m drepo.Metrics, l *applogger.Logger) *FallbackOrchestrator {
	if m == nil {
		m = metrics.Nop{}
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &FallbackOrchestrator{metrics: m, log: l}
}

// Resolve returns the first candidate result carrying data. Upstream, parse
// and empty outcomes advance to the next candidate; any other error is
// returned immediately. On failure the returned Resolution only carries the
// number of attempts made.
func (o *FallbackOrchestrator) Resolve(ctx context.Context, chain []Candidate) (*Resolution, error) {
	if len(chain) == 0 {
		return nil, errors.New("fallback chain is empty")
	}

	var failures []error
	for i, c := range chain {
		if err := ctx.Err(); err != nil {
			return &Resolution{Attempts: i}, err
		}
		name := c.Source.Name()

		start := time.Now()
		out := Classify(c.Source.FetchSeries(ctx, c.Dataset, c.Country))
		o.metrics.RecordAttempt(name, out.Kind.String())
		o.metrics.RecordLatency("attempt."+name, time.Since(start).Seconds())

		switch out.Kind {
		case OutcomeSuccess:
			return &Resolution{Series: out.Series, SourceUsed: name, Attempts: i + 1}, nil
		case OutcomeEmpty:
			if out.Err == nil {
				out.Err = &models.EmptyResultError{Provider: name, Dataset: c.Dataset}
			}
		case OutcomeFailure:
			if !models.IsRecoverable(out.Err) {
				return &Resolution{Attempts: i + 1}, out.Err
			}
		}
		failures = append(failures, out.Err)

		if i+1 < len(chain) {
			next := chain[i+1].Source.Name()
			o.metrics.RecordFallback(name, next)
			o.log.Warn("falling back to next source",
				applogger.String("from", name),
				applogger.String("to", next),
				applogger.String("dataset", c.Dataset),
				applogger.String("outcome", out.Kind.String()),
				applogger.Error(out.Err))
		}
	}

	exhausted := &Resolution{Attempts: len(chain)}
	if len(failures) == 1 {
		return exhausted, failures[0]
	}
	return exhausted, &ChainError{Failures: failures}
}
