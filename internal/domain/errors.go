package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput marks a rejected create or update request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStaleRate marks a rate that came from the fallback table or an aged entry.
	ErrStaleRate = errors.New("stale rate")
	// ErrUnknownCurrency is returned when no tier has a rate for a currency.
	ErrUnknownCurrency = errors.New("unknown currency")
	// ErrMalformedPosition marks position data that cannot be aggregated.
	ErrMalformedPosition = errors.New("malformed position")
	// ErrSnapshotOutOfOrder is returned when a snapshot would precede the latest one.
	ErrSnapshotOutOfOrder = errors.New("snapshot date precedes latest snapshot")
	// ErrInvalidEvent is returned for corporate events with unusable parameters.
	ErrInvalidEvent = errors.New("invalid corporate event")
	// ErrInconsistentAggregate marks stored totals that disagree with their positions.
	ErrInconsistentAggregate = errors.New("inconsistent aggregate")
)

// StaleRateError describes why a rate is stale. The rate itself is still usable.
type StaleRateError struct {
	Currency string
	Source   string
	Age      time.Duration
}

func (e *StaleRateError) Error() string {
	return fmt.Sprintf("stale rate for %s (source=%s, age=%s)", e.Currency, e.Source, e.Age.Round(time.Second))
}

// Unwrap lets errors.Is match ErrStaleRate.
func (e *StaleRateError) Unwrap() error { return ErrStaleRate }

// MalformedError describes a position field that failed validation.
type MalformedError struct {
	ID     string
	Field  string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed position %s: %s %s", e.ID, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedPosition.
func (e *MalformedError) Unwrap() error { return ErrMalformedPosition }

// InconsistentAggregateError reports stored portfolio totals that drifted from their positions.
type InconsistentAggregateError struct {
	PortfolioID string
	Stored      Totals
	Computed    Totals
}

func (e *InconsistentAggregateError) Error() string {
	return fmt.Sprintf("portfolio %s totals drifted: stored value %.2f invested %.2f, computed value %.2f invested %.2f",
		e.PortfolioID, e.Stored.TotalValue, e.Stored.TotalInvested, e.Computed.TotalValue, e.Computed.TotalInvested)
}

// Unwrap lets errors.Is match ErrInconsistentAggregate.
func (e *InconsistentAggregateError) Unwrap() error { return ErrInconsistentAggregate }

// PartialBatchFailure is returned by batch jobs when some items failed.
type PartialBatchFailure struct {
	Total  int
	Failed map[string]error
}

func (e *PartialBatchFailure) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return fmt.Sprintf("%d of %d items failed: %s", len(e.Failed), e.Total, strings.Join(ids, ", "))
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *PartialBatchFailure) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}
