package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionRecompute(t *testing.T) {
	p := Position{Quantity: 100, PurchasePrice: 10, CurrentPrice: 12}
	p.Recompute()

	assert.InDelta(t, 1200, p.CurrentValue, 1e-9)
	assert.InDelta(t, 1000, p.TotalInvested, 1e-9)
	assert.InDelta(t, 20.00, p.GainPercent, 1e-9)
}

func TestPositionRecompute_ZeroInvested(t *testing.T) {
	p := Position{Quantity: 5, PurchasePrice: 0, CurrentPrice: 3}
	p.Recompute()

	assert.Equal(t, 0.0, p.GainPercent)
	assert.False(t, math.IsNaN(p.GainPercent))
}

func TestPositionValidate(t *testing.T) {
	ok := Position{ID: "a", Quantity: 1, PurchasePrice: 1, CurrentPrice: 1}
	assert.NoError(t, ok.Validate())

	nan := Position{ID: "b", Quantity: math.NaN()}
	err := nan.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedPosition))

	var malformed *MalformedError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "b", malformed.ID)

	negative := Position{ID: "c", Quantity: -1}
	assert.ErrorIs(t, negative.Validate(), ErrMalformedPosition)
}

func TestInstrumentClass(t *testing.T) {
	assert.Equal(t, ClassFixedIncome, InstrumentCDB.Class())
	assert.Equal(t, ClassFixedIncome, InstrumentType(" lci ").Class())
	assert.Equal(t, ClassEquity, InstrumentStock.Class())
	assert.Equal(t, ClassRealEstateFund, InstrumentREIT.Class())
	assert.Equal(t, ClassCrypto, InstrumentCrypto.Class())
	assert.Equal(t, ClassOther, InstrumentType("COLLECTIBLE").Class())
}

func TestStaleRateError(t *testing.T) {
	err := error(&StaleRateError{Currency: "USD", Source: RateSourceFallback, Age: 90 * time.Minute})
	assert.True(t, errors.Is(err, ErrStaleRate))
	assert.Contains(t, err.Error(), "USD")
}

func TestPartialBatchFailure(t *testing.T) {
	cause := errors.New("db locked")
	err := error(&PartialBatchFailure{Total: 3, Failed: map[string]error{"p2": cause, "p1": ErrMalformedPosition}})

	assert.Equal(t, "2 of 3 items failed: p1, p2", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrMalformedPosition)

	var batch *PartialBatchFailure
	require.True(t, errors.As(err, &batch))
	assert.Len(t, batch.Failed, 2)
}

func TestInconsistentAggregateError(t *testing.T) {
	err := error(&InconsistentAggregateError{PortfolioID: "p1"})
	assert.ErrorIs(t, err, ErrInconsistentAggregate)
}

func TestSnapshotTime(t *testing.T) {
	s := HistorySnapshot{Date: "2026-03-31"}
	assert.Equal(t, time.March, s.Time().Month())
}
