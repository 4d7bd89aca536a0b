package benchmark

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockFeed struct {
	mock.Mock
}

func (m *mockFeed) DailyRiskFree(ctx context.Context, n int) ([]float64, error) {
	args := m.Called(ctx, n)
	rates, _ := args.Get(0).([]float64)
	return rates, args.Error(1)
}

func (m *mockFeed) MonthlyInflation(ctx context.Context, n int) ([]float64, error) {
	args := m.Called(ctx, n)
	rates, _ := args.Get(0).([]float64)
	return rates, args.Error(1)
}

var quietLog = zerolog.New(nil).Level(zerolog.Disabled)

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestCurrent_CompoundsBothSeries(t *testing.T) {
	feed := new(mockFeed)
	feed.On("DailyRiskFree", mock.Anything, 252).Return(repeat(0.0004, 252), nil)
	feed.On("MonthlyInflation", mock.Anything, 12).Return(repeat(0.004, 12), nil)

	rates := NewService(feed, quietLog).Current(context.Background())

	assert.InDelta(t, (math.Pow(1.0004, 252)-1)*100, rates.A, 1e-9)
	assert.InDelta(t, (math.Pow(1.004, 12)-1)*100, rates.B, 1e-9)
	assert.False(t, rates.Estimated)
	feed.AssertExpectations(t)
}

func TestCurrent_FeedFailureUsesLastValue(t *testing.T) {
	feed := new(mockFeed)
	feed.On("DailyRiskFree", mock.Anything, 252).Return([]float64{0.01}, nil).Once()
	feed.On("MonthlyInflation", mock.Anything, 12).Return([]float64{0.02}, nil).Once()
	feed.On("DailyRiskFree", mock.Anything, 252).Return(nil, errors.New("timeout"))
	feed.On("MonthlyInflation", mock.Anything, 12).Return(nil, errors.New("timeout"))

	svc := NewService(feed, quietLog)
	first := svc.Current(context.Background())
	second := svc.Current(context.Background())

	assert.InDelta(t, 1.0, second.A, 1e-9)
	assert.InDelta(t, 2.0, second.B, 1e-9)
	assert.Equal(t, first.A, second.A)
	assert.False(t, second.Estimated)
}

func TestCurrent_NoDataIsEstimatedZero(t *testing.T) {
	feed := new(mockFeed)
	feed.On("DailyRiskFree", mock.Anything, 252).Return([]float64{}, nil)
	feed.On("MonthlyInflation", mock.Anything, 12).Return(nil, errors.New("down"))

	rates := NewService(feed, quietLog).Current(context.Background())

	assert.Zero(t, rates.A)
	assert.Zero(t, rates.B)
	assert.True(t, rates.Estimated)
}

func TestCurrent_NilFeed(t *testing.T) {
	rates := NewService(nil, quietLog).Current(context.Background())
	assert.True(t, rates.Estimated)
}
