package sensitivity

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/wealth/internal/domain"
)

// ChainFeed asks each feed in order and returns the first answer.
type ChainFeed []domain.AnalysisFeed

// NewChainFeed builds a chain from the non-nil feeds.
func NewChainFeed(feeds ...domain.AnalysisFeed) ChainFeed {
	var chain ChainFeed
	for _, f := range feeds {
		if f != nil {
			chain = append(chain, f)
		}
	}
	return chain
}

// Analyze implements domain.AnalysisFeed.
func (c ChainFeed) Analyze(ctx context.Context, ticker string) (*domain.Analysis, error) {
	if len(c) == 0 {
		return nil, fmt.Errorf("no analysis feed configured")
	}

	var errs []error
	for _, feed := range c {
		analysis, err := feed.Analyze(ctx, ticker)
		if err == nil && analysis != nil {
			return analysis, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("no feed could analyze %s: %w", ticker, errors.Join(errs...))
}
