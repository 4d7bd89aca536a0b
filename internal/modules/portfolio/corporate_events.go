package portfolio

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/internal/events"
	"github.com/aristath/wealth/pkg/formulas"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CorporateEvent is a bonus issue, split, reverse split or amortization
// applied to one position.
//
// Factor is the bonus ratio (0.10 means one new share per ten held) or the
// split ratio (2 means two-for-one). Amount is the per-unit principal returned
// by an amortization.
type CorporateEvent struct {
	PositionID string              `json:"position_id"`
	Kind       domain.MovementKind `json:"kind"`
	Factor     float64             `json:"factor"`
	Amount     float64             `json:"amount"`
	Note       string              `json:"note"`
}

// EventResult is the state after a corporate event.
type EventResult struct {
	Position domain.Position `json:"position"`
	Movement domain.Movement `json:"movement"`
	Totals   domain.Totals   `json:"totals"`
}

// Validate checks the event parameters for its kind.
func (e CorporateEvent) Validate() error {
	finite := !math.IsNaN(e.Factor) && !math.IsInf(e.Factor, 0) && !math.IsNaN(e.Amount) && !math.IsInf(e.Amount, 0)
	if !finite {
		return fmt.Errorf("%w: factor and amount must be finite", domain.ErrInvalidEvent)
	}

	switch e.Kind {
	case domain.MovementBonus:
		if e.Factor <= 0 {
			return fmt.Errorf("%w: bonus factor must be positive", domain.ErrInvalidEvent)
		}
	case domain.MovementSplit, domain.MovementReverseSplit:
		if e.Factor <= 1 {
			return fmt.Errorf("%w: %s factor must be greater than 1", domain.ErrInvalidEvent, e.Kind)
		}
	case domain.MovementAmortization:
		if e.Amount <= 0 {
			return fmt.Errorf("%w: amortization amount must be positive", domain.ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidEvent, e.Kind)
	}
	return nil
}

// ApplyCorporateEvent returns the position after the event. Quantity and
// prices are computed in decimal and current_value is derived from the
// resulting quantity and price.
func ApplyCorporateEvent(p domain.Position, e CorporateEvent) (domain.Position, error) {
	if err := e.Validate(); err != nil {
		return p, err
	}

	qty := decimal.NewFromFloat(p.Quantity)
	purchase := decimal.NewFromFloat(p.PurchasePrice)
	current := decimal.NewFromFloat(p.CurrentPrice)
	factor := decimal.NewFromFloat(e.Factor)

	switch e.Kind {
	case domain.MovementBonus:
		mult := decimal.NewFromInt(1).Add(factor)
		qty = qty.Mul(mult)
		purchase = purchase.Div(mult)
		current = current.Div(mult)
	case domain.MovementSplit:
		qty = qty.Mul(factor)
		purchase = purchase.Div(factor)
		current = current.Div(factor)
	case domain.MovementReverseSplit:
		qty = qty.Div(factor)
		purchase = purchase.Mul(factor)
		current = current.Mul(factor)
	case domain.MovementAmortization:
		amount := decimal.NewFromFloat(e.Amount)
		purchase = decimal.Max(purchase.Sub(amount), decimal.Zero)
		current = decimal.Max(current.Sub(amount), decimal.Zero)
	}

	out := p
	out.Quantity = qty.InexactFloat64()
	out.PurchasePrice = purchase.InexactFloat64()
	out.CurrentPrice = current.InexactFloat64()
	out.CurrentValue = qty.Mul(current).InexactFloat64()
	out.TotalInvested = qty.Mul(purchase).InexactFloat64()
	out.GainPercent = formulas.GainPercent(out.CurrentValue, out.TotalInvested)
	return out, nil
}

// ApplyEvent applies a corporate event to a position. The position update,
// the ledger movement and the portfolio re-aggregation commit together; if
// any of them fails nothing is applied.
func (s *Service) ApplyEvent(ctx context.Context, e CorporateEvent) (*EventResult, error) {
	e.Kind = domain.MovementKind(strings.ToLower(strings.TrimSpace(string(e.Kind))))
	if err := e.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.positions.GetByID(e.PositionID)
	if err != nil {
		return nil, err
	}

	var result EventResult
	totals, err := s.mutate(ctx, existing.PortfolioID, func(tx *sql.Tx) error {
		repo := s.positions.WithTx(tx)
		before, err := repo.GetByID(e.PositionID)
		if err != nil {
			return err
		}

		after, err := ApplyCorporateEvent(*before, e)
		if err != nil {
			return err
		}
		after.UpdatedAt = s.now()

		if err := repo.Upsert(after); err != nil {
			return err
		}

		movement := domain.Movement{
			ID:             uuid.New().String(),
			PortfolioID:    before.PortfolioID,
			PositionID:     before.ID,
			Kind:           e.Kind,
			Factor:         e.Factor,
			Amount:         e.Amount,
			QuantityBefore: before.Quantity,
			QuantityAfter:  after.Quantity,
			PriceBefore:    before.CurrentPrice,
			PriceAfter:     after.CurrentPrice,
			Note:           strings.TrimSpace(e.Note),
			CreatedAt:      after.UpdatedAt,
		}
		if err := s.ledger.Insert(tx, movement); err != nil {
			return err
		}

		result.Position = after
		result.Movement = movement
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Totals = totals

	s.log.Info().
		Str("position_id", e.PositionID).
		Str("kind", string(e.Kind)).
		Float64("quantity_before", result.Movement.QuantityBefore).
		Float64("quantity_after", result.Movement.QuantityAfter).
		Msg("Corporate event applied")

	s.emitter.Emit(events.CorporateEventApplied, "portfolio", map[string]interface{}{
		"portfolio_id": result.Position.PortfolioID,
		"position_id":  result.Position.ID,
		"movement_id":  result.Movement.ID,
		"kind":         string(e.Kind),
	})
	s.emitter.Emit(events.PortfolioRevalued, "portfolio", totalsEventData(result.Position.PortfolioID, totals))
	return &result, nil
}
