// Package domain provides core domain models and types.
package domain

import (
	"math"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used for snapshot keys.
const DateLayout = "2006-01-02"

// InstrumentType is the free-form instrument label entered with a position.
type InstrumentType string

// Known instrument labels. Other labels are accepted and classed as "other".
const (
	InstrumentStock     InstrumentType = "ACAO"
	InstrumentREIT      InstrumentType = "FII"
	InstrumentETF       InstrumentType = "ETF"
	InstrumentBDR       InstrumentType = "BDR"
	InstrumentCDB       InstrumentType = "CDB"
	InstrumentLCI       InstrumentType = "LCI"
	InstrumentLCA       InstrumentType = "LCA"
	InstrumentLC        InstrumentType = "LC"
	InstrumentRDB       InstrumentType = "RDB"
	InstrumentTreasury  InstrumentType = "TESOURO"
	InstrumentDebenture InstrumentType = "DEBENTURE"
	InstrumentCRI       InstrumentType = "CRI"
	InstrumentCRA       InstrumentType = "CRA"
	InstrumentSavings   InstrumentType = "POUPANCA"
	InstrumentFund      InstrumentType = "FUNDO"
	InstrumentCrypto    InstrumentType = "CRYPTO"
	InstrumentOther     InstrumentType = "OTHER"
)

// AssetClass groups instrument types with similar risk profiles.
type AssetClass string

const (
	ClassFixedIncome    AssetClass = "fixed_income"
	ClassEquity         AssetClass = "equity"
	ClassRealEstateFund AssetClass = "real_estate_fund"
	ClassCrypto         AssetClass = "crypto"
	ClassOther          AssetClass = "other"
)

// Class returns the asset class of an instrument type.
func (t InstrumentType) Class() AssetClass {
	switch InstrumentType(strings.ToUpper(strings.TrimSpace(string(t)))) {
	case InstrumentCDB, InstrumentLCI, InstrumentLCA, InstrumentLC, InstrumentRDB,
		InstrumentTreasury, InstrumentDebenture, InstrumentCRI, InstrumentCRA, InstrumentSavings:
		return ClassFixedIncome
	case InstrumentStock, InstrumentETF, InstrumentBDR:
		return ClassEquity
	case InstrumentREIT:
		return ClassRealEstateFund
	case InstrumentCrypto:
		return ClassCrypto
	default:
		return ClassOther
	}
}

// Position is a holding inside one portfolio.
type Position struct {
	ID            string         `json:"id"`
	PortfolioID   string         `json:"portfolio_id"`
	Name          string         `json:"name"`
	Type          InstrumentType `json:"type"`
	Ticker        string         `json:"ticker,omitempty"`
	Quantity      float64        `json:"quantity"`
	PurchasePrice float64        `json:"purchase_price"`
	CurrentPrice  float64        `json:"current_price"`
	Currency      string         `json:"currency"`
	CurrentValue  float64        `json:"current_value"`
	TotalInvested float64        `json:"total_invested"`
	GainPercent   float64        `json:"gain_percent"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Recompute derives value, invested and gain% from quantity and prices.
func (p *Position) Recompute() {
	p.CurrentValue = p.Quantity * p.CurrentPrice
	p.TotalInvested = p.Quantity * p.PurchasePrice
	p.GainPercent = 0
	if p.TotalInvested != 0 {
		p.GainPercent = (p.CurrentValue - p.TotalInvested) / p.TotalInvested * 100
	}
}

// Validate reports an ErrMalformedPosition when numeric fields cannot be used.
func (p *Position) Validate() error {
	fields := map[string]float64{
		"quantity":       p.Quantity,
		"purchase_price": p.PurchasePrice,
		"current_price":  p.CurrentPrice,
		"current_value":  p.CurrentValue,
		"total_invested": p.TotalInvested,
	}
	for name, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &MalformedError{ID: p.ID, Field: name, Reason: "not a finite number"}
		}
	}
	if p.Quantity < 0 {
		return &MalformedError{ID: p.ID, Field: "quantity", Reason: "negative"}
	}
	if p.PurchasePrice < 0 || p.CurrentPrice < 0 {
		return &MalformedError{ID: p.ID, Field: "price", Reason: "negative"}
	}
	return nil
}

// GlobalAsset is a manually declared holding in any currency.
// ValueReporting == OriginalValue * ExchangeRate after every write.
type GlobalAsset struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	Currency       string    `json:"currency"`
	OriginalValue  float64   `json:"original_value"`
	ValueReporting float64   `json:"value_reporting"`
	ExchangeRate   float64   `json:"exchange_rate"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Totals is the aggregate of a set of positions.
type Totals struct {
	TotalValue    float64 `json:"total_value"`
	TotalInvested float64 `json:"total_invested"`
	TotalGain     float64 `json:"total_gain"`
	GainPercent   float64 `json:"gain_percent"`
}

// Portfolio holds cached totals derived from its positions.
type Portfolio struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	TotalValue     float64   `json:"total_value"`
	TotalInvested  float64   `json:"total_invested"`
	TotalGain      float64   `json:"total_gain"`
	GainPercent    float64   `json:"gain_percent"`
	BenchmarkRatio float64   `json:"benchmark_ratio"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Totals returns the stored totals of the portfolio.
func (p *Portfolio) Totals() Totals {
	return Totals{
		TotalValue:    p.TotalValue,
		TotalInvested: p.TotalInvested,
		TotalGain:     p.TotalGain,
		GainPercent:   p.GainPercent,
	}
}

// HistorySnapshot is one portfolio valuation per calendar date.
type HistorySnapshot struct {
	PortfolioID      string    `json:"portfolio_id"`
	Date             string    `json:"date"`
	TotalValue       float64   `json:"total_value"`
	TotalInvested    float64   `json:"total_invested"`
	TotalGain        float64   `json:"total_gain"`
	GainPercent      float64   `json:"gain_percent"`
	AccumulatedRateA float64   `json:"accumulated_rate_a"`
	AccumulatedRateB float64   `json:"accumulated_rate_b"`
	CreatedAt        time.Time `json:"created_at"`
}

// Time parses the snapshot date.
func (s *HistorySnapshot) Time() time.Time {
	t, _ := time.Parse(DateLayout, s.Date)
	return t
}

// RateEntry is the reporting-currency value of one unit of Currency.
type RateEntry struct {
	Currency  string    `json:"currency" msgpack:"currency"`
	Rate      float64   `json:"rate" msgpack:"rate"`
	FetchedAt time.Time `json:"fetched_at" msgpack:"fetched_at"`
	Source    string    `json:"source" msgpack:"source"`
}

// Rate sources.
const (
	RateSourceFeed     = "feed"
	RateSourceCache    = "cache"
	RateSourceFallback = "fallback"
	RateSourceIdentity = "identity"
)

// MovementKind identifies a ledger movement.
type MovementKind string

const (
	MovementBonus        MovementKind = "bonus"
	MovementSplit        MovementKind = "split"
	MovementReverseSplit MovementKind = "reverse_split"
	MovementAmortization MovementKind = "amortization"
)

// Movement is an immutable ledger record of a corporate event applied to a position.
type Movement struct {
	ID             string       `json:"id"`
	PortfolioID    string       `json:"portfolio_id"`
	PositionID     string       `json:"position_id"`
	Kind           MovementKind `json:"kind"`
	Factor         float64      `json:"factor"`
	Amount         float64      `json:"amount"`
	QuantityBefore float64      `json:"quantity_before"`
	QuantityAfter  float64      `json:"quantity_after"`
	PriceBefore    float64      `json:"price_before"`
	PriceAfter     float64      `json:"price_after"`
	Note           string       `json:"note"`
	CreatedAt      time.Time    `json:"created_at"`
}
