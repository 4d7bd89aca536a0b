// Package coverage computes how much of a portfolio is protected by deposit
// insurance, per issuer and in total.
package coverage

import (
	"math"
	"sort"

	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/pkg/formulas"
)

// IssuerCoverage is the exposure to one issuer.
type IssuerCoverage struct {
	Issuer    string   `json:"issuer"`
	Value     float64  `json:"value"`
	Covered   float64  `json:"covered"`
	Uncovered float64  `json:"uncovered"`
	Positions []string `json:"positions"`
}

// Coverage is the insurance exposure of a set of positions.
type Coverage struct {
	EligibleValue     float64          `json:"eligible_value"`
	CoveredValue      float64          `json:"covered_value"`
	UncoveredValue    float64          `json:"uncovered_value"`
	Percent           float64          `json:"percent"`
	Limit             float64          `json:"limit"`
	TotalLimit        float64          `json:"total_limit"`
	TotalLimitApplied bool             `json:"total_limit_applied"`
	ByIssuer          []IssuerCoverage `json:"by_issuer"`
}

// Calculate groups the covered positions by issuer and caps each issuer at
// limit, then caps the sum at totalLimit. Values must be in the reporting
// currency. Percent is the covered value over totalWealth. Issuers that
// differ only in case, accents or spacing share one limit and keep the
// first spelling seen.
func Calculate(positions []domain.Position, limit, totalLimit, totalWealth float64) Coverage {
	c := Coverage{Limit: limit, TotalLimit: totalLimit, ByIssuer: []IssuerCoverage{}}

	byIssuer := make(map[string]*IssuerCoverage)
	for _, p := range positions {
		if !IsCovered(p.Type) || !formulas.IsFinite(p.CurrentValue) || p.CurrentValue <= 0 {
			continue
		}
		issuer := ExtractIssuer(p.Name)
		key := issuerKey(issuer)
		ic, ok := byIssuer[key]
		if !ok {
			ic = &IssuerCoverage{Issuer: issuer}
			byIssuer[key] = ic
		}
		ic.Value += p.CurrentValue
		ic.Positions = append(ic.Positions, p.ID)
	}

	covered := 0.0
	for _, ic := range byIssuer {
		ic.Covered = math.Min(ic.Value, limit)
		ic.Uncovered = ic.Value - ic.Covered
		c.EligibleValue += ic.Value
		covered += ic.Covered
		c.ByIssuer = append(c.ByIssuer, *ic)
	}

	if totalLimit > 0 && covered > totalLimit {
		covered = totalLimit
		c.TotalLimitApplied = true
	}

	c.CoveredValue = covered
	c.UncoveredValue = c.EligibleValue - covered
	c.Percent = formulas.Percent(covered, totalWealth)

	sort.Slice(c.ByIssuer, func(i, j int) bool {
		if c.ByIssuer[i].Value != c.ByIssuer[j].Value {
			return c.ByIssuer[i].Value > c.ByIssuer[j].Value
		}
		return c.ByIssuer[i].Issuer < c.ByIssuer[j].Issuer
	})
	return c
}
