package coverage

import (
	"context"
	"testing"

	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/internal/modules/portfolio"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deposit(id, name string, typ domain.InstrumentType, value float64) domain.Position {
	p := domain.Position{ID: id, Name: name, Type: typ, Quantity: 1, PurchasePrice: value, CurrentPrice: value, Currency: "BRL"}
	p.Recompute()
	return p
}

func TestIsCovered(t *testing.T) {
	covered := []domain.InstrumentType{"CDB", "rdb", "LCI", "LCA", "LC", "LH", "LIG", "Poupança", "POUPANCA", "Conta Corrente", "conta-corrente"}
	for _, typ := range covered {
		assert.True(t, IsCovered(typ), typ)
	}

	notCovered := []domain.InstrumentType{"TESOURO", "CRI", "CRA", "DEBENTURE", "ACAO", "FII", "", "CDBX"}
	for _, typ := range notCovered {
		assert.False(t, IsCovered(typ), typ)
	}
}

func TestExtractIssuer(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"CDB Banco Inter 2027", "Inter"},
		{"CDB ITAÚ Pós", "Itaú"},
		{"LCA BTG Pactual 95% CDI", "BTG Pactual"},
		{"LCI Banco do Brasil", "Banco do Brasil"},
		{"CDB 120% CDI \u2014 Banco Pleno", "Banco Pleno"},
		{"RDB \u2013 Cooperativa Norte", "Cooperativa Norte"},
		{"LC - Financeira Sul", "Financeira Sul"},
		{"CDB|Agora", "Agora"},
		{"CDB/Omni", "Omni"},
		{"CDB Interessante", "Other"},
		{"CDB 110% CDI", "Other"},
		{"CDB - ", "Other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractIssuer(tt.name))
		})
	}
}

func TestCalculate_SingleIssuerAboveLimit(t *testing.T) {
	c := Calculate([]domain.Position{deposit("a", "CDB Banco Inter", "CDB", 300000)}, 250000, 1000000, 300000)

	assert.Equal(t, 250000.0, c.CoveredValue)
	assert.Equal(t, 50000.0, c.UncoveredValue)
	assert.InDelta(t, 250000.0/300000*100, c.Percent, 1e-9)
	assert.False(t, c.TotalLimitApplied)
	require.Len(t, c.ByIssuer, 1)
	assert.Equal(t, "Inter", c.ByIssuer[0].Issuer)
}

func TestCalculate_LimitIsPerIssuer(t *testing.T) {
	c := Calculate([]domain.Position{
		deposit("a", "CDB Inter 2026", "CDB", 200000),
		deposit("b", "LCI Inter", "LCI", 100000),
		deposit("c", "CDB Nubank", "CDB", 200000),
		deposit("d", "Tesouro Selic", "TESOURO", 500000),
	}, 250000, 1000000, 1000000)

	assert.Equal(t, 500000.0, c.EligibleValue)
	assert.Equal(t, 450000.0, c.CoveredValue)
	assert.Equal(t, 50000.0, c.UncoveredValue)
	assert.InDelta(t, 45, c.Percent, 1e-9)

	require.Len(t, c.ByIssuer, 2)
	assert.Equal(t, "Inter", c.ByIssuer[0].Issuer)
	assert.Equal(t, 300000.0, c.ByIssuer[0].Value)
	assert.Equal(t, 250000.0, c.ByIssuer[0].Covered)
	assert.ElementsMatch(t, []string{"a", "b"}, c.ByIssuer[0].Positions)
	assert.Equal(t, "Nubank", c.ByIssuer[1].Issuer)
	assert.Equal(t, 200000.0, c.ByIssuer[1].Covered)
}

func TestCalculate_SeparatorIssuersIgnoreCaseAndAccents(t *testing.T) {
	c := Calculate([]domain.Position{
		deposit("a", "CDB - Banco Pleno", "CDB", 200000),
		deposit("b", "LCI - BANCO  PLENO", "LCI", 200000),
		deposit("c", "LCA | Financeira São Jorge", "LCA", 100000),
		deposit("d", "LC / financeira sao jorge", "LC", 100000),
	}, 250000, 1000000, 600000)

	require.Len(t, c.ByIssuer, 2)
	assert.Equal(t, "Banco Pleno", c.ByIssuer[0].Issuer)
	assert.Equal(t, 400000.0, c.ByIssuer[0].Value)
	assert.Equal(t, 250000.0, c.ByIssuer[0].Covered)
	assert.Equal(t, "Financeira São Jorge", c.ByIssuer[1].Issuer)
	assert.Equal(t, 200000.0, c.ByIssuer[1].Covered)
	assert.Equal(t, 450000.0, c.CoveredValue)
}

func TestCalculate_TotalLimitCapsSum(t *testing.T) {
	c := Calculate([]domain.Position{
		deposit("a", "CDB Inter", "CDB", 250000),
		deposit("b", "CDB Nubank", "CDB", 250000),
		deposit("c", "CDB Safra", "CDB", 250000),
	}, 250000, 500000, 750000)

	assert.True(t, c.TotalLimitApplied)
	assert.Equal(t, 500000.0, c.CoveredValue)
	assert.Equal(t, 250000.0, c.UncoveredValue)
}

func TestCalculate_Empty(t *testing.T) {
	c := Calculate(nil, 250000, 1000000, 0)

	assert.Zero(t, c.CoveredValue)
	assert.Zero(t, c.Percent)
	assert.NotNil(t, c.ByIssuer)
}

type fakePortfolios struct {
	positions []domain.Position
	wealth    float64
}

func (f fakePortfolios) GetPositions(context.Context, string) ([]domain.Position, error) {
	return f.positions, nil
}

func (f fakePortfolios) GetWealth(_ context.Context, _ string, view portfolio.View) (*portfolio.Wealth, error) {
	return &portfolio.Wealth{View: view, Total: f.wealth}, nil
}

func TestService_GetCoverageUsesTotalWealth(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	odd := deposit("x", "CDB Exterior", "CDB", 10)
	odd.Currency = "XYZ"

	svc := NewService(
		fakePortfolios{positions: []domain.Position{deposit("a", "CDB Inter", "CDB", 100000), odd}, wealth: 400000},
		portfolio.NewAggregator(unknownRates{}, "BRL", log),
		250000, 1000000, log,
	)

	res, err := svc.GetCoverage(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 400000.0, res.TotalWealth)
	assert.Equal(t, 100000.0, res.Coverage.CoveredValue)
	assert.InDelta(t, 25, res.Coverage.Percent, 1e-9)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "x", res.Skipped[0].ID)
}

type unknownRates struct{}

func (unknownRates) GetRate(string) (domain.RateEntry, error) {
	return domain.RateEntry{}, domain.ErrUnknownCurrency
}
