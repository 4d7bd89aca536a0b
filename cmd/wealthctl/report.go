package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/internal/modules/coverage"
	"github.com/aristath/wealth/internal/modules/performance"
	"github.com/aristath/wealth/internal/modules/portfolio"
	"github.com/aristath/wealth/internal/modules/sensitivity"
	"github.com/aristath/wealth/pkg/money"
	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
)

type reportCmd struct {
	portfolioID string
	period      string
	raw         bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "display a portfolio performance report" }
func (*reportCmd) Usage() string {
	return `wealthctl report -portfolio <id> [-period 1M|3M|6M|YTD|1Y|2Y|5Y|ALL] [-raw]

  Renders totals, performance against the benchmarks, deposit insurance
  coverage and the largest sensitivity contributors as markdown.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolioID, "portfolio", "", "portfolio id (required)")
	f.StringVar(&c.period, "period", performance.Period1Y, "reporting period")
	f.BoolVar(&c.raw, "raw", false, "print markdown without terminal styling")
}

// portfolioReport gathers the pieces of one report. Optional sections are nil
// when they could not be computed.
type portfolioReport struct {
	Portfolio   domain.Portfolio
	Currency    string
	Totals      *portfolio.TotalsResult
	Performance *performance.Performance
	Coverage    *coverage.Result
	Sensitivity *sensitivity.Result
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.portfolioID == "" {
		fmt.Fprintln(os.Stderr, "-portfolio is required")
		return subcommands.ExitUsageError
	}

	container, cfg, log, err := openContainer(ctx)
	if err != nil {
		return fail(err)
	}
	defer container.Close()

	period, err := performance.ParsePeriod(c.period, container.PerformanceAnalyzer.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	p, err := container.PortfolioService.GetPortfolio(ctx, c.portfolioID)
	if err != nil {
		return fail(err)
	}
	totals, err := container.PortfolioService.GetPortfolioTotals(ctx, c.portfolioID)
	if err != nil {
		return fail(err)
	}

	r := portfolioReport{Portfolio: *p, Currency: cfg.ReportingCurrency, Totals: totals}

	if r.Performance, err = container.PerformanceAnalyzer.Analyze(ctx, c.portfolioID, period); err != nil {
		log.Warn().Err(err).Msg("Performance section skipped")
	}
	if r.Coverage, err = container.CoverageService.GetCoverage(ctx, c.portfolioID); err != nil {
		log.Warn().Err(err).Msg("Coverage section skipped")
	}
	if r.Sensitivity, err = container.SensitivityService.GetSensitivity(ctx, c.portfolioID); err != nil {
		log.Warn().Err(err).Msg("Sensitivity section skipped")
	}

	md := reportMarkdown(r)
	if c.raw {
		fmt.Print(md)
		return subcommands.ExitSuccess
	}
	printMarkdown(md)
	return subcommands.ExitSuccess
}

// printMarkdown renders md for the terminal, falling back to plain text.
func printMarkdown(md string) {
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		fmt.Print(md)
		return
	}
	out, err := renderer.Render(md)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

// maxSensitivityRows limits the contributors table.
const maxSensitivityRows = 10

func reportMarkdown(r portfolioReport) string {
	var b strings.Builder
	amount := func(v float64) string { return money.Format(v, r.Currency) }

	fmt.Fprintf(&b, "# %s\n\n", r.Portfolio.Name)

	if r.Totals != nil {
		t := r.Totals.Totals
		b.WriteString("## Totals\n\n")
		b.WriteString("| Value | Invested | Gain | Gain % |\n|---:|---:|---:|---:|\n")
		fmt.Fprintf(&b, "| %s | %s | %s | %.2f%% |\n\n", amount(t.TotalValue), amount(t.TotalInvested), amount(t.TotalGain), t.GainPercent)
		if len(r.Totals.Skipped) > 0 {
			fmt.Fprintf(&b, "_%d positions could not be valued and are excluded._\n\n", len(r.Totals.Skipped))
		}
	}

	if perf := r.Performance; perf != nil {
		fmt.Fprintf(&b, "## Performance (%s)\n\n", perf.Period.Code)
		if perf.Provisional {
			b.WriteString("_No history yet: figures are a provisional projection._\n\n")
		} else {
			fmt.Fprintf(&b, "%s to %s, %d snapshots.\n\n", perf.StartDate, perf.EndDate, perf.Snapshots)
		}
		b.WriteString("| Metric | Value |\n|---|---:|\n")
		fmt.Fprintf(&b, "| Accumulated return | %.2f%% |\n", perf.AccumulatedReturn)
		fmt.Fprintf(&b, "| Period gain | %s |\n", amount(perf.PeriodGain))
		fmt.Fprintf(&b, "| Benchmark | %.2f%% |\n", perf.BenchmarkAccumulated)
		fmt.Fprintf(&b, "| Of benchmark | %.2f%% |\n", perf.BenchmarkRatio)
		fmt.Fprintf(&b, "| Inflation | %.2f%% |\n", perf.InflationAccumulated)
		fmt.Fprintf(&b, "| Real return | %.2f%% |\n\n", perf.RealReturn)

		if len(perf.Monthly) > 0 {
			b.WriteString("### Monthly\n\n| Month | Value | Return | Change |\n|---|---:|---:|---:|\n")
			for _, p := range perf.Monthly {
				fmt.Fprintf(&b, "| %s | %s | %.2f%% | %.2f%% |\n", p.Label, amount(p.TotalValue), p.Return, p.ValueChange)
			}
			b.WriteString("\n")
		}
	}

	if cov := r.Coverage; cov != nil {
		c := cov.Coverage
		b.WriteString("## Deposit insurance\n\n")
		fmt.Fprintf(&b, "%s of %s eligible is covered (%.2f%%).", amount(c.CoveredValue), amount(c.EligibleValue), c.Percent)
		if c.TotalLimitApplied {
			fmt.Fprintf(&b, " The overall limit of %s applies.", amount(c.TotalLimit))
		}
		b.WriteString("\n\n")
		if len(c.ByIssuer) > 0 {
			b.WriteString("| Issuer | Value | Covered | Uncovered |\n|---|---:|---:|---:|\n")
			for _, i := range c.ByIssuer {
				fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", i.Issuer, amount(i.Value), amount(i.Covered), amount(i.Uncovered))
			}
			b.WriteString("\n")
		}
	}

	if sens := r.Sensitivity; sens != nil && len(sens.Assets) > 0 {
		b.WriteString("## Largest contributors\n\n| Asset | Weight | Contribution | Volatility |\n|---|---:|---:|---:|\n")
		for i, a := range sens.Assets {
			if i == maxSensitivityRows {
				break
			}
			vol := fmt.Sprintf("%.1f%%", a.Volatility)
			if a.VolatilitySource == sensitivity.VolatilityEstimated {
				vol += " (est.)"
			}
			fmt.Fprintf(&b, "| %s | %.2f%% | %+.2f%% | %s |\n", a.Name, a.Weight, a.Contribution, vol)
		}
		b.WriteString("\n")
	}

	return b.String()
}
