package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	TTLExchangeRate = time.Hour           // Currency rate tables
	TTLRateTable    = 30 * 24 * time.Hour // Last good reporting-currency table, seeds cold starts
	TTLBenchmark    = 12 * time.Hour      // Risk-free and inflation series publish at most daily
	TTLAnalysis     = 24 * time.Hour      // Ticker volatility from daily bars
)

// StaleGrace is how long an expired entry is kept for feed outages.
const StaleGrace = 7 * 24 * time.Hour
