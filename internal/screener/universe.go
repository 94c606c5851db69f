package screener

import (
	"context"

	"AShareScreener/internal/logger"
)

// Universe merges the watchlist with market-cap candidates. When caps is nil
// or the lookup fails the watchlist alone is screened.
func Universe(ctx context.Context, watchlist []string, caps CapSource, minMV, maxMV float64) []string {
	codes := append([]string(nil), watchlist...)
	if caps == nil {
		return Dedupe(codes)
	}
	extra, err := caps.CodesByMarketCap(ctx, minMV, maxMV)
	if err != nil {
		logger.Warnf("market cap candidates unavailable, screening watchlist only: %v", err)
		return Dedupe(codes)
	}
	logger.Infof("market cap filter [%.0f, %.0f] added %d candidates", minMV, maxMV, len(extra))
	return Dedupe(append(codes, extra...))
}
