package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/quantarc/fuzzywheel/pkg/core"
)

// SliceProvider serves a pre-built day slice, filtered to the requested
// range. Synthetic scenarios and tests use it in place of a feed.
type SliceProvider struct {
	symbol string
	days   []core.TradingDay
}

// NewSliceProvider wraps days already sorted by date.
func NewSliceProvider(symbol string, days []core.TradingDay) *SliceProvider {
	return &SliceProvider{symbol: symbol, days: days}
}

// DailyHistory implements core.DataProvider.
func (p *SliceProvider) DailyHistory(_ context.Context, symbol string, start, end time.Time) ([]core.TradingDay, error) {
	if symbol != p.symbol {
		return nil, fmt.Errorf("%w: no data for %s", core.ErrDataUnavailable, symbol)
	}

	selected := make([]core.TradingDay, 0, len(p.days))
	for _, day := range p.days {
		if day.Date.Before(start) || day.Date.After(end) {
			continue
		}
		selected = append(selected, day)
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: %s has no rows between %s and %s",
			core.ErrDataUnavailable, symbol, start.Format(dateLayout), end.Format(dateLayout))
	}
	return selected, nil
}
