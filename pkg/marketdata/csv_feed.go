// Package marketdata provides the daily underlying + volatility-index
// history: a CSV feed for local files, an HTTP client for a quote API, and a
// memoizing cache that can front either.
package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/quantarc/fuzzywheel/pkg/core"
)

const dateLayout = "2006-01-02"

var defaultHeaderMap = map[string]int{
	"date": 0, "open": 1, "high": 2, "low": 3, "close": 4,
}

// CSVFeed loads a symbol's OHLC file and a volatility-index file and joins
// them on date. Only dates present in both files survive; a VIX file with
// holes produces a shorter, still aligned, history.
type CSVFeed struct {
	days map[string][]core.TradingDay
}

// FileFeed names the pair of files backing one symbol.
type FileFeed struct {
	Symbol    string
	PriceFile string
	VIXFile   string
}

// NewCSVFeed reads and aligns all feeds up front.
func NewCSVFeed(feeds ...FileFeed) (*CSVFeed, error) {
	c := &CSVFeed{days: make(map[string][]core.TradingDay)}

	for _, feed := range feeds {
		prices, err := readPriceRows(feed.PriceFile)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", feed.PriceFile, err)
		}

		vix, err := readVIXRows(feed.VIXFile)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", feed.VIXFile, err)
		}

		aligned := alignRows(prices, vix)
		if len(aligned) == 0 {
			return nil, fmt.Errorf("%w: no overlapping dates between %s and %s",
				core.ErrDataUnavailable, feed.PriceFile, feed.VIXFile)
		}
		c.days[feed.Symbol] = aligned
	}

	return c, nil
}

// DailyHistory implements core.DataProvider.
func (c *CSVFeed) DailyHistory(_ context.Context, symbol string, start, end time.Time) ([]core.TradingDay, error) {
	all, ok := c.days[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: symbol %s not loaded", core.ErrDataUnavailable, symbol)
	}

	result := make([]core.TradingDay, 0, len(all))
	for _, day := range all {
		if day.Date.Before(start) || day.Date.After(end) {
			continue
		}
		result = append(result, day)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("%w: no %s rows in %s..%s", core.ErrDataUnavailable,
			symbol, start.Format(dateLayout), end.Format(dateLayout))
	}
	return result, nil
}

// parseHeaders maps column names to indices. Files without a header line use
// the default date,open,high,low,close order.
func parseHeaders(headers []string) (headerMap map[string]int, hasHeaders bool) {
	if _, err := time.Parse(dateLayout, headers[0]); err == nil {
		return defaultHeaderMap, false
	}

	headerMap = make(map[string]int)
	for index, header := range headers {
		headerMap[header] = index
	}
	return headerMap, true
}

func readCSVLines(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	lines, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty file", core.ErrDataUnavailable)
	}
	return lines, nil
}

func readPriceRows(path string) (map[time.Time]core.TradingDay, error) {
	lines, err := readCSVLines(path)
	if err != nil {
		return nil, err
	}

	headerMap, hasHeaders := parseHeaders(lines[0])
	if hasHeaders {
		lines = lines[1:]
	}

	for _, column := range []string{"date", "open", "high", "low", "close"} {
		if _, ok := headerMap[column]; !ok {
			return nil, fmt.Errorf("missing column %q", column)
		}
	}

	rows := make(map[time.Time]core.TradingDay, len(lines))
	for _, line := range lines {
		date, err := time.Parse(dateLayout, line[headerMap["date"]])
		if err != nil {
			return nil, err
		}

		day := core.TradingDay{Date: date.UTC()}
		if day.Open, err = strconv.ParseFloat(line[headerMap["open"]], 64); err != nil {
			return nil, err
		}
		if day.High, err = strconv.ParseFloat(line[headerMap["high"]], 64); err != nil {
			return nil, err
		}
		if day.Low, err = strconv.ParseFloat(line[headerMap["low"]], 64); err != nil {
			return nil, err
		}
		if day.Close, err = strconv.ParseFloat(line[headerMap["close"]], 64); err != nil {
			return nil, err
		}
		rows[day.Date] = day
	}
	return rows, nil
}

// readVIXRows accepts either a full OHLC file (the close column is used) or
// a two-column date,close file.
func readVIXRows(path string) (map[time.Time]float64, error) {
	lines, err := readCSVLines(path)
	if err != nil {
		return nil, err
	}

	headerMap, hasHeaders := parseHeaders(lines[0])
	if hasHeaders {
		lines = lines[1:]
	} else if len(lines[0]) == 2 {
		headerMap = map[string]int{"date": 0, "close": 1}
	}

	if _, ok := headerMap["close"]; !ok {
		return nil, fmt.Errorf("missing column %q", "close")
	}

	rows := make(map[time.Time]float64, len(lines))
	for _, line := range lines {
		date, err := time.Parse(dateLayout, line[headerMap["date"]])
		if err != nil {
			return nil, err
		}
		value, err := strconv.ParseFloat(line[headerMap["close"]], 64)
		if err != nil {
			return nil, err
		}
		rows[date.UTC()] = value
	}
	return rows, nil
}

func alignRows(prices map[time.Time]core.TradingDay, vix map[time.Time]float64) []core.TradingDay {
	aligned := make([]core.TradingDay, 0, len(prices))
	for date, day := range prices {
		v, ok := vix[date]
		if !ok {
			continue
		}
		day.VIX = v
		aligned = append(aligned, day)
	}

	sort.Slice(aligned, func(i, j int) bool {
		return aligned[i].Date.Before(aligned[j].Date)
	})
	return aligned
}
