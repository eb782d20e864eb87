// Package prices loads the merged daily price dataset and serves
// (symbol, date) lookups for the trade executor and metrics engine.
//
// The dataset is newline-delimited JSON, one document per symbol:
// a "Meta Data" block identifying the symbol and a "Time Series (Daily)"
// block keyed by date. The buy price is the day's open and the sell price
// the day's close; the most recent date of every series carries only the
// buy price because that close is not yet known.
package prices

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"sort"
	"strconv"

	"trading-arena/internal/logger"
	"trading-arena/internal/types"
)

const (
	metaSymbolKey = "2. Symbol"
	fieldOpen     = "1. buy price"
	fieldHigh     = "2. high"
	fieldLow      = "3. low"
	fieldClose    = "4. sell price"
	fieldVolume   = "5. volume"
)

// document mirrors one dataset line. Bar values arrive as JSON strings
// from the upstream vendor but plain numbers are accepted too.
type document struct {
	Meta   map[string]string             `json:"Meta Data"`
	Series map[string]map[string]flexNum `json:"Time Series (Daily)"`
}

type flexNum float64

func (f *flexNum) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*f = flexNum(v)
	return nil
}

// Index is an in-memory (symbol, date) -> bar map. It is read-only after
// Load and safe for concurrent lookups.
type Index struct {
	series  map[string]map[string]types.Bar
	skipped int
}

// Load reads the dataset file at path. A missing file yields an empty
// index rather than an error; individual malformed lines are skipped and
// counted, never fatal.
func Load(ctx context.Context, path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn(ctx, "Price dataset not found, starting with empty index", "path", path)
			return &Index{series: map[string]map[string]types.Bar{}}, nil
		}
		return nil, err
	}
	defer f.Close()
	return LoadReader(ctx, f)
}

// LoadReader parses newline-delimited symbol documents from r.
func LoadReader(ctx context.Context, r io.Reader) (*Index, error) {
	ix := &Index{series: map[string]map[string]types.Bar{}}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var doc document
		if err := json.Unmarshal(line, &doc); err != nil {
			ix.skipped++
			continue
		}
		sym := doc.Meta[metaSymbolKey]
		if sym == "" || len(doc.Series) == 0 {
			ix.skipped++
			continue
		}
		bars := ix.series[sym]
		if bars == nil {
			bars = map[string]types.Bar{}
			ix.series[sym] = bars
		}
		for date, fields := range doc.Series {
			bars[date] = barFromFields(fields)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if ix.skipped > 0 {
		logger.Warn(ctx, "Skipped malformed price documents", "skipped", ix.skipped)
	}
	logger.Debug(ctx, "Price index loaded", "symbols", len(ix.series), "skipped", ix.skipped)
	return ix, nil
}

func barFromFields(fields map[string]flexNum) types.Bar {
	var b types.Bar
	if v, ok := fields[fieldOpen]; ok {
		b.Open = float64(v)
		b.HasOpen = true
	}
	if v, ok := fields[fieldClose]; ok {
		b.Close = float64(v)
		b.HasClose = true
	}
	b.High = float64(fields[fieldHigh])
	b.Low = float64(fields[fieldLow])
	b.Volume = float64(fields[fieldVolume])
	return b
}

// Skipped reports how many malformed documents were dropped during Load.
func (ix *Index) Skipped() int { return ix.skipped }

// Symbols returns every symbol present in the index, sorted.
func (ix *Index) Symbols() []string {
	out := make([]string, 0, len(ix.series))
	for s := range ix.series {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// OpenPrices returns the opening price per symbol for a date. Symbols
// with no bar (or no open) for the date are simply absent from the map.
func (ix *Index) OpenPrices(date string, symbols []string) map[string]float64 {
	out := map[string]float64{}
	for _, sym := range symbols {
		if bar, ok := ix.series[sym][date]; ok && bar.HasOpen {
			out[sym] = bar.Open
		}
	}
	return out
}

// OpenAndClose returns opening and closing prices per symbol for a date.
// Dates whose bar carries only the open (the dataset's most recent day)
// appear in opens but not closes.
func (ix *Index) OpenAndClose(date string, symbols []string) (opens, closes map[string]float64) {
	opens = map[string]float64{}
	closes = map[string]float64{}
	for _, sym := range symbols {
		bar, ok := ix.series[sym][date]
		if !ok {
			continue
		}
		if bar.HasOpen {
			opens[sym] = bar.Open
		}
		if bar.HasClose {
			closes[sym] = bar.Close
		}
	}
	return opens, closes
}

// ClosePrice returns the closing price for one (symbol, date), if known.
func (ix *Index) ClosePrice(symbol, date string) (float64, bool) {
	bar, ok := ix.series[symbol][date]
	if !ok || !bar.HasClose {
		return 0, false
	}
	return bar.Close, true
}

// Bar returns the full OHLCV bar for one (symbol, date).
func (ix *Index) Bar(symbol, date string) (types.Bar, bool) {
	bar, ok := ix.series[symbol][date]
	return bar, ok
}

// RecentDates returns up to n of the most recent dates available for a
// symbol, newest first. Used to suggest valid dates on a failed lookup.
func (ix *Index) RecentDates(symbol string, n int) []string {
	bars := ix.series[symbol]
	if len(bars) == 0 {
		return nil
	}
	dates := make([]string, 0, len(bars))
	for d := range bars {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if len(dates) > n {
		dates = dates[:n]
	}
	return dates
}
