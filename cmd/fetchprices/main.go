// Command fetchprices pulls daily bars from Alpha Vantage for every
// universe symbol and writes the merged JSONL dataset the arena trades
// against.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"

	"trading-arena/internal/store"
)

const (
	fieldOpen   = "1. buy price"
	fieldHigh   = "2. high"
	fieldLow    = "3. low"
	fieldClose  = "4. sell price"
	fieldVolume = "5. volume"
)

// avResponse is the TIME_SERIES_DAILY payload shape.
type avResponse struct {
	MetaData map[string]string            `json:"Meta Data"`
	Series   map[string]map[string]string `json:"Time Series (Daily)"`
	Note     string                       `json:"Note"`
	Error    string                       `json:"Error Message"`
}

// mergedRow is one line of the output dataset.
type mergedRow struct {
	MetaData map[string]string            `json:"Meta Data"`
	Series   map[string]map[string]string `json:"Time Series (Daily)"`
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the arena config file")
	outPath := flag.String("out", "", "output path (default: the configured prices file)")
	full := flag.Bool("full", false, "fetch the full history instead of the most recent 100 days")
	openOnlyLatest := flag.Bool("open-only-latest", false, "strip everything but the opening price from the newest date, as a pre-close fetch would see it")
	pace := flag.Duration("pace", 15*time.Second, "delay between symbol requests")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := store.LoadConfig(*configPath)
	must(err)

	apiKey := os.Getenv("ALPHAVANTAGE_API_KEY")
	if apiKey == "" {
		log.Fatal("ALPHAVANTAGE_API_KEY missing")
	}

	target := *outPath
	if target == "" {
		target = cfg.PricesPath()
	}
	must(os.MkdirAll(cfg.Data.Dir, 0o755))

	f, err := os.Create(target)
	must(err)
	defer f.Close()

	outputSize := "compact"
	if *full {
		outputSize = "full"
	}

	client := resty.New().
		SetBaseURL("https://www.alphavantage.co").
		SetRetryCount(3).
		SetRetryWaitTime(5 * time.Second).
		SetTimeout(30 * time.Second)

	written := 0
	for i, symbol := range cfg.Universe {
		if i > 0 {
			time.Sleep(*pace)
		}

		row, err := fetchSymbol(client, symbol, apiKey, outputSize)
		if err != nil {
			log.Printf("[%s] fetch failed: %v", symbol, err)
			continue
		}
		if *openOnlyLatest {
			trimLatest(row)
		}

		line, err := json.Marshal(row)
		must(err)
		_, err = fmt.Fprintln(f, string(line))
		must(err)
		written++
		log.Printf("[%s] %d days written", symbol, len(row.Series))
	}

	log.Printf("Done: %d/%d symbols written to %s", written, len(cfg.Universe), target)
}

func fetchSymbol(client *resty.Client, symbol, apiKey, outputSize string) (*mergedRow, error) {
	var payload avResponse
	resp, err := client.R().
		SetQueryParams(map[string]string{
			"function":   "TIME_SERIES_DAILY",
			"symbol":     symbol,
			"outputsize": outputSize,
			"apikey":     apiKey,
		}).
		SetResult(&payload).
		Get("/query")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("http %d", resp.StatusCode())
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("api error: %s", payload.Error)
	}
	if payload.Note != "" {
		return nil, fmt.Errorf("rate limited: %s", payload.Note)
	}
	if len(payload.Series) == 0 {
		return nil, fmt.Errorf("empty time series")
	}

	series := make(map[string]map[string]string, len(payload.Series))
	for date, bar := range payload.Series {
		series[date] = map[string]string{
			fieldOpen:   bar["1. open"],
			fieldHigh:   bar["2. high"],
			fieldLow:    bar["3. low"],
			fieldClose:  bar["4. close"],
			fieldVolume: bar["5. volume"],
		}
	}

	return &mergedRow{
		MetaData: map[string]string{
			"1. Information":    "Daily Prices (open, high, low, close) and Volumes",
			"2. Symbol":         symbol,
			"3. Last Refreshed": payload.MetaData["3. Last Refreshed"],
			"4. Output Size":    payload.MetaData["4. Output Size"],
			"5. Time Zone":      payload.MetaData["5. Time Zone"],
		},
		Series: series,
	}, nil
}

// trimLatest reduces the newest date to its opening price only, matching
// what an intraday fetch sees before the close prints.
func trimLatest(row *mergedRow) {
	if len(row.Series) == 0 {
		return
	}
	dates := make([]string, 0, len(row.Series))
	for d := range row.Series {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	latest := dates[len(dates)-1]
	row.Series[latest] = map[string]string{fieldOpen: row.Series[latest][fieldOpen]}
}
