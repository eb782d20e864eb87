// Package news scrapes recent headlines for the symbols an agent holds
// or is eyeing, so a trading session can see what the market is reading.
package news

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"trading-arena/internal/logger"
	"trading-arena/internal/types"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Scraper pulls headlines from a fixed set of news sources.
type Scraper struct {
	sources []Source
	timeout time.Duration
}

// Source describes one scrapeable news site.
type Source struct {
	Name       string
	BaseURL    string
	SearchPath string // {symbol} is replaced with the ticker
	Container  string
	Title      string
	Link       string
	RateLimit  time.Duration
}

func NewScraper(timeout time.Duration) *Scraper {
	return &Scraper{sources: defaultSources(), timeout: timeout}
}

func defaultSources() []Source {
	return []Source{
		{
			Name:       "YahooFinance",
			BaseURL:    "https://finance.yahoo.com",
			SearchPath: "/quote/{symbol}/news",
			Container:  "li.stream-item",
			Title:      "h3",
			Link:       "a",
			RateLimit:  2 * time.Second,
		},
		{
			Name:       "Finviz",
			BaseURL:    "https://finviz.com",
			SearchPath: "/quote.ashx?t={symbol}",
			Container:  "tr.news_table_row, table.fullview-news-outer tr",
			Title:      "a.tab-link-news",
			Link:       "a.tab-link-news",
			RateLimit:  2 * time.Second,
		},
	}
}

// Scrape fetches up to maxArticles headlines for a symbol across all
// sources. Source failures are logged and skipped, never fatal.
func (s *Scraper) Scrape(ctx context.Context, symbol string, maxArticles int) ([]types.NewsArticle, error) {
	perSource := maxArticles / len(s.sources)
	if perSource < 1 {
		perSource = 1
	}

	var all []types.NewsArticle
	for _, source := range s.sources {
		articles, err := s.scrapeSource(ctx, source, symbol, perSource)
		if err != nil {
			logger.ErrorWithErr(ctx, "Failed to scrape source", err, "source", source.Name, "symbol", symbol)
			continue
		}
		all = append(all, articles...)
		time.Sleep(source.RateLimit)
	}

	if len(all) < maxArticles {
		extra, err := s.scrapeGoogleNews(ctx, symbol, maxArticles-len(all))
		if err != nil {
			logger.ErrorWithErr(ctx, "Google News fallback failed", err, "symbol", symbol)
		} else {
			all = append(all, extra...)
		}
	}

	if len(all) > maxArticles {
		all = all[:maxArticles]
	}
	logger.Info(ctx, "News scraping completed", "symbol", symbol, "articles", len(all))
	return all, nil
}

func (s *Scraper) scrapeSource(ctx context.Context, source Source, symbol string, maxArticles int) ([]types.NewsArticle, error) {
	var articles []types.NewsArticle

	c := colly.NewCollector(
		colly.AllowedDomains(hostOf(source.BaseURL)),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(s.timeout)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", userAgent)
	})

	c.OnHTML(source.Container, func(e *colly.HTMLElement) {
		if len(articles) >= maxArticles {
			return
		}
		title := strings.TrimSpace(e.ChildText(source.Title))
		if title == "" {
			return
		}
		link := e.ChildAttr(source.Link, "href")
		if link != "" && !strings.HasPrefix(link, "http") {
			link = source.BaseURL + link
		}
		summary := extractSummary(e.DOM)
		articles = append(articles, types.NewsArticle{
			Title:   title,
			URL:     link,
			Summary: summary,
			Source:  source.Name,
			Symbol:  symbol,
		})
	})

	searchURL := source.BaseURL + strings.ReplaceAll(source.SearchPath, "{symbol}", symbol)
	if err := c.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("visit %s: %w", searchURL, err)
	}
	c.Wait()
	return articles, nil
}

// extractSummary pulls the first substantial paragraph out of an article
// teaser block.
func extractSummary(sel *goquery.Selection) string {
	summary := ""
	sel.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := strings.TrimSpace(p.Text())
		if len(text) > 40 {
			summary = text
			return false
		}
		return true
	})
	return summary
}

// scrapeGoogleNews is the fallback when the primary sources come back
// thin.
func (s *Scraper) scrapeGoogleNews(ctx context.Context, symbol string, maxArticles int) ([]types.NewsArticle, error) {
	var articles []types.NewsArticle

	c := colly.NewCollector(colly.AllowedDomains("news.google.com"))
	c.SetRequestTimeout(s.timeout)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", userAgent)
	})

	c.OnHTML("article", func(e *colly.HTMLElement) {
		if len(articles) >= maxArticles {
			return
		}
		title := strings.TrimSpace(e.ChildText("h3, h4, a.JtKRv"))
		link := e.ChildAttr("a", "href")
		if title == "" || link == "" {
			return
		}
		if strings.HasPrefix(link, "./articles/") {
			link = "https://news.google.com" + link[1:]
		}
		articles = append(articles, types.NewsArticle{
			Title:  title,
			URL:    link,
			Source: "GoogleNews",
			Symbol: symbol,
		})
	})

	query := url.QueryEscape(symbol + " stock")
	searchURL := fmt.Sprintf("https://news.google.com/search?q=%s&hl=en-US&gl=US&ceid=US:en", query)
	if err := c.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("visit google news: %w", err)
	}
	c.Wait()
	return articles, nil
}

func hostOf(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
