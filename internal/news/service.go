package news

import (
	"context"
	"sync"
	"time"

	"trading-arena/internal/logger"
	"trading-arena/internal/store"
	"trading-arena/internal/types"
)

// Service fronts the scraper with a per-symbol cache so several agents
// trading the same day do not hammer the sources.
type Service struct {
	scraper *Scraper
	cache   *headlineCache
	cfg     store.NewsConfig
}

type headlineCache struct {
	mu   sync.RWMutex
	data map[string]cacheEntry
	ttl  time.Duration
}

type cacheEntry struct {
	articles []types.NewsArticle
	fetched  time.Time
}

func (c *headlineCache) get(symbol string) ([]types.NewsArticle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.data[symbol]
	if !ok || time.Since(entry.fetched) > c.ttl {
		return nil, false
	}
	return entry.articles, true
}

func (c *headlineCache) set(symbol string, articles []types.NewsArticle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[symbol] = cacheEntry{articles: articles, fetched: time.Now()}
}

func NewService(cfg store.NewsConfig) *Service {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		scraper: NewScraper(timeout),
		cache:   &headlineCache{data: map[string]cacheEntry{}, ttl: 1 * time.Hour},
		cfg:     cfg,
	}
}

// Headlines returns cached or freshly scraped articles for the symbol.
// When the service is disabled it returns nothing, and scrape failures
// degrade to an empty slice so a session never dies for lack of news.
func (s *Service) Headlines(ctx context.Context, symbol string) []types.NewsArticle {
	if !s.cfg.Enabled {
		return nil
	}
	if cached, ok := s.cache.get(symbol); ok {
		return cached
	}

	maxArticles := s.cfg.MaxArticles
	if maxArticles <= 0 {
		maxArticles = 5
	}
	articles, err := s.scraper.Scrape(ctx, symbol, maxArticles)
	if err != nil {
		logger.ErrorWithErr(ctx, "Headline fetch failed", err, "symbol", symbol)
		return nil
	}
	s.cache.set(symbol, articles)
	return articles
}
