package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"regexp"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/micartera/backend/src/logger"
	"github.com/username/micartera/backend/src/models"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const quoteUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

// Structs for Yahoo Finance API responses
type yahooSearchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		Exchange  string `json:"exchange"`
		Shortname string `json:"shortname"`
		QuoteType string `json:"quoteType"`
	} `json:"quotes"`
}

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string  `json:"symbol"`
			RegularMarketPrice         float64 `json:"regularMarketPrice"`
			RegularMarketChange        float64 `json:"regularMarketChange"`
			RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
			Currency                   string  `json:"currency"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"quoteResponse"`
}

// quoteServiceImpl fetches quotes from Yahoo Finance. Yahoo's v7 quote
// endpoint needs the session cookies plus a "crumb" token scraped from a
// quote page, so the client keeps a cookie jar.
type quoteServiceImpl struct {
	httpClient http.Client
	crumb      string
	quoteCache *cache.Cache
	// symbolCache maps company names to resolved tickers so positions
	// entered without a symbol don't hit the search API on every refresh.
	symbolCache *cache.Cache
	limiter     *rate.Limiter
}

// NewQuoteService creates the Yahoo-backed quote service. Quotes are cached
// for cacheTTL; the limiter throttles outbound requests so a large
// portfolio refresh doesn't hammer the API.
func NewQuoteService(cacheTTL time.Duration) QuoteService {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	s := &quoteServiceImpl{
		httpClient:  http.Client{Jar: jar, Timeout: 20 * time.Second},
		quoteCache:  cache.New(cacheTTL, 2*cacheTTL),
		symbolCache: cache.New(24*time.Hour, 48*time.Hour),
		limiter:     rate.NewLimiter(rate.Every(250*time.Millisecond), 1),
	}

	if err := s.initializeYahooSession(); err != nil {
		logger.L.Error("Failed to initialize Yahoo Finance session. Quote fetching may fail.", "error", err)
	}
	return s
}

// initializeYahooSession visits a Yahoo Finance page to get necessary cookies and the crumb.
func (s *quoteServiceImpl) initializeYahooSession() error {
	logger.L.Info("Initializing Yahoo Finance session to get crumb and cookies...")
	initURL := "https://finance.yahoo.com/quote/VHYL.L"
	req, err := http.NewRequest("GET", initURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", quoteUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make initial request to Yahoo: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read Yahoo response body: %w", err)
	}

	re := regexp.MustCompile(`"CrumbStore":{"crumb":"(.*?)"}`)
	matches := re.FindStringSubmatch(string(body))
	if len(matches) < 2 {
		return fmt.Errorf("could not find crumb in Yahoo Finance response. The page structure may have changed")
	}

	s.crumb = matches[1]
	logger.L.Info("Successfully obtained Yahoo Finance crumb.")
	return nil
}

// GetQuotes resolves a ticker for every position and fetches its quote.
// Failures are logged and skipped: a missing quote is not an error at this
// level, the valuation layer carries the position at cost instead.
func (s *quoteServiceImpl) GetQuotes(positions map[string]models.Position) map[string]models.Quote {
	result := make(map[string]models.Quote)

	if s.crumb == "" {
		logger.L.Warn("Yahoo crumb is missing, attempting to re-initialize session.")
		if err := s.initializeYahooSession(); err != nil {
			logger.L.Error("Failed to re-initialize Yahoo session", "error", err)
			return result
		}
	}

	for key, pos := range positions {
		if cached, found := s.quoteCache.Get(key); found {
			result[key] = cached.(models.Quote)
			continue
		}

		ticker, err := s.tickerForPosition(pos)
		if err != nil {
			logger.L.Warn("Quote fetch: could not resolve ticker", "key", key, "error", err)
			continue
		}

		quote, err := s.fetchQuote(ticker)
		if err != nil {
			logger.L.Warn("Quote fetch: could not get price", "ticker", ticker, "error", err)
			continue
		}

		s.quoteCache.Set(key, quote, cache.DefaultExpiration)
		result[key] = quote
	}
	return result
}

// tickerForPosition prefers the user-entered symbol, then broker symbols
// imported alongside, then a name search as a last resort.
func (s *quoteServiceImpl) tickerForPosition(pos models.Position) (string, error) {
	if pos.Symbol != "" {
		return pos.Symbol, nil
	}

	if cached, found := s.symbolCache.Get(pos.CompanyName); found {
		return cached.(string), nil
	}

	matches, err := s.SearchSymbol(pos.CompanyName)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no ticker found for %q", pos.CompanyName)
	}

	s.symbolCache.Set(pos.CompanyName, matches[0].Symbol, cache.DefaultExpiration)
	return matches[0].Symbol, nil
}

// SearchSymbol queries Yahoo's search endpoint for ticker candidates.
func (s *quoteServiceImpl) SearchSymbol(query string) ([]SymbolMatch, error) {
	if err := s.limiter.Wait(context.Background()); err != nil {
		return nil, err
	}

	searchURL := fmt.Sprintf("https://query1.finance.yahoo.com/v1/finance/search?q=%s", query)
	req, err := http.NewRequest("GET", searchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", quoteUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call Yahoo search API for %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo search API returned non-OK status %d for %q", resp.StatusCode, query)
	}

	var searchData yahooSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchData); err != nil {
		return nil, fmt.Errorf("failed to decode Yahoo search response for %q: %w", query, err)
	}

	matches := make([]SymbolMatch, 0, len(searchData.Quotes))
	for _, q := range searchData.Quotes {
		matches = append(matches, SymbolMatch{
			Symbol:    q.Symbol,
			Name:      q.Shortname,
			Exchange:  q.Exchange,
			QuoteType: q.QuoteType,
		})
	}
	return matches, nil
}

// fetchQuote uses Yahoo's v7 quote endpoint, which requires the crumb.
func (s *quoteServiceImpl) fetchQuote(ticker string) (models.Quote, error) {
	if err := s.limiter.Wait(context.Background()); err != nil {
		return models.Quote{}, err
	}

	quoteURL := fmt.Sprintf("https://query2.finance.yahoo.com/v7/finance/quote?symbols=%s&crumb=%s", ticker, s.crumb)
	req, err := http.NewRequest("GET", quoteURL, nil)
	if err != nil {
		return models.Quote{}, err
	}
	req.Header.Set("User-Agent", quoteUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return models.Quote{}, fmt.Errorf("failed to call Yahoo quote API for ticker %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return models.Quote{}, fmt.Errorf("yahoo quote API returned non-OK status %d for ticker %s. Body: %s", resp.StatusCode, ticker, string(bodyBytes))
	}

	var quoteData yahooQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quoteData); err != nil {
		return models.Quote{}, fmt.Errorf("failed to decode Yahoo quote response for ticker %s: %w", ticker, err)
	}

	if quoteData.QuoteResponse.Error != nil || len(quoteData.QuoteResponse.Result) == 0 {
		return models.Quote{}, fmt.Errorf("yahoo quote API returned an error or no result for ticker %s", ticker)
	}

	r := quoteData.QuoteResponse.Result[0]
	quote := models.Quote{
		Price:         r.RegularMarketPrice,
		Change:        r.RegularMarketChange,
		ChangePercent: r.RegularMarketChangePercent,
		Currency:      normalizeQuoteCurrency(r.Currency),
		Source:        "yahoo",
		UpdatedAt:     time.Now(),
	}
	return quote, nil
}

// normalizeQuoteCurrency keeps Yahoo's pence code aligned with the log's
// synthetic GBp so pence-priced quotes meet pence-costed positions.
func normalizeQuoteCurrency(currency string) string {
	if currency == "GBp" || currency == "GBX" {
		return models.CurrencyGBp
	}
	return currency
}
