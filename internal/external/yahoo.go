package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/guregu/null/v6"

	"github.com/kjannette/quotesync/internal/httputil"
	"github.com/kjannette/quotesync/internal/models"
)

const (
	defaultChartBase   = "https://query1.finance.yahoo.com"
	defaultSummaryBase = "https://query2.finance.yahoo.com"
	defaultCookieURL   = "https://fc.yahoo.com"
)

// SummaryModules are the quoteSummary modules merged into one attribute bag,
// in precedence order.
var SummaryModules = []string{
	"assetProfile",
	"summaryDetail",
	"financialData",
	"defaultKeyStatistics",
	"price",
	"quoteType",
}

var ErrUnauthorized = errors.New("yahoo: unauthorized")

type YahooOptions struct {
	ChartBaseURL   string
	SummaryBaseURL string
	CookieURL      string
	UserAgent      string
	Timeout        time.Duration
	Policy         httputil.Policy
}

// YahooClient reads intraday series and descriptive attributes from Yahoo Finance.
type YahooClient struct {
	chartBase   string
	summaryBase string
	cookieURL   string
	userAgent   string
	httpClient  *http.Client
	policy      httputil.Policy

	mu    sync.Mutex
	crumb string
}

func NewYahooClient(opts YahooOptions) *YahooClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	jar, _ := cookiejar.New(nil)

	return &YahooClient{
		chartBase:   trimBase(opts.ChartBaseURL, defaultChartBase),
		summaryBase: trimBase(opts.SummaryBaseURL, defaultSummaryBase),
		cookieURL:   trimBase(opts.CookieURL, defaultCookieURL),
		userAgent:   opts.UserAgent,
		httpClient:  &http.Client{Timeout: timeout, Jar: jar},
		policy:      opts.Policy,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"chart"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// FetchPriceSeries returns the bars for symbol over rng at the given interval,
// oldest first. An empty slice means the provider had no data.
func (c *YahooClient) FetchPriceSeries(ctx context.Context, symbol, rng, interval string) ([]models.PricePoint, error) {
	q := url.Values{}
	q.Set("range", rng)
	q.Set("interval", interval)
	q.Set("includePrePost", "false")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.chartBase, url.PathEscape(symbol), q.Encode())

	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("chart %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	var data chartResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&data)
	if data.Chart.Error != nil {
		return nil, fmt.Errorf("chart %s: %w", symbol, data.Chart.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart %s: status %d", symbol, resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("chart %s: decode: %w", symbol, decodeErr)
	}

	if len(data.Chart.Result) == 0 {
		return nil, nil
	}
	res := data.Chart.Result[0]

	var closes []*float64
	if len(res.Indicators.Quote) > 0 {
		closes = res.Indicators.Quote[0].Close
	}

	points := make([]models.PricePoint, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		p := models.PricePoint{Timestamp: time.Unix(ts, 0).UTC()}
		if i < len(closes) {
			p.Close = null.FloatFromPtr(closes[i])
		}
		points = append(points, p)
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	return points, nil
}

type summaryResponse struct {
	QuoteSummary struct {
		Result []map[string]json.RawMessage `json:"result"`
		Error  *apiError                    `json:"error"`
	} `json:"quoteSummary"`
}

// FetchAttributes returns the flattened descriptive attributes for symbol.
// Numeric values are json.Number.
func (c *YahooClient) FetchAttributes(ctx context.Context, symbol string) (map[string]any, error) {
	crumb, err := c.ensureCrumb(ctx)
	if err != nil {
		return nil, fmt.Errorf("summary %s: %w", symbol, err)
	}

	q := url.Values{}
	q.Set("modules", strings.Join(SummaryModules, ","))
	q.Set("crumb", crumb)
	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?%s", c.summaryBase, url.PathEscape(symbol), q.Encode())

	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("summary %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.resetCrumb()
		return nil, fmt.Errorf("summary %s: %w (status %d)", symbol, ErrUnauthorized, resp.StatusCode)
	}

	var data summaryResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	decodeErr := dec.Decode(&data)
	if data.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("summary %s: %w", symbol, data.QuoteSummary.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("summary %s: status %d", symbol, resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("summary %s: decode: %w", symbol, decodeErr)
	}

	bag := make(map[string]any)
	if len(data.QuoteSummary.Result) > 0 {
		if err := flatten(bag, data.QuoteSummary.Result[0]); err != nil {
			return nil, fmt.Errorf("summary %s: %w", symbol, err)
		}
	}
	if _, ok := bag["symbol"]; !ok {
		bag["symbol"] = symbol
	}
	return bag, nil
}

// flatten merges the modules into bag. The first module to supply a key wins.
func flatten(bag map[string]any, modules map[string]json.RawMessage) error {
	for _, name := range SummaryModules {
		raw, ok := modules[name]
		if !ok || len(raw) == 0 || string(raw) == "null" {
			continue
		}

		dec := json.NewDecoder(strings.NewReader(string(raw)))
		dec.UseNumber()
		var fields map[string]any
		if err := dec.Decode(&fields); err != nil {
			return fmt.Errorf("module %s: %w", name, err)
		}

		for k, v := range fields {
			if _, taken := bag[k]; taken {
				continue
			}
			if v, keep := unwrap(v); keep {
				bag[k] = v
			}
		}
	}
	return nil
}

// unwrap reduces Yahoo's {"raw": 1.5, "fmt": "1.50"} wrappers to the raw value.
// Empty wrappers are dropped.
func unwrap(v any) (any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return v, true
	}
	if len(m) == 0 {
		return nil, false
	}
	if raw, ok := m["raw"]; ok {
		return raw, true
	}
	if f, ok := m["fmt"]; ok {
		return f, true
	}
	return m, true
}

func (c *YahooClient) ensureCrumb(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.crumb != "" {
		return c.crumb, nil
	}

	// The cookie endpoint answers 404 but still sets the session cookie.
	resp, err := c.get(ctx, c.cookieURL)
	if err != nil {
		return "", fmt.Errorf("cookie: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	resp, err = c.get(ctx, c.summaryBase+"/v1/test/getcrumb")
	if err != nil {
		return "", fmt.Errorf("crumb: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", fmt.Errorf("crumb: %w", err)
	}
	crumb := strings.TrimSpace(string(body))
	if resp.StatusCode != http.StatusOK || crumb == "" || strings.ContainsAny(crumb, "<{ ") {
		return "", fmt.Errorf("crumb: status %d", resp.StatusCode)
	}

	c.crumb = crumb
	return crumb, nil
}

func (c *YahooClient) resetCrumb() {
	c.mu.Lock()
	c.crumb = ""
	c.mu.Unlock()
}

func (c *YahooClient) get(ctx context.Context, endpoint string) (*http.Response, error) {
	return httputil.Do(ctx, c.httpClient, c.policy, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
}

func trimBase(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return strings.TrimRight(v, "/")
}
