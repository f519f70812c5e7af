package yahoo

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"context"

	"github.com/Henners-111/Stock-Correlation/internal/httpx"
)

const (
	chartBaseURL  = "https://query1.finance.yahoo.com"
	searchBaseURL = "https://query2.finance.yahoo.com"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=yahoo_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the Yahoo Finance chart and search APIs.
type Client struct {
	// chartBase is the base URL for the v8 chart API.
	chartBase string
	// searchBase is the base URL for the v1 search API.
	searchBase string
	// httpClient performs the outbound requests.
	httpClient HTTPClient
	// header contains additional headers sent with each request.
	header http.Header
	// retries is the number of retries on transient failures.
	retries int
}

// ClientOption is a configuration option for the Yahoo client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for both APIs, as used by tests.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.chartBase = baseURL
		c.searchBase = baseURL
	}
}

// WithChartURL overrides the chart API base URL only.
func WithChartURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.chartBase = baseURL
	}
}

// WithSearchURL overrides the search API base URL only.
func WithSearchURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.searchBase = baseURL
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithRetries sets the bounded retry count for transient failures.
func WithRetries(n int) ClientOption {
	return func(c *Client) {
		c.retries = n
	}
}

// NewClient creates a new Yahoo Finance API client. The default identity is
// a browser User-Agent; Yahoo rejects requests without one.
func NewClient(options ...ClientOption) *Client {
	c := &Client{
		chartBase:  chartBaseURL,
		searchBase: searchBaseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{"User-Agent": []string{httpx.DefaultUserAgent}},
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// ChartData is the flattened daily series from the chart API. Slices are
// index-aligned with Timestamps; nil entries are null bars (holidays etc.).
type ChartData struct {
	Timestamps []int64
	Open       []*float64
	High       []*float64
	Low        []*float64
	Close      []*float64
	AdjClose   []*float64
	Volume     []*float64
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Chart fetches the daily bars for symbol between two unix instants.
// A response carrying no result is returned as empty data, not an error.
func (c *Client) Chart(ctx context.Context, symbol string, period1, period2 int64) (*ChartData, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(period1, 10))
	q.Set("period2", strconv.FormatInt(period2, 10))
	q.Set("interval", "1d")
	q.Set("events", "div,split")
	q.Set("includeAdjustedClose", "true")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.chartBase, url.PathEscape(symbol), q.Encode())

	var body chartResponse
	if err := c.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}
	if body.Chart.Error != nil {
		return nil, fmt.Errorf("chart api: %s: %s", body.Chart.Error.Code, body.Chart.Error.Description)
	}
	if len(body.Chart.Result) == 0 || len(body.Chart.Result[0].Timestamp) == 0 {
		return &ChartData{}, nil
	}
	res := body.Chart.Result[0]
	data := &ChartData{Timestamps: res.Timestamp}
	if len(res.Indicators.Quote) > 0 {
		quote := res.Indicators.Quote[0]
		data.Open = quote.Open
		data.High = quote.High
		data.Low = quote.Low
		data.Close = quote.Close
		data.Volume = quote.Volume
	}
	if len(res.Indicators.AdjClose) > 0 {
		data.AdjClose = res.Indicators.AdjClose[0].AdjClose
	}
	return data, nil
}

// SearchQuote is one candidate from the search API. Price fields are only
// present on some payload variants.
type SearchQuote struct {
	Symbol        string   `json:"symbol"`
	ShortName     string   `json:"shortname"`
	LongName      string   `json:"longname"`
	Exchange      string   `json:"exchange"`
	QuoteType     string   `json:"quoteType"`
	Score         float64  `json:"score"`
	Last          *float64 `json:"regularMarketPrice"`
	ChangePercent *float64 `json:"regularMarketChangePercent"`
}

type searchResponse struct {
	Quotes []SearchQuote `json:"quotes"`
}

// Search queries the symbol search API for up to count quote candidates.
func (c *Client) Search(ctx context.Context, query string, count int) ([]SearchQuote, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("quotesCount", strconv.Itoa(count))
	q.Set("newsCount", "0")
	u := fmt.Sprintf("%s/v1/finance/search?%s", c.searchBase, q.Encode())

	var body searchResponse
	if err := c.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}
	return body.Quotes, nil
}

// getJSON performs a GET with the bounded retry policy: 429/5xx and network
// errors are retried with backoff, anything else fails immediately.
func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	attempt := 0
	for {
		err := c.getJSONOnce(ctx, u, out)
		if err == nil {
			return nil
		}
		if attempt < c.retries && httpx.Retryable(err) {
			if serr := httpx.Sleep(ctx, httpx.Backoff(attempt)); serr != nil {
				return serr
			}
			attempt++
			continue
		}
		return err
	}
}

func (c *Client) getJSONOnce(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return &httpx.StatusError{Code: res.StatusCode, Body: string(b)}
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
