package yahoo

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"resty.dev/v3"

	"github.com/minyeamer/gspread/internal/logger"
	"github.com/minyeamer/gspread/internal/market"
	"github.com/minyeamer/gspread/internal/pkg/circuit"
	"github.com/minyeamer/gspread/internal/pkg/symbol"
	"github.com/minyeamer/gspread/internal/pkg/text"
)

const (
	DefaultBaseURL = "https://query1.finance.yahoo.com"
	downloadPath   = "/v7/finance/download/{symbol}"

	defaultTimeout       = 15 * time.Second
	defaultRetryWaitTime = 1 * time.Second
	defaultRetryMaxWait  = 10 * time.Second
	defaultUserAgent     = "Mozilla/5.0 (compatible; gspread/1.0)"
	maxErrorBody         = 200
)

type Options struct {
	BaseURL string
	Timeout time.Duration
	// RetryCount defaults to 0: a failed ticker fails the batch.
	RetryCount    int
	RatePerSecond float64
	UserAgent     string

	BreakerThreshold int
	BreakerCooldown  time.Duration

	Now func() time.Time
}

// Client downloads daily history CSVs. Safe for concurrent use.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	breaker *circuit.Breaker
	conv    symbol.Converter
	now     func() time.Time
}

var _ market.Fetcher = (*Client)(nil)

func New(opts Options) *Client {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	httpClient := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "text/csv").
		SetHeader("User-Agent", ua).
		SetRetryCount(max(opts.RetryCount, 0)).
		SetRetryWaitTime(defaultRetryWaitTime).
		SetRetryMaxWaitTime(defaultRetryMaxWait).
		AddRetryConditions(retryCondition).
		AddRetryHooks(retryHook)

	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(limit, 1),
		breaker: circuit.New("yahoo", opts.BreakerThreshold, opts.BreakerCooldown),
		conv:    symbol.Yahoo,
		now:     now,
	}
}

// Fetch downloads one ticker over [Start, End] and returns rows oldest first,
// truncated and filtered. Ticker on the rows is the display form.
func (c *Client) Fetch(ctx context.Context, req market.FetchRequest) ([]market.PriceRow, error) {
	if err := req.Validate(); err != nil {
		return nil, &FetchError{Type: ErrorTypeValidation, Ticker: req.Ticker, Message: err.Error()}
	}
	events := req.Events
	if events == "" {
		events = market.EventsHistory
	}
	query := c.conv.ToSource(req.Ticker)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Type: ErrorTypeNetwork, Ticker: req.Ticker, Message: "rate limiter wait", Cause: err}
	}
	var rows []market.PriceRow
	err := c.breaker.Do(func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetPathParam("symbol", query).
			SetQueryParams(map[string]string{
				"period1":              strconv.FormatInt(req.Start.Unix(), 10),
				"period2":              strconv.FormatInt(req.End.Unix(), 10),
				"interval":             "1d",
				"events":               string(events),
				"includeAdjustedClose": "true",
			}).
			Get(downloadPath)
		if err != nil {
			return classifyTransportError(err)
		}
		if !resp.IsSuccess() {
			return ClassifyHTTPError(resp.StatusCode(), text.Truncate(strings.TrimSpace(resp.String()), maxErrorBody))
		}
		parsed, err := parseCSV(strings.NewReader(resp.String()), c.conv.FromSource(req.Ticker), events, req.Digits())
		if err != nil {
			return err
		}
		rows = parsed
		return nil
	}, tripsBreaker)

	if errors.Is(err, circuit.ErrOpen) {
		err = &FetchError{Type: ErrorTypeNetwork, Retryable: true, Message: "market source unavailable", Cause: err}
	}
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) && fe.Ticker == "" {
			fe.Ticker = req.Ticker
		}
		return nil, err
	}
	logger.Debugf("yahoo: %s (%s) %s..%s -> %d rows", req.Ticker, query,
		req.Start.Format(time.DateOnly), req.End.Format(time.DateOnly), len(rows))
	return rows, nil
}

// FetchLastYear fetches the trailing 365 days ending now.
func (c *Client) FetchLastYear(ctx context.Context, ticker string, columns []string, truncation *int) ([]market.PriceRow, error) {
	start, end := market.LastYear(c.now())
	return c.Fetch(ctx, market.FetchRequest{
		Ticker:     ticker,
		Start:      start,
		End:        end,
		Columns:    columns,
		Truncation: truncation,
		Events:     market.EventsHistory,
	})
}

func (c *Client) Close() error {
	if c == nil || c.http == nil {
		return nil
	}
	return c.http.Close()
}

func classifyTransportError(err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return NewTimeoutError(err)
	}
	return NewNetworkError(err)
}

// Bad tickers (4xx) and unparsable bodies say nothing about source health.
func tripsBreaker(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return true
}

func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	code := r.StatusCode()
	return code >= 500 || code == 429 || code == 408
}

func retryHook(r *resty.Response, err error) {
	if err != nil {
		logger.Debugf("yahoo: retrying %s (attempt %d): %v", r.Request.URL, r.Request.Attempt, err)
		return
	}
	logger.Debugf("yahoo: retrying %s (attempt %d): status %d", r.Request.URL, r.Request.Attempt, r.StatusCode())
}
