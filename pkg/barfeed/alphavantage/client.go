package alphavantage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/indalsig/barfeed/internal/logger"
	"github.com/indalsig/barfeed/internal/types"
	"github.com/indalsig/barfeed/pkg/errors"
)

// Client downloads bar history CSV files from Alpha Vantage. One request
// fetches the full history for a symbol at a given frequency; there is no
// retry or backoff, failures surface immediately to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *logger.Logger
}

// NewClient creates a client. An empty apiKey falls back to the vendor's
// "demo" token, which is rate limited and may silently truncate data.
func NewClient(apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		baseURL:    QueryURL,
		apiKey:     apiKey,
		log:        logger.NewNopLogger(),
	}
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// SetBaseURL points the client at a different endpoint.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// SetLogger replaces the client's logger. A nil logger restores the no-op
// default.
func (c *Client) SetLogger(log *logger.Logger) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	c.log = log
}

// Download fetches the full bar history CSV for one symbol using the
// client's API key. The response must carry the vendor's CSV content type:
// the vendor reports rate limits and unknown symbols by switching to a JSON
// body with HTTP status 200, so the content type is validated regardless of
// status code.
func (c *Client) Download(ctx context.Context, symbol string, frequency types.Frequency) ([]byte, error) {
	return c.DownloadWithKey(ctx, symbol, frequency, c.apiKey)
}

// DownloadWithKey is Download with a per-call API key. An empty key falls
// back to the client's key, then to the vendor's "demo" token.
func (c *Client) DownloadWithKey(ctx context.Context, symbol string, frequency types.Frequency, apiKey string) ([]byte, error) {
	params, err := requestParams(frequency)
	if err != nil {
		return nil, err
	}

	if apiKey == "" {
		apiKey = c.apiKey
	}

	requestURL := fmt.Sprintf("%s?%s", c.baseURL, params.Values(symbol, apiKey).Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeRequestFailed, err, "failed to build request for %s", symbol)
	}

	c.log.Info("downloading bars",
		zap.String("symbol", symbol),
		zap.String("function", params.Function),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeRequestFailed, err, "request failed for %s", symbol)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}

	if contentType != CSVContentType {
		return nil, errors.Newf(errors.ErrCodeInvalidContentType, "invalid content type %q for %s", contentType, symbol)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrCodeRequestFailed, "unexpected status %s for %s", resp.Status, symbol)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeRequestFailed, err, "failed to read response body for %s", symbol)
	}

	return body, nil
}

// DownloadToFile fetches the full bar history for one symbol and persists
// it at path. The file content is buffered in memory first, so a prior
// file is either fully replaced or left untouched.
func (c *Client) DownloadToFile(ctx context.Context, symbol string, frequency types.Frequency, path string) error {
	body, err := c.Download(ctx, symbol, frequency)
	if err != nil {
		return err
	}

	return writeFileAtomic(path, body)
}

// DownloadDailyBars downloads the full daily adjusted history for a symbol
// to a CSV file.
func (c *Client) DownloadDailyBars(ctx context.Context, symbol, path string) error {
	return c.DownloadToFile(ctx, symbol, types.FrequencyDay, path)
}

// DownloadWeeklyBars downloads the full weekly adjusted history for a
// symbol to a CSV file.
func (c *Client) DownloadWeeklyBars(ctx context.Context, symbol, path string) error {
	return c.DownloadToFile(ctx, symbol, types.FrequencyWeek, path)
}

// DownloadIntradayBars downloads the full intraday history for a symbol to
// a CSV file. Only hour and minute frequencies are valid.
func (c *Client) DownloadIntradayBars(ctx context.Context, symbol string, frequency types.Frequency, path string) error {
	if !frequency.Intraday() {
		return errors.Newf(errors.ErrCodeUnsupportedFrequency, "%s is not an intraday frequency", frequency)
	}

	return c.DownloadToFile(ctx, symbol, frequency, path)
}
