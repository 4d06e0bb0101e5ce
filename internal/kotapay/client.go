package kotapay

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/config"
)

const reportDateFormat = "2006-01-02"

// ReportSource provides the vendor reports the reconciler matches against.
// Implementations may fail per call; callers treat failures as reduced
// information, never as reduced safety.
type ReportSource interface {
	GetReturnsReport(since time.Time) (*ReturnsReport, error)
	GetProcessedBatches(start, end time.Time) (*BatchSummaryReport, error)
	GetBatchDetail(batchID string) (*BatchDetailReport, error)
	GetCorrectionsReport(since time.Time) (*CorrectionsReport, error)
}

// Client is a thin HTTP client for the KotaPay reporting API.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	log        *logrus.Logger
}

func NewClient(cfg config.KotaPayConfig, log *logrus.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

func (c *Client) GetReturnsReport(since time.Time) (*ReturnsReport, error) {
	raw, err := c.fetchReport("/reports/returns", url.Values{
		"since": {since.Format(reportDateFormat)},
	})
	if err != nil {
		return nil, err
	}
	return &ReturnsReport{
		Rows: decodeRows[ReturnRow](raw.Rows, "returns", c.log),
	}, nil
}

func (c *Client) GetProcessedBatches(start, end time.Time) (*BatchSummaryReport, error) {
	raw, err := c.fetchReport("/reports/processed-batches", url.Values{
		"start": {start.Format(reportDateFormat)},
		"end":   {end.Format(reportDateFormat)},
	})
	if err != nil {
		return nil, err
	}
	return &BatchSummaryReport{
		Rows: decodeRows[BatchSummaryRow](raw.Rows, "processed-batches", c.log),
	}, nil
}

func (c *Client) GetBatchDetail(batchID string) (*BatchDetailReport, error) {
	raw, err := c.fetchReport("/reports/batches/"+url.PathEscape(batchID), nil)
	if err != nil {
		return nil, err
	}
	return &BatchDetailReport{
		Rows: decodeRows[BatchEntryRow](raw.Rows, "batch-detail", c.log),
	}, nil
}

func (c *Client) GetCorrectionsReport(since time.Time) (*CorrectionsReport, error) {
	raw, err := c.fetchReport("/reports/corrections", url.Values{
		"since": {since.Format(reportDateFormat)},
	})
	if err != nil {
		return nil, err
	}
	return &CorrectionsReport{
		Rows:     decodeRows[CorrectionRow](raw.Rows, "corrections", c.log),
		RowCount: raw.RowCount,
	}, nil
}

func (c *Client) fetchReport(path string, query url.Values) (*rawReport, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building report request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("X-Api-Secret", c.apiSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching report %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("report %s returned status %d", path, resp.StatusCode)
	}

	var raw rawReport
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding report %s: %w", path, err)
	}
	return &raw, nil
}
