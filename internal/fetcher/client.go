// Package fetcher implements the page fetcher against the ledger's
// public query API. The ingestion loop only sees the PageFetcher
// contract; transport retries and wire normalization happen here.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"ledgersync/internal/eventtree"
	"ledgersync/internal/fetcher/retry"
	"ledgersync/internal/models"
)

// Client fetches update pages from the scan API over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	retry   retry.Strategy
}

// NewClient creates a Client. httpClient may carry caller timeouts; nil
// falls back to a default client with a 30s timeout.
func NewClient(baseURL string, httpClient *http.Client, strategy retry.Strategy) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if strategy == nil {
		strategy = retry.NewNoRetryStrategy()
	}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		retry:   strategy,
	}
}

type pageRequest struct {
	AfterMigrationID int64  `json:"after_migration_id"`
	AfterRecordTime  string `json:"after_record_time"`
	PageSize         int    `json:"page_size"`
}

type wireCursor struct {
	AfterMigrationID int64  `json:"after_migration_id"`
	AfterRecordTime  string `json:"after_record_time"`
}

type pageResponse struct {
	Updates []eventtree.WireUpdate `json:"updates"`
	Next    *wireCursor            `json:"next_page_token"`
}

// FetchPage returns one ordered batch of updates after the cursor. An
// empty batch signals exhaustion at the current epoch boundary. Transport
// errors are retried per the configured strategy; exhaustion returns the
// last error and the caller aborts without moving its checkpoint.
func (c *Client) FetchPage(ctx context.Context, after models.Cursor, pageSize int) (models.Page, error) {
	body, err := json.Marshal(pageRequest{
		AfterMigrationID: after.MigrationEpoch,
		AfterRecordTime:  after.RecordTime.UTC().Format(time.RFC3339Nano),
		PageSize:         pageSize,
	})
	if err != nil {
		return models.Page{}, fmt.Errorf("failed to encode page request: %w", err)
	}

	var resp pageResponse
	err = c.retry.Execute(ctx, func() error {
		return c.fetchOnce(ctx, body, &resp)
	})
	if err != nil {
		return models.Page{}, err
	}

	page := models.Page{Updates: make([]*models.Update, 0, len(resp.Updates))}
	for _, wire := range resp.Updates {
		u, anomalies := eventtree.NormalizeUpdate(wire)
		if anomalies > 0 {
			slog.Warn("update normalized with anomalies",
				"update_id", wire.UpdateID,
				"anomalies", anomalies,
			)
		}
		page.Anomalies += anomalies
		page.Updates = append(page.Updates, u)
	}

	if resp.Next != nil {
		cursor, err := resp.Next.toCursor()
		if err != nil {
			// A bad cursor is recoverable: the loop falls back to the
			// position of the last update in the page.
			slog.Warn("unparseable next cursor, falling back to last update position", "error", err)
			page.Anomalies++
		} else {
			page.NextCursor = &cursor
		}
	}

	return page, nil
}

func (c *Client) fetchOnce(ctx context.Context, body []byte, out *pageResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/updates", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("scan request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		// Status code is part of the message so the retry classifier can
		// distinguish throttling/5xx from permanent failures.
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("scan returned status %d: %s", res.StatusCode, string(snippet))
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode page response: %w", err)
	}
	return nil
}

func (w *wireCursor) toCursor() (models.Cursor, error) {
	t, err := time.Parse(time.RFC3339Nano, w.AfterRecordTime)
	if err != nil {
		return models.Cursor{}, fmt.Errorf("bad cursor record time %q: %w", w.AfterRecordTime, err)
	}
	return models.Cursor{MigrationEpoch: w.AfterMigrationID, RecordTime: t.UTC()}, nil
}
