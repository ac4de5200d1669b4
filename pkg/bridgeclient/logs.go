package bridgeclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/unityctl/unityctl/internal/bridge"
	"github.com/unityctl/unityctl/internal/history"
)

// TailLogs fetches buffered log entries. lines == 0 returns everything the
// buffer holds (above the watermark unless full is set).
func (c *Client) TailLogs(ctx context.Context, lines int, source string, full bool) (*bridge.TailResult, error) {
	q := url.Values{}
	q.Set("lines", strconv.Itoa(lines))
	if source != "" {
		q.Set("source", source)
	}
	if full {
		q.Set("full", "true")
	}
	var res bridge.TailResult
	if err := c.getJSON(ctx, "/logs/tail?"+q.Encode(), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ClearLogs advances the watermark and returns its new value.
func (c *Client) ClearLogs(ctx context.Context, reason string) (uint64, error) {
	q := url.Values{}
	if reason != "" {
		q.Set("reason", reason)
	}
	var res struct {
		Success   bool   `json:"success"`
		Watermark uint64 `json:"watermark"`
	}
	if err := c.postJSON(ctx, "/logs/clear?"+q.Encode(), &res); err != nil {
		return 0, err
	}
	return res.Watermark, nil
}

// StreamLogs follows the SSE feed, invoking fn for each entry until fn
// returns an error, the stream ends, or ctx is cancelled.
func (c *Client) StreamLogs(ctx context.Context, source string, fn func(bridge.LogEntry) error) error {
	q := url.Values{}
	if source != "" {
		q.Set("source", source)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/logs/stream?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	// Streaming: no client-side timeout, lifetime is ctx's.
	client := &http.Client{Transport: c.http.Transport}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET /logs/stream: http %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var entry bridge.LogEntry
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &entry); err != nil {
			continue
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// History fetches the most recent completed RPC journal entries.
func (c *Client) History(ctx context.Context, limit int) ([]history.Entry, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var res struct {
		Entries []history.Entry `json:"entries"`
	}
	if err := c.getJSON(ctx, "/history?"+q.Encode(), &res); err != nil {
		return nil, err
	}
	return res.Entries, nil
}
