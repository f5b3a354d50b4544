package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"attendance-dashboard-backend/config"
)

// Row models one row of the upstream attendance table, keyed by its column names.
type Row struct {
	ID      int64  `json:"id"`
	EmpID   string `json:"empid"`
	EmpName string `json:"empname"`
	Date    string `json:"Date"`
	Time    string `json:"Time"`
}

// Client talks to a PostgREST-style table endpoint.
type Client struct {
	baseURL string
	table   string
	apiKey  string
	headers map[string]string
	http    *http.Client
}

// NewClient creates an upstream client from the source configuration.
func NewClient(cfg config.SourceConfig) *Client {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Source client will not use a proxy.", cfg.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		table:   cfg.Table,
		apiKey:  cfg.APIKey,
		headers: cfg.Headers,
		http: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
	}
}

func (c *Client) tableURL(query url.Values) string {
	return fmt.Sprintf("%s/rest/v1/%s?%s", c.baseURL, url.PathEscape(c.table), query.Encode())
}

func (c *Client) newRequest(ctx context.Context, method, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	return req, nil
}

// FetchPage returns up to limit rows starting at offset, newest ID first.
func (c *Client) FetchPage(ctx context.Context, offset, limit int) ([]Row, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("order", "id.desc")
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))

	req, err := c.newRequest(ctx, http.MethodGet, c.tableURL(query))
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var rows []Row
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rows: %w", err)
	}
	return rows, nil
}

// DeleteAll removes every row of the upstream table. PostgREST refuses an unfiltered
// DELETE, so the filter id <> 0 stands in for "all rows".
func (c *Client) DeleteAll(ctx context.Context) error {
	query := url.Values{}
	query.Set("id", "neq.0")

	req, err := c.newRequest(ctx, http.MethodDelete, c.tableURL(query))
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upstream delete failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
