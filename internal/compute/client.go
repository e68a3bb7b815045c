// Package compute reads evaluation results from a compute unit.
package compute

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/zulandar/aocrank/internal/models"
)

// Output is the outbox of one evaluated message.
type Output struct {
	Messages []models.JSON `json:"Messages"`
	Spawns   []models.JSON `json:"Spawns"`
	Error    models.JSON  `json:"Error,omitempty"`
}

// Edge is one page entry: an evaluation output and the cursor that
// resumes reading after it.
type Edge struct {
	Cursor string `json:"cursor"`
	Node   Output `json:"node"`
}

// Page is a page of results in ascending order.
type Page struct {
	Edges []Edge `json:"edges"`
}

// Client is a compute unit HTTP client.
type Client struct {
	http *resty.Client
}

// NewClient creates a Client for the compute unit at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

// Results returns up to limit results of processID evaluated after the
// from cursor. An empty from reads from the beginning.
func (c *Client) Results(ctx context.Context, processID, from string, limit int) (Page, error) {
	var page Page
	if processID == "" {
		return page, fmt.Errorf("compute: results: process id is required")
	}
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("sort", "ASC").
		SetResult(&page)
	if from != "" {
		req.SetQueryParam("from", from)
	}
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}
	resp, err := req.Get("/results/" + processID)
	if err != nil {
		return Page{}, fmt.Errorf("compute: results %s: %w", processID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Page{}, fmt.Errorf("compute: results %s: status %d: %s", processID, resp.StatusCode(), resp.String())
	}
	return page, nil
}
