package locator

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// ClientConfig configures the HTTP locator.
type ClientConfig struct {
	RouterURL     string
	GatewayURL    string
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
}

// Client is a Locator backed by the router, the schedulers and the gateway.
// Every outbound request waits on a shared rate limiter.
type Client struct {
	http       *resty.Client
	limiter    *rate.Limiter
	routerURL  string
	gatewayURL string
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		limiter:    rate.NewLimiter(limit, burst),
		routerURL:  strings.TrimRight(cfg.RouterURL, "/"),
		gatewayURL: strings.TrimRight(cfg.GatewayURL, "/"),
	}
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.http.R().SetContext(ctx), nil
}

// Locate asks the router which scheduler serves processID.
func (c *Client) Locate(ctx context.Context, processID string) (Location, error) {
	var loc Location
	req, err := c.request(ctx)
	if err != nil {
		return loc, fmt.Errorf("locator: locate %s: %w", processID, err)
	}
	resp, err := req.
		SetQueryParam("process-id", processID).
		SetResult(&loc).
		Get(c.routerURL)
	if err != nil {
		return Location{}, fmt.Errorf("locator: locate %s: %w", processID, err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return Location{}, fmt.Errorf("locator: locate %s: %w", processID, ErrNotFound)
	case resp.IsError():
		return Location{}, fmt.Errorf("locator: locate %s: status %d", processID, resp.StatusCode())
	}
	if loc.URL == "" {
		return Location{}, fmt.Errorf("locator: locate %s: router returned no url", processID)
	}
	return loc, nil
}

// FetchSchedulerProcess reads the record of processID from the scheduler at url.
func (c *Client) FetchSchedulerProcess(ctx context.Context, processID, url string) (SchedulerProcess, error) {
	var proc SchedulerProcess
	if url == "" {
		return proc, fmt.Errorf("locator: fetch %s: scheduler url is required", processID)
	}
	req, err := c.request(ctx)
	if err != nil {
		return proc, fmt.Errorf("locator: fetch %s: %w", processID, err)
	}
	resp, err := req.
		SetResult(&proc).
		Get(strings.TrimRight(url, "/") + "/processes/" + processID)
	if err != nil {
		return SchedulerProcess{}, fmt.Errorf("locator: fetch %s: %w", processID, err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return SchedulerProcess{}, fmt.Errorf("locator: fetch %s: %w", processID, ErrNotFound)
	case resp.IsError():
		return SchedulerProcess{}, fmt.Errorf("locator: fetch %s: status %d", processID, resp.StatusCode())
	}
	if proc.ProcessID == "" {
		proc.ProcessID = processID
	}
	return proc, nil
}

// IsWallet reports whether id has no transaction on the gateway, meaning
// it is a wallet address rather than a process.
func (c *Client) IsWallet(ctx context.Context, id string) (bool, error) {
	req, err := c.request(ctx)
	if err != nil {
		return false, fmt.Errorf("locator: is wallet %s: %w", id, err)
	}
	resp, err := req.Get(c.gatewayURL + "/tx/" + id)
	if err != nil {
		return false, fmt.Errorf("locator: is wallet %s: %w", id, err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return true, nil
	case resp.IsError():
		return false, fmt.Errorf("locator: is wallet %s: status %d", id, resp.StatusCode())
	}
	return false, nil
}
