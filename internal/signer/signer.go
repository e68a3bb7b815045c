// Package signer builds and signs outbound transactions through an external
// signing service. Key material never enters this process.
package signer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/zulandar/aocrank/internal/models"
	"github.com/zulandar/aocrank/internal/tags"
)

// BuildRequest describes the transaction to build.
type BuildRequest struct {
	ProcessID string     `json:"processId"`
	Tags      []tags.Tag `json:"tags"`
	Anchor    string     `json:"anchor,omitempty"`
	Data      string     `json:"data"`
}

// Tx is a signed transaction ready for delivery.
type Tx struct {
	ID        string      `json:"id"`
	ProcessID string      `json:"processId"`
	Data      string      `json:"data"`
	Tags      []tags.Tag  `json:"tags"`
	Raw       models.JSON `json:"raw,omitempty"`
}

// Signer builds and signs a transaction.
type Signer interface {
	BuildAndSign(ctx context.Context, req BuildRequest) (Tx, error)
}

// Remote is a Signer that delegates to a signing service over HTTP.
type Remote struct {
	http *resty.Client
}

// NewRemote creates a Remote signer for the service at baseURL.
func NewRemote(baseURL string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Remote{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

// BuildAndSign implements Signer.
func (r *Remote) BuildAndSign(ctx context.Context, req BuildRequest) (Tx, error) {
	if req.ProcessID == "" {
		return Tx{}, fmt.Errorf("signer: build: target process id is required")
	}
	var tx Tx
	resp, err := r.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&tx).
		Post("/sign")
	if err != nil {
		return Tx{}, fmt.Errorf("signer: sign for %s: %w", req.ProcessID, err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return Tx{}, fmt.Errorf("signer: sign for %s: status %d: %s", req.ProcessID, resp.StatusCode(), resp.String())
	}
	if tx.ID == "" {
		return Tx{}, fmt.Errorf("signer: sign for %s: service returned no id", req.ProcessID)
	}
	if tx.ProcessID == "" {
		tx.ProcessID = req.ProcessID
	}
	return tx, nil
}
