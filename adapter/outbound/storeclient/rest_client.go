package storeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

const maxErrorBody = 64 << 10

// ReviewRequest is the body of the review endpoint of the reference store
type ReviewRequest struct {
	Approve      bool       `json:"approve"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	ExpiresIn    string     `json:"expiresIn,omitempty"` // Go duration, e.g. "30m"
	RejectReason string     `json:"rejectReason,omitempty"`
}

// Client talks to the access request store over HTTP with a bearer token
type Client struct {
	baseURL      string
	requestsPath string
	httpClient   *http.Client
	logger       outbound.Logger

	// overlapping list calls for the same token share one round trip
	lists singleflight.Group
}

func NewClient(baseURL, requestsPath string, timeout time.Duration, logger outbound.Logger) *Client {
	if requestsPath == "" {
		requestsPath = "/api/access-requests"
	}
	if !strings.HasPrefix(requestsPath, "/") {
		requestsPath = "/" + requestsPath
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		requestsPath: requestsPath,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

var _ outbound.AccessRequestStore = (*Client)(nil)

// ListRequests shares one round trip among overlapping callers of the same token. The
// shared call is not tied to any single caller; each caller stops waiting when its own
// ctx is done and the http client timeout bounds the call itself.
func (c *Client) ListRequests(ctx context.Context, token string) ([]*model.AccessRequest, error) {
	ch := c.lists.DoChan(token, func() (any, error) {
		var requests []*model.AccessRequest
		if err := c.do(context.WithoutCancel(ctx), http.MethodGet, c.requestsPath, token, nil, &requests); err != nil {
			return nil, err
		}
		return requests, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, fmt.Errorf("GET %s: %w", c.requestsPath, ctx.Err())
	}
	if res.Err != nil {
		return nil, res.Err
	}

	v, shared := res.Val, res.Shared
	requests := v.([]*model.AccessRequest)
	if !shared {
		return requests, nil
	}

	out := make([]*model.AccessRequest, len(requests))
	for i, r := range requests {
		out[i] = r.Clone()
	}
	return out, nil
}

func (c *Client) CreateRequest(ctx context.Context, token string, request *model.AccessRequest) (*model.AccessRequest, error) {
	var created model.AccessRequest
	if err := c.do(ctx, http.MethodPost, c.requestsPath, token, request, &created); err != nil {
		return nil, err
	}
	if created.RequestID == "" {
		// some stores answer with an empty body
		return request.Clone(), nil
	}
	return &created, nil
}

// ReviewRequest approves or rejects a request; used by the approver CLI
func (c *Client) ReviewRequest(ctx context.Context, token, requestID string, review ReviewRequest) (*model.AccessRequest, error) {
	var reviewed model.AccessRequest
	path := c.requestsPath + "/" + url.PathEscape(requestID) + "/review"
	if err := c.do(ctx, http.MethodPost, path, token, review, &reviewed); err != nil {
		return nil, err
	}
	return &reviewed, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		storeErr := &model.StoreError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
		c.logger.Debug("Store returned an error", "method", method, "path", path, "status", resp.StatusCode, "message", storeErr.Message)
		return storeErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorMessage extracts {"message": "..."} or {"error": "..."} from an error body
func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		return body.Error
	}
	return strings.TrimSpace(string(data))
}
