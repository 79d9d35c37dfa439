package gateway

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

	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/domain"
	"github.com/risecheckout/orderengine/pkg/errors"
)

// DefaultTimeout bounds every outbound gateway call
const DefaultTimeout = 15 * time.Second

// Client is a small REST client shared by the gateway adapters
type Client struct {
	gateway    domain.Gateway
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for one gateway. A zero timeout means DefaultTimeout.
func NewClient(gw domain.Gateway, baseURL string, headers map[string]string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		gateway: gw,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		headers: headers,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// DoJSON sends body as JSON and decodes a 2xx response into out
func (c *Client) DoJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, out)
}

// DoForm sends form as application/x-www-form-urlencoded
func (c *Client) DoForm(ctx context.Context, method, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Gateway request failed",
			zap.String("gateway", string(c.gateway)),
			zap.String("path", req.URL.Path),
			zap.Error(err),
		)
		return &errors.GatewayError{Gateway: c.gateway, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errors.GatewayError{Gateway: c.gateway, StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	c.logger.Debug("Gateway request completed",
		zap.String("gateway", string(c.gateway)),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &errors.GatewayError{
			Gateway:    c.gateway,
			StatusCode: resp.StatusCode,
			Message:    truncate(string(body), 512),
		}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &errors.GatewayError{Gateway: c.gateway, StatusCode: resp.StatusCode, Message: "failed to unmarshal response", Err: err}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
