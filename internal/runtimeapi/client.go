// Package runtimeapi talks to the Lambda runtime interface emulator exposed
// by a validation container.
package runtimeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/avast/retry-go"
)

// InvocationPath is the emulator's function invocation endpoint.
const InvocationPath = "/2015-03-31/functions/function/invocations"

// Client invokes a locally emulated Lambda function over HTTP.
type Client struct {
	host string
	port string
	http *http.Client
}

// New creates a client for the emulator bound to host:port.
func New(host, port string, invokeTimeout time.Duration) *Client {
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	if invokeTimeout <= 0 {
		invokeTimeout = 2 * time.Minute
	}
	return &Client{
		host: host,
		port: port,
		http: &http.Client{Timeout: invokeTimeout},
	}
}

// WaitReady probes the emulator's listener with bounded retries until it
// accepts a TCP connection. This replaces a fixed startup sleep: reachability
// is retried, the invocation itself never is.
func (c *Client) WaitReady(ctx context.Context, attempts int, interval time.Duration) error {
	if attempts <= 0 {
		attempts = 20
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	addr := net.JoinHostPort(c.host, c.port)
	err := retry.Do(
		func() error {
			d := net.Dialer{Timeout: interval}
			conn, err := d.DialContext(ctx, "tcp", addr)
			if err != nil {
				return err
			}
			return conn.Close()
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("runtime not ready at %s after %d attempts: %w", addr, attempts, err)
	}
	return nil
}

// Result captures both layers of invocation status: the transport code the
// emulator returned and any statusCode the handler embedded in its response
// body. The original handler reports failures as 500 inside the body while
// the transport stays 200, so both must be inspected.
type Result struct {
	TransportStatus int
	HandlerStatus   int
	ErrorType       string
	Body            []byte
}

// Success reports whether the invocation counts as a pass.
func (r Result) Success() bool {
	if r.TransportStatus != http.StatusOK {
		return false
	}
	if r.ErrorType != "" {
		return false
	}
	return r.HandlerStatus == 0 || r.HandlerStatus == http.StatusOK
}

// Invoke sends exactly one synthetic invocation carrying payload.
func (c *Client) Invoke(ctx context.Context, payload []byte) (Result, error) {
	url := fmt.Sprintf("http://%s%s", net.JoinHostPort(c.host, c.port), InvocationPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("create invocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("invoke function: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read invocation response: %w", err)
	}

	result := Result{
		TransportStatus: resp.StatusCode,
		Body:            body,
	}
	var handler struct {
		StatusCode int    `json:"statusCode"`
		ErrorType  string `json:"errorType"`
	}
	if err := json.Unmarshal(body, &handler); err == nil {
		result.HandlerStatus = handler.StatusCode
		result.ErrorType = handler.ErrorType
	}
	return result, nil
}
