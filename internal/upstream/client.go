package upstream

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"gemini-adapter-go/internal/config"
	"gemini-adapter-go/internal/constants"
	"gemini-adapter-go/internal/monitoring/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Client performs raw HTTP calls against the generative-language API.
// Per-attempt deadlines come from the caller's context; the http.Client
// itself never times out so streams can run long.
type Client struct {
	base string
	cli  *http.Client
}

func NewClient(cfg *config.Config) *Client {
	tr := &http.Transport{
		Proxy: proxyFunc(cfg.Upstream.ProxyURL),
		DialContext: (&net.Dialer{
			Timeout:   constants.DefaultDialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   constants.DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: constants.DefaultResponseHeaderTimeout,
		ExpectContinueTimeout: constants.DefaultExpectContinueTimeout,
		MaxIdleConns:          constants.MaxIdleConns,
		MaxIdleConnsPerHost:   constants.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Client{base: cfg.Upstream.BaseURL, cli: &http.Client{Transport: tr, Timeout: 0}}
}

func proxyFunc(proxyURL string) func(*http.Request) (*url.URL, error) {
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			return http.ProxyURL(parsed)
		}
	}
	return http.ProxyFromEnvironment
}

// SetBaseURL swaps the upstream base; tests point it at a local server.
func (c *Client) SetBaseURL(base string) { c.base = base }

// Generate sends a non-stream generateContent request.
//
// Caller MUST close resp.Body when resp is non-nil and err is nil.
func (c *Client) Generate(ctx context.Context, model string, payload []byte, secret string) (*http.Response, error) {
	u := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.base, model)
	return c.postJSON(ctx, u, model, payload, secret)
}

// Stream sends a streamGenerateContent request with SSE framing.
//
// Caller MUST close resp.Body when resp is non-nil and err is nil.
func (c *Client) Stream(ctx context.Context, model string, payload []byte, secret string) (*http.Response, error) {
	u := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse", c.base, model)
	return c.postJSON(ctx, u, model, payload, secret)
}

func (c *Client) postJSON(ctx context.Context, u, model string, payload []byte, secret string) (*http.Response, error) {
	ctx, span := tracing.StartSpan(ctx, "upstream", "Upstream.PostJSON",
		trace.WithAttributes(
			attribute.String("http.method", http.MethodPost),
			attribute.String("http.url", u),
			attribute.String("upstream.model", model),
		))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", secret)

	resp, err := c.cli.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, fmt.Sprintf("http_status=%d", resp.StatusCode))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return resp, nil
}
