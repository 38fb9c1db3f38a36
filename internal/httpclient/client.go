// Package httpclient provides the outgoing HTTP client used to talk to
// remote instances.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// maxBodySize bounds how much of a remote response is read.
const maxBodySize = 1 << 20

// ClientService hands out configured HTTP clients.
type ClientService struct {
	timeout   time.Duration
	transport http.RoundTripper
}

func NewClientService(timeout time.Duration) *ClientService {
	return &ClientService{timeout: timeout}
}

// WithTransport replaces the round tripper of new clients.
func (s *ClientService) WithTransport(rt http.RoundTripper) *ClientService {
	s.transport = rt
	return s
}

func (s *ClientService) NewClient() *http.Client {
	return &http.Client{
		Timeout:   s.timeout,
		Transport: s.transport,
	}
}

// Response is a fully read remote response.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Helper performs simple form posts and GETs.
type Helper struct {
	client *http.Client
}

func NewHelper(clients *ClientService) *Helper {
	return &Helper{client: clients.NewClient()}
}

// Post sends fields form-encoded to target.
func (h *Helper) Post(ctx context.Context, target string, fields url.Values) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(fields.Encode()))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(req)
}

func (h *Helper) Get(ctx context.Context, target string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	return h.do(req)
}

func (h *Helper) do(req *http.Request) (Response, error) {
	start := time.Now()

	resp, err := h.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("method", req.Method).Str("url", req.URL.Redacted()).Msg("Remote request failed")
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	log.Debug().
		Str("method", req.Method).
		Str("url", req.URL.Redacted()).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Remote request completed")

	return Response{StatusCode: resp.StatusCode, Body: body}, nil
}
