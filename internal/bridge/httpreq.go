package bridge

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// HTTPRequester resolves the same abstract targets as the proxied bridge,
// but directly over HTTP. It exists for host-side runs (the simulator, or a
// board with its own network) where no companion device sits in between.
// The endpoint must speak the wire game-message schema in its bodies and
// stream lines.
type HTTPRequester struct {
	base   string
	token  string
	client *fasthttp.Client
	stream *fasthttp.Client
	logger *zap.Logger
}

type HTTPOption func(*HTTPRequester)

func WithToken(token string) HTTPOption {
	return func(r *HTTPRequester) { r.token = token }
}

func WithHTTPLogger(logger *zap.Logger) HTTPOption {
	return func(r *HTTPRequester) { r.logger = logger }
}

func NewHTTPRequester(baseURL string, opts ...HTTPOption) *HTTPRequester {
	r := &HTTPRequester{
		base: strings.TrimRight(baseURL, "/"),
		client: &fasthttp.Client{
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxConnsPerHost: 8,
		},
		// Separate client: stream responses never finish, so the body
		// must be consumed incrementally.
		stream: &fasthttp.Client{
			WriteTimeout:       10 * time.Second,
			MaxConnsPerHost:    8,
			StreamResponseBody: true,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *HTTPRequester) Get(ctx context.Context, target string) (string, error) {
	return r.do(ctx, fasthttp.MethodGet, target, "")
}

func (r *HTTPRequester) Post(ctx context.Context, target, body string) (string, error) {
	return r.do(ctx, fasthttp.MethodPost, target, body)
}

func (r *HTTPRequester) do(ctx context.Context, method, target, body string) (string, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(r.url(target))
	req.Header.SetContentType("application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if body != "" {
		req.SetBodyString(body)
	}

	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := r.client.DoDeadline(req, resp, deadline); err != nil {
		return "", fmt.Errorf("%s %s: %w", method, target, err)
	}
	if code := resp.StatusCode(); code < 200 || code > 299 {
		return "", fmt.Errorf("%s %s: status %d", method, target, code)
	}
	return string(resp.Body()), nil
}

func (r *HTTPRequester) Stream(ctx context.Context, target string, out chan<- string) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(r.url(target))
	req.Header.Set("Accept", "application/x-ndjson")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	if err := r.stream.Do(req, resp); err != nil {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
		close(out)
		return fmt.Errorf("stream %s: %w", target, err)
	}
	if code := resp.StatusCode(); code < 200 || code > 299 {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
		close(out)
		return fmt.Errorf("stream %s: status %d", target, code)
	}

	go func() {
		defer close(out)
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		scanner := bufio.NewScanner(resp.BodyStream())
		scanner.Buffer(make([]byte, 0, 4096), 1<<20)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case out <- line:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			r.logger.Debug("http_stream_ended", zap.String("target", target), zap.Error(err))
		}
	}()
	return nil
}

func (r *HTTPRequester) url(target string) string {
	return r.base + "/" + strings.TrimLeft(target, "/")
}
