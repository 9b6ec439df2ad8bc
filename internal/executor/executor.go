// Package executor implements the per-provider HTTP transport layer: one
// ProviderExecutor per upstream wire format, each responsible for building
// an authenticated request, sending it, and handing back either a buffered
// Response or a StreamResult wrapping the upstream SSE body.
package executor

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/proxy"

	"github.com/relaykit/aigateway/internal/apierror"
	"github.com/relaykit/aigateway/internal/router"
	"github.com/relaykit/aigateway/internal/sse"
)

// Request is the shape handed from the dispatcher to an executor.
type Request struct {
	Model           string
	Payload         []byte
	SourceFormat    router.Format
	Stream          bool
	Headers         map[string]string
	OriginalRequest []byte
}

// Response is a buffered non-streaming upstream result.
type Response struct {
	StatusCode int
	Payload    []byte
	Headers    http.Header
}

// StreamResult wraps a lazy sequence of upstream SSE events.
type StreamResult struct {
	StatusCode int
	Headers    http.Header
	Parser     *sse.Parser
	body       io.Closer
}

// Close releases the underlying upstream connection.
func (s *StreamResult) Close() error {
	if s.body != nil {
		return s.body.Close()
	}
	return nil
}

// ProviderExecutor is implemented once per upstream wire format.
type ProviderExecutor interface {
	Identifier() string
	NativeFormat() router.Format
	DefaultBaseURL() string
	Execute(ctx context.Context, auth *router.AuthRecord, req *Request, opts Options) (*Response, error)
	ExecuteStream(ctx context.Context, auth *router.AuthRecord, req *Request, opts Options) (*StreamResult, error)
	SupportedModels(auth *router.AuthRecord) []router.ModelInfo
}

// Options carries the config-derived transport settings an executor
// applies when building its HTTP client and request for one call.
type Options struct {
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	GlobalProxyURL   string
	AnthropicVersion string // default "anthropic-version" header value for Claude
}

// Registry resolves a ProviderExecutor by its target format.
type Registry struct {
	byFormat map[router.Format]ProviderExecutor
}

// NewRegistry builds a Registry with every executor this gateway supports.
func NewRegistry() *Registry {
	r := &Registry{byFormat: make(map[router.Format]ProviderExecutor)}
	r.Register(NewOpenAIExecutor())
	r.Register(NewClaudeExecutor())
	r.Register(NewGeminiExecutor())
	r.Register(NewOpenAICompatExecutor())
	return r
}

func (r *Registry) Register(e ProviderExecutor) {
	r.byFormat[e.NativeFormat()] = e
}

func (r *Registry) Get(format router.Format) (ProviderExecutor, bool) {
	e, ok := r.byFormat[format]
	return e, ok
}

// buildHTTPClient constructs an *http.Client honoring the auth record's
// per-credential proxy override per §4.3 step 1: empty string forces
// direct, unset falls back to globalProxyURL, otherwise http/https/socks5.
func buildHTTPClient(auth *router.AuthRecord, opts Options) (*http.Client, error) {
	effectiveProxy := opts.GlobalProxyURL
	if auth.ProxyURL != "" || auth.DirectProxy {
		effectiveProxy = auth.ProxyURL
	}

	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
	transport := &http.Transport{
		DialContext:     dialer.DialContext,
		TLSClientConfig: &tls.Config{},
	}

	if effectiveProxy != "" {
		parsed, err := url.Parse(effectiveProxy)
		if err != nil {
			return nil, apierror.Internal("invalid proxy-url", err)
		}
		switch parsed.Scheme {
		case "http", "https":
			transport.Proxy = http.ProxyURL(parsed)
		case "socks5", "socks5h":
			socksDialer, err := proxy.FromURL(parsed, proxy.Direct)
			if err != nil {
				return nil, apierror.Internal("failed to build socks5 dialer", err)
			}
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				if contextDialer, ok := socksDialer.(proxy.ContextDialer); ok {
					return contextDialer.DialContext(ctx, network, addr)
				}
				return socksDialer.Dial(network, addr)
			}
		default:
			return nil, apierror.Internal("unsupported proxy scheme: "+parsed.Scheme, nil)
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   opts.RequestTimeout,
	}, nil
}

// mergeHeaders combines auth static headers (lowercased keys) with the
// request's extra headers, with extras taking precedence.
func mergeHeaders(req *http.Request, auth *router.AuthRecord, extra map[string]string) {
	for k, v := range auth.Headers {
		req.Header.Set(strings.ToLower(k), v)
	}
	for k, v := range extra {
		req.Header.Set(strings.ToLower(k), v)
	}
}

func parseRetryAfter(h http.Header) *int {
	raw := h.Get("Retry-After")
	if raw == "" {
		return nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return &secs
	}
	return nil
}

// decodeBody wraps resp.Body with a decompressing reader per its
// Content-Encoding header, mirroring the teacher's handlers/proxy.go idiom.
func decodeBody(resp *http.Response) io.Reader {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return resp.Body
		}
		return gzipReader
	case "br":
		return brotli.NewReader(resp.Body)
	default:
		return resp.Body
	}
}

// doRequest builds an HTTP client for auth, sends the POST, and returns the
// raw *http.Response. Callers are responsible for closing resp.Body.
func doRequest(ctx context.Context, auth *router.AuthRecord, targetURL string, body []byte, extraHeaders map[string]string, opts Options) (*http.Response, error) {
	client, err := buildHTTPClient(auth, opts)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, strings.NewReader(string(body)))
	if err != nil {
		return nil, apierror.Internal("failed to build upstream request", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	mergeHeaders(httpReq, auth, extraHeaders)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, apierror.Network(err)
	}
	return resp, nil
}

// bufferResponse reads and decompresses resp.Body, returning a non-stream
// Response or an Upstream apierror for non-2xx statuses.
func bufferResponse(resp *http.Response) (*Response, error) {
	defer resp.Body.Close()

	payload, err := io.ReadAll(decodeBody(resp))
	if err != nil {
		return nil, apierror.Network(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apierror.Upstream(resp.StatusCode, string(payload), parseRetryAfter(resp.Header))
	}

	return &Response{StatusCode: resp.StatusCode, Payload: payload, Headers: resp.Header}, nil
}

// streamResponse wraps resp.Body in the SSE parser, or returns an Upstream
// apierror immediately for a non-2xx status (no partial body is consumed).
func streamResponse(resp *http.Response) (*StreamResult, error) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		payload, _ := io.ReadAll(decodeBody(resp))
		return nil, apierror.Upstream(resp.StatusCode, string(payload), parseRetryAfter(resp.Header))
	}

	reader := decodeBody(resp)
	return &StreamResult{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Parser:     sse.NewParser(reader),
		body:       resp.Body,
	}, nil
}
