package cursor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/http2"
)

const (
	defaultBaseURL = "https://api2.cursor.sh"
	chatRPCPath    = "/aiserver.v1.ChatService/StreamUnifiedChatWithTools"
	modelsRPCPath  = "/aiserver.v1.AiService/AvailableModels"
)

var (
	duplexOnce sync.Once
	duplexRT   http.RoundTripper
)

// duplexRoundTripper returns the HTTP/2 round tripper used for the
// multiplexed streaming path, or nil when the runtime cannot provide one.
// The probe runs once per process; every Client reads the cached result.
func duplexRoundTripper() http.RoundTripper {
	duplexOnce.Do(func() {
		tr := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			TLSHandshakeTimeout: 10 * time.Second,
			IdleConnTimeout:     90 * time.Second,
		}
		if _, err := http2.ConfigureTransports(tr); err != nil {
			slog.Warn("duplex transport unavailable, chat calls will use the buffered fallback",
				slog.String("error", err.Error()))
			return
		}
		duplexRT = tr
	})
	return duplexRT
}

// Client talks the vendor's binary RPC protocol. One Client serves any
// number of concurrent calls; each call owns its own parser, buffers, and
// header nonces.
type Client struct {
	baseURL        string
	timezone       string
	version        string
	workdir        string
	compress       bool
	duplexDisabled bool
	logger         *slog.Logger

	// httpClient serves the buffered fallback and the JSON endpoints;
	// duplex, when set, serves the streaming path.
	httpClient *http.Client
	duplex     *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the upstream base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient replaces the HTTP client used for the buffered fallback and
// the JSON endpoints.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithDuplexClient replaces the streaming-path HTTP client. Tests use this
// to point the duplex path at a plaintext test server.
func WithDuplexClient(client *http.Client) Option {
	return func(c *Client) {
		c.duplex = client
	}
}

// WithoutDuplex forces every call onto the buffered fallback transport.
func WithoutDuplex() Option {
	return func(c *Client) {
		c.duplexDisabled = true
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimezone overrides the x-cursor-timezone header value.
func WithTimezone(tz string) Option {
	return func(c *Client) {
		c.timezone = tz
	}
}

// WithClientVersion overrides the x-cursor-client-version header value.
func WithClientVersion(version string) Option {
	return func(c *Client) {
		c.version = version
	}
}

// WithWorkdir sets the working directory reported in client metadata.
func WithWorkdir(dir string) Option {
	return func(c *Client) {
		c.workdir = dir
	}
}

// WithCompression controls gzip compression of the outbound frame.
func WithCompression(enabled bool) Option {
	return func(c *Client) {
		c.compress = enabled
	}
}

// NewClient creates a client for the vendor RPC endpoint.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:  defaultBaseURL,
		compress: true,
		logger:   slog.Default(),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.duplex == nil && !c.duplexDisabled {
		if rt := duplexRoundTripper(); rt != nil {
			c.duplex = &http.Client{Transport: rt}
		}
	}
	return c
}

// ExecuteRequest is one chat call ready for encoding.
type ExecuteRequest struct {
	Model       string
	Turns       []Turn
	Tools       []ToolDecl
	Stream      bool
	Credentials Credentials
}

// ExecuteResult reports where the call went and where its events arrive.
// The Events channel is closed when the call reaches a terminal state;
// cancellation closes it without a trailing error event.
type ExecuteResult struct {
	URL     string
	Headers http.Header
	Events  <-chan ParsedEvent
}

// Execute encodes and transmits one chat call. Credential validation
// happens before any network activity. The preferred transport is the
// multiplexed duplex path; when unavailable the buffered fallback is used,
// which collects the whole response before any event is produced.
func (c *Client) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	headers, err := BuildStreamHeaders(req.Credentials)
	if err != nil {
		return nil, err
	}
	if c.timezone != "" {
		headers.Set("x-cursor-timezone", c.timezone)
	}
	if c.version != "" {
		headers.Set("x-cursor-client-version", c.version)
	}

	envelope := EncodeChatRequest(ChatRequest{
		Turns:   req.Turns,
		Model:   req.Model,
		Tools:   req.Tools,
		Workdir: c.workdir,
	})
	framed := WrapFrame(envelope, c.compress)

	url := c.baseURL + chatRPCPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(framed))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header = headers

	transport := c.transport()
	c.logger.Debug("dispatching chat call",
		slog.String("model", req.Model),
		slog.String("transport", transport.name()),
		slog.Int("turns", len(req.Turns)),
		slog.Int("tools", len(req.Tools)),
		slog.Bool("stream", req.Stream))

	events := make(chan ParsedEvent, 16)
	go c.run(ctx, transport, httpReq, events)

	return &ExecuteResult{URL: url, Headers: headers, Events: events}, nil
}

func (c *Client) run(ctx context.Context, transport wireTransport, req *http.Request, events chan<- ParsedEvent) {
	defer close(events)
	parser := NewStreamParser(c.logger)

	send := func(ev ParsedEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	err := transport.do(req, func(chunk []byte) bool {
		for _, ev := range parser.Push(chunk) {
			if !send(ev) {
				return false
			}
		}
		return !parser.Terminated()
	})
	if err == nil || ctx.Err() != nil {
		// cancellation is a clean close, never a trailing error event
		return
	}
	send(ParsedEvent{Kind: EventError, Err: classifyTransportError(err)})
}

func (c *Client) transport() wireTransport {
	if c.duplex != nil {
		return &duplexTransport{client: c.duplex}
	}
	return &unaryTransport{client: c.httpClient}
}

// ModelInfo is one entry from the vendor's model listing.
type ModelInfo struct {
	Name          string `json:"name"`
	DefaultOn     bool   `json:"defaultOn,omitempty"`
	SupportsAgent bool   `json:"supportsAgent,omitempty"`
}

type modelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ListModels fetches the models available to the account from the vendor's
// JSON listing endpoint.
func (c *Client) ListModels(ctx context.Context, creds Credentials) ([]ModelInfo, error) {
	headers, err := BuildJSONHeaders(creds)
	if err != nil {
		return nil, err
	}
	if c.timezone != "" {
		headers.Set("x-cursor-timezone", c.timezone)
	}
	if c.version != "" {
		headers.Set("x-cursor-client-version", c.version)
	}

	url := c.baseURL + modelsRPCPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader("{}"))
	if err != nil {
		return nil, fmt.Errorf("build models request: %w", err)
	}
	httpReq.Header = headers

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(resp)
	}

	var out modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode models response: %w", err)
	}
	return out.Models, nil
}

// wireTransport is how the framed request body is exchanged for response
// bytes. There are two implementations: the multiplexed duplex path that
// hands chunks over as they arrive, and the single-shot fallback that
// collects the whole body first.
type wireTransport interface {
	name() string

	// do posts the request and feeds response bytes to sink. A false return
	// from sink stops the read early.
	do(req *http.Request, sink func([]byte) bool) error
}

type duplexTransport struct {
	client *http.Client
}

func (t *duplexTransport) name() string { return "duplex" }

func (t *duplexTransport) do(req *http.Request, sink func([]byte) bool) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return newStatusError(resp)
	}

	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 && !sink(buf[:n]) {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// unaryTransport is the non-multiplexed fallback. It forces buffered
// behavior: the entire body is read before the first byte is parsed, even
// for nominally streaming calls.
type unaryTransport struct {
	client *http.Client
}

func (t *unaryTransport) name() string { return "buffered" }

func (t *unaryTransport) do(req *http.Request, sink func([]byte) bool) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return newStatusError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	sink(data)
	return nil
}

// StatusError is a non-200 HTTP response from the upstream.
type StatusError struct {
	Code int
	Body string
}

func newStatusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("upstream returned %d: %s", e.Code, e.Body)
}

func (e *StatusError) message() string {
	if e.Body != "" {
		return e.Body
	}
	return http.StatusText(e.Code)
}

func classifyTransportError(err error) *StreamError {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return &StreamError{
			Message:     statusErr.message(),
			StatusCode:  statusErr.Code,
			IsRateLimit: statusErr.Code == http.StatusTooManyRequests,
			Transport:   statusErr.Code >= 500,
		}
	}
	return &StreamError{Message: err.Error(), Transport: true}
}
