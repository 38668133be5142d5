package checker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/alucardeht/typeline/internal/vdoc"
)

var (
	ErrNotInitialized = errors.New("checker client not initialized")
	ErrAlreadyClosed  = errors.New("checker client already closed")
)

// ContentMethod is the custom request the checker sends to fetch the text
// behind a typeline: URI. The server only issues it when the initialize
// options announce content-request support.
const ContentMethod = "typeline/content"

// DiagnosticsSink receives publishDiagnostics notifications from the
// checker.
type DiagnosticsSink func(PublishDiagnosticsParams)

type ClientConfig struct {
	InitTimeout    time.Duration
	RequestTimeout time.Duration

	// Settings is the opaque blob passed through initializationOptions and
	// returned for python-section configuration requests.
	Settings Settings

	Middleware  *ConfigMiddleware
	Documents   *vdoc.Provider
	Diagnostics DiagnosticsSink
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		InitTimeout:    30 * time.Second,
		RequestTimeout: 10 * time.Second,
	}
}

type Client struct {
	conn         *jsonrpc2.Conn
	config       ClientConfig
	state        atomic.Value
	capabilities ServerCapabilities
	requestCount int64
	errorCount   int64
	lastRequest  time.Time
	mu           sync.RWMutex
	closedCh     chan struct{}
}

type stdioReadWriteCloser struct {
	reader io.ReadCloser
	writer io.WriteCloser
}

func (s *stdioReadWriteCloser) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *stdioReadWriteCloser) Write(p []byte) (int, error) {
	return s.writer.Write(p)
}

func (s *stdioReadWriteCloser) Close() error {
	rerr := s.reader.Close()
	werr := s.writer.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}

func NewClient(ctx context.Context, stdin io.WriteCloser, stdout io.ReadCloser, config ClientConfig) (*Client, error) {
	rwc := &stdioReadWriteCloser{
		reader: stdout,
		writer: stdin,
	}

	c := &Client{
		config:   config,
		closedCh: make(chan struct{}),
	}
	c.state.Store(StateStarting)

	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	c.conn = jsonrpc2.NewConn(ctx, stream, &clientHandler{client: c})

	return c, nil
}

// clientHandler answers the server-to-client half of the protocol.
type clientHandler struct {
	client *Client
}

func (h *clientHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	switch req.Method {
	case "workspace/configuration":
		h.handleConfiguration(ctx, conn, req)

	case ContentMethod:
		h.handleContent(ctx, conn, req)

	case "textDocument/publishDiagnostics":
		h.handleDiagnostics(req)

	case "window/logMessage", "window/showMessage", "$/progress":
		// Absorbed; the checker's own log stream is already on stderr.

	default:
		if !req.Notif {
			conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
				Code:    jsonrpc2.CodeMethodNotFound,
				Message: fmt.Sprintf("method not supported: %s", req.Method),
			})
		}
	}
}

func (h *clientHandler) handleConfiguration(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params ConfigurationParams
	if req.Params != nil {
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
				Code:    jsonrpc2.CodeInvalidParams,
				Message: err.Error(),
			})
			return
		}
	}

	middleware := h.client.config.Middleware
	if middleware == nil {
		middleware = &ConfigMiddleware{}
	}

	conn.Reply(ctx, req.ID, middleware.Configuration(params.Items))
}

func (h *clientHandler) handleContent(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params ContentParams
	if req.Params != nil {
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
				Code:    jsonrpc2.CodeInvalidParams,
				Message: err.Error(),
			})
			return
		}
	}

	provider := h.client.config.Documents
	if provider == nil {
		provider = vdoc.NewProvider()
	}

	text, err := provider.Content(params.URI)
	if err != nil {
		conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeInvalidParams,
			Message: err.Error(),
		})
		return
	}

	conn.Reply(ctx, req.ID, ContentResult{Text: text})
}

func (h *clientHandler) handleDiagnostics(req *jsonrpc2.Request) {
	if h.client.config.Diagnostics == nil || req.Params == nil {
		return
	}

	var params PublishDiagnosticsParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		return
	}

	h.client.config.Diagnostics(params)
}

func (c *Client) Initialize(ctx context.Context, rootURI string) error {
	c.mu.Lock()
	if c.getState() != StateStarting {
		c.mu.Unlock()
		return fmt.Errorf("cannot initialize: client in state %s", c.getState())
	}
	c.state.Store(StateInitializing)
	c.mu.Unlock()

	initCtx, cancel := context.WithTimeout(ctx, c.config.InitTimeout)
	defer cancel()

	options := map[string]interface{}{
		// Tells the checker it may hand us typeline: URIs and request
		// their content back.
		"contentRequests": true,
	}
	if c.config.Settings != nil {
		options["settings"] = c.config.Settings
	}

	params := InitializeParams{
		ProcessID:             os.Getpid(),
		RootURI:               rootURI,
		InitializationOptions: options,
		Capabilities: map[string]interface{}{
			"workspace": map[string]interface{}{
				"configuration":          true,
				"didChangeConfiguration": map[string]interface{}{},
			},
			"textDocument": map[string]interface{}{
				"publishDiagnostics": map[string]interface{}{},
			},
		},
	}

	var result InitializeResult
	if err := c.conn.Call(initCtx, "initialize", params, &result); err != nil {
		c.state.Store(StateError)
		return fmt.Errorf("initialize failed: %w", err)
	}

	c.mu.Lock()
	c.capabilities = result.Capabilities
	c.mu.Unlock()

	if err := c.conn.Notify(initCtx, "initialized", struct{}{}); err != nil {
		c.state.Store(StateError)
		return fmt.Errorf("initialized notification failed: %w", err)
	}

	c.state.Store(StateReady)
	return nil
}

func (c *Client) Shutdown(ctx context.Context) error {
	if !c.IsReady() {
		return ErrNotInitialized
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var result interface{}
	if err := c.conn.Call(timeoutCtx, "shutdown", nil, &result); err != nil {
		c.recordError()
		return fmt.Errorf("shutdown failed: %w", err)
	}

	if err := c.conn.Notify(ctx, "exit", nil); err != nil {
		return fmt.Errorf("exit notification failed: %w", err)
	}

	return nil
}

func (c *Client) DidOpen(ctx context.Context, uri, text string, version int) error {
	if !c.IsReady() {
		return ErrNotInitialized
	}
	c.recordRequest()

	return c.conn.Notify(ctx, "textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        uri,
			LanguageID: "python",
			Version:    version,
			Text:       text,
		},
	})
}

func (c *Client) DidChange(ctx context.Context, uri, text string, version int) error {
	if !c.IsReady() {
		return ErrNotInitialized
	}
	c.recordRequest()

	return c.conn.Notify(ctx, "textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument:   VersionedTextDocumentIdentifier{URI: uri, Version: version},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: text}},
	})
}

func (c *Client) DidClose(ctx context.Context, uri string) error {
	if !c.IsReady() {
		return ErrNotInitialized
	}
	c.recordRequest()

	return c.conn.Notify(ctx, "textDocument/didClose", DidCloseTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	})
}

// DidChangeConfiguration relays a settings change to the server, which
// typically responds with a fresh workspace/configuration round trip.
func (c *Client) DidChangeConfiguration(ctx context.Context) error {
	if !c.IsReady() {
		return ErrNotInitialized
	}
	c.recordRequest()

	return c.conn.Notify(ctx, "workspace/didChangeConfiguration", DidChangeConfigurationParams{
		Settings: c.config.Settings,
	})
}

func (c *Client) Close() error {
	select {
	case <-c.closedCh:
		return ErrAlreadyClosed
	default:
		close(c.closedCh)
	}

	c.state.Store(StateStopped)
	return c.conn.Close()
}

func (c *Client) IsReady() bool {
	return c.getState() == StateReady
}

func (c *Client) getState() State {
	return c.state.Load().(State)
}

func (c *Client) Capabilities() ServerCapabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capabilities
}

func (c *Client) Stats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ClientStats{
		State:        c.getState(),
		RequestCount: atomic.LoadInt64(&c.requestCount),
		ErrorCount:   atomic.LoadInt64(&c.errorCount),
		LastRequest:  c.lastRequest,
	}
}

func (c *Client) recordRequest() {
	atomic.AddInt64(&c.requestCount, 1)
	c.mu.Lock()
	c.lastRequest = time.Now()
	c.mu.Unlock()
}

func (c *Client) recordError() {
	atomic.AddInt64(&c.errorCount, 1)
}
