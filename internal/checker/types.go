package checker

import "time"

type State string

const (
	StateStopped      State = "stopped"
	StateStarting     State = "starting"
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateError        State = "error"
)

type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

type Diagnostic struct {
	Range    Range       `json:"range"`
	Severity int         `json:"severity,omitempty"`
	Code     interface{} `json:"code,omitempty"`
	Source   string      `json:"source,omitempty"`
	Message  string      `json:"message"`
}

const (
	SeverityError       = 1
	SeverityWarning     = 2
	SeverityInformation = 3
	SeverityHint        = 4
)

type PublishDiagnosticsParams struct {
	URI         string       `json:"uri"`
	Version     *int         `json:"version,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

type InitializeParams struct {
	ProcessID             int         `json:"processId"`
	RootURI               string      `json:"rootUri"`
	InitializationOptions interface{} `json:"initializationOptions,omitempty"`
	Capabilities          interface{} `json:"capabilities"`
}

type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
}

type ServerCapabilities struct {
	TextDocumentSync   interface{} `json:"textDocumentSync,omitempty"`
	HoverProvider      interface{} `json:"hoverProvider,omitempty"`
	DefinitionProvider interface{} `json:"definitionProvider,omitempty"`
	CompletionProvider interface{} `json:"completionProvider,omitempty"`
}

type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

type VersionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
}

type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

type TextDocumentContentChangeEvent struct {
	Text string `json:"text"`
}

type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type DidChangeConfigurationParams struct {
	Settings interface{} `json:"settings"`
}

type ConfigurationItem struct {
	ScopeURI string `json:"scopeUri,omitempty"`
	Section  string `json:"section,omitempty"`
}

type ConfigurationParams struct {
	Items []ConfigurationItem `json:"items"`
}

type ContentParams struct {
	URI string `json:"uri"`
}

type ContentResult struct {
	Text string `json:"text"`
}

type ClientStats struct {
	State        State     `json:"state"`
	RequestCount int64     `json:"request_count"`
	ErrorCount   int64     `json:"error_count"`
	LastRequest  time.Time `json:"last_request,omitempty"`
}

type ProcessStats struct {
	Command      string        `json:"command"`
	State        State         `json:"state"`
	Circuit      CircuitState  `json:"circuit"`
	RequestCount int64         `json:"request_count"`
	ErrorCount   int64         `json:"error_count"`
	StartedAt    time.Time     `json:"started_at,omitempty"`
	LastRequest  time.Time     `json:"last_request,omitempty"`
	LastErrorMsg string        `json:"last_error_msg,omitempty"`
	Uptime       time.Duration `json:"uptime,omitempty"`
}
