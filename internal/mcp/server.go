// Package mcp exposes the notes over the Model Context Protocol using the
// Streamable HTTP transport.
package mcp

import (
	"bytes"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/kuitang/notes-log/internal/logutil"
	"github.com/kuitang/notes-log/internal/notes"
	"github.com/kuitang/notes-log/internal/obs"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// maxMCPBodyBytes caps a JSON-RPC request body.
	maxMCPBodyBytes = 1 << 20
	// mcpDebugBodyLogLimitBytes caps bodies in debug log lines.
	mcpDebugBodyLogLimitBytes = 8 * 1024
)

// sensitiveHeaders are masked in debug logs.
var sensitiveHeaders = map[string]bool{
	"authorization": true,
	"cookie":        true,
	"set-cookie":    true,
	"x-api-key":     true,
}

// Server wraps the MCP server with notes handling
type Server struct {
	mcpServer   *mcp.Server
	handler     *Handler
	httpHandler http.Handler
}

// NewServer creates an MCP server exposing the note tools.
func NewServer(notesSvc *notes.Service, version string) *Server {
	handler := NewHandler(notesSvc)

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "notes-log",
			Version: version,
		},
		nil,
	)

	for _, tool := range NoteToolDefinitions() {
		mcp.AddTool(mcpServer, tool, handler.createToolHandler(tool.Name))
	}

	// Every call reads the log afresh, so no session state is kept and the
	// initialize handshake is optional.
	httpHandler := mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			JSONResponse: true,
			Stateless:    true,
		},
	)

	return &Server{
		mcpServer:   mcpServer,
		handler:     handler,
		httpHandler: httpHandler,
	}
}

// ServeHTTP implements http.Handler for Streamable HTTP transport.
// POST carries JSON-RPC messages and DELETE ends a session. GET (server
// push streams) is not offered because the server is stateless.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := obs.From(r.Context()).With("pkg", "mcp")

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Mcp-Session-Id, Mcp-Protocol-Version, Last-Event-ID")
	w.Header().Set("Access-Control-Allow-Methods", "POST, DELETE, OPTIONS")

	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Access-Control-Max-Age", "86400")
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost, http.MethodDelete:
	default:
		w.Header().Set("Allow", "POST, DELETE, OPTIONS")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.Body != nil && r.Method == http.MethodPost {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMCPBodyBytes))
		if err != nil {
			logger.Warn("mcp request body rejected", "error", err)
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		logger.Debug("mcp request",
			"method", r.Method,
			"headers", formatMCPHeadersForLog(r.Header),
			"body", logutil.FormatBodyForLog(body, mcpDebugBodyLogLimitBytes))
	}

	rec := &responseCapture{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		if p := recover(); p != nil {
			logger.Error("mcp handler panicked", "panic", p)
			if !rec.wroteHeader {
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}
	}()

	s.httpHandler.ServeHTTP(rec, r)

	if !rec.wroteHeader {
		logger.Error("mcp handler returned without writing response", "method", r.Method)
		http.Error(w, "MCP handler returned without writing response", http.StatusInternalServerError)
		return
	}
	if rec.status >= http.StatusBadRequest {
		logger.Warn("mcp request failed",
			"status", rec.status,
			"response", logutil.FormatBodyForLog(rec.body.Bytes(), mcpDebugBodyLogLimitBytes))
	}
}

// responseCapture records status and a bounded copy of the body.
type responseCapture struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (w *responseCapture) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseCapture) Write(p []byte) (int, error) {
	w.wroteHeader = true
	if remaining := mcpDebugBodyLogLimitBytes - w.body.Len(); remaining > 0 {
		if len(p) < remaining {
			remaining = len(p)
		}
		w.body.Write(p[:remaining])
	}
	return w.ResponseWriter.Write(p)
}

func (w *responseCapture) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// formatMCPHeadersForLog renders headers sorted by name with credentials masked.
func formatMCPHeadersForLog(h http.Header) string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		value := strings.Join(h.Values(k), ",")
		if sensitiveHeaders[strings.ToLower(k)] {
			value = "[REDACTED]"
		}
		parts = append(parts, k+"="+value)
	}
	return strings.Join(parts, " ")
}
