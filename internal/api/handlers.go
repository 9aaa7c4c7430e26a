// Package api serves the note log over HTTP: the legacy title routes plus the
// v1, v2 and v3 JSON APIs, each backed by the same notes.Service.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/kuitang/notes-log/internal/errs"
	"github.com/kuitang/notes-log/internal/notes"
	"github.com/kuitang/notes-log/internal/obs"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Version report profiles for GET /version.
const (
	ReportFeatures = "features"
	ReportDefect   = "defect"
)

// DeploymentFeatures is the static catalog returned by the features profile.
var DeploymentFeatures = []string{"create", "read", "delete", "version-switching"}

// VersionConfig describes the running deployment.
type VersionConfig struct {
	Version     string // e.g. "v3.0.0"
	Environment string // fallback when the hostname names no color
	Report      string // ReportFeatures or ReportDefect
}

// Handler wraps the notes service and provides HTTP handlers
type Handler struct {
	notesService *notes.Service
	version      VersionConfig
	hostname     func() (string, error)
}

// NewHandler creates a new API handler with the given notes service
func NewHandler(notesService *notes.Service, version VersionConfig) *Handler {
	return &Handler{
		notesService: notesService,
		version:      version,
		hostname:     os.Hostname,
	}
}

// RegisterRoutes registers all routes on the given mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /version", h.Version)

	// Legacy title-addressed routes
	mux.HandleFunc("POST /add/{title}", h.AddNote)
	mux.HandleFunc("GET /list", h.ListNotes)
	mux.HandleFunc("DELETE /delete/{title}", h.DeleteNote)

	mux.HandleFunc("GET /api/v1/notes", h.ListV1)
	mux.HandleFunc("POST /api/v1/notes", h.CreateV1)

	mux.HandleFunc("GET /api/v2/notes", h.ListV2)
	mux.HandleFunc("POST /api/v2/notes", h.CreateV2)
	mux.HandleFunc("PATCH /api/v2/notes/{id}", h.UpdateV2)

	mux.HandleFunc("GET /api/v3/notes", h.ListV3)
	mux.HandleFunc("POST /api/v3/notes", h.CreateV3)
	mux.HandleFunc("PUT /api/v3/notes/{id}", h.UpdateV3)
	mux.HandleFunc("DELETE /api/v3/notes/{id}", h.DeleteV3)
	mux.HandleFunc("GET /api/v3/notes/{id}/preview", h.PreviewV3)
}

// MessageResponse is the body of every message and error response.
type MessageResponse struct {
	Message string `json:"message"`
}

// Root handles GET / - liveness message
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusOK, fmt.Sprintf("Notes API %s is running", h.version.Version))
}

// Healthz handles GET /healthz - probe endpoint
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VersionResponse is the body of GET /version. Features and HasKnownBug are
// filled according to the report profile.
type VersionResponse struct {
	Version        string   `json:"version"`
	Environment    string   `json:"environment"`
	Hostname       string   `json:"hostname"`
	DeploymentType string   `json:"deployment_type"`
	Features       []string `json:"features,omitempty"`
	HasKnownBug    *bool    `json:"has_known_bug,omitempty"`
	Status         string   `json:"status"`
}

// Version handles GET /version - blue-green deployment metadata
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	hostname, err := h.hostname()
	if err != nil {
		obs.From(r.Context()).Warn("hostname lookup failed", "error", err)
		hostname = "unknown"
	}

	resp := VersionResponse{
		Version:        h.version.Version,
		Environment:    DeploymentEnvironment(hostname, h.version.Environment),
		Hostname:       hostname,
		DeploymentType: "blue-green",
		Status:         "ready",
	}
	if h.version.Report == ReportDefect {
		buggy := HasKnownBug(h.version.Version)
		resp.HasKnownBug = &buggy
	} else {
		resp.Features = append([]string(nil), DeploymentFeatures...)
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeploymentEnvironment picks "blue" or "green" from the hostname, falling
// back to the configured environment.
func DeploymentEnvironment(hostname, fallback string) string {
	lower := strings.ToLower(hostname)
	switch {
	case strings.Contains(lower, "blue"):
		return "blue"
	case strings.Contains(lower, "green"):
		return "green"
	case fallback != "":
		return fallback
	default:
		return "unknown"
	}
}

// HasKnownBug reports whether a release carries the broken v2 PATCH.
func HasKnownBug(version string) bool {
	return strings.HasPrefix(strings.TrimSpace(version), "v2")
}

// AddNoteRequest is the body of POST /add/{title}.
type AddNoteRequest struct {
	Note string `json:"note"`
}

// AddNote handles POST /add/{title} - legacy create
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	title := r.PathValue("title")

	var req AddNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.notesService.CreateLegacy(title, req.Note); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusCreated, fmt.Sprintf("Note '%s' added successfully", title))
}

// ListNotes handles GET /list - raw records, 404 when the log is empty
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	records, err := h.notesService.ListLegacy()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(records) == 0 {
		writeMessage(w, http.StatusNotFound, "No notes found")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// DeleteNote handles DELETE /delete/{title} - removes every note with the title
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	title := r.PathValue("title")
	if err := h.notesService.DeleteLegacy(title); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, fmt.Sprintf("Note '%s' deleted successfully", title))
}

// ListV1 handles GET /api/v1/notes
func (h *Handler) ListV1(w http.ResponseWriter, r *http.Request) {
	out, err := h.notesService.ListV1()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateV1 handles POST /api/v1/notes
func (h *Handler) CreateV1(w http.ResponseWriter, r *http.Request) {
	var params notes.CreateV1Params
	if err := decodeJSON(w, r, &params); err != nil {
		writeError(w, r, err)
		return
	}
	note, err := h.notesService.CreateV1(params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// ListV2 handles GET /api/v2/notes
func (h *Handler) ListV2(w http.ResponseWriter, r *http.Request) {
	out, err := h.notesService.ListV2()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateV2 handles POST /api/v2/notes
func (h *Handler) CreateV2(w http.ResponseWriter, r *http.Request) {
	var params notes.CreateV2Params
	if err := decodeJSON(w, r, &params); err != nil {
		writeError(w, r, err)
		return
	}
	note, err := h.notesService.CreateV2(params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateV2 handles PATCH /api/v2/notes/{id}. It answers 500 for every
// request; the body is not even required to be valid JSON.
func (h *Handler) UpdateV2(w http.ResponseWriter, r *http.Request) {
	var params notes.UpdateV2Params
	_ = decodeJSON(w, r, &params)
	writeError(w, r, h.notesService.UpdateV2(r.PathValue("id"), params))
}

// ListV3 handles GET /api/v3/notes
func (h *Handler) ListV3(w http.ResponseWriter, r *http.Request) {
	out, err := h.notesService.ListV3()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateV3 handles POST /api/v3/notes
func (h *Handler) CreateV3(w http.ResponseWriter, r *http.Request) {
	var params notes.V3Params
	if err := decodeJSON(w, r, &params); err != nil {
		writeError(w, r, err)
		return
	}
	note, err := h.notesService.CreateV3(params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateV3 handles PUT /api/v3/notes/{id}
func (h *Handler) UpdateV3(w http.ResponseWriter, r *http.Request) {
	pos, ok := positionParam(w, r)
	if !ok {
		return
	}
	// An out-of-range id is not found whatever the body holds.
	if _, err := h.notesService.GetV3(pos); err != nil {
		writeError(w, r, err)
		return
	}
	var params notes.V3Params
	if err := decodeJSON(w, r, &params); err != nil {
		writeError(w, r, err)
		return
	}
	note, err := h.notesService.UpdateV3(pos, params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteV3 handles DELETE /api/v3/notes/{id}
func (h *Handler) DeleteV3(w http.ResponseWriter, r *http.Request) {
	pos, ok := positionParam(w, r)
	if !ok {
		return
	}
	if _, err := h.notesService.DeleteV3(pos); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, fmt.Sprintf("Note %d deleted successfully", pos))
}

// PreviewV3 handles GET /api/v3/notes/{id}/preview - rendered HTML page
func (h *Handler) PreviewV3(w http.ResponseWriter, r *http.Request) {
	pos, ok := positionParam(w, r)
	if !ok {
		return
	}
	page, err := h.notesService.PreviewV3(pos)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(page)
}

// positionParam parses the v3 {id}. A non-integer id does not name a route,
// so it is answered with 404 like any unknown path.
func positionParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.PathValue("id")
	pos, err := strconv.Atoi(raw)
	if err != nil || !isDigits(raw) {
		writeMessage(w, http.StatusNotFound, "Note not found")
		return 0, false
	}
	return pos, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// decodeJSON reads a single JSON object into dst. An empty body leaves dst
// zero; data after the object is rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return errs.Newf(errs.InvalidArgument, "The '%s' field must be a %s", typeErr.Field, typeErr.Type)
		}
		return errs.Wrap(errs.InvalidArgument, "Invalid JSON: "+err.Error(), err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errs.New(errs.InvalidArgument, "Invalid JSON: unexpected data after the JSON object")
	}
	return nil
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Message: message})
}

// writeError maps a service error onto its status and message. Server-side
// failures are logged with their cause, which never reaches the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errs.HTTPStatus(errs.CodeOf(err))
	if status >= http.StatusInternalServerError {
		obs.From(r.Context()).Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeMessage(w, status, errs.MessageOf(err))
}
