package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/kuitang/notes-log/internal/errs"
	"github.com/kuitang/notes-log/internal/notes"
	"github.com/kuitang/notes-log/internal/obs"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Handler implements MCP tool call handling.
type Handler struct {
	notesSvc *notes.Service
}

// NewHandler creates a new MCP handler over the notes service.
func NewHandler(notesSvc *notes.Service) *Handler {
	return &Handler{notesSvc: notesSvc}
}

// toolErrorPayload is the text body of every failed tool result.
type toolErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type createArgs struct {
	Title string `json:"title"`
	Note  string `json:"note"`
}

type updateArgs struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Note  string `json:"note"`
}

type deleteArgs struct {
	ID int `json:"id"`
}

type deleteResult struct {
	Message string       `json:"message"`
	Deleted notes.V3Note `json:"deleted"`
}

// createToolHandler returns a tool handler function for the given tool name.
// Tool failures are reported in the result, never as transport errors.
func (h *Handler) createToolHandler(name string) func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
		result, err := h.HandleToolCall(ctx, name, args)
		if err != nil {
			if errs.CodeOf(err) == errs.Internal {
				obs.From(ctx).Error("mcp tool failed", "tool", name, "error", err)
			}
			return newToolResultError(err), nil, nil
		}
		return result, nil, nil
	}
}

// HandleToolCall routes tool calls to appropriate handlers.
func (h *Handler) HandleToolCall(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error) {
	switch name {
	case ToolNoteList:
		return h.handleNoteList(arguments)
	case ToolNoteCreate:
		return h.handleNoteCreate(arguments)
	case ToolNoteUpdate:
		return h.handleNoteUpdate(arguments)
	case ToolNoteDelete:
		return h.handleNoteDelete(arguments)
	default:
		return nil, errs.Newf(errs.NotFound, "unknown tool: %s", name)
	}
}

// decodeToolArgs converts loosely typed tool arguments into dst. Unknown
// fields and mistyped values are invalid arguments.
func decodeToolArgs(args map[string]any, dst any) error {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "arguments are not valid JSON", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errs.Wrap(errs.InvalidArgument, fmt.Sprintf("invalid arguments: %v", err), err)
	}
	return nil
}

// newToolResultText creates a successful tool result with text content.
func newToolResultText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// newToolResultError creates a tool result carrying the coded error.
// Uncoded errors surface as internal without their cause.
func newToolResultError(err error) *mcp.CallToolResult {
	payload := toolErrorPayload{
		Code:    string(errs.CodeOf(err)),
		Message: errs.MessageOf(err),
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(marshalAny(payload))},
		},
		IsError: true,
	}
}

// marshalAny returns indented JSON, or nil when value cannot be encoded.
func marshalAny(value any) []byte {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil
	}
	return data
}

func marshalToolResult(value any) (*mcp.CallToolResult, error) {
	data := marshalAny(value)
	if data == nil {
		return nil, fmt.Errorf("failed to marshal %T tool result", value)
	}
	return newToolResultText(string(data)), nil
}

func (h *Handler) handleNoteList(args map[string]any) (*mcp.CallToolResult, error) {
	var empty struct{}
	if err := decodeToolArgs(args, &empty); err != nil {
		return nil, err
	}
	list, err := h.notesSvc.ListV3()
	if err != nil {
		return nil, err
	}
	return marshalToolResult(list)
}

func (h *Handler) handleNoteCreate(args map[string]any) (*mcp.CallToolResult, error) {
	var in createArgs
	if err := decodeToolArgs(args, &in); err != nil {
		return nil, err
	}
	note, err := h.notesSvc.CreateV3(notes.V3Params{Title: in.Title, Note: in.Note})
	if err != nil {
		return nil, err
	}
	return marshalToolResult(note)
}

func (h *Handler) handleNoteUpdate(args map[string]any) (*mcp.CallToolResult, error) {
	var in updateArgs
	if err := decodeToolArgs(args, &in); err != nil {
		return nil, err
	}
	note, err := h.notesSvc.UpdateV3(in.ID, notes.V3Params{Title: in.Title, Note: in.Note})
	if err != nil {
		return nil, err
	}
	return marshalToolResult(note)
}

func (h *Handler) handleNoteDelete(args map[string]any) (*mcp.CallToolResult, error) {
	var in deleteArgs
	if err := decodeToolArgs(args, &in); err != nil {
		return nil, err
	}
	deleted, err := h.notesSvc.DeleteV3(in.ID)
	if err != nil {
		return nil, err
	}
	return marshalToolResult(deleteResult{
		Message: fmt.Sprintf("Note %d deleted successfully", in.ID),
		Deleted: deleted,
	})
}
