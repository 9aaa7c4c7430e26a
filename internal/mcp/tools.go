package mcp

import "github.com/modelcontextprotocol/go-sdk/mcp"

// Tool names.
const (
	ToolNoteList   = "note_list"
	ToolNoteCreate = "note_create"
	ToolNoteUpdate = "note_update"
	ToolNoteDelete = "note_delete"
)

// NoteToolDefinitions returns the notes MCP tool definitions. Notes are
// addressed by their 1-based position, the same ids the v3 API uses.
func NoteToolDefinitions() []*mcp.Tool {
	return []*mcp.Tool{
		{
			Name:        ToolNoteList,
			Description: "List every note in log order. Each note carries its id (1-based position), title and body. Ids shift when an earlier note is deleted, so list again before updating or deleting.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        ToolNoteCreate,
			Description: "Create a note. title must be 1 to 100 characters and note must be non-empty. Returns the created note with its id.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{
						"type":        "string",
						"description": "The title of the note (1-100 characters)",
					},
					"note": map[string]any{
						"type":        "string",
						"description": "The body of the note",
					},
				},
				"required": []string{"title", "note"},
			},
		},
		{
			Name:        ToolNoteUpdate,
			Description: "Replace the title and body of the note at id. Any other fields the note carried are dropped. Fails with not_found when id is out of range.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "integer",
						"description": "1-based position from note_list",
						"minimum":     1,
					},
					"title": map[string]any{
						"type":        "string",
						"description": "The new title (1-100 characters)",
					},
					"note": map[string]any{
						"type":        "string",
						"description": "The new body",
					},
				},
				"required": []string{"id", "title", "note"},
			},
		},
		{
			Name:        ToolNoteDelete,
			Description: "Delete the note at id. Later notes move up one position. Fails with not_found when id is out of range.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "integer",
						"description": "1-based position from note_list",
						"minimum":     1,
					},
				},
				"required": []string{"id"},
			},
		},
	}
}
