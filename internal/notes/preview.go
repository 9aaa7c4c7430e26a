package notes

import "strings"

// ContentPreview returns the first maxLines lines of content, appending "..."
// on a new line if truncated.
func ContentPreview(content string, maxLines int) string {
	if content == "" || maxLines <= 0 {
		return content
	}
	found := 0
	for i := 0; i < len(content); i++ {
		if content[i] != '\n' {
			continue
		}
		found++
		if found == maxLines {
			return content[:i] + "\n..."
		}
	}
	return content
}

// CountLines returns the number of lines in content. An empty string has 0 lines.
func CountLines(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n") + 1
}
