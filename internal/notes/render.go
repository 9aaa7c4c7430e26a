package notes

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

const previewTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
</head>
<body>
    <article>
        <h1>{{.Title}}</h1>
        {{.Content}}
    </article>
</body>
</html>`

var previewTmpl = template.Must(template.New("preview").Parse(previewTemplate))

var previewPolicy = bluemonday.UGCPolicy()

type previewData struct {
	Title   string
	Content template.HTML
}

// RenderMarkdown converts a note body to sanitized HTML. Raw HTML in the body
// is stripped by the UGC policy.
func RenderMarkdown(body string) []byte {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(body))

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank,
	})
	return previewPolicy.SanitizeBytes(markdown.Render(doc, renderer))
}

// RenderPreview renders a complete HTML page for one note. The title is
// escaped by html/template.
func RenderPreview(title, body string) ([]byte, error) {
	var buf bytes.Buffer
	err := previewTmpl.Execute(&buf, previewData{
		Title:   title,
		Content: template.HTML(RenderMarkdown(body)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render preview: %w", err)
	}
	return buf.Bytes(), nil
}
