package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Format is an output encoding for a report.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat maps a query value to a Format. Empty means JSON.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unsupported report format %q", value)
	}
}

// ContentType returns the HTTP content type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "application/json"
	}
}

// Renderer turns documents into bytes.
type Renderer struct {
	Currency Currency
	md       goldmark.Markdown
}

// NewRenderer constructs a Renderer with GitHub-flavoured tables enabled.
func NewRenderer(c Currency) *Renderer {
	return &Renderer{
		Currency: c,
		md:       goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

// Render encodes doc in format f.
func (r *Renderer) Render(doc Document, f Format) ([]byte, error) {
	switch f {
	case FormatMarkdown:
		return []byte(r.Markdown(doc)), nil
	case FormatHTML:
		return r.HTML(doc)
	default:
		return json.Marshal(doc)
	}
}

// Markdown renders doc as a markdown document with one table per section.
func (r *Renderer) Markdown(doc Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escape(doc.Title))
	if doc.Subtitle != "" {
		fmt.Fprintf(&b, "_%s_\n\n", escape(doc.Subtitle))
	}
	for _, sec := range doc.Sections {
		fmt.Fprintf(&b, "## %s\n\n", escape(sec.Title))
		b.WriteString("| Item | Amount |\n|---|---:|\n")
		for _, line := range sec.Lines {
			label, amount := escape(line.Label), r.Currency.Format(line.Amount)
			if line.Kind != KindItem {
				label, amount = "**"+label+"**", "**"+amount+"**"
			}
			fmt.Fprintf(&b, "| %s | %s |\n", label, amount)
		}
		b.WriteString("\n")
	}
	for _, note := range doc.Notes {
		fmt.Fprintf(&b, "> %s\n", escape(note))
	}
	return b.String()
}

// HTML renders doc to an HTML fragment via its markdown form.
func (r *Renderer) HTML(doc Document) ([]byte, error) {
	md := r.md
	if md == nil {
		md = goldmark.New(goldmark.WithExtensions(extension.Table))
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(r.Markdown(doc)), &buf); err != nil {
		return nil, fmt.Errorf("render report html: %w", err)
	}
	return buf.Bytes(), nil
}

var markdownEscaper = strings.NewReplacer("|", "\\|", "*", "\\*", "_", "\\_", "<", "&lt;", ">", "&gt;")

func escape(s string) string {
	return markdownEscaper.Replace(s)
}
