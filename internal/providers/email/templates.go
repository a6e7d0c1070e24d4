package email

import (
	"bytes"
	"embed"
	"html/template"
	"regexp"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates holds the embedded email templates, parsed once.
type Templates struct {
	set *template.Template
}

func LoadTemplates() (*Templates, error) {
	set, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Templates{set: set}, nil
}

// Render executes the template called name (without the .html suffix).
func (t *Templates) Render(name string, data any) (string, error) {
	tmpl := t.set.Lookup(name + ".html")
	if tmpl == nil {
		return "", ErrTemplateNotFound
	}
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", err
	}
	return body.String(), nil
}

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s{2,}`)
)

// StripHTML turns rendered HTML into a plain-text body.
func StripHTML(html string) string {
	text := tagRe.ReplaceAllString(html, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
