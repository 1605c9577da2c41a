// Package prompts renders the chat prompts used by translation and quality
// checking. Templates are embedded; rendering is a pure function of the
// template name and its variables.
package prompts

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// Term is vocabulary threaded into subtitle prompts.
type Term struct {
	Japanese    string
	Chinese     string
	Description string
}

// Vars carries every variable any template may reference. Unused fields are
// ignored by templates that do not mention them.
type Vars struct {
	Kind      string
	Text      string
	Terms     []Term
	Actors    []string
	Actresses []string
	Title     string
}

// Render executes the named template.
func Render(name string, vars Vars) (string, error) {
	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, name+".tmpl", vars); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}
