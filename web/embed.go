// Package web holds the page templates and browser assets compiled into
// the server binary.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html static
var files embed.FS

// ParseTemplates parses every page and partial with funcs available.
func ParseTemplates(funcs template.FuncMap) (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(files, "templates/*.html")
}

// Static returns the static asset tree rooted at static/.
func Static() (fs.FS, error) {
	return fs.Sub(files, "static")
}
