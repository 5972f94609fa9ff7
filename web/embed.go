// Package web embeds the HTML templates and static assets.
package web

import (
	"embed"
	"html/template"
	"io/fs"

	"expenses/internal/core"
)

// TemplatesFS embeds HTML templates for server-side rendering.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds static assets (css).
//
//go:embed static/*
var StaticFS embed.FS

// Funcs are the helpers available to every template.
var Funcs = template.FuncMap{
	"amount": core.FormatAmount,
}

// ParseTemplates parses every embedded template.
func ParseTemplates() (*template.Template, error) {
	return template.New("").Funcs(Funcs).ParseFS(TemplatesFS, "templates/*.html")
}

// Static returns the static asset tree rooted at its directory.
func Static() (fs.FS, error) {
	return fs.Sub(StaticFS, "static")
}
