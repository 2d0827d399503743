package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// Raw HTML in comments is escaped because WithUnsafe is not set.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

var funcMap = template.FuncMap{
	"markdown": renderMarkdown,
	"mean": func(m *float64) string {
		if m == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.2f", *m)
	},
	"percent": func(part, whole int) int {
		if whole <= 0 {
			return 0
		}
		return part * 100 / whole
	},
	"inc": func(i int) int { return i + 1 },
	// ratingAt is the submitted answer to question i, or "" when absent.
	"ratingAt": func(ratings []string, i int) string {
		if i < 0 || i >= len(ratings) {
			return ""
		}
		return ratings[i]
	},
}

type pages struct {
	form   *template.Template
	thanks *template.Template
	report *template.Template
}

func mustParsePages() *pages {
	parse := func(name string) *template.Template {
		return template.Must(template.New("layout.html").Funcs(funcMap).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name))
	}
	return &pages{
		form:   parse("form.html"),
		thanks: parse("thanks.html"),
		report: parse("report.html"),
	}
}

func (s *Server) renderHTML(w http.ResponseWriter, tpl *template.Template, status int, data any) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		s.logger.Error("template render failed", zap.String("template", tpl.Name()), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func wantsJSON(r *http.Request) bool {
	if r.URL.Query().Get("format") == "json" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func isJSONBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
