// Package render turns view models into HTML through html/template. Every
// page is parsed together with layout.html so it shares one shell.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Notice levels map onto CSS classes of the banner.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notice is a one-line banner above the page content.
type Notice struct {
	Level string
	Text  string
}

func Info(text string) *Notice    { return &Notice{Level: LevelInfo, Text: text} }
func Success(text string) *Notice { return &Notice{Level: LevelSuccess, Text: text} }
func Warning(text string) *Notice { return &Notice{Level: LevelWarning, Text: text} }
func Error(text string) *Notice   { return &Notice{Level: LevelError, Text: text} }

// Page is the data passed to every template.
type Page struct {
	Title  string
	Notice *Notice
	Data   interface{}
}

// Renderer implements echo.Renderer.
type Renderer struct {
	pages map[string]*template.Template
}

var _ echo.Renderer = (*Renderer)(nil)

// New parses the embedded templates. Page names are file names without the
// .html suffix.
func New() (*Renderer, error) {
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, name := range names {
		base := name[len("templates/") : len(name)-len(".html")]
		if base == "layout" {
			continue
		}
		t, err := template.New("layout.html").Funcs(Funcs()).ParseFS(templateFS, "templates/layout.html", name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", base, err)
		}
		r.pages[base] = t
	}
	return r, nil
}

// MustNew is New for program start-up.
func MustNew() *Renderer {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("render: unknown page %q", name)
	}
	return t.ExecuteTemplate(w, "layout.html", data)
}

// Static returns the embedded assets rooted at static/.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Funcs are the helpers available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"date":   formatDate,
		"num":    formatNumber,
		"inc":    func(i int) int { return i + 1 },
		"orDash": orDash,
	}
}

// formatDate renders YYYY-MM-DD; nil or zero dates render as "-".
func formatDate(v interface{}) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02")
	case *time.Time:
		if t == nil || t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02")
	}
	return "-"
}

// formatNumber prints numbers in their shortest form; nil pointers render
// as "-".
func formatNumber(v interface{}) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case *float64:
		if n == nil {
			return "-"
		}
		return strconv.FormatFloat(*n, 'f', -1, 64)
	case int:
		return strconv.Itoa(n)
	case *int:
		if n == nil {
			return "-"
		}
		return strconv.Itoa(*n)
	}
	return "-"
}

func orDash(v interface{}) string {
	switch s := v.(type) {
	case string:
		if s == "" {
			return "-"
		}
		return s
	case *string:
		if s == nil || *s == "" {
			return "-"
		}
		return *s
	}
	return "-"
}
