package views

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"admin_dashboard/internal/navigation"
	"admin_dashboard/internal/security"
)

const partialsFile = "partials.html"

var baseFiles = []string{"layout.html", "login.html", partialsFile}

// FuncMap is shared by the layout and every page template.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"csrfField": security.CSRFTokenHTML,
		"csrfMeta":  security.CSRFTokenMeta,
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02 15:04")
		},
		"formatPrice": func(v float64) string {
			return strconv.FormatFloat(v, 'f', 2, 64)
		},
		"permLabel": func(p string) string {
			words := strings.Split(p, "_")
			for i, w := range words {
				if w != "" {
					words[i] = strings.ToUpper(w[:1]) + w[1:]
				}
			}
			return strings.Join(words, " ")
		},
	}
}

// Renderer executes the layout, login and partial templates, and parses
// page templates on demand.
type Renderer struct {
	fsys   fs.FS
	base   *template.Template
	logger *slog.Logger
}

// NewRenderer parses the shared templates in fsys.
func NewRenderer(fsys fs.FS, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	base, err := template.New("base").Funcs(FuncMap()).ParseFS(fsys, baseFiles...)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	logger.Info("templates parsed", "templates", len(base.Templates()))
	return &Renderer{fsys: fsys, base: base, logger: logger}, nil
}

// Render executes the named template into a buffer first, so a template
// error turns into a clean 500 instead of half a page.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := r.base.ExecuteTemplate(&buf, name, data); err != nil {
		r.logger.Error("template render failed", "template", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Fragment renders a shared partial to HTML for embedding in the layout.
func (r *Renderer) Fragment(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.base.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

// Page parses pages/<name>.html together with the partials. The file must
// define a template called "page".
func (r *Renderer) Page(name string) (*Page, error) {
	file := path.Join("pages", name+".html")
	t, err := template.New(name).Funcs(FuncMap()).ParseFS(r.fsys, partialsFile, file)
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", name, err)
	}
	if t.Lookup("page") == nil {
		return nil, fmt.Errorf("parse page %s: %s does not define \"page\"", name, file)
	}
	return &Page{name: name, tmpl: t}, nil
}

// Loader defers parsing a page until navigation first needs it.
func (r *Renderer) Loader(name string) navigation.Loader {
	return func(ctx context.Context) (navigation.Component, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return r.Page(name)
	}
}

// Page is a parsed page template. It satisfies navigation.Component.
type Page struct {
	name string
	tmpl *template.Template
}

func (p *Page) Name() string { return p.name }

func (p *Page) Render(w io.Writer, data any) error {
	return p.tmpl.ExecuteTemplate(w, "page", data)
}

var _ navigation.Component = (*Page)(nil)
