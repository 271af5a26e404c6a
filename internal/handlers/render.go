package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/Gerardinho-server/GestionUsuarios/internal/session"
	"github.com/Gerardinho-server/GestionUsuarios/types"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "templates/layout.html"

// Flash is the status banner carried by redirects.
type Flash struct {
	Status  string
	Message string
}

// Class maps the status onto a Bootstrap alert class.
func (f Flash) Class() string {
	switch f.Status {
	case statusSuccess:
		return "success"
	case statusWarning:
		return "warning"
	default:
		return "danger"
	}
}

// FormValues echoes submitted form fields back into a re-rendered form.
// Passwords are never echoed.
type FormValues struct {
	Username string
	Email    string
	Role     string
	IsActive bool
}

// PageData is the view model shared by every page.
type PageData struct {
	Title      string
	Session    session.Session
	Flash      *Flash
	Error      string
	Message    string
	Form       FormValues
	User       types.User
	Users      []types.User
	Roles      []types.Role
	AdminError string
}

// Renderer executes the embedded page templates.
type Renderer struct {
	pages  map[string]*template.Template
	logger zerolog.Logger
}

// NewRenderer parses every page together with the shared layout.
func NewRenderer(logger zerolog.Logger) (*Renderer, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		if file == layoutFile {
			continue
		}
		tmpl, err := template.ParseFS(templateFS, layoutFile, file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		pages[strings.TrimSuffix(path.Base(file), ".html")] = tmpl
	}

	return &Renderer{pages: pages, logger: logger}, nil
}

// Render writes the named page with the given status code.
func (rr *Renderer) Render(w http.ResponseWriter, status int, page string, data PageData) {
	tmpl, ok := rr.pages[page]
	if !ok {
		rr.logger.Error().Str("page", page).Msg("unknown template")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		rr.logger.Error().Err(err).Str("page", page).Msg("render template")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
