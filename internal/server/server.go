package server

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/EOSync/internal/archive"
	"github.com/TobiSchelling/EOSync/internal/config"
	"github.com/TobiSchelling/EOSync/internal/database"
	"github.com/TobiSchelling/EOSync/internal/ledger"
	"github.com/TobiSchelling/EOSync/internal/record"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

const recentRuns = 20

// Server is the read-only viewer for recorded orders and run history.
type Server struct {
	log     *ledger.Log
	textDir string
	history *database.DB
	logger  logrus.FieldLogger
	pages   map[string]*template.Template
	mux     *http.ServeMux
}

// Document is one row of the CSV log as shown on the index page.
type Document struct {
	Number          string
	Title           string
	PublicationDate string
	HTMLURL         string
	PDFURL          string
	Archived        bool
}

// New creates a new Server. history may be nil when run history is
// disabled.
func New(cfg *config.Config, history *database.DB, logger logrus.FieldLogger) (*Server, error) {
	profile, err := record.ProfileByName(cfg.Sync.Profile)
	if err != nil {
		return nil, err
	}

	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone so {{define "content"}} does not collide.
	pageNames := []string{"index.html", "document.html", "run.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		log:     ledger.NewLog(cfg.CSVPath(), profile),
		textDir: cfg.TextDir(),
		history: history,
		logger:  logger,
		pages:   pages,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on localhost at the given port.
func (s *Server) ListenAndServe(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	s.logger.Infof("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/document/", s.handleDocument)
	s.mux.HandleFunc("/run/", s.handleRun)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	entries, err := s.log.Entries()
	if err != nil {
		s.logger.Errorf("Reading csv log: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Newest appends last; show them first.
	docs := make([]Document, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		docs = append(docs, s.document(entries[i]))
	}

	var runs []database.Run
	if s.history != nil {
		runs, err = s.history.GetRecentRuns(recentRuns)
		if err != nil {
			s.logger.Errorf("Reading run history: %v", err)
		}
	}

	s.render(w, "index.html", map[string]any{
		"Documents":  docs,
		"Runs":       runs,
		"HasHistory": s.history != nil,
	})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	number := strings.TrimPrefix(r.URL.Path, "/document/")
	if number == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if !archive.ValidDocumentNumber(number) {
		http.NotFound(w, r)
		return
	}

	data, err := os.ReadFile(archive.TextPath(s.textDir, number))
	if errors.Is(err, os.ErrNotExist) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.logger.Errorf("Reading archived text for %s: %v", number, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var outcomes []database.RecordOutcome
	if s.history != nil {
		outcomes, _ = s.history.GetOutcomesForDocument(number)
	}

	s.render(w, "document.html", map[string]any{
		"Number":   number,
		"Body":     paragraphs(string(data)),
		"Outcomes": outcomes,
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/run/")
	if id == "" || s.history == nil {
		http.NotFound(w, r)
		return
	}

	run, err := s.history.GetRun(id)
	if err != nil {
		s.logger.Errorf("Reading run %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.NotFound(w, r)
		return
	}
	outcomes, _ := s.history.GetOutcomesForRun(id)

	s.render(w, "run.html", map[string]any{
		"Run":      run,
		"Outcomes": outcomes,
	})
}

func (s *Server) document(entry map[string]string) Document {
	d := Document{
		Number:          entry[record.DocumentNumber],
		Title:           entry[record.Title],
		PublicationDate: entry[record.PublicationDate],
		HTMLURL:         entry["html_url"],
		PDFURL:          entry["pdf_url"],
	}
	if archive.ValidDocumentNumber(d.Number) {
		if _, err := os.Stat(archive.TextPath(s.textDir, d.Number)); err == nil {
			d.Archived = true
		}
	}
	return d
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.logger.Errorf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		s.logger.Errorf("Error rendering template %s: %v", name, err)
	}
}

// paragraphs turns archived lines into markdown paragraphs.
func paragraphs(text string) string {
	return strings.Join(strings.Split(text, "\n"), "\n\n")
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}
