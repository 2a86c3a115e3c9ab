// Package web is the local review UI: the deck list with rollup counts,
// the card front/back flow with the four graded buttons, and the lazily
// cached image endpoint.
package web

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mzalewski/fiszki/internal/domain"
	"github.com/mzalewski/fiszki/internal/session"
)

//go:embed all:static
var staticFiles embed.FS

//go:embed all:templates
var templateFiles embed.FS

// Server holds the dependencies for the HTTP server.
type Server struct {
	session *session.Session
	images  ImageCache
	router  *http.ServeMux

	templates *template.Template
}

// ImageCache is the lazy image path: the local store first, the catalog
// service on a miss.
type ImageCache interface {
	Load(fileName string) (*domain.Image, error)
}

// NewServer creates and configures a new server.
func NewServer(sess *session.Session, images ImageCache) (*Server, error) {
	tpl, err := template.New("").Funcs(template.FuncMap{
		"formatInterval": FormatInterval,
	}).ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		session:   sess,
		images:    images,
		router:    http.NewServeMux(),
		templates: tpl,
	}
	s.routes()
	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		// The static tree is compiled in; a failure here is a build bug.
		panic(err)
	}
	s.router.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	s.router.HandleFunc("/", s.handleIndex())
	s.router.HandleFunc("/decks", s.handleGetDecks())
	s.router.HandleFunc("/review/next", s.handleGetNextReview())
	s.router.HandleFunc("/review/answer/", s.handleShowAnswer())
	s.router.HandleFunc("/review/", s.handlePostReview())
	s.router.HandleFunc("/images/", s.handleGetImage())
}

// FormatInterval renders a minute count the way the difficulty buttons
// label it: "<10min", "4h", "4d".
func FormatInterval(minutes int64) string {
	if minutes < 60 {
		return fmt.Sprintf("<%dmin", minutes)
	}
	if minutes < 1440 {
		return fmt.Sprintf("%dh", minutes/60)
	}
	return fmt.Sprintf("%dd", minutes/1440)
}

// deckRow is one line of the deck list.
type deckRow struct {
	Deck   domain.Deck
	Counts domain.DeckCounts
	Level  int
}

func (s *Server) deckRows() []deckRow {
	decks := s.session.AllDecks()
	tree := s.session.Decks()

	byID := make(map[int64]domain.Deck, len(decks))
	for _, d := range decks {
		byID[d.DeckID] = d
	}

	var rows []deckRow
	var walk func(id int64, level int)
	walk = func(id int64, level int) {
		rows = append(rows, deckRow{
			Deck:   byID[id],
			Counts: s.session.DeckCounts(id),
			Level:  level,
		})
		for _, child := range tree.Children(id) {
			walk(child, level+1)
		}
	}
	for _, root := range tree.Roots() {
		walk(root, 0)
	}
	return rows
}

// handleIndex renders the main page with the deck list.
func (s *Server) handleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		data := map[string]interface{}{
			"Decks":      s.deckRows(),
			"ActiveDeck": s.session.DeckID(),
			"Settings":   s.session.Settings(),
		}
		if err := s.templates.ExecuteTemplate(w, "index", data); err != nil {
			slog.Error("failed to render index", "error", err)
		}
	}
}

// handleGetDecks re-renders the deck list fragment, swapped in by HTMX
// after every answer so the counts stay current.
func (s *Server) handleGetDecks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := map[string]interface{}{
			"Decks":      s.deckRows(),
			"ActiveDeck": s.session.DeckID(),
		}
		if err := s.templates.ExecuteTemplate(w, "deck_list", data); err != nil {
			slog.Error("failed to render deck list", "error", err)
		}
	}
}

// handleGetNextReview renders the front of the next card, or the
// exhaustion message when nothing is due and nothing is new.
func (s *Server) handleGetNextReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		card := s.session.NextCard()
		if card == nil {
			if err := s.templates.ExecuteTemplate(w, "deck_done", nil); err != nil {
				slog.Error("failed to render exhaustion view", "error", err)
			}
			return
		}
		data := map[string]interface{}{
			"Card":  card,
			"Front": template.HTML(card.FrontContent),
		}
		if err := s.templates.ExecuteTemplate(w, "card_front", data); err != nil {
			slog.Error("failed to render card front", "error", err)
		}
	}
}

// handleShowAnswer renders the back of a card with the four graded
// buttons, each carrying its candidate interval.
func (s *Server) handleShowAnswer() http.HandlerFunc {
	type button struct {
		Label    string
		Interval int64
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/review/answer/"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid card ID", http.StatusBadRequest)
			return
		}
		card, ok := s.session.Card(id)
		if !ok {
			http.NotFound(w, r)
			return
		}
		intervals := s.session.Intervals(card.CardID)
		data := map[string]interface{}{
			"Card":  card,
			"Front": template.HTML(card.FrontContent),
			"Back":  template.HTML(card.BackContent),
			"Buttons": []button{
				{"Jeszcze raz", intervals[0]},
				{"Trudne", intervals[1]},
				{"Dobre", intervals[2]},
				{"Łatwe", intervals[3]},
			},
		}
		if err := s.templates.ExecuteTemplate(w, "card_back", data); err != nil {
			slog.Error("failed to render card back", "error", err)
		}
	}
}

// handlePostReview records a graded answer and renders the next card.
func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/review/"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid card ID", http.StatusBadRequest)
			return
		}
		interval, err := strconv.ParseInt(r.PostFormValue("interval"), 10, 64)
		if err != nil || interval <= 0 {
			http.Error(w, "Invalid interval", http.StatusBadRequest)
			return
		}
		card, ok := s.session.Card(id)
		if !ok {
			http.NotFound(w, r)
			return
		}

		if err := s.session.RecordAnswer(card, interval); err != nil {
			slog.Error("failed to record answer", "card_id", id, "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		// After the answer, show the next card.
		s.handleGetNextReview()(w, r)
	}
}

// handleGetImage serves a card illustration, fetching and caching it on
// first use.
func (s *Server) handleGetImage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fileName := strings.TrimPrefix(r.URL.Path, "/images/")
		if fileName == "" {
			http.NotFound(w, r)
			return
		}
		img, err := s.images.Load(fileName)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			slog.Error("failed to load image", "file_name", fileName, "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", img.MimeType)
		w.Write(img.ImageData)
	}
}
