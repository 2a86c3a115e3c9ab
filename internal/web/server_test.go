package web

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/mzalewski/fiszki/internal/domain"
	"github.com/mzalewski/fiszki/internal/session"
	"github.com/mzalewski/fiszki/internal/storage"
)

type fakeImages struct {
	images map[string]*domain.Image
}

func (f *fakeImages) Load(fileName string) (*domain.Image, error) {
	img, ok := f.images[fileName]
	if !ok {
		return nil, fmt.Errorf("image %s: %w", fileName, domain.ErrNotFound)
	}
	return img, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.UpsertDecks([]domain.Deck{{DeckID: 1, Name: "historia"}}); err != nil {
		t.Fatalf("UpsertDecks: %v", err)
	}
	if err := db.UpsertCards([]domain.Card{
		{CardID: 10, DeckID: 1, FrontContent: "<p>Rok bitwy pod Grunwaldem?</p>", BackContent: "<p>1410</p>"},
	}); err != nil {
		t.Fatalf("UpsertCards: %v", err)
	}

	sess, err := session.Open(db, 7, 1)
	if err != nil {
		t.Fatalf("Open session: %v", err)
	}

	images := &fakeImages{images: map[string]*domain.Image{
		"mapa.png": {FileName: "mapa.png", MimeType: "image/png", ImageData: []byte{1, 2, 3}},
	}}
	srv, err := NewServer(sess, images)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestIndexRendersDeckList(t *testing.T) {
	srv := newTestServer(t)
	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "historia") {
		t.Errorf("index missing deck name: %s", body)
	}
}

func TestReviewFlow(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/review/next")
	if rec.Code != http.StatusOK {
		t.Fatalf("next status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Grunwaldem") {
		t.Errorf("card front missing content: %s", rec.Body.String())
	}

	rec = get(t, srv, "/review/answer/10")
	if rec.Code != http.StatusOK {
		t.Fatalf("answer status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "1410") {
		t.Errorf("card back missing content: %s", body)
	}
	// A new card offers the first interval tier.
	if !strings.Contains(body, `value="5760"`) || !strings.Contains(body, "4d") {
		t.Errorf("card back missing interval buttons: %s", body)
	}

	form := url.Values{"interval": {"10"}}
	req := httptest.NewRequest(http.MethodPost, "/review/10", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("post status = %d", rec.Code)
	}
	// The only card is now scheduled 10 minutes out, inside the due
	// horizon, so it comes straight back.
	if !strings.Contains(rec.Body.String(), "Grunwaldem") {
		t.Errorf("expected the card to return, got: %s", rec.Body.String())
	}
}

func TestExhaustionMessage(t *testing.T) {
	srv := newTestServer(t)

	form := url.Values{"interval": {"5760"}}
	req := httptest.NewRequest(http.MethodPost, "/review/10", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("post status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Wszystkie karty") {
		t.Errorf("expected exhaustion message, got: %s", rec.Body.String())
	}
}

func TestPostReviewValidation(t *testing.T) {
	srv := newTestServer(t)

	t.Run("bad interval", func(t *testing.T) {
		form := url.Values{"interval": {"zero"}}
		req := httptest.NewRequest(http.MethodPost, "/review/10", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, expected 400", rec.Code)
		}
	})

	t.Run("unknown card", func(t *testing.T) {
		form := url.Values{"interval": {"10"}}
		req := httptest.NewRequest(http.MethodPost, "/review/999", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, expected 404", rec.Code)
		}
	})

	t.Run("get not allowed", func(t *testing.T) {
		rec := get(t, srv, "/review/10")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, expected 405", rec.Code)
		}
	})
}

func TestImageEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/images/mapa.png")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("content type = %s", got)
	}
	if rec.Body.Len() != 3 {
		t.Errorf("body length = %d", rec.Body.Len())
	}

	rec = get(t, srv, "/images/missing.png")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing image status = %d", rec.Code)
	}
}

func TestFormatInterval(t *testing.T) {
	tests := []struct {
		minutes  int64
		expected string
	}{
		{1, "<1min"},
		{10, "<10min"},
		{60, "1h"},
		{1439, "23h"},
		{1440, "1d"},
		{5760, "4d"},
		{43200, "30d"},
	}
	for _, tt := range tests {
		if got := FormatInterval(tt.minutes); got != tt.expected {
			t.Errorf("FormatInterval(%d) = %s, expected %s", tt.minutes, got, tt.expected)
		}
	}
}
