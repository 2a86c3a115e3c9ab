// Package catalog is the narrow read/write contract with the catalog
// service: one full-snapshot pull, one batched progress push and a lazy
// image fetch. Authentication is out of scope here; the client only
// forwards an optional bearer token.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mzalewski/fiszki/internal/domain"
)

// Snapshot is the full per-user catalog pull.
type Snapshot struct {
	Decks    []domain.Deck     `json:"decks"`
	Settings []domain.Settings `json:"settings"`
	Cards    []domain.Card     `json:"cards"`
	Progress []domain.Progress `json:"progress"`
}

// ProgressBatch is one sync upload: every pending progress record plus the
// number of new cards shown since the last confirmed sync.
type ProgressBatch struct {
	Progress      []domain.Progress `json:"progress"`
	NewCardsShown int               `json:"newCardsShown"`
}

// pushResponse is the server's verdict on a batch.
type pushResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Client talks to the catalog service.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a client for the service at baseURL. token may be
// empty.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// PullUserCatalog fetches the user's decks, settings, cards and progress
// in one snapshot.
func (c *Client) PullUserCatalog(ctx context.Context, userID int64) (*Snapshot, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/deck-settings-progress?user_id="+strconv.FormatInt(userID, 10), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to pull catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog pull returned status %d", resp.StatusCode)
	}
	var snapshot Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode catalog snapshot: %w", err)
	}
	return &snapshot, nil
}

// PushProgressBatch uploads one batch. The server upserts each record by
// (user_id, card_id) and adds newCardsShown to the user's per-day counter,
// so resending the same batch after a failure is safe.
func (c *Client) PushProgressBatch(ctx context.Context, batch ProgressBatch) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to encode progress batch: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/sync-progress", body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to push progress batch: %w", err)
	}
	defer resp.Body.Close()

	var verdict pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return fmt.Errorf("failed to decode sync response (status %d): %w", resp.StatusCode, err)
	}
	if !verdict.Success {
		if verdict.Error != "" {
			return fmt.Errorf("sync rejected: %s", verdict.Error)
		}
		return fmt.Errorf("sync rejected with status %d", resp.StatusCode)
	}
	return nil
}

// FetchImage downloads one image by file name. Returns domain.ErrNotFound
// when the service has no such image.
func (c *Client) FetchImage(ctx context.Context, fileName string) (*domain.Image, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/image/"+url.PathEscape(fileName), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image %s: %w", fileName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("image %s: %w", fileName, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}
	var img domain.Image
	if err := json.NewDecoder(resp.Body).Decode(&img); err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", fileName, err)
	}
	return &img, nil
}
