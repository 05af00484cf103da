package xkcd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"

	"github.com/xkcd-vk/comicposter/internal/apperr"
)

const DefaultBaseURL = "https://xkcd.com"

// Comic is the metadata of a single strip
type Comic struct {
	ID       int    `json:"num"`
	ImageURL string `json:"img"`
	Title    string `json:"title"`
	Caption  string `json:"alt"`
}

// Client reads comics from the xkcd JSON API
type Client struct {
	BaseURL    string
	httpClient *http.Client
	pick       func(n int) int
}

// NewClient creates a new comic client. A nil httpClient falls back to
// http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		pick:       rand.IntN,
	}
}

// WithPicker replaces the random source used by Random. pick must return a
// value in [0, n).
func (c *Client) WithPicker(pick func(n int) int) *Client {
	c.pick = pick
	return c
}

// PickID maps a draw from pick onto [1, latest].
func PickID(latest int, pick func(n int) int) int {
	return pick(latest) + 1
}

// LatestID returns the number of the most recent comic
func (c *Client) LatestID(ctx context.Context) (int, error) {
	comic, err := c.get(ctx, "xkcd latest", c.infoURL(""))
	if err != nil {
		return 0, err
	}
	if comic.ID < 1 {
		return 0, apperr.Protocolf("xkcd latest", "invalid comic number %d", comic.ID)
	}
	return comic.ID, nil
}

// Metadata fetches the comic with the given number
func (c *Client) Metadata(ctx context.Context, id int) (*Comic, error) {
	comic, err := c.get(ctx, "xkcd metadata", c.infoURL(strconv.Itoa(id)))
	if err != nil {
		return nil, err
	}
	if comic.ImageURL == "" {
		return nil, apperr.Protocolf("xkcd metadata", "comic %d has no image", id)
	}
	return comic, nil
}

// Random fetches a uniformly chosen comic from [1, latest]. Earlier picks are
// not excluded.
func (c *Client) Random(ctx context.Context) (*Comic, error) {
	latest, err := c.LatestID(ctx)
	if err != nil {
		return nil, err
	}

	id := PickID(latest, c.pick)
	slog.Debug("Picked random comic", "id", id, "latest", latest)

	return c.Metadata(ctx, id)
}

// infoURL keeps the empty id segment for the latest comic, which the API
// serves at //info.0.json.
func (c *Client) infoURL(id string) string {
	return fmt.Sprintf("%s/%s/info.0.json", c.BaseURL, id)
}

func (c *Client) get(ctx context.Context, op, url string) (*Comic, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Transport(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Transport(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.Status(op, resp.StatusCode, string(body))
	}

	var comic Comic
	if err := json.Unmarshal(body, &comic); err != nil {
		return nil, apperr.Protocolf(op, "failed to decode response: %v", err)
	}

	return &comic, nil
}
