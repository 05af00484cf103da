package vk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/xkcd-vk/comicposter/internal/apperr"
)

const (
	DefaultBaseURL    = "https://api.vk.com"
	DefaultAPIVersion = "5.126"
	// DefaultRateLimit is the per-token request limit of the method API
	DefaultRateLimit = 3.0
)

// Config holds what the client needs to reach the method API
type Config struct {
	BaseURL     string
	Version     string
	Credentials Credentials
	// RateLimit is requests per second; zero or less disables throttling
	RateLimit float64
}

// Client publishes photos to a group wall through the VK method API
type Client struct {
	baseURL    string
	version    string
	creds      Credentials
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new VK client
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultAPIVersion
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		version:    cfg.Version,
		creds:      cfg.Credentials,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/method/%s", c.baseURL, method)
}

func (c *Client) groupID() string {
	return strconv.FormatInt(c.creds.GroupID, 10)
}

// call invokes method and decodes the "response" member into out. GET sends
// params in the query string, POST as a form body.
func (c *Client) call(ctx context.Context, httpMethod, method string, params url.Values, out any) error {
	op := "vk " + method

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limiter: %w", op, err)
	}

	params.Set("access_token", c.creds.AccessToken)
	params.Set("v", c.version)

	var (
		req *http.Request
		err error
	)
	switch httpMethod {
	case http.MethodGet:
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, c.methodURL(method)+"?"+params.Encode(), nil)
	case http.MethodPost:
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	default:
		return fmt.Errorf("%s: unsupported http method %s", op, httpMethod)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}

	slog.Debug("Calling VK method", "method", method, "http_method", httpMethod)

	body, status, err := c.do(op, req)
	if err != nil {
		return err
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)
	if decodeErr == nil {
		if apiErr, ok := parseAPIError(env.Error); ok {
			return &apperr.ProtocolError{Op: op, StatusCode: status, Code: apiErr.Code, Message: apiErr.Message}
		}
	}
	if status < 200 || status > 299 {
		return apperr.Status(op, status, string(body))
	}
	if decodeErr != nil {
		return apperr.Protocolf(op, "failed to decode response: %v", decodeErr)
	}
	if len(env.Response) == 0 {
		return apperr.Protocolf(op, "response is missing")
	}
	if err := json.Unmarshal(env.Response, out); err != nil {
		return apperr.Protocolf(op, "failed to decode response: %v", err)
	}
	return nil
}

// do sends req and reads the full body. Failures before a complete body is
// read are transport errors.
func (c *Client) do(op string, req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error repeats the request URL, which carries the access token
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = stripQuery(urlErr.URL)
		}
		return nil, 0, apperr.Transport(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, apperr.Transport(op, err)
	}
	return body, resp.StatusCode, nil
}

func stripQuery(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
