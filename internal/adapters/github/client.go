// internal/adapters/github/client.go
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"review_board/internal/adapters/observability"
	"review_board/internal/domain"
)

const (
	apiVersion   = "2022-11-28"
	acceptHeader = "application/vnd.github+json"

	// maxDetail bounds the diagnostic carried into a StoreError.
	maxDetail = 300
)

type Config struct {
	BaseURL string // defaults to https://api.github.com
	Owner   string
	Repo    string
	Branch  string // defaults to main
	Path    string // defaults to data/reviews.json
	Token   string
	RPS     int
}

// Client reads and writes one JSON document through the GitHub Contents API,
// using the file's blob SHA as the version token for conditional writes.
type Client struct {
	base   string
	hc     *http.Client
	owner  string
	repo   string
	branch string
	path   string
	token  string
	rl     *rate.Limiter
}

func New(cfg Config) (*Client, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("store owner and repo are required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("store token is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.github.com"
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.Path == "" {
		cfg.Path = "data/reviews.json"
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 5
	}
	return &Client{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		hc:     &http.Client{Timeout: 20 * time.Second},
		owner:  cfg.Owner,
		repo:   cfg.Repo,
		branch: cfg.Branch,
		path:   cfg.Path,
		token:  cfg.Token,
		rl:     rate.NewLimiter(rate.Limit(cfg.RPS), cfg.RPS),
	}, nil
}

func (c *Client) contentsURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.base, c.owner, c.repo, url.PathEscape(c.path))
}

// contentsResponse is the subset of the Contents API envelope we rely on.
type contentsResponse struct {
	SHA     string `json:"sha"`
	Content string `json:"content"`
}

// Fetch returns the current document and its version token. A 404 from the
// store means the document was never created. A payload that is not valid
// JSON or not a recognizable collection is replaced by the empty collection;
// the real SHA is kept so the next write still races correctly.
func (c *Client) Fetch(ctx context.Context) (domain.Snapshot, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return domain.Snapshot{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.contentsURL()+"?ref="+url.QueryEscape(c.branch), nil)
	if err != nil {
		return domain.Snapshot{}, err
	}
	c.decorate(req)

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Snapshot{}, ctx.Err()
		}
		return domain.Snapshot{}, err
	}
	defer resp.Body.Close()
	observability.ObserveExternal("github", "get_contents", resp.StatusCode, time.Since(start))

	switch resp.StatusCode {
	case http.StatusOK:
		var payload contentsResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return domain.Snapshot{}, &domain.StoreError{Status: resp.StatusCode, Detail: "malformed contents envelope"}
		}
		doc, ok := decodeDocument(payload.Content)
		if !ok {
			doc = domain.NewCollection()
		}
		doc.Normalize()
		return domain.Snapshot{Exists: true, Version: domain.Version(payload.SHA), Doc: doc}, nil

	case http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return domain.Snapshot{Exists: false, Doc: domain.NewCollection()}, nil

	default:
		return domain.Snapshot{}, storeError(resp)
	}
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

type putResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

// Put replaces the whole document, conditional on version still being the
// store's current token. The empty version creates the file. 409 and 422 are
// the store's stale-token statuses and map to ErrVersionConflict.
func (c *Client) Put(ctx context.Context, doc domain.Collection, version domain.Version, message string) (domain.Version, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return "", err
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(putRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(raw),
		Branch:  c.branch,
		SHA:     string(version),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.contentsURL(), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	c.decorate(req)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	defer resp.Body.Close()
	observability.ObserveExternal("github", "put_contents", resp.StatusCode, time.Since(start))

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var payload putResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return "", &domain.StoreError{Status: resp.StatusCode, Detail: "malformed contents envelope"}
		}
		return domain.Version(payload.Content.SHA), nil

	case http.StatusConflict, http.StatusUnprocessableEntity:
		io.Copy(io.Discard, resp.Body)
		observability.ObserveConflict()
		return "", domain.ErrVersionConflict

	default:
		return "", storeError(resp)
	}
}

func (c *Client) decorate(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", "review-board/1.0")
}

// decodeDocument unwraps the base64 file body (the API newline-wraps it) and
// parses the collection. Buckets are decoded independently so one corrupt
// bucket does not discard the other; ok is false only when the whole payload
// is unrecognizable.
func decodeDocument(content string) (domain.Collection, bool) {
	compact := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, content)
	if compact == "" {
		return domain.Collection{}, false
	}
	raw, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return domain.Collection{}, false
	}
	var loose struct {
		Approved json.RawMessage `json:"approved"`
		Pending  json.RawMessage `json:"pending"`
	}
	if err := json.Unmarshal(raw, &loose); err != nil {
		return domain.Collection{}, false
	}
	var doc domain.Collection
	_ = json.Unmarshal(loose.Approved, &doc.Approved)
	_ = json.Unmarshal(loose.Pending, &doc.Pending)
	return doc, true
}

// storeError reads a bounded slice of the error body for diagnostics. The
// request credential lives only in headers, so the detail can't leak it.
func storeError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := strings.TrimSpace(string(b))
	if len(detail) > maxDetail {
		detail = detail[:maxDetail]
	}
	return &domain.StoreError{Status: resp.StatusCode, Detail: detail}
}
