package github_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"review_board/internal/adapters/github"
	"review_board/internal/domain"
)

func newClient(t *testing.T, base string) *github.Client {
	t.Helper()
	cl, err := github.New(github.Config{
		BaseURL: base,
		Owner:   "acme",
		Repo:    "shop",
		Branch:  "main",
		Path:    "data/reviews.json",
		Token:   "secret-token",
		RPS:     100, // high RPS for tests
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return cl
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// wrap emulates the API's newline-wrapped base64 file body.
func wrap(b []byte) string {
	enc := base64.StdEncoding.EncodeToString(b)
	var parts []string
	for len(enc) > 60 {
		parts, enc = append(parts, enc[:60]), enc[60:]
	}
	return strings.Join(append(parts, enc), "\n")
}

func TestFetch_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	snap, err := newClient(t, ts.URL).Fetch(testCtx(t))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if snap.Exists {
		t.Fatalf("expected missing document")
	}
	if snap.Doc.Pending == nil || snap.Doc.Approved == nil {
		t.Fatalf("default document not normalized: %+v", snap.Doc)
	}
}

func TestFetch_DecodesDocument(t *testing.T) {
	doc := domain.Collection{
		Approved: []domain.Review{{ID: "a1", Rating: 5, Comment: "love it", Approved: true}},
		Pending:  []domain.Review{{ID: "p1", Rating: 3, Comment: "meh"}},
	}
	raw, _ := json.Marshal(doc)

	var gotAuth, gotRef string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRef = r.URL.Query().Get("ref")
		_ = json.NewEncoder(w).Encode(map[string]any{"sha": "abc123", "content": wrap(raw)})
	}))
	defer ts.Close()

	snap, err := newClient(t, ts.URL).Fetch(testCtx(t))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !snap.Exists || snap.Version != "abc123" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if len(snap.Doc.Approved) != 1 || snap.Doc.Approved[0].ID != "a1" {
		t.Fatalf("approved bucket: %+v", snap.Doc.Approved)
	}
	if len(snap.Doc.Pending) != 1 || snap.Doc.Pending[0].ID != "p1" {
		t.Fatalf("pending bucket: %+v", snap.Doc.Pending)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("bad auth header: %q", gotAuth)
	}
	if gotRef != "main" {
		t.Fatalf("bad ref: %q", gotRef)
	}
}

func TestFetch_CorruptContentFallsBackToEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sha":     "keep-me",
			"content": base64.StdEncoding.EncodeToString([]byte("this is not json")),
		})
	}))
	defer ts.Close()

	snap, err := newClient(t, ts.URL).Fetch(testCtx(t))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !snap.Exists || snap.Version != "keep-me" {
		t.Fatalf("version token must survive a corrupt payload: %+v", snap)
	}
	if len(snap.Doc.Approved) != 0 || len(snap.Doc.Pending) != 0 {
		t.Fatalf("expected empty default, got %+v", snap.Doc)
	}
}

func TestFetch_KeepsGoodBucketWhenOtherIsCorrupt(t *testing.T) {
	raw := []byte(`{"approved":"oops","pending":[{"id":"p1","rating":4,"comment":"still here"}]}`)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"sha": "v1", "content": wrap(raw)})
	}))
	defer ts.Close()

	snap, err := newClient(t, ts.URL).Fetch(testCtx(t))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(snap.Doc.Approved) != 0 {
		t.Fatalf("corrupt bucket not discarded: %+v", snap.Doc.Approved)
	}
	if len(snap.Doc.Pending) != 1 || snap.Doc.Pending[0].ID != "p1" {
		t.Fatalf("good bucket lost: %+v", snap.Doc.Pending)
	}
}

func TestFetch_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := newClient(t, ts.URL).Fetch(testCtx(t))
	var serr *domain.StoreError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if serr.Status != http.StatusBadGateway || !strings.Contains(serr.Detail, "upstream exploded") {
		t.Fatalf("unexpected store error: %+v", serr)
	}
}

func TestPut_SendsConditionalWrite(t *testing.T) {
	var got struct {
		Message string `json:"message"`
		Content string `json:"content"`
		Branch  string `json:"branch"`
		SHA     string `json:"sha"`
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("unexpected method %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{"content": map[string]any{"sha": "new-sha"}})
	}))
	defer ts.Close()

	doc := domain.NewCollection()
	doc.Pending = append(doc.Pending, domain.Review{ID: "p1", Rating: 4, Comment: "nice"})

	v, err := newClient(t, ts.URL).Put(testCtx(t), doc, "old-sha", "reviews: new pending review p1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if v != "new-sha" {
		t.Fatalf("unexpected version: %q", v)
	}
	if got.SHA != "old-sha" || got.Branch != "main" || got.Message != "reviews: new pending review p1" {
		t.Fatalf("unexpected request: %+v", got)
	}
	raw, err := base64.StdEncoding.DecodeString(got.Content)
	if err != nil {
		t.Fatalf("content not base64: %v", err)
	}
	var sent domain.Collection
	if err := json.Unmarshal(raw, &sent); err != nil {
		t.Fatalf("content not the document: %v", err)
	}
	if len(sent.Pending) != 1 || sent.Pending[0].ID != "p1" {
		t.Fatalf("unexpected document: %+v", sent)
	}
}

func TestPut_OmitsSHAOnCreate(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"content": map[string]any{"sha": "first"}})
	}))
	defer ts.Close()

	v, err := newClient(t, ts.URL).Put(testCtx(t), domain.NewCollection(), "", "reviews: init reviews document")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if v != "first" {
		t.Fatalf("unexpected version: %q", v)
	}
	if _, present := body["sha"]; present {
		t.Fatalf("sha must be omitted on create: %v", body)
	}
}

func TestPut_StaleVersionIsConflict(t *testing.T) {
	for _, status := range []int{http.StatusConflict, http.StatusUnprocessableEntity} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		_, err := newClient(t, ts.URL).Put(testCtx(t), domain.NewCollection(), "stale", "msg")
		ts.Close()
		if !errors.Is(err, domain.ErrVersionConflict) {
			t.Fatalf("status %d: expected version conflict, got %v", status, err)
		}
	}
}

func TestPut_ServerErrorTruncatedWithoutCredential(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(strings.Repeat("x", 2000)))
	}))
	defer ts.Close()

	_, err := newClient(t, ts.URL).Put(testCtx(t), domain.NewCollection(), "v", "msg")
	var serr *domain.StoreError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if len(serr.Detail) > 300 {
		t.Fatalf("detail not truncated: %d", len(serr.Detail))
	}
	if strings.Contains(err.Error(), "secret-token") {
		t.Fatalf("credential leaked into error")
	}
}
