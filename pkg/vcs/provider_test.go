package vcs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyinlola/warden/pkg/interfaces"
)

type request struct {
	Method  string
	Path    string
	Auth    string
	Payload map[string]string
}

// fakeForge records requests and serves a canned comment list.
type fakeForge struct {
	mu       sync.Mutex
	requests []request
	comments []issueComment
	status   int
}

func (f *fakeForge) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	req := request{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization")}
	if len(body) > 0 {
		_ = json.Unmarshal(body, &req.Payload)
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"message":"nope"}`))
		return
	}
	switch r.Method {
	case http.MethodGet:
		_ = json.NewEncoder(w).Encode(f.comments)
	case http.MethodPatch:
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusCreated)
	}
}

type providerCase struct {
	name   string
	prefix string
	auth   string
	new    func(baseURL string) interfaces.VCSProvider
}

func providers() []providerCase {
	return []providerCase{
		{"github", "", "Bearer tok", func(u string) interfaces.VCSProvider {
			return NewGitHubProvider("myorg", "myrepo", "tok", u)
		}},
		{"forgejo", "/api/v1", "token tok", func(u string) interfaces.VCSProvider {
			return NewForgejoProvider("myorg", "myrepo", "tok", u)
		}},
	}
}

func serve(t *testing.T, f *fakeForge) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(server.Close)
	return server.URL
}

func TestProvider_PostComment_Plain(t *testing.T) {
	for _, pc := range providers() {
		t.Run(pc.name, func(t *testing.T) {
			f := &fakeForge{}
			p := pc.new(serve(t, f))

			require.NoError(t, p.PostComment(context.Background(), "42", "Hello from Warden"))

			require.Len(t, f.requests, 1)
			got := f.requests[0]
			assert.Equal(t, http.MethodPost, got.Method)
			assert.Equal(t, pc.prefix+"/repos/myorg/myrepo/issues/42/comments", got.Path)
			assert.Equal(t, pc.auth, got.Auth)
			assert.Equal(t, "Hello from Warden", got.Payload["body"])
		})
	}
}

func TestProvider_PostComment_UpdatesMarkedComment(t *testing.T) {
	body := "<!-- warden-report -->\n# Report"
	for _, pc := range providers() {
		t.Run(pc.name, func(t *testing.T) {
			f := &fakeForge{comments: []issueComment{
				{ID: 5, Body: "unrelated"},
				{ID: 9, Body: "<!-- warden-report -->\nold report"},
			}}
			p := pc.new(serve(t, f))

			require.NoError(t, p.PostComment(context.Background(), "42", body))

			require.Len(t, f.requests, 2)
			assert.Equal(t, http.MethodGet, f.requests[0].Method)
			assert.Equal(t, pc.prefix+"/repos/myorg/myrepo/issues/42/comments", f.requests[0].Path)
			assert.Equal(t, http.MethodPatch, f.requests[1].Method)
			assert.Equal(t, pc.prefix+"/repos/myorg/myrepo/issues/comments/9", f.requests[1].Path)
			assert.Equal(t, body, f.requests[1].Payload["body"])
		})
	}
}

func TestProvider_PostComment_MarkerNotFound(t *testing.T) {
	f := &fakeForge{comments: []issueComment{{ID: 1, Body: "lgtm"}}}
	p := NewGitHubProvider("o", "r", "tok", serve(t, f))

	require.NoError(t, p.PostComment(context.Background(), "3", "<!-- warden-report -->\nbody"))
	require.Len(t, f.requests, 2)
	assert.Equal(t, http.MethodPost, f.requests[1].Method)
}

func TestProvider_PostComment_Error(t *testing.T) {
	for _, pc := range providers() {
		t.Run(pc.name, func(t *testing.T) {
			f := &fakeForge{status: http.StatusForbidden}
			p := pc.new(serve(t, f))

			err := p.PostComment(context.Background(), "1", "test")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "403")
		})
	}
}

func TestProvider_SetStatus(t *testing.T) {
	states := map[interfaces.StatusState]string{
		interfaces.StatusPending: "pending",
		interfaces.StatusSuccess: "success",
		interfaces.StatusFailure: "failure",
		interfaces.StatusError:   "error",
		"bogus":                  "error",
	}
	for _, pc := range providers() {
		for state, want := range states {
			t.Run(pc.name+"/"+string(state), func(t *testing.T) {
				f := &fakeForge{}
				p := pc.new(serve(t, f))

				require.NoError(t, p.SetStatus(context.Background(), "abc123", state, "Warden: 93/100 A"))

				require.Len(t, f.requests, 1)
				got := f.requests[0]
				assert.Equal(t, pc.prefix+"/repos/myorg/myrepo/statuses/abc123", got.Path)
				assert.Equal(t, pc.auth, got.Auth)
				assert.Equal(t, want, got.Payload["state"])
				assert.Equal(t, "Warden: 93/100 A", got.Payload["description"])
				assert.Equal(t, StatusContext, got.Payload["context"])
			})
		}
	}
}

func TestProvider_SetStatus_TruncatesDescription(t *testing.T) {
	f := &fakeForge{}
	p := NewGitHubProvider("o", "r", "tok", serve(t, f))

	require.NoError(t, p.SetStatus(context.Background(), "sha", interfaces.StatusSuccess, strings.Repeat("x", 200)))
	desc := f.requests[0].Payload["description"]
	assert.Len(t, desc, maxStatusDescription)
	assert.True(t, strings.HasSuffix(desc, "..."))
}

func TestProvider_NoAuth(t *testing.T) {
	f := &fakeForge{}
	p := NewGitHubProvider("o", "r", "", serve(t, f))

	require.NoError(t, p.PostComment(context.Background(), "1", "test"))
	assert.Empty(t, f.requests[0].Auth)
}

func TestCommentMarker(t *testing.T) {
	assert.Equal(t, "<!-- warden-report -->", commentMarker("<!-- warden-report -->\n# hi"))
	assert.Equal(t, "<!-- x -->", commentMarker("<!-- x -->"))
	assert.Empty(t, commentMarker("# heading\n<!-- x -->"))
	assert.Empty(t, commentMarker(""))
}
