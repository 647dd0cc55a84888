package github_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/frappe/release/pkg/domain/interfaces"
	"github.com/frappe/release/pkg/domain/model"
	"github.com/frappe/release/pkg/domain/types"
	infra "github.com/frappe/release/pkg/infra/github"
)

var testRef = model.GitRef{Protocol: "https", Host: "github.com", Owner: "frappe", Name: "frappe"}

func newStubBackend(t *testing.T, mux *http.ServeMux) (interfaces.GitBackend, func()) {
	t.Helper()
	server := httptest.NewServer(mux)

	backend, err := infra.NewClientWithHTTP(server.Client(), server.URL)
	gt.NoError(t, err)

	return backend, server.Close
}

func TestClient_BranchExists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/repos/frappe/frappe/branches/version-13", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"version-13"}`))
	})
	backend, done := newStubBackend(t, mux)
	defer done()

	ctx := context.Background()

	exists, err := backend.BranchExists(ctx, testRef, "version-13")
	gt.NoError(t, err)
	gt.True(t, exists)

	// Unregistered path answers 404; that is a clean "no", not an error
	exists, err = backend.BranchExists(ctx, testRef, "no-such-branch")
	gt.NoError(t, err)
	gt.True(t, !exists)
}

func TestClient_LatestTagOn(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/repos/frappe/frappe/git/matching-refs/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"ref":"refs/heads/version-13","object":{"sha":"abc123"}}]`))
	})
	mux.HandleFunc("/api/v3/repos/frappe/frappe/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"name":"v1.1.0","commit":{"sha":"older00"}},
			{"name":"v1.2.0","commit":{"sha":"abc123"}}
		]`))
	})
	backend, done := newStubBackend(t, mux)
	defer done()

	tag, err := backend.LatestTagOn(context.Background(), testRef, "version-13")
	gt.NoError(t, err)
	gt.Value(t, tag).Equal("v1.2.0")
}

func TestClient_LatestTagOn_NoTagAtHead(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/repos/frappe/frappe/git/matching-refs/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"ref":"refs/heads/version-13","object":{"sha":"abc123"}}]`))
	})
	mux.HandleFunc("/api/v3/repos/frappe/frappe/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"name":"v1.1.0","commit":{"sha":"older00"}}]`))
	})
	backend, done := newStubBackend(t, mux)
	defer done()

	tag, err := backend.LatestTagOn(context.Background(), testRef, "version-13")
	gt.NoError(t, err)
	gt.Value(t, tag).Equal("")
}

func TestClient_CompareBranches(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/repos/frappe/frappe/compare/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"commits":[
			{"commit":{"message":"feat: add X (#21)\n\nlong body that must not leak"}},
			{"commit":{"message":"fix: small thing (#22)"}}
		]}`))
	})
	backend, done := newStubBackend(t, mux)
	defer done()

	messages, err := backend.CompareBranches(context.Background(), testRef, "version-13", "version-13-beta")
	gt.NoError(t, err)
	gt.Value(t, messages).Equal([]string{"feat: add X (#21)", "fix: small thing (#22)"})
}

func TestClient_CreatePullRequest_SurfacesAPIMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/repos/frappe/frappe/pulls", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"Validation Failed","errors":[{"message":"No commits between version-13 and version-13-beta"}]}`))
	})
	backend, done := newStubBackend(t, mux)
	defer done()

	_, err := backend.CreatePullRequest(context.Background(), testRef,
		"chore: Merge version-13-beta into version-13", "", "version-13-beta", "version-13")
	gt.Error(t, err)
	gt.True(t, types.IsUpstreamFetch(err))
	gt.True(t, strings.Contains(err.Error(), "Validation Failed"))
	gt.True(t, strings.Contains(err.Error(), "No commits between version-13 and version-13-beta"))
}
