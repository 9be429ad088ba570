package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/issuegate/issuegate/pkg/auth"
	"github.com/issuegate/issuegate/pkg/backend"
	"github.com/issuegate/issuegate/pkg/chat"
	"github.com/issuegate/issuegate/pkg/gateway"
	"github.com/issuegate/issuegate/pkg/github"
	"github.com/issuegate/issuegate/pkg/userconfig"
)

// fakeGitHub is an httptest stand-in for the GitHub REST API with call
// counters for the endpoints the gateway touches.
type fakeGitHub struct {
	server *httptest.Server

	repos       []map[string]any
	createCode  int
	createBody  string
	userCode    int
	userBody    string
	userCalls   atomic.Int64
	listCalls   atomic.Int64
	createCalls atomic.Int64
	lastCreate  map[string]any
	lastPath    string
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()
	f := &fakeGitHub{
		createCode: http.StatusCreated,
		repos: []map[string]any{
			{"name": "widgets", "owner": map[string]any{"login": "octo"}, "full_name": "octo/widgets"},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		f.userCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if f.userCode != 0 {
			w.WriteHeader(f.userCode)
			fmt.Fprint(w, f.userBody)
			return
		}
		fmt.Fprint(w, `{"login":"octocat","type":"User"}`)
	})
	mux.HandleFunc("GET /user/repos", func(w http.ResponseWriter, r *http.Request) {
		f.listCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(f.repos)
	})
	mux.HandleFunc("POST /repos/{owner}/{repo}/issues", func(w http.ResponseWriter, r *http.Request) {
		f.createCalls.Add(1)
		f.lastPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&f.lastCreate)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.createCode)
		if f.createBody != "" {
			fmt.Fprint(w, f.createBody)
			return
		}
		fmt.Fprintf(w, `{"number":42,"title":%q,"html_url":"https://github.com/%s/%s/issues/42"}`,
			f.lastCreate["title"], r.PathValue("owner"), r.PathValue("repo"))
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGitHub) remoteCalls() int64 {
	return f.userCalls.Load() + f.listCalls.Load() + f.createCalls.Load()
}

// newTestServer wires a Server over the fake GitHub API and a canned
// completion endpoint, mirroring the production wiring in cmd/issuegate.
func newTestServer(t *testing.T, gh *fakeGitHub, chunks []string) (*Server, *userconfig.MemoryStore) {
	t.Helper()

	completions := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for _, c := range chunks {
			_, _ = io.WriteString(w, c)
			flusher.Flush()
		}
	}))
	t.Cleanup(completions.Close)

	hosts := func(cred auth.Credential) gateway.HostClient {
		return github.NewClient(cred.Token(), github.WithBaseURL(gh.server.URL))
	}
	store := userconfig.NewMemoryStore()
	orch := gateway.New(hosts,
		backend.NewGitHub(github.WithBaseURL(gh.server.URL)),
		gateway.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		gateway.WithDefaultLabels([]string{"bug"}),
		gateway.WithWorkItemBackend(backend.NewAzureDevOps(), store),
	)

	chatClient := chat.NewClient(chat.WithEndpoint(completions.URL))

	srv := New(orch, chatClient, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return srv, store
}

func postJSON(t *testing.T, h http.Handler, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-GitHub-Token", token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLivenessAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, newFakeGitHub(t), nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "issuegate")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMissingCredentialRejectedBeforeAnyRemoteCall(t *testing.T) {
	gh := newFakeGitHub(t)
	srv, _ := newTestServer(t, gh, nil)

	for _, path := range []string{"/", "/create-issue", "/workitems", "/workitems/config"} {
		rec := postJSON(t, srv.Handler(), path, "", `{"title":"Bug A"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	assert.Zero(t, gh.remoteCalls(), "no upstream traffic without a credential")
}

func TestCreateIssueWithPathCoordinate(t *testing.T) {
	gh := newFakeGitHub(t)
	srv, _ := newTestServer(t, gh, nil)

	rec := postJSON(t, srv.Handler(), "/create-issue/octo/widgets", "ghp_secret",
		`{"title":"Bug A","body":"It broke.","assignees":["hubot"]}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://github.com/octo/widgets/issues/42", resp["issue_url"])

	assert.Equal(t, "/repos/octo/widgets/issues", gh.lastPath)
	assert.Equal(t, "Bug A", gh.lastCreate["title"])
	assert.Equal(t, "It broke.", gh.lastCreate["body"])
	assert.Equal(t, int64(1), gh.createCalls.Load())
	assert.Zero(t, gh.userCalls.Load(), "explicit assignee needs no identity lookup")
	assert.Zero(t, gh.listCalls.Load(), "explicit coordinate needs no listing")
}

func TestCreateIssueRequiresTitle(t *testing.T) {
	gh := newFakeGitHub(t)
	srv, _ := newTestServer(t, gh, nil)

	rec := postJSON(t, srv.Handler(), "/create-issue", "ghp_secret", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, gh.remoteCalls())
}

func TestCreateIssueMalformedCoordinate(t *testing.T) {
	gh := newFakeGitHub(t)
	srv, _ := newTestServer(t, gh, nil)

	rec := postJSON(t, srv.Handler(), "/create-issue", "ghp_secret",
		`{"title":"Bug A","repositoryFullName":"missing-slash"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, gh.remoteCalls())
}

func TestCreateIssueListingFallbackEmpty(t *testing.T) {
	gh := newFakeGitHub(t)
	gh.repos = nil
	srv, _ := newTestServer(t, gh, nil)

	rec := postJSON(t, srv.Handler(), "/create-issue", "ghp_secret", `{"title":"Bug A","assignees":["hubot"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no accessible repository")
	assert.Zero(t, gh.createCalls.Load(), "empty listing must not reach creation")
}

func TestIdentityRejectionMapsToUnauthorized(t *testing.T) {
	gh := newFakeGitHub(t)
	gh.userCode = http.StatusUnauthorized
	gh.userBody = `{"message":"Bad credentials"}`
	srv, _ := newTestServer(t, gh, nil)

	// No assignees, so the identity lookup runs and its rejection must map
	// to 401, not a generic upstream failure.
	rec := postJSON(t, srv.Handler(), "/create-issue/octo/widgets", "ghp_revoked", `{"title":"Bug A"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Bad credentials")
	assert.Zero(t, gh.createCalls.Load(), "rejected credential must not reach creation")
}

func TestCreateIssueRemoteRejectionMirroredWithoutRetry(t *testing.T) {
	gh := newFakeGitHub(t)
	gh.createCode = http.StatusUnprocessableEntity
	gh.createBody = `{"message":"Validation Failed"}`
	srv, _ := newTestServer(t, gh, nil)

	rec := postJSON(t, srv.Handler(), "/create-issue/octo/widgets", "ghp_secret",
		`{"title":"Bug A","assignees":["hubot"]}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Validation Failed")
	assert.Equal(t, int64(1), gh.createCalls.Load(), "creation is attempted exactly once")
}

func TestConversationCreatesIssueAndStreams(t *testing.T) {
	gh := newFakeGitHub(t)
	chunks := []string{
		`data: {"choices":[{"delta":{"content":"Arr, "}}]}` + "\n\n",
		`data: {"choices":[{"delta":{"content":"done!"}}]}` + "\n\n",
		"data: [DONE]\n\n",
	}
	srv, _ := newTestServer(t, gh, chunks)

	body := `{"messages":[
		{"role":"user","content":"hello"},
		{"role":"user","content":"create an issue title: \"Bug A\" assign it to: @hubot",
		 "copilot_references":[{"type":"github.repository","data":{"full_name":"octo/widgets"}}]}
	]}`
	rec := postJSON(t, srv.Handler(), "/", "ghp_secret", body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, strings.Join(chunks, ""), rec.Body.String(), "chunks relayed in order")

	assert.Equal(t, "/repos/octo/widgets/issues", gh.lastPath)
	assert.Equal(t, "Bug A", gh.lastCreate["title"])
	assert.Equal(t, []any{"hubot"}, gh.lastCreate["assignees"])
	assert.Equal(t, []any{"bug"}, gh.lastCreate["labels"])
}

func TestConversationUpstreamRejectionMirrored(t *testing.T) {
	gh := newFakeGitHub(t)

	completions := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"bad token"}`)
	}))
	defer completions.Close()

	hosts := func(cred auth.Credential) gateway.HostClient {
		return github.NewClient(cred.Token(), github.WithBaseURL(gh.server.URL))
	}
	orch := gateway.New(hosts,
		backend.NewGitHub(github.WithBaseURL(gh.server.URL)),
		gateway.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	srv := New(orch, chat.NewClient(chat.WithEndpoint(completions.URL)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	body := `{"messages":[{"role":"user","content":"title: \"Bug A\" assign it to: @hubot",
		"copilot_references":[{"type":"github.repository","data":{"full_name":"octo/widgets"}}]}]}`
	rec := postJSON(t, srv.Handler(), "/", "ghp_secret", body)

	// The issue is created before streaming; the completion rejection is
	// mirrored without any relayed payload.
	assert.Equal(t, int64(1), gh.createCalls.Load())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "bad token")
}

func TestConversationWithoutMessagesDegradesToExplicitCreate(t *testing.T) {
	gh := newFakeGitHub(t)
	srv, _ := newTestServer(t, gh, nil)

	rec := postJSON(t, srv.Handler(), "/", "ghp_secret",
		`{"title":"Bug A","repositoryFullName":"octo/widgets","assignees":["hubot"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1), gh.createCalls.Load())
}

func TestConversationDefaultsTitleAndAssignee(t *testing.T) {
	gh := newFakeGitHub(t)
	srv, _ := newTestServer(t, gh, []string{"data: [DONE]\n\n"})

	body := `{"messages":[{"role":"user","content":"",
		"copilot_references":[{"type":"github.repository","data":{"full_name":"octo/widgets"}}]}]}`
	rec := postJSON(t, srv.Handler(), "/", "ghp_secret", body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Default Issue Title from Copilot", gh.lastCreate["title"])
	assert.Equal(t, []any{"octocat"}, gh.lastCreate["assignees"], "identity becomes the default assignee")
	assert.Equal(t, int64(1), gh.userCalls.Load())
}

func TestWorkItemConfigAndCreation(t *testing.T) {
	gh := newFakeGitHub(t)

	azure := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json-patch+json", r.Header.Get("Content-Type"))
		assert.Contains(t, r.URL.Path, "/contoso/widgets/_apis/wit/workitems/")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":7,"_links":{"html":{"href":"https://dev.azure.com/contoso/widgets/_workitems/edit/7"}}}`)
	}))
	defer azure.Close()

	completions := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer completions.Close()

	hosts := func(cred auth.Credential) gateway.HostClient {
		return github.NewClient(cred.Token(), github.WithBaseURL(gh.server.URL))
	}
	store := userconfig.NewMemoryStore()
	orch := gateway.New(hosts,
		backend.NewGitHub(github.WithBaseURL(gh.server.URL)),
		gateway.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		gateway.WithWorkItemBackend(backend.NewAzureDevOps(backend.WithAzureBaseURL(azure.URL)), store),
	)
	srv := New(orch, chat.NewClient(chat.WithEndpoint(completions.URL)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	// Filing before configuring fails with a 400.
	rec := postJSON(t, srv.Handler(), "/workitems", "ghp_secret", `{"title":"Bug A"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing work item configuration")

	// Store the caller's coordinates, keyed by their resolved handle.
	rec = postJSON(t, srv.Handler(), "/workitems/config", "ghp_secret",
		`{"organization":"contoso","project":"widgets","token":"azpat"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cfg, ok := store.Get("octocat")
	require.True(t, ok)
	assert.Equal(t, "contoso", cfg.Organization)

	// Now the same request files a work item.
	rec = postJSON(t, srv.Handler(), "/workitems", "ghp_secret", `{"title":"Bug A"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://dev.azure.com/contoso/widgets/_workitems/edit/7", resp["work_item_url"])
}

func TestWorkItemExplicitTitleWinsOverMessages(t *testing.T) {
	gh := newFakeGitHub(t)

	var gotPatch []map[string]any
	azure := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotPatch)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":9,"_links":{"html":{"href":"https://dev.azure.com/contoso/widgets/_workitems/edit/9"}}}`)
	}))
	defer azure.Close()

	completions := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer completions.Close()

	hosts := func(cred auth.Credential) gateway.HostClient {
		return github.NewClient(cred.Token(), github.WithBaseURL(gh.server.URL))
	}
	store := userconfig.NewMemoryStore()
	store.Set("octocat", userconfig.Config{Token: "azpat", Organization: "contoso", Project: "widgets"})
	orch := gateway.New(hosts,
		backend.NewGitHub(github.WithBaseURL(gh.server.URL)),
		gateway.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		gateway.WithWorkItemBackend(backend.NewAzureDevOps(backend.WithAzureBaseURL(azure.URL)), store),
	)
	srv := New(orch, chat.NewClient(chat.WithEndpoint(completions.URL)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	body := `{"title":"Explicit title","messages":[{"role":"user","content":"file a bug something broke"}]}`
	rec := postJSON(t, srv.Handler(), "/workitems", "ghp_secret", body)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotEmpty(t, gotPatch)
	assert.Equal(t, "/fields/System.Title", gotPatch[0]["path"])
	assert.Equal(t, "Explicit title", gotPatch[0]["value"])
}

func TestWorkItemConfigChatCommand(t *testing.T) {
	gh := newFakeGitHub(t)
	srv, store := newTestServer(t, gh, nil)

	body := `{"messages":[{"role":"user","content":"config contoso/widgets azpat"}]}`
	rec := postJSON(t, srv.Handler(), "/workitems", "ghp_secret", body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cfg, ok := store.Get("octocat")
	require.True(t, ok)
	assert.Equal(t, "azpat", cfg.Token)
	assert.Equal(t, "widgets", cfg.Project)
}

func TestValidationErrorBodyShape(t *testing.T) {
	srv, _ := newTestServer(t, newFakeGitHub(t), nil)

	rec := postJSON(t, srv.Handler(), "/create-issue", "ghp_secret", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
}
