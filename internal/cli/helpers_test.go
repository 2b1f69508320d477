package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// apiServer is a small GraphQL endpoint for command tests.
type apiServer struct {
	*httptest.Server

	mu      sync.Mutex
	calls   int
	headers []http.Header
}

func newAPIServer(t *testing.T) *apiServer {
	t.Helper()
	api := &apiServer{}
	api.Server = httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(api.Close)
	return api
}

func (a *apiServer) serve(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.calls++
	a.headers = append(a.headers, r.Header.Clone())
	a.mu.Unlock()

	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.Contains(req.Query, "broken"):
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"errors":[{"message":"boom","locations":[{"line":1,"column":3}]}]}`)
	case strings.Contains(req.Query, "repos"):
		owner, _ := req.Variables["id"].(string)
		fmt.Fprintf(w, `{"data":{"repos":[{"name":%q},{"name":%q}]}}`, owner+"-one", owner+"-two")
	case strings.Contains(req.Query, "viewer"):
		fmt.Fprint(w, `{"data":{"viewer":{"id":"u1","login":"ada"}}}`)
	default:
		fmt.Fprint(w, `{"data":{}}`)
	}
}

func (a *apiServer) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *apiServer) LastHeader(name string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.headers) == 0 {
		return ""
	}
	return a.headers[len(a.headers)-1].Get(name)
}
