package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/linkboard/internal/engine"
	"github.com/roach88/linkboard/internal/ir"
	"github.com/roach88/linkboard/internal/registry"
	"github.com/roach88/linkboard/internal/testutil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New("127.0.0.1:0", testutil.NewFixture(t).Engine, nil)
}

func do(t *testing.T, h http.Handler, method, path, identity, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if identity != "" {
		req.Header.Set(IdentityHeader, identity)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func TestAPI_Scenario(t *testing.T) {
	h := newTestServer(t).Handler()

	w := do(t, h, http.MethodPost, "/api/registries/default", "A", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[ir.State](t, w)
	assert.True(t, created.Initialized)
	assert.Equal(t, ir.Address("A"), created.Owner)

	w = do(t, h, http.MethodPost, "/api/registries/default/links", "A", `{"link":"gif1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, AddLinkResponse{Registry: "default", Index: 0}, decode[AddLinkResponse](t, w))

	for _, d := range []int{1, 1, -1} {
		w = do(t, h, http.MethodPost, "/api/registries/default/links/0/votes", "B", fmt.Sprintf(`{"delta":%d}`, d))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	assert.Equal(t, VoteResponse{Registry: "default", Index: 0, Vote: 1}, decode[VoteResponse](t, w))

	w = do(t, h, http.MethodGet, "/api/registries/default", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	s := decode[ir.State](t, w)
	require.Len(t, s.Entries, 1)
	assert.Equal(t, int64(1), s.Entries[0].Vote)
	assert.Equal(t, uint64(1), s.TotalEntries)

	w = do(t, h, http.MethodGet, "/api/registries", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"default"}, decode[ListResponse](t, w).Registries)
}

func TestAPI_FetchUnknown(t *testing.T) {
	h := newTestServer(t).Handler()

	w := do(t, h, http.MethodGet, "/api/registries/nope", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	s := decode[ir.State](t, w)
	assert.False(t, s.Initialized)
	assert.Empty(t, s.Entries)
	assert.Contains(t, w.Body.String(), `"entries":[]`)
}

func TestAPI_Errors(t *testing.T) {
	h := newTestServer(t).Handler()
	require.Equal(t, http.StatusPreconditionFailed,
		do(t, h, http.MethodPost, "/api/registries/default/links", "A", `{"link":"gif1"}`).Code)

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/registries/default", "A", "").Code)

	tests := []struct {
		name     string
		method   string
		path     string
		identity string
		body     string
		status   int
		code     registry.ErrorCode
	}{
		{"second create", http.MethodPost, "/api/registries/default", "B", "", http.StatusConflict, registry.ErrCodeAlreadyInitialized},
		{"missing identity", http.MethodPost, "/api/registries/default/links", "", `{"link":"gif1"}`, http.StatusBadRequest, registry.ErrCodeMissingIdentity},
		{"empty link", http.MethodPost, "/api/registries/default/links", "A", `{"link":""}`, http.StatusBadRequest, registry.ErrCodeEmptyLink},
		{"bad delta", http.MethodPost, "/api/registries/default/links/0/votes", "A", `{"delta":2}`, http.StatusBadRequest, registry.ErrCodeInvalidDelta},
		{"out of range", http.MethodPost, "/api/registries/default/links/5/votes", "A", `{"delta":1}`, http.StatusNotFound, registry.ErrCodeIndexOutOfRange},
		{"bad index", http.MethodPost, "/api/registries/default/links/x/votes", "A", `{"delta":1}`, http.StatusBadRequest, ""},
		{"bad body", http.MethodPost, "/api/registries/default/links", "A", `{"url":"gif1"}`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.identity, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			resp := decode[ErrorResponse](t, w)
			assert.Equal(t, string(tt.code), resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestAPI_WhitespaceLinkStoredVerbatim(t *testing.T) {
	h := newTestServer(t).Handler()
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/registries/default", "A", "").Code)

	w := do(t, h, http.MethodPost, "/api/registries/default/links", "A", `{"link":"   "}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	s := decode[ir.State](t, do(t, h, http.MethodGet, "/api/registries/default", "", ""))
	require.Len(t, s.Entries, 1)
	assert.Equal(t, "   ", s.Entries[0].Link)
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	h := newTestServer(t).Handler()

	w := do(t, h, http.MethodDelete, "/api/registries/default", "A", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInsufficientStorage,
		StatusFor(registry.NewCapacityExceededError("default", 10, 5)))
	assert.Equal(t, http.StatusServiceUnavailable,
		StatusFor(fmt.Errorf("submit: %w", engine.ErrStopped)))
	assert.Equal(t, http.StatusInternalServerError,
		StatusFor(errors.New("disk full")))
}

func TestServer_StartStop(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, srv.Start(ctx))
	require.NotEmpty(t, srv.Addr())

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + srv.Addr() + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	srv.Stop()
	_, err = client.Get("http://" + srv.Addr() + "/api/health")
	assert.Error(t, err)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestAPI_HealthPingsStore(t *testing.T) {
	f := testutil.NewFixture(t)

	h := New("127.0.0.1:0", f.Engine, nil, WithHealthCheck(f.Store)).Handler()
	w := do(t, h, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, w)["status"])

	down := pingFunc(func(context.Context) error { return errors.New("database is closed") })
	h = New("127.0.0.1:0", f.Engine, nil, WithHealthCheck(down)).Handler()
	w = do(t, h, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "unavailable", body["status"])
	assert.Equal(t, "database is closed", body["error"])
}

func TestAPI_SurvivesRestart(t *testing.T) {
	f := testutil.NewFixture(t)
	h := New("127.0.0.1:0", f.Engine, nil).Handler()

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/registries/default", "A", "").Code)
	require.Equal(t, http.StatusCreated,
		do(t, h, http.MethodPost, "/api/registries/default/links", "A", `{"link":"gif1"}`).Code)
	require.Equal(t, http.StatusOK,
		do(t, h, http.MethodPost, "/api/registries/default/links/0/votes", "B", `{"delta":-1}`).Code)

	f.Restart(t)
	h = New("127.0.0.1:0", f.Engine, nil).Handler()

	w := do(t, h, http.MethodGet, "/api/registries/default", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	s := decode[ir.State](t, w)
	require.Len(t, s.Entries, 1)
	assert.Equal(t, int64(-1), s.Entries[0].Vote)

	w = do(t, h, http.MethodPost, "/api/registries/default/links/0/votes", "B", `{"delta":-1}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(-2), decode[VoteResponse](t, w).Vote)
}
