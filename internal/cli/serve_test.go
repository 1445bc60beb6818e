package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/linkboard/internal/ir"
	"github.com/roach88/linkboard/internal/server"
)

// syncBuffer is a bytes.Buffer safe for the serve goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var servingAddr = regexp.MustCompile(`on http://(\S+)`)

func post(t *testing.T, url, identity, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(server.IdentityHeader, identity)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestServe(t *testing.T) {
	db := tempDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"serve", "--db", db, "--listen", "127.0.0.1:0"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	var base string
	require.Eventually(t, func() bool {
		m := servingAddr.FindStringSubmatch(out.String())
		if m == nil {
			return false
		}
		base = "http://" + m[1]
		return true
	}, 5*time.Second, 10*time.Millisecond)

	resp := post(t, base+"/api/registries/default", "alice", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = post(t, base+"/api/registries/default/links", "bob", `{"link":"https://example.com/cat.gif"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = post(t, base+"/api/registries/default/links/0/votes", "carol", `{"delta":1}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := http.Get(base + "/api/registries/default")
	require.NoError(t, err)
	var state ir.State
	require.NoError(t, json.NewDecoder(got.Body).Decode(&state))
	got.Body.Close()
	require.Len(t, state.Entries, 1)
	assert.Equal(t, int64(1), state.Entries[0].Vote)

	health, err := http.Get(base + "/api/health")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}

	// Everything the API accepted is durable once serve has stopped.
	text, err := execute(t, "show", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, text, "Owner:    alice")
	assert.Contains(t, text, "https://example.com/cat.gif")

	text, err = execute(t, "replay", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, text, "3 command(s)")
}

func TestServeHoldsDatabaseLock(t *testing.T) {
	db := tempDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"serve", "--db", db, "--listen", "127.0.0.1:0"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return servingAddr.MatchString(out.String())
	}, 5*time.Second, 10*time.Millisecond)

	_, err := execute(t, "create", "--db", db, "--as", "alice")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open database")

	cancel()
	require.NoError(t, <-done)
}

func TestServeBadListenAddress(t *testing.T) {
	_, err := execute(t, "serve", "--db", tempDB(t), "--listen", "not-an-address")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "listen")
}
