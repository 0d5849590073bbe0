// pkg/server/server_test.go
// TEST TYPE: Integration Test
// DEPENDENCIES: httptest server, gorilla websocket client, fake engine
// PURPOSE: Test the HTTP routes, single-operation gating, and progress streaming

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arthur-debert/kitman/pkg/components"
	"github.com/arthur-debert/kitman/pkg/core"
	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/fingerprint"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/arthur-debert/kitman/pkg/metrics"
	"github.com/arthur-debert/kitman/pkg/progress"
	"github.com/arthur-debert/kitman/pkg/server"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	tracker progress.Tracker

	mu  sync.Mutex
	rec *fingerprint.Record
	// block, when set, holds operations until it is closed or the
	// context is cancelled.
	block    chan struct{}
	requests []core.Request
	keepSelf []bool
}

func (f *fakeEngine) Record() (*fingerprint.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rec, nil
}

func (f *fakeEngine) setRecord(rec *fingerprint.Record) {
	f.mu.Lock()
	f.rec = rec
	f.mu.Unlock()
}

func (f *fakeEngine) hold() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = make(chan struct{})
	return f.block
}

func (f *fakeEngine) run(ctx context.Context, kind core.OperationKind, names []string) (*core.Result, error) {
	f.tracker.MainStart("working", int64(len(names)))
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			f.tracker.Complete()
			return nil, errors.New(errors.ErrCancelled, "operation cancelled")
		}
	}
	res := &core.Result{OperationID: "op-1", Kind: kind}
	for _, n := range names {
		f.tracker.Message("installed " + n)
		f.tracker.MainUpdate(1)
		res.Succeeded = append(res.Succeeded, n)
	}
	res.Failed = []core.ToolFailure{{Name: "audit", Err: errors.New(errors.ErrDependency, "requires nextest"), Skipped: true}}
	f.tracker.MainEnd("done")
	f.tracker.Complete()
	return res, nil
}

func (f *fakeEngine) Install(ctx context.Context, _ *manifest.Manifest, req core.Request) (*core.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.run(ctx, core.KindInstallFresh, req.Components)
}

func (f *fakeEngine) Update(ctx context.Context, _ *manifest.Manifest, req core.Request) (*core.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.run(ctx, core.KindModifyExisting, req.Components)
}

func (f *fakeEngine) Uninstall(ctx context.Context, keepSelf bool) (*core.Result, error) {
	f.mu.Lock()
	f.keepSelf = append(f.keepSelf, keepSelf)
	f.mu.Unlock()
	return f.run(ctx, core.KindUninstallAll, nil)
}

func testManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Name:      "Sample",
		Version:   "1.0.0",
		Toolchain: manifest.Toolchain{Channel: "1.81.0", Components: []string{"clippy"}},
		Targets: map[string][]manifest.Tool{
			manifest.HostTriple(): {
				{Name: "nextest", Source: manifest.Source{Kind: manifest.SourceVersion, Version: "0.9.0"}},
			},
		},
	}
}

type fixture struct {
	engine *fakeEngine
	hub    *server.Hub
	srv    *server.Server
	http   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hub := server.NewHub(nil)
	eng := &fakeEngine{tracker: progress.NewTracker(hub)}
	srv := server.New(server.Options{
		Engine:   eng,
		Manifest: func() (*manifest.Manifest, error) { return testManifest(), nil },
		Hub:      hub,
		Metrics:  metrics.New(),
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		srv.Wait()
		hub.Close()
		ts.Close()
	})
	return &fixture{engine: eng, hub: hub, srv: srv, http: ts}
}

func (f *fixture) post(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(f.http.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(f.http.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return f.hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	return conn
}

// readUntilResult collects messages up to and including the result.
func readUntilResult(t *testing.T, conn *websocket.Conn) []server.Message {
	t.Helper()
	var msgs []server.Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg server.Message
		require.NoError(t, conn.ReadJSON(&msg))
		msgs = append(msgs, msg)
		if msg.Type == server.TypeResult {
			return msgs
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListComponents(t *testing.T) {
	f := newFixture(t)
	f.engine.setRecord(&fingerprint.Record{
		Toolchain: &fingerprint.ToolchainRecord{Channel: "1.81.0", Components: []string{"clippy"}},
	})

	resp := f.get(t, "/api/components")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []components.Component
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))

	assert.Equal(t, []string{"rust", "clippy", "nextest"}, components.Names(list))
	assert.True(t, list[0].Installed)
	assert.True(t, list[1].Installed)
	assert.False(t, list[2].Installed)
}

func TestFingerprint(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/api/fingerprint")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	f.engine.setRecord(&fingerprint.Record{Name: "Sample", InstallDir: "/opt/kit"})
	resp = f.get(t, "/api/fingerprint")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec fingerprint.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, "/opt/kit", rec.InstallDir)
}

func TestInstallStreamsProgressThenResult(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	resp := f.post(t, "/api/install", core.Request{
		Components: []string{"nextest"},
		Config:     core.Config{InstallDir: "/opt/kit", AddToPath: true},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	msgs := readUntilResult(t, conn)
	require.NotEmpty(t, msgs)

	var kinds []progress.Kind
	for _, m := range msgs[:len(msgs)-1] {
		require.Equal(t, server.TypeProgress, m.Type)
		kinds = append(kinds, m.Event.Kind)
	}
	assert.Equal(t, []progress.Kind{
		progress.MainStart, progress.Message, progress.MainUpdate, progress.MainEnd, progress.Complete,
	}, kinds)

	result := msgs[len(msgs)-1].Result
	require.NotNil(t, result)
	assert.Equal(t, "install", result.Operation)
	assert.Equal(t, []string{"nextest"}, result.Succeeded)
	require.Len(t, result.Failed, 1)
	assert.True(t, result.Failed[0].Skipped)

	f.engine.mu.Lock()
	require.Len(t, f.engine.requests, 1)
	assert.Equal(t, "/opt/kit", f.engine.requests[0].Config.InstallDir)
	assert.True(t, f.engine.requests[0].Config.AddToPath)
	f.engine.mu.Unlock()

	status := f.get(t, "/api/operation")
	var st struct {
		Running string             `json:"running"`
		Last    *server.ResultView `json:"last"`
	}
	require.NoError(t, json.NewDecoder(status.Body).Decode(&st))
	assert.Empty(t, st.Running)
	require.NotNil(t, st.Last)
	assert.Equal(t, "op-1", st.Last.OperationID)
}

func TestOneOperationAtATime(t *testing.T) {
	f := newFixture(t)
	block := f.engine.hold()
	conn := f.dial(t)

	resp := f.post(t, "/api/update", core.Request{})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = f.post(t, "/api/uninstall", map[string]bool{"keep_self": true})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, string(errors.ErrStateLocked), body.Code)

	close(block)
	msgs := readUntilResult(t, conn)
	assert.Equal(t, "update", msgs[len(msgs)-1].Result.Operation)

	// Once finished, the next operation is accepted. The closed block no
	// longer holds anything.
	resp = f.post(t, "/api/uninstall", map[string]bool{"keep_self": true})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	msgs = readUntilResult(t, conn)
	assert.Equal(t, "uninstall", msgs[len(msgs)-1].Result.Operation)

	f.engine.mu.Lock()
	assert.Equal(t, []bool{true}, f.engine.keepSelf)
	f.engine.mu.Unlock()
}

func TestCancelOperation(t *testing.T) {
	f := newFixture(t)
	f.engine.hold()
	conn := f.dial(t)

	req, err := http.NewRequest(http.MethodDelete, f.http.URL+"/api/operation", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.post(t, "/api/install", core.Request{})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	msgs := readUntilResult(t, conn)
	result := msgs[len(msgs)-1].Result
	assert.Equal(t, string(errors.ErrCancelled), result.Code)
	assert.Empty(t, result.Succeeded)
}

func TestBadRequestBody(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Post(f.http.URL+"/api/install", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
