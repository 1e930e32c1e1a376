package listener

import (
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anandb/mockrelay/internal/apperrors"
	"github.com/anandb/mockrelay/internal/certstore"
	"github.com/anandb/mockrelay/internal/model"
	"github.com/anandb/mockrelay/internal/oauth2cache"
	"github.com/anandb/mockrelay/internal/tunnel"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func newTestManager() *Manager {
	log := zap.NewNop()
	store := certstore.NewStore(afero.NewMemMapFs(), "/scratch", log)
	sup := tunnel.NewSupervisor(log, nil)
	cache := oauth2cache.NewCache(log)
	return NewManager(log, store, sup, cache)
}

func waitForUp(t *testing.T, port int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", "127.0.0.1:"+strconv.Itoa(port), 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("listener on port %d never came up", port)
}

func TestManagerCreateListenerServesExpectations(t *testing.T) {
	m := newTestManager()
	port := freePort(t)
	cfg := model.ListenerConfig{ListenerID: "svc-a", Port: port}
	require.NoError(t, m.CreateListener(cfg))
	defer m.Shutdown()

	waitForUp(t, port)
	require.NoError(t, m.AppendExpectation("svc-a", model.Expectation{
		Request:  model.RequestMatcher{Method: "GET", Path: "/hello"},
		Response: model.ResponseSpec{StatusCode: 200, Body: "world"},
	}))

	resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/hello")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "world", string(body))
}

func TestManagerRejectsDuplicateListenerID(t *testing.T) {
	m := newTestManager()
	port1, port2 := freePort(t), freePort(t)
	cfg := model.ListenerConfig{ListenerID: "dup", Port: port1}
	require.NoError(t, m.CreateListener(cfg))
	defer m.Shutdown()

	err := m.CreateListener(model.ListenerConfig{ListenerID: "dup", Port: port2})
	require.Error(t, err)
	appErr, ok := err.(*apperrors.Error)
	require.True(t, ok)
	assert.True(t, appErr.Is(apperrors.KindListenerAlreadyExist))
}

func TestManagerRejectsDuplicatePort(t *testing.T) {
	m := newTestManager()
	port := freePort(t)
	require.NoError(t, m.CreateListener(model.ListenerConfig{ListenerID: "a", Port: port}))
	defer m.Shutdown()

	err := m.CreateListener(model.ListenerConfig{ListenerID: "b", Port: port})
	assert.Error(t, err)
}

func TestManagerReleaseListenerStopsServing(t *testing.T) {
	m := newTestManager()
	port := freePort(t)
	require.NoError(t, m.CreateListener(model.ListenerConfig{ListenerID: "svc-b", Port: port}))
	waitForUp(t, port)

	require.NoError(t, m.ReleaseListener("svc-b"))

	_, err := http.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/x")
	assert.Error(t, err)
}

func TestManagerAppendExpectationUnknownListener(t *testing.T) {
	m := newTestManager()
	err := m.AppendExpectation("ghost", model.Expectation{})
	require.Error(t, err)
}
