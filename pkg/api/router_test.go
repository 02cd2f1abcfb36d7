package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittosmb/pkg/adapter/smb"
	"github.com/marmos91/dittosmb/pkg/api/auth"
	"github.com/marmos91/dittosmb/pkg/history"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeConns struct {
	infos []smb.ConnectionInfo
}

func (f *fakeConns) Connections() []smb.ConnectionInfo { return f.infos }

func (f *fakeConns) Connection(id string) (smb.ConnectionInfo, bool) {
	for _, c := range f.infos {
		if c.ID == id {
			return c, true
		}
	}
	return smb.ConnectionInfo{}, false
}

type fakeHistory struct {
	entries []history.Entry
	err     error
	limit   int
}

func (f *fakeHistory) List(_ context.Context, limit int) ([]history.Entry, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && limit < len(f.entries) {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func (f *fakeHistory) Get(_ context.Context, id string) (*history.Entry, error) {
	for i := range f.entries {
		if f.entries[i].ID == id {
			return &f.entries[i], nil
		}
	}
	return nil, history.ErrNotFound
}

func newDeps() (Dependencies, *fakeHistory) {
	h := &fakeHistory{entries: []history.Entry{
		{ID: "b", Outcome: history.OutcomeFailed},
		{ID: "a", Outcome: history.OutcomeCompleted},
	}}
	return Dependencies{
		Ready: func() error { return nil },
		Connections: &fakeConns{infos: []smb.ConnectionInfo{
			{ID: "c1", RemoteAddr: "127.0.0.1:5000", State: "AwaitSessionSetup"},
		}},
		History: h,
	}, h
}

func get(t *testing.T, h http.Handler, path string, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestHealth(t *testing.T) {
	t.Run("Liveness", func(t *testing.T) {
		deps, _ := newDeps()
		rec := get(t, NewRouter(deps), "/health", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "healthy", decode(t, rec).Status)
	})

	t.Run("Ready", func(t *testing.T) {
		deps, _ := newDeps()
		rec := get(t, NewRouter(deps), "/health/ready", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("NotReady", func(t *testing.T) {
		deps, _ := newDeps()
		deps.Ready = func() error { return errors.New("listener not started") }
		rec := get(t, NewRouter(deps), "/health/ready", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		env := decode(t, rec)
		assert.Equal(t, "unhealthy", env.Status)
		assert.Equal(t, "listener not started", env.Error)
	})

	t.Run("NoReadyFunc", func(t *testing.T) {
		rec := get(t, NewRouter(Dependencies{}), "/health/ready", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestConnectionsRoutes(t *testing.T) {
	deps, _ := newDeps()
	router := NewRouter(deps)

	rec := get(t, router, "/api/v1/connections", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count       int                  `json:"count"`
		Connections []smb.ConnectionInfo `json:"connections"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "c1", list.Connections[0].ID)

	rec = get(t, router, "/api/v1/connections/c1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var info smb.ConnectionInfo
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &info))
	assert.Equal(t, "AwaitSessionSetup", info.State)

	rec = get(t, router, "/api/v1/connections/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestHistoryRoutes(t *testing.T) {
	deps, store := newDeps()
	router := NewRouter(deps)

	t.Run("DefaultLimit", func(t *testing.T) {
		rec := get(t, router, "/api/v1/history", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 100, store.limit)

		var entries []history.Entry
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &entries))
		assert.Len(t, entries, 2)
	})

	t.Run("Limit", func(t *testing.T) {
		rec := get(t, router, "/api/v1/history?limit=1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var entries []history.Entry
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, "b", entries[0].ID)
	})

	t.Run("BadLimit", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, get(t, router, "/api/v1/history?limit=x", "").Code)
		assert.Equal(t, http.StatusBadRequest, get(t, router, "/api/v1/history?limit=-1", "").Code)
	})

	t.Run("Get", func(t *testing.T) {
		rec := get(t, router, "/api/v1/history/a", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var e history.Entry
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &e))
		assert.Equal(t, history.OutcomeCompleted, e.Outcome)

		assert.Equal(t, http.StatusNotFound, get(t, router, "/api/v1/history/zzz", "").Code)
	})

	t.Run("StoreError", func(t *testing.T) {
		deps, store := newDeps()
		store.err = errors.New("disk gone")
		rec := get(t, NewRouter(deps), "/api/v1/history", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("NotMounted", func(t *testing.T) {
		deps, _ := newDeps()
		deps.History = nil
		assert.Equal(t, http.StatusNotFound, get(t, NewRouter(deps), "/api/v1/history", "").Code)
	})
}

func TestJWTProtectsAPI(t *testing.T) {
	svc, err := auth.NewJWTService(auth.JWTConfig{Secret: testSecret})
	require.NoError(t, err)

	deps, _ := newDeps()
	deps.JWT = svc
	router := NewRouter(deps)

	assert.Equal(t, http.StatusUnauthorized, get(t, router, "/api/v1/connections", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, router, "/api/v1/connections", "not-a-token").Code)

	token, _, err := svc.GenerateToken("ops", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, get(t, router, "/api/v1/connections", token).Code)

	expired, _, err := svc.GenerateToken("ops", -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(t, router, "/api/v1/history", expired).Code)

	// Health stays public.
	assert.Equal(t, http.StatusOK, get(t, router, "/health", "").Code)
}

func TestServerLifecycle(t *testing.T) {
	deps, _ := newDeps()
	srv := NewServer(APIConfig{BindAddress: "127.0.0.1"}, deps)
	assert.Equal(t, 8080, srv.Port())
	assert.Nil(t, srv.Addr())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool { return srv.Addr() != nil }, time.Second, 5*time.Millisecond)

	resp, err := http.Get("http://" + srv.Addr().String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	// A second Stop is a no-op.
	assert.NoError(t, srv.Stop(context.Background()))
}

func TestAPIConfigDefaults(t *testing.T) {
	var cfg APIConfig
	assert.True(t, cfg.IsEnabled())
	cfg.ApplyDefaults()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.IdleTimeout)
	assert.Equal(t, "dittosmb", cfg.Auth.Issuer)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenDuration)

	disabled := false
	cfg.Enabled = &disabled
	assert.False(t, cfg.IsEnabled())
}
