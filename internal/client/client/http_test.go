package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *HTTPClient {
	t.Helper()
	c, err := NewHTTPClient(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func TestNewHTTPClient_RejectsRelativeURL(t *testing.T) {
	_, err := NewHTTPClient("api.example.com")
	require.Error(t, err)
}

func TestHTTPClient_RefreshesOnceOn401(t *testing.T) {
	var refreshes int32
	mux := http.NewServeMux()
	mux.HandleFunc(PathTokenRefresh, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshes, 1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "refresh-1", body["refresh"])
		_, _ = io.WriteString(w, `{"access":"fresh"}`)
	})
	mux.HandleFunc(ResourceDWRs, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"count":1,"next":null,"previous":null,"results":[{"id":7}]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv, WithTokens("stale", "refresh-1"))
	items, err := c.List(context.Background(), ResourceDWRs, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.JSONEq(t, `{"id":7}`, string(items[0]))
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))

	access, refresh := c.Tokens()
	assert.Equal(t, "fresh", access)
	assert.Equal(t, "refresh-1", refresh)
}

func TestHTTPClient_FailedRefreshReturnsUnauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(PathTokenRefresh, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc(ResourceDWRs, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv, WithTokens("stale", "expired"))
	_, err := c.List(context.Background(), ResourceDWRs, nil)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestHTTPClient_ProactiveRefreshBeforeExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiring := signed(t, jwt.MapClaims{"exp": now.Add(10 * time.Second).Unix(), "user_id": 3})

	var refreshes int32
	mux := http.NewServeMux()
	mux.HandleFunc(PathTokenRefresh, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshes, 1)
		_, _ = io.WriteString(w, `{"access":"fresh","refresh":"refresh-2"}`)
	})
	mux.HandleFunc(ResourceEmployees, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv, WithTokens(expiring, "refresh-1"))
	c.now = func() time.Time { return now }

	_, err := c.List(context.Background(), ResourceEmployees, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))
	_, refresh := c.Tokens()
	assert.Equal(t, "refresh-2", refresh)
}

func TestHTTPClient_ListFollowsNext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "":
			assert.Equal(t, "5", r.URL.Query().Get("assigned_rig"))
			next := "http://" + r.Host + ResourceSubprojects + "?assigned_rig=5&page=2"
			_ = json.NewEncoder(w).Encode(map[string]any{
				"count":   3,
				"next":    next,
				"results": []map[string]any{{"id": 1}, {"id": 2}},
			})
		case "2":
			_, _ = io.WriteString(w, `{"count":3,"next":null,"results":[{"id":3}]}`)
		default:
			t.Errorf("unexpected page %q", r.URL.RawQuery)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	items, err := c.List(context.Background(), ResourceSubprojects, url.Values{"assigned_rig": {"5"}})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.JSONEq(t, `{"id":3}`, string(items[2]))
}

func TestHTTPClient_ListBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":1},{"id":2}]`)
	}))
	defer srv.Close()

	items, err := newTestClient(t, srv).List(context.Background(), ResourceEmployeeTypes, nil)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestHTTPClient_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
		bulk   bool
	}{
		{http.StatusUnauthorized, ErrUnauthorized, false},
		{http.StatusForbidden, ErrUnauthorized, false},
		{http.StatusNotFound, ErrEndpointUnavailable, true},
		{http.StatusNotFound, ErrNotFound, true},
		{http.StatusMethodNotAllowed, ErrEndpointUnavailable, true},
		{http.StatusNotImplemented, ErrEndpointUnavailable, true},
		{http.StatusConflict, ErrConflict, false},
		{http.StatusBadGateway, ErrUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"detail":"nope"}`)
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv).Checkout(context.Background(), &CheckoutRequest{RigID: 1})
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.status, StatusOf(err))
			assert.Equal(t, tt.bulk, BulkUnavailable(err))

			var he *HTTPError
			require.True(t, errors.As(err, &he))
			assert.Contains(t, he.Body, "nope")
		})
	}
}

func TestHTTPClient_TransportErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := newTestClient(t, srv)
	srv.Close()

	_, err := c.Create(context.Background(), ResourceDWRs, map[string]any{"notes": "x"})
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 0, StatusOf(err))
	assert.False(t, BulkUnavailable(err))
	assert.Error(t, c.Ping(context.Background()))
}

func TestHTTPClient_Ping(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusNotFound)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathHealth, r.URL.Path)
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()
	c := newTestClient(t, srv)

	require.NoError(t, c.Ping(context.Background()))

	status.Store(http.StatusServiceUnavailable)
	require.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)
}

func TestHTTPClient_LoginStoresTokens(t *testing.T) {
	access := signed(t, jwt.MapClaims{"user_id": 42, "exp": time.Now().Add(time.Hour).Unix()})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathToken, r.URL.Path)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access": access, "refresh": "r"})
	}))
	defer srv.Close()
	c := newTestClient(t, srv)

	err := c.Login(context.Background(), "crew", "wrong")
	require.ErrorIs(t, err, ErrUnauthorized)
	_, ok := c.UserID()
	assert.False(t, ok)

	require.NoError(t, c.Login(context.Background(), "crew", "secret"))
	id, ok := c.UserID()
	require.True(t, ok)
	assert.Equal(t, int64(42), id)
}

func TestHTTPClient_CheckoutAndCheckin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(PathCheckout, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req CheckoutRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(5), req.RigID)
		assert.Equal(t, "dev-1", req.DeviceID)
		assert.Equal(t, models.DefaultCheckoutStatuses(), req.Statuses)
		_, _ = io.WriteString(w, `{"checkout_id":"co-1","checked_out_at":"2026-03-01T08:00:00Z",
			"expires_at":"2026-03-02T08:00:00Z","rig_id":5,
			"records":[{"id":11,"type":"daily_work_record","data":{"id":11}}]}`)
	})
	mux.HandleFunc(PathCheckin, func(w http.ResponseWriter, r *http.Request) {
		var req CheckinRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if assert.Len(t, req.Changes, 1) {
			assert.Equal(t, models.OpUpdate, req.Changes[0].Type)
		}
		_, _ = io.WriteString(w, `{"checkin_id":"ci-1","results":[{"entity":"daily_work_record","local_id":"l1","status":"success"}],"conflicts":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := newTestClient(t, srv)
	ctx := context.Background()

	co, err := c.Checkout(ctx, &CheckoutRequest{RigID: 5, Statuses: models.DefaultCheckoutStatuses(), DeviceID: "dev-1"})
	require.NoError(t, err)
	assert.Equal(t, "co-1", co.CheckoutID)
	assert.Equal(t, 24*time.Hour, co.ExpiresAt.Sub(co.CheckedOutAt))
	require.Len(t, co.Records, 1)
	assert.Equal(t, models.EntityDWR, co.Records[0].Type)

	ci, err := c.Checkin(ctx, &CheckinRequest{
		CheckoutID: "co-1",
		DeviceID:   "dev-1",
		Changes:    []models.Change{{Type: models.OpUpdate, Entity: models.EntityDWR, LocalID: "l1", Data: map[string]any{}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ci-1", ci.CheckinID)
	require.Len(t, ci.Results, 1)
	assert.Equal(t, "success", ci.Results[0].Status)
}

func TestHTTPClient_UpdateAndDeleteUseDetailURL(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.Path)
		mu.Unlock()
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = io.WriteString(w, `{"id":9}`)
	}))
	defer srv.Close()
	c := newTestClient(t, srv)
	ctx := context.Background()

	body, err := c.Update(ctx, ResourceTimeRecords, 9, map[string]any{"rig_time": "08:00"})
	require.NoError(t, err)
	id, err := decodeID(body)
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	require.NoError(t, c.Delete(ctx, ResourceTimeRecords, 9))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"PATCH /api/workrecords/employee-time-records/9/",
		"DELETE /api/workrecords/employee-time-records/9/",
	}, seen)
}

func decodeID(body json.RawMessage) (int64, error) {
	var v struct {
		ID int64 `json:"id"`
	}
	err := json.Unmarshal(body, &v)
	return v.ID, err
}

func TestEntityResource(t *testing.T) {
	for _, e := range models.EntityTypes {
		r, ok := EntityResource(e)
		assert.True(t, ok, e)
		assert.NotEmpty(t, r)
	}
	_, ok := EntityResource("unknown")
	assert.False(t, ok)
	assert.Equal(t, "/api/workrecords/charge-records/4/", Detail(ResourceChargeRecords, 4))
}
