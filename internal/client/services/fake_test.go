package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/client"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/store"
	"github.com/stretchr/testify/require"
)

// fakeClient emulates the REST API in memory. Unset hooks fall back to
// canned collections and sequential server ids.
type fakeClient struct {
	client.Client

	mu       sync.Mutex
	checkout func(req *client.CheckoutRequest) (*client.CheckoutResponse, error)
	checkin  func(req *client.CheckinRequest) (*client.CheckinResponse, error)
	list     func(resource string, params url.Values) ([]json.RawMessage, error)
	create   func(resource string, body any) (json.RawMessage, error)
	update   func(resource string, id int64, body any) (json.RawMessage, error)
	del      func(resource string, id int64) error

	lists  map[string][]json.RawMessage
	nextID int64
	userID int64

	checkouts []*client.CheckoutRequest
	checkins  []*client.CheckinRequest
	calls     []string
	bodies    []map[string]any
}

func newFakeClient() *fakeClient {
	return &fakeClient{lists: map[string][]json.RawMessage{}, nextID: 1000}
}

func (f *fakeClient) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeClient) Close() error                   { return nil }
func (f *fakeClient) Ping(ctx context.Context) error { return nil }

func (f *fakeClient) Login(ctx context.Context, username, password string) error {
	if password != "secret" {
		return &client.HTTPError{Status: 401, Body: "bad credentials"}
	}
	f.userID = 42
	return nil
}

func (f *fakeClient) UserID() (int64, bool) { return f.userID, f.userID != 0 }

func (f *fakeClient) Checkout(ctx context.Context, req *client.CheckoutRequest) (*client.CheckoutResponse, error) {
	f.record("POST checkout")
	f.checkouts = append(f.checkouts, req)
	if f.checkout == nil {
		return nil, &client.HTTPError{Status: 404}
	}
	return f.checkout(req)
}

func (f *fakeClient) Checkin(ctx context.Context, req *client.CheckinRequest) (*client.CheckinResponse, error) {
	f.record("POST checkin")
	f.checkins = append(f.checkins, req)
	if f.checkin == nil {
		return nil, &client.HTTPError{Status: 404}
	}
	return f.checkin(req)
}

func (f *fakeClient) List(ctx context.Context, resource string, params url.Values) ([]json.RawMessage, error) {
	f.record("GET " + resource)
	if f.list != nil {
		return f.list(resource, params)
	}
	return f.lists[resource], nil
}

func (f *fakeClient) Create(ctx context.Context, resource string, body any) (json.RawMessage, error) {
	f.record("POST " + resource)
	if m, ok := body.(map[string]any); ok {
		f.bodies = append(f.bodies, m)
	}
	if f.create != nil {
		return f.create(resource, body)
	}
	f.nextID++
	return json.RawMessage(fmt.Sprintf(`{"id": %d}`, f.nextID)), nil
}

func (f *fakeClient) Update(ctx context.Context, resource string, id int64, body any) (json.RawMessage, error) {
	f.record(fmt.Sprintf("PATCH %s%d/", resource, id))
	if f.update != nil {
		return f.update(resource, id, body)
	}
	return json.RawMessage(fmt.Sprintf(`{"id": %d}`, id)), nil
}

func (f *fakeClient) Delete(ctx context.Context, resource string, id int64) error {
	f.record(fmt.Sprintf("DELETE %s%d/", resource, id))
	if f.del != nil {
		return f.del(resource, id)
	}
	return nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func dwrJSON(id, subproject int64, status string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"id": %d, "subproject": %d, "date": "2025-05-01", "notes": "n%d", "status": %q}`,
		id, subproject, id, status))
}

func checkoutOf(now time.Time, ttl time.Duration, ids ...int64) func(*client.CheckoutRequest) (*client.CheckoutResponse, error) {
	return func(req *client.CheckoutRequest) (*client.CheckoutResponse, error) {
		resp := &client.CheckoutResponse{
			CheckoutID:   fmt.Sprintf("co-%d", ids[0]),
			CheckedOutAt: now,
			ExpiresAt:    now.Add(ttl),
			RigID:        req.RigID,
		}
		for _, id := range ids {
			resp.Records = append(resp.Records, client.CheckoutRecord{ID: id, Type: "daily_work_record", Data: dwrJSON(id, 7, "draft")})
		}
		return resp, nil
	}
}
