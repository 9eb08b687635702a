package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"grocery/internal/auth"
	"grocery/internal/metrics"
	"grocery/internal/models"
	"grocery/internal/order"
	"grocery/internal/repo/memory"
)

type testServer struct {
	t       *testing.T
	store   *memory.Store
	handler http.Handler
	metrics *metrics.Metrics
	items   map[string]models.GroceryItem
}

func newTestServer(t *testing.T, placer OrderPlacer) *testServer {
	t.Helper()
	store := memory.NewStore()
	issuer := auth.NewIssuer("test-secret", time.Hour)
	m := metrics.New()

	if placer == nil {
		placer = order.NewEngine(store, store, store, order.WithRecorder(m))
	}

	s := &testServer{t: t, store: store, metrics: m, items: map[string]models.GroceryItem{}}
	s.handler = NewRouter(Deps{
		Logger:         zap.NewNop(),
		Observer:       m,
		MetricsHandler: m.Handler(),
		Verifier:       issuer,
		Auth:           auth.NewService(store, issuer, nil),
		Placer:         placer,
		Items:          store,
		Orders:         store,
	})

	s.seed("Milk", "10", 5)
	s.seed("Bread", "15", 10)
	s.seed("Saffron", "99.99", 0)
	return s
}

func (s *testServer) seed(name, price string, qty int) {
	item := models.GroceryItem{Name: name, Price: decimal.RequireFromString(price), Quantity: qty}
	require.NoError(s.t, s.store.CreateItem(context.Background(), &item))
	s.items[name] = item
}

func (s *testServer) do(method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

// signUp registers a user and returns its token and id.
func (s *testServer) signUp(username string, role models.Role) (string, int64) {
	s.t.Helper()
	rec, body := s.do(http.MethodPost, "/api/auth/signup", "", map[string]any{
		"username": username, "password": "hunter22", "role": role,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	data := body["data"].(map[string]any)
	user := data["user"].(map[string]any)
	return data["token"].(string), int64(user["id"].(float64))
}

func TestHealthAndRequestID(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestSignUpAndLogin(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := s.do(http.MethodPost, "/api/auth/signup", "", map[string]any{
		"username": "alice", "password": "hunter22", "role": "User",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["success"])
	user := body["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.NotContains(t, user, "passwordHash")
	assert.NotContains(t, user, "PasswordHash")

	rec, _ = s.do(http.MethodPost, "/api/auth/signup", "", map[string]any{
		"username": "alice", "password": "hunter22", "role": "User",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/auth/signup", "", `{"username":"bob","password":"hunter22","role":"User","admin":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, role := range []string{"Owner", "Admin"} {
		rec, _ = s.do(http.MethodPost, "/api/auth/signup", "", map[string]any{
			"username": "bob", "password": "hunter22", "role": role,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, role)
	}

	rec, body = s.do(http.MethodPost, "/api/auth/login", "", map[string]any{"username": "alice", "password": "hunter22"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["data"].(map[string]any)["token"])

	for _, creds := range []map[string]any{
		{"username": "alice", "password": "wrong-one"},
		{"username": "nobody", "password": "hunter22"},
	} {
		rec, body = s.do(http.MethodPost, "/api/auth/login", "", creds)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Incorrect username or password", body["message"])
	}
}

func TestUserRoutesRequireUserRole(t *testing.T) {
	s := newTestServer(t, nil)
	adminToken, err := auth.NewIssuer("test-secret", time.Hour).Issue(&models.User{ID: 99, Username: "root", Role: models.RoleAdmin})
	require.NoError(t, err)

	rec, body := s.do(http.MethodGet, "/api/user/grocery-items/available", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, auth.MsgTokenMissing, body["message"])

	rec, body = s.do(http.MethodGet, "/api/user/grocery-items/available", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, auth.MsgForbidden, body["message"])
}

func TestAvailableItems(t *testing.T) {
	s := newTestServer(t, nil)
	token, _ := s.signUp("alice", models.RoleUser)

	rec, body := s.do(http.MethodGet, "/api/user/grocery-items/available?sortBy=price&orderBy=asc", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(2), data["totalCount"])
	assert.Equal(t, float64(1), data["currentPage"])
	assert.Equal(t, float64(models.DefaultPageSize), data["pageSize"])
	items := data["groceryItems"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "Milk", items[0].(map[string]any)["name"])
	assert.Equal(t, "10", items[0].(map[string]any)["price"])

	rec, body = s.do(http.MethodGet, "/api/user/grocery-items/available?q=BREAD", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["data"].(map[string]any)["totalCount"])

	rec, body = s.do(http.MethodGet, "/api/user/grocery-items/available?q=saffron", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "error", body["status"])
	assert.Nil(t, body["data"])
}

func TestPlaceOrder(t *testing.T) {
	s := newTestServer(t, nil)
	token, userID := s.signUp("alice", models.RoleUser)
	milk, bread := s.items["Milk"], s.items["Bread"]

	rec, body := s.do(http.MethodPost, "/api/user/grocery-items/order", token, map[string]any{
		"userId": userID,
		"items": []map[string]any{
			{"itemId": milk.ID, "quantity": 2},
			{"itemId": bread.ID, "quantity": 3},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Order placed successfully", body["message"])
	placed := body["order"].(map[string]any)
	assert.Equal(t, "65", placed["totalAmount"])
	assert.Equal(t, "Placed", placed["status"])
	lines := body["orderItems"].([]any)
	require.Len(t, lines, 2)
	assert.Equal(t, "20", lines[0].(map[string]any)["totalPrice"])
	assert.Equal(t, "45", lines[1].(map[string]any)["totalPrice"])

	stock, err := s.store.FindByIDs(context.Background(), []int64{milk.ID, bread.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, stock[milk.ID].Quantity)
	assert.Equal(t, 7, stock[bread.ID].Quantity)
}

func TestPlaceOrderRejections(t *testing.T) {
	s := newTestServer(t, nil)
	token, userID := s.signUp("alice", models.RoleUser)
	milk := s.items["Milk"]

	rec, body := s.do(http.MethodPost, "/api/user/grocery-items/order", token, map[string]any{
		"userId": userID,
		"items":  []map[string]any{{"itemId": milk.ID, "quantity": 10}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "One or more items are not available in sufficient quantity", body["message"])
	assert.Equal(t, []any{float64(milk.ID)}, body["unavailableItems"])

	rec, body = s.do(http.MethodPost, "/api/user/grocery-items/order", token, map[string]any{
		"userId": userID + 1,
		"items":  []map[string]any{{"itemId": milk.ID, "quantity": 1}},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, auth.MsgInvalidUserParam, body["message"])

	rec, _ = s.do(http.MethodPost, "/api/user/grocery-items/order", token, map[string]any{
		"userId": userID,
		"items":  []map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/user/grocery-items/order", token,
		fmt.Sprintf(`{"userId":%d,"items":[{"itemId":%d,"quantity":1,"price":"0.01"}]}`, userID, milk.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/user/grocery-items/order", token, `{"userId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = s.do(http.MethodPost, "/api/user/grocery-items/order", token,
		fmt.Sprintf(`{"userId":%d,"items":[{"itemId":%d,"quantity":9223372036854775807},{"itemId":%[2]d,"quantity":9223372036854775807},{"itemId":%[2]d,"quantity":3}]}`,
			userID, milk.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid order request", body["message"])

	stock, err := s.store.FindByIDs(context.Background(), []int64{milk.ID})
	require.NoError(t, err)
	assert.Equal(t, 5, stock[milk.ID].Quantity)
}

type failingPlacer struct{}

func (failingPlacer) PlaceOrder(context.Context, int64, []order.Line) (*order.Placement, error) {
	return nil, fmt.Errorf("%w: insert: %w", order.ErrPersistence, errors.New("pq: connection refused"))
}

func TestPlaceOrderInternalErrorHidesDetails(t *testing.T) {
	s := newTestServer(t, failingPlacer{})
	token, userID := s.signUp("alice", models.RoleUser)

	rec, body := s.do(http.MethodPost, "/api/user/grocery-items/order", token, map[string]any{
		"userId": userID,
		"items":  []map[string]any{{"itemId": 1, "quantity": 1}},
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"message": "Internal server error"}, body)
}

func TestOrderHistory(t *testing.T) {
	s := newTestServer(t, nil)
	token, userID := s.signUp("alice", models.RoleUser)
	otherToken, otherID := s.signUp("bob", models.RoleUser)
	milk, bread := s.items["Milk"], s.items["Bread"]

	place := func(tok string, uid int64, itemID int64, qty int) int64 {
		rec, body := s.do(http.MethodPost, "/api/user/grocery-items/order", tok, map[string]any{
			"userId": uid,
			"items":  []map[string]any{{"itemId": itemID, "quantity": qty}},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		return int64(body["order"].(map[string]any)["id"].(float64))
	}
	first := place(token, userID, milk.ID, 1)
	place(token, userID, bread.ID, 2)
	theirs := place(otherToken, otherID, bread.ID, 1)

	rec, body := s.do(http.MethodGet, fmt.Sprintf("/api/user/orders/%d", userID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(2), data["totalCount"])
	assert.Len(t, data["orders"], 2)

	rec, body = s.do(http.MethodGet, fmt.Sprintf("/api/user/orders/%d", otherID), token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, auth.MsgInvalidUserParam, body["message"])

	rec, body = s.do(http.MethodGet, fmt.Sprintf("/api/user/orders/%d/items", userID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["data"].(map[string]any)["totalCount"])

	rec, body = s.do(http.MethodGet, fmt.Sprintf("/api/user/orders/%d/items/%d", userID, first), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lines := body["data"].(map[string]any)["orderItems"].([]any)
	require.Len(t, lines, 1)
	assert.Equal(t, "Milk", lines[0].(map[string]any)["itemName"])

	rec, _ = s.do(http.MethodGet, fmt.Sprintf("/api/user/orders/%d/items/%d", userID, theirs), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(http.MethodGet, fmt.Sprintf("/api/user/orders/%d/items/abc", userID), token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(http.MethodGet, "/health", "", nil)

	rec, _ := s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/health",status="OK"} 1`)
}

func TestPanicsAreRecovered(t *testing.T) {
	s := newTestServer(t, panickingPlacer{})
	token, userID := s.signUp("alice", models.RoleUser)

	rec, _ := s.do(http.MethodPost, "/api/user/grocery-items/order", token, map[string]any{
		"userId": userID,
		"items":  []map[string]any{{"itemId": 1, "quantity": 1}},
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type panickingPlacer struct{}

func (panickingPlacer) PlaceOrder(context.Context, int64, []order.Line) (*order.Placement, error) {
	panic("boom")
}
