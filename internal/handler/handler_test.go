package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayra/storefront/internal/domain/auth"
	"github.com/zayra/storefront/internal/domain/cart"
	"github.com/zayra/storefront/internal/domain/catalog"
	"github.com/zayra/storefront/internal/domain/coupon"
	"github.com/zayra/storefront/internal/domain/order"
	"github.com/zayra/storefront/internal/domain/user"
)

// --- Mock implementations ---

type mockCatalog struct {
	products map[string]catalog.Product
}

func (m *mockCatalog) FindByID(_ context.Context, id string) (*catalog.Product, error) {
	if p, ok := m.products[id]; ok {
		return &p, nil
	}
	return nil, catalog.ErrNotFound
}

func (m *mockCatalog) FindByIDs(_ context.Context, ids []string) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockCatalog) List(_ context.Context) ([]catalog.Product, error) { return nil, nil }

type mockCarts struct {
	cart *cart.Cart
}

func (m *mockCarts) Get(_ context.Context, _ string) (*cart.Cart, error) {
	return m.cart, nil
}

func (m *mockCarts) Clear(_ context.Context, _ string) error { return nil }

type mockUsers struct {
	users map[string]*user.User
}

func (m *mockUsers) ByID(_ context.Context, id string) (*user.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, user.ErrNotFound
}

type mockCouponRepo struct{}

func (m *mockCouponRepo) FindByCode(_ context.Context, _ string) (*coupon.Coupon, error) {
	return nil, coupon.ErrNotFound
}

func (m *mockCouponRepo) RecordUsage(_ context.Context, _, _ string, _, _ int64) error {
	return nil
}

func (m *mockCouponRepo) ReleaseUsage(_ context.Context, _, _ string) error {
	return nil
}

func (m *mockCouponRepo) ListUsages(_ context.Context, _ string) ([]coupon.Usage, error) {
	return nil, nil
}

// mockOrders keeps orders in memory and applies changes like the real
// repository would: only non-nil fields, updates appended.
type mockOrders struct {
	byID    map[string]*order.Order
	applied []*order.Change
}

func newMockOrders(os ...*order.Order) *mockOrders {
	byID := make(map[string]*order.Order, len(os))
	for _, o := range os {
		byID[o.ID] = o
	}
	return &mockOrders{byID: byID}
}

func (m *mockOrders) Create(_ context.Context, o *order.Order, _ bool) error {
	m.byID[o.ID] = o
	return nil
}

func (m *mockOrders) ByID(_ context.Context, id string) (*order.Order, error) {
	if o, ok := m.byID[id]; ok {
		return o, nil
	}
	return nil, order.ErrNotFound
}

func (m *mockOrders) ByUser(_ context.Context, userID string) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.byID {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrders) Apply(_ context.Context, ch *order.Change) error {
	m.applied = append(m.applied, ch)
	return nil
}

type mockAdminKeys struct {
	byHash map[string]*auth.AdminKeyInfo
}

func (m *mockAdminKeys) FindByHash(_ context.Context, hash string) (*auth.AdminKeyInfo, error) {
	if info, ok := m.byHash[hash]; ok {
		return info, nil
	}
	return nil, auth.ErrKeyNotFound
}

// --- Helpers ---

const (
	testPepper   = "test-pepper"
	testAdminKey = "admin-secret"
)

type testEnv struct {
	router http.Handler
	orders *mockOrders
}

func newTestEnv(t *testing.T, os ...*order.Order) *testEnv {
	t.Helper()

	catalogRepo := &mockCatalog{products: map[string]catalog.Product{
		"p1": {ID: "p1", Name: "Silk Kurta", Brand: "Zayra", Price: 1000},
	}}
	carts := &mockCarts{cart: &cart.Cart{
		UserID: "u1",
		Items:  []cart.Item{{ProductID: "p1", Size: "M", Quantity: 1}},
	}}
	users := &mockUsers{users: map[string]*user.User{
		"u1": {ID: "u1", FirstName: "Asha", LastName: "Rao", Email: "asha@example.com"},
	}}
	orders := newMockOrders(os...)

	engine := coupon.NewEngine(&mockCouponRepo{})
	assembler := order.NewAssembler(catalogRepo, carts, users, engine, orders)
	machine := order.NewStateMachine(orders)
	simulator := order.NewSimulator(orders)

	pepper := []byte(testPepper)
	keys := &mockAdminKeys{byHash: map[string]*auth.AdminKeyInfo{
		HashKey(pepper, testAdminKey): {
			ID:      "k1",
			KeyHash: HashKey(pepper, testAdminKey),
			Name:    "ops",
		},
	}}

	h := NewHandler(orders, users, assembler, machine, simulator, NewSecurity(keys, pepper))
	r := chi.NewRouter()
	h.Routes(r)

	return &testEnv{router: r, orders: orders}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func asUser(id string) map[string]string {
	return map[string]string{userIDHeader: id}
}

func testOrder(id, userID string) *order.Order {
	created := time.Now().Add(-time.Hour)
	o := &order.Order{
		ID:     id,
		UserID: userID,
		Items: []order.Item{
			{ProductID: "p1", Name: "Silk Kurta", Brand: "Zayra", Price: 1000, Quantity: 1, Size: "M"},
		},
		Totals: order.Totals{
			Subtotal: 1000, Tax: 180, Shipping: 99, Total: 1279,
		},
		PaymentMethod: order.PaymentCard,
		PaymentStatus: order.PaymentInitiated,
		Status:        order.StatusPendingPayment,
		ShippingAddress: order.Address{
			Name: "Asha Rao", Line1: "12 MG Road", City: "Bengaluru",
			State: "Karnataka", PostalCode: "560001",
		},
		Tracking: &order.Tracking{
			TrackingNumber:    "BD0000000001",
			Carrier:           "BlueDart",
			EstimatedDelivery: created.Add(96 * time.Hour),
		},
		CreatedAt: created,
	}
	o.Tracking.Append(order.TrackingUpdate{
		Status:    order.StatusPendingPayment,
		Message:   "Order received, awaiting payment",
		Source:    order.SourceSystem,
		Timestamp: created,
	})
	return o
}

func decodeOrder(t *testing.T, rec *httptest.ResponseRecorder) orderResponse {
	t.Helper()
	var resp orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// --- Tests ---

func TestCreateOrder(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/orders", createOrderRequest{
		PaymentMethod: "cod",
		ShippingAddress: order.Address{
			Line1: "12 MG Road", City: "Bengaluru",
			State: "Karnataka", PostalCode: "560001",
		},
	}, asUser("u1"))

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeOrder(t, rec)

	assert.Regexp(t, `^ZY\d{6}$`, resp.ID)
	assert.Equal(t, int64(1000), resp.Totals.Subtotal)
	assert.Equal(t, int64(180), resp.Totals.Tax)
	assert.Equal(t, int64(99), resp.Totals.Shipping)
	assert.Equal(t, int64(49), resp.Totals.CODCharges)
	assert.Equal(t, int64(1328), resp.Totals.Total)
	assert.Equal(t, order.PaymentOnDelivery, resp.PaymentStatus)
	assert.Equal(t, order.StatusConfirmed, resp.Status)
	// Name filled in from the account record.
	assert.Equal(t, "Asha Rao", resp.ShippingAddress.Name)
	require.NotNil(t, resp.Tracking)
	assert.Regexp(t, `^BD\d{10}$`, resp.Tracking.TrackingNumber)
}

func TestCreateOrder_MissingIdentity(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/orders", createOrderRequest{
		PaymentMethod: "cod",
		ShippingAddress: order.Address{
			Line1: "12 MG Road", City: "Bengaluru",
			State: "Karnataka", PostalCode: "560001",
		},
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateOrder_BadInput(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  createOrderRequest
	}{
		{
			name: "unknown payment method",
			req: createOrderRequest{
				PaymentMethod: "iou",
				ShippingAddress: order.Address{
					Line1: "12 MG Road", City: "Bengaluru",
					State: "Karnataka", PostalCode: "560001",
				},
			},
		},
		{
			name: "incomplete address",
			req:  createOrderRequest{PaymentMethod: "cod"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/orders", tt.req, asUser("u1"))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	catalogRepo := &mockCatalog{products: map[string]catalog.Product{}}
	carts := &mockCarts{cart: &cart.Cart{UserID: "u1"}}
	users := &mockUsers{users: map[string]*user.User{"u1": {ID: "u1", FirstName: "Asha"}}}
	orders := newMockOrders()
	assembler := order.NewAssembler(catalogRepo, carts, users, coupon.NewEngine(&mockCouponRepo{}), orders)
	h := NewHandler(orders, users, assembler, order.NewStateMachine(orders), order.NewSimulator(orders), NewSecurity(&mockAdminKeys{}, []byte(testPepper)))
	r := chi.NewRouter()
	h.Routes(r)
	env := &testEnv{router: r, orders: orders}

	rec := env.do(t, http.MethodPost, "/api/orders", createOrderRequest{
		PaymentMethod: "cod",
		ShippingAddress: order.Address{
			Line1: "12 MG Road", City: "Bengaluru",
			State: "Karnataka", PostalCode: "560001",
		},
	}, asUser("u1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrder(t *testing.T) {
	env := newTestEnv(t, testOrder("ZY000001", "u1"))

	rec := env.do(t, http.MethodGet, "/api/orders/ZY000001", nil, asUser("u1"))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeOrder(t, rec)
	assert.Equal(t, "ZY000001", resp.ID)
	require.NotNil(t, resp.Tracking)
	assert.Len(t, resp.Tracking.Updates, 1)
}

func TestGetOrder_NotOwner(t *testing.T) {
	env := newTestEnv(t, testOrder("ZY000001", "u2"))

	rec := env.do(t, http.MethodGet, "/api/orders/ZY000001", nil, asUser("u1"))
	// Indistinguishable from a missing order.
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOrder_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/orders/ZY999999", nil, asUser("u1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrders(t *testing.T) {
	env := newTestEnv(t, testOrder("ZY000001", "u1"), testOrder("ZY000002", "u2"))

	rec := env.do(t, http.MethodGet, "/api/orders", nil, asUser("u1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "ZY000001", resp[0].ID)
}

func TestConfirmPayment(t *testing.T) {
	env := newTestEnv(t, testOrder("ZY000001", "u1"))

	rec := env.do(t, http.MethodPost, "/api/orders/ZY000001/payment",
		paymentRequest{Status: "paid"}, asUser("u1"))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeOrder(t, rec)
	assert.Equal(t, order.PaymentPaid, resp.PaymentStatus)
	assert.Equal(t, order.StatusConfirmed, resp.Status)

	require.Len(t, env.orders.applied, 1)
	assert.True(t, env.orders.applied[0].ClearCart)
}

func TestConfirmPayment_Failed(t *testing.T) {
	env := newTestEnv(t, testOrder("ZY000001", "u1"))

	rec := env.do(t, http.MethodPost, "/api/orders/ZY000001/payment",
		paymentRequest{Status: "failed"}, asUser("u1"))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeOrder(t, rec)
	assert.Equal(t, order.PaymentFailed, resp.PaymentStatus)
}

func TestConfirmPayment_BadStatus(t *testing.T) {
	env := newTestEnv(t, testOrder("ZY000001", "u1"))

	rec := env.do(t, http.MethodPost, "/api/orders/ZY000001/payment",
		paymentRequest{Status: "maybe"}, asUser("u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmPayment_CODRejected(t *testing.T) {
	o := testOrder("ZY000001", "u1")
	o.PaymentMethod = order.PaymentCOD
	o.PaymentStatus = order.PaymentOnDelivery
	o.Status = order.StatusConfirmed
	env := newTestEnv(t, o)

	rec := env.do(t, http.MethodPost, "/api/orders/ZY000001/payment",
		paymentRequest{Status: "paid"}, asUser("u1"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTrackOrder(t *testing.T) {
	env := newTestEnv(t, testOrder("ZY000001", "u1"))

	rec := env.do(t, http.MethodPost, "/api/track",
		trackRequest{OrderID: "ZY000001", Email: "ASHA@example.COM"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeOrder(t, rec)
	assert.Equal(t, "ZY000001", resp.ID)
}

func TestTrackOrder_WrongEmail(t *testing.T) {
	env := newTestEnv(t, testOrder("ZY000001", "u1"))

	rec := env.do(t, http.MethodPost, "/api/track",
		trackRequest{OrderID: "ZY000001", Email: "mallory@example.com"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrackOrder_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/track", trackRequest{OrderID: "ZY000001"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminSetStatus(t *testing.T) {
	o := testOrder("ZY000001", "u1")
	o.PaymentStatus = order.PaymentPaid
	o.Status = order.StatusConfirmed
	env := newTestEnv(t, o)

	rec := env.do(t, http.MethodPatch, "/api/admin/orders/ZY000001/status",
		adminStatusRequest{Status: "shipped"},
		map[string]string{adminKeyHeader: testAdminKey})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeOrder(t, rec)
	assert.Equal(t, order.StatusShipped, resp.Status)
}

func TestAdminSetStatus_Cancel(t *testing.T) {
	env := newTestEnv(t, testOrder("ZY000001", "u1"))

	rec := env.do(t, http.MethodPatch, "/api/admin/orders/ZY000001/status",
		adminStatusRequest{Status: "cancelled"},
		map[string]string{adminKeyHeader: testAdminKey})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeOrder(t, rec)
	assert.Equal(t, order.StatusCancelled, resp.Status)
}

func TestAdminSetStatus_Unauthorized(t *testing.T) {
	env := newTestEnv(t, testOrder("ZY000001", "u1"))

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{name: "missing key", headers: nil},
		{name: "wrong key", headers: map[string]string{adminKeyHeader: "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPatch, "/api/admin/orders/ZY000001/status",
				adminStatusRequest{Status: "shipped"}, tt.headers)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAdminSetStatus_UnknownStatus(t *testing.T) {
	env := newTestEnv(t, testOrder("ZY000001", "u1"))

	rec := env.do(t, http.MethodPatch, "/api/admin/orders/ZY000001/status",
		adminStatusRequest{Status: "teleported"},
		map[string]string{adminKeyHeader: testAdminKey})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
