package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"maps"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/DeliveryGo/internal/auth"
	"github.com/utafrali/DeliveryGo/internal/domain"
	"github.com/utafrali/DeliveryGo/internal/repository"
	"github.com/utafrali/DeliveryGo/internal/service"
	"github.com/utafrali/DeliveryGo/pkg/health"
	"github.com/utafrali/DeliveryGo/pkg/httputil"
	"github.com/utafrali/DeliveryGo/pkg/middleware"
	"github.com/utafrali/DeliveryGo/pkg/pagination"
)

// ============================================================================
// Test harness
// ============================================================================

const testPassword = "correct-horse-battery"

var testPasswordHash = sync.OnceValue(func() string {
	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		panic(err)
	}
	return hash
})

type nopEvents struct{}

func (nopEvents) PublishOrderCreated(context.Context, *domain.Order) error { return nil }
func (nopEvents) PublishOrderStatusChanged(context.Context, string, string, string) error {
	return nil
}
func (nopEvents) PublishOrderCancelled(context.Context, string, string) error     { return nil }
func (nopEvents) PublishStockUpdated(context.Context, *domain.Product, int) error { return nil }

type testAPI struct {
	t       *testing.T
	store   *memStore
	tokens  *auth.TokenManager
	handler http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	store := newMemStore()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	reg := prometheus.NewRegistry()

	users := service.NewUserService(memUsers{store}, tokens, logger)
	products := service.NewProductService(memProducts{store}, nil, nopEvents{}, logger)
	addresses := service.NewAddressService(memAddresses{store}, logger)
	orders := service.NewOrderService(memOrders{store}, nopEvents{}, service.NewOrderMetrics(reg), logger)

	handler := NewRouter(RouterConfig{
		Users:         users,
		Products:      products,
		Addresses:     addresses,
		Orders:        orders,
		ValidateToken: tokens.Subject,
		TokenExpiry:   tokens.Expiry(),
		Health:        health.NewHandler(),
		Metrics:       middleware.NewHTTPMetrics(reg, serviceName),
		Gatherer:      reg,
		CORS:          middleware.CORSConfig{AllowedOrigins: []string{"*"}},
		Logger:        logger,
	})

	return &testAPI{t: t, store: store, tokens: tokens, handler: handler}
}

func (a *testAPI) addUser(email string, admin bool) *domain.User {
	a.t.Helper()
	now := time.Now().UTC()
	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: testPasswordHash(),
		IsActive:     true,
		IsSuperuser:  admin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(a.t, memUsers{a.store}.Create(context.Background(), u))
	return u
}

func (a *testAPI) tokenFor(u *domain.User) string {
	a.t.Helper()
	token, err := a.tokens.Issue(u.ID)
	require.NoError(a.t, err)
	return token
}

func (a *testAPI) addProduct(name string, price int64, stock int) *domain.Product {
	a.t.Helper()
	p := &domain.Product{
		ID:            uuid.NewString(),
		Name:          name,
		Price:         price,
		IsAvailable:   true,
		StockQuantity: stock,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(a.t, memProducts{a.store}.Create(context.Background(), p))
	return p
}

func (a *testAPI) addAddress(owner *domain.User, street string, isDefault bool) *domain.Address {
	a.t.Helper()
	addr := &domain.Address{
		ID:         uuid.NewString(),
		UserID:     owner.ID,
		Street:     street,
		City:       "Moscow",
		PostalCode: "101000",
		Country:    domain.DefaultCountry,
		IsDefault:  isDefault,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(a.t, memAddresses{a.store}.Create(context.Background(), addr))
	return addr
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	return envelope.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	require.NotNil(t, resp.Error, rec.Body.String())
	return *resp.Error
}

// ============================================================================
// Authentication
// ============================================================================

func TestLogin_PasswordForm(t *testing.T) {
	api := newTestAPI(t)
	alice := api.addUser("alice@example.com", false)

	form := url.Values{"username": {"Alice@Example.com"}, "password": {testPassword}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login/access-token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token := decodeData[TokenResponse](t, rec)
	assert.Equal(t, "bearer", token.TokenType)
	assert.Equal(t, int64(3600), token.ExpiresIn)

	rec = api.do(http.MethodPost, "/api/v1/login/test-token", token.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	me := decodeData[domain.User](t, rec)
	assert.Equal(t, alice.ID, me.ID)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestLogin_MultipartForm(t *testing.T) {
	api := newTestAPI(t)
	api.addUser("alice@example.com", false)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("username", "alice@example.com"))
	require.NoError(t, mw.WriteField("password", testPassword))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/login/access-token", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decodeData[TokenResponse](t, rec).AccessToken)
}

func TestLogin_JSONUsernameAlias(t *testing.T) {
	api := newTestAPI(t)
	api.addUser("alice@example.com", false)

	rec := api.do(http.MethodPost, "/api/v1/login/access-token", "", map[string]string{
		"username": "alice@example.com",
		"password": testPassword,
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decodeData[TokenResponse](t, rec).AccessToken)
}

func TestLogin_WrongPassword(t *testing.T) {
	api := newTestAPI(t)
	api.addUser("alice@example.com", false)

	for _, creds := range []map[string]string{
		{"email": "alice@example.com", "password": "nope"},
		{"email": "nobody@example.com", "password": testPassword},
	} {
		rec := api.do(http.MethodPost, "/api/v1/login/access-token", "", creds)
		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "INVALID_CREDENTIALS", decodeError(t, rec).Code)
	}
}

func TestLogin_InactiveUser(t *testing.T) {
	api := newTestAPI(t)
	u := api.addUser("alice@example.com", false)
	u.IsActive = false
	require.NoError(t, memUsers{api.store}.Update(context.Background(), u))

	rec := api.do(http.MethodPost, "/api/v1/login/access-token", "", map[string]string{
		"email": "alice@example.com", "password": testPassword,
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INACTIVE_USER", decodeError(t, rec).Code)
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing token", token: ""},
		{name: "garbage token", token: "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(http.MethodGet, "/api/v1/orders", tt.token, nil)
			require.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, "INVALID_CREDENTIALS", decodeError(t, rec).Code)
		})
	}
}

func TestDeletedUserToken_NotFound(t *testing.T) {
	api := newTestAPI(t)
	alice := api.addUser("alice@example.com", false)
	token := api.tokenFor(alice)
	require.NoError(t, memUsers{api.store}.Delete(context.Background(), alice.ID))

	rec := api.do(http.MethodGet, "/api/v1/users/me", token, nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)
}

// ============================================================================
// Users
// ============================================================================

func TestRegister_ThenDuplicate(t *testing.T) {
	api := newTestAPI(t)
	body := map[string]string{"email": "new@example.com", "password": "s3cret", "full_name": "New User"}

	rec := api.do(http.MethodPost, "/api/v1/users", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeData[domain.User](t, rec)
	assert.True(t, created.IsActive)
	assert.False(t, created.IsSuperuser)

	rec = api.do(http.MethodPost, "/api/v1/users", "", body)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_EXISTS", decodeError(t, rec).Code)
}

func TestUsers_NonJSONBodyRejected(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader("email=x"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestUsers_AdminOnlyListing(t *testing.T) {
	api := newTestAPI(t)
	admin := api.addUser("admin@example.com", true)
	alice := api.addUser("alice@example.com", false)

	rec := api.do(http.MethodGet, "/api/v1/users", api.tokenFor(alice), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "PERMISSION_DENIED", decodeError(t, rec).Code)

	rec = api.do(http.MethodGet, "/api/v1/users", api.tokenFor(admin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeData[pagination.Result[domain.User]](t, rec)
	assert.Equal(t, 2, page.Total)
}

func TestUsers_ReadOtherUser(t *testing.T) {
	api := newTestAPI(t)
	alice := api.addUser("alice@example.com", false)
	bob := api.addUser("bob@example.com", false)

	rec := api.do(http.MethodGet, "/api/v1/users/"+bob.ID, api.tokenFor(alice), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/users/"+alice.ID, api.tokenFor(alice), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ============================================================================
// Products
// ============================================================================

func TestProducts_WritesRequireAdmin(t *testing.T) {
	api := newTestAPI(t)
	admin := api.addUser("admin@example.com", true)
	alice := api.addUser("alice@example.com", false)
	body := map[string]any{"name": "Pizza", "price": 1200, "stock_quantity": 5}

	rec := api.do(http.MethodPost, "/api/v1/products", api.tokenFor(alice), body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "PERMISSION_DENIED", decodeError(t, rec).Code)

	rec = api.do(http.MethodPost, "/api/v1/products", api.tokenFor(admin), body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeData[domain.Product](t, rec)
	assert.True(t, created.IsAvailable)

	rec = api.do(http.MethodGet, "/api/v1/products/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=30", rec.Header().Get("Cache-Control"))
}

func TestProducts_ListFilters(t *testing.T) {
	api := newTestAPI(t)
	api.addProduct("Margherita", 900, 3)
	api.addProduct("Pepperoni", 1100, 0)

	rec := api.do(http.MethodGet, "/api/v1/products?available=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeData[pagination.Result[domain.Product]](t, rec)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Margherita", page.Items[0].Name)

	rec = api.do(http.MethodGet, "/api/v1/products?name=Pepperoni", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[pagination.Result[domain.Product]](t, rec).Items, 1)

	rec = api.do(http.MethodGet, "/api/v1/products?name=Calzone", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeData[pagination.Result[domain.Product]](t, rec).Items)

	rec = api.do(http.MethodGet, "/api/v1/products?available=maybe", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", decodeError(t, rec).Code)
}

func TestProducts_StockClampsAtZero(t *testing.T) {
	api := newTestAPI(t)
	admin := api.addUser("admin@example.com", true)
	p := api.addProduct("Soup", 500, 4)

	rec := api.do(http.MethodPatch, "/api/v1/products/"+p.ID+"/stock", api.tokenFor(admin), map[string]int{"delta": -10})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 0, decodeData[domain.Product](t, rec).StockQuantity)
}

func TestProducts_PriceAndStockBounds(t *testing.T) {
	api := newTestAPI(t)
	token := api.tokenFor(api.addUser("admin@example.com", true))

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "price above maximum", body: map[string]any{"name": "Caviar", "price": int64(1)<<62 + 1}},
		{name: "stock above int32", body: map[string]any{"name": "Caviar", "price": 100, "stock_quantity": 3000000000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(http.MethodPost, "/api/v1/products", token, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
		})
	}
}

func TestProducts_UpdateKeepsStockWhenUnset(t *testing.T) {
	api := newTestAPI(t)
	token := api.tokenFor(api.addUser("admin@example.com", true))
	p := api.addProduct("Soup", 500, 10)

	rec := api.do(http.MethodPatch, "/api/v1/products/"+p.ID+"/stock", token, map[string]int{"delta": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPut, "/api/v1/products/"+p.ID, token, map[string]any{"name": "Cold soup"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeData[domain.Product](t, rec)
	assert.Equal(t, "Cold soup", updated.Name)
	assert.Equal(t, 15, updated.StockQuantity)
}

// ============================================================================
// Addresses
// ============================================================================

func TestAddresses_SetDefault(t *testing.T) {
	api := newTestAPI(t)
	alice := api.addUser("alice@example.com", false)
	token := api.tokenFor(alice)
	first := api.addAddress(alice, "Tverskaya 1", true)
	second := api.addAddress(alice, "Arbat 2", false)

	rec := api.do(http.MethodPost, "/api/v1/addresses/"+second.ID+"/default", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeData[domain.Address](t, rec).IsDefault)

	rec = api.do(http.MethodGet, "/api/v1/addresses/default", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, second.ID, decodeData[domain.Address](t, rec).ID)

	rec = api.do(http.MethodGet, "/api/v1/addresses/"+first.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeData[domain.Address](t, rec).IsDefault)
}

func TestAddresses_CreateDefaultsCountry(t *testing.T) {
	api := newTestAPI(t)
	alice := api.addUser("alice@example.com", false)

	rec := api.do(http.MethodPost, "/api/v1/addresses", api.tokenFor(alice), map[string]any{
		"street": "Nevsky 10", "city": "Saint Petersburg", "postal_code": "190000",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeData[domain.Address](t, rec)
	assert.Equal(t, domain.DefaultCountry, created.Country)
	assert.Equal(t, alice.ID, created.UserID)
}

func TestAddresses_FieldLengthsMatchColumns(t *testing.T) {
	api := newTestAPI(t)
	token := api.tokenFor(api.addUser("alice@example.com", false))
	base := map[string]any{"street": "Nevsky 10", "city": "Saint Petersburg", "postal_code": "190000"}

	for _, field := range []string{"floor", "entrance"} {
		t.Run(field, func(t *testing.T) {
			body := maps.Clone(base)
			body[field] = strings.Repeat("9", 11)

			rec := api.do(http.MethodPost, "/api/v1/addresses", token, body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
		})
	}
}

func TestAddresses_AdminListRejectsMalformedUserID(t *testing.T) {
	api := newTestAPI(t)
	admin := api.addUser("admin@example.com", true)

	rec := api.do(http.MethodGet, "/api/v1/addresses?user_id=not-a-uuid", api.tokenFor(admin), nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", decodeError(t, rec).Code)
}

func TestAddresses_NoDefault(t *testing.T) {
	api := newTestAPI(t)
	alice := api.addUser("alice@example.com", false)

	rec := api.do(http.MethodGet, "/api/v1/addresses/default", api.tokenFor(alice), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddresses_ForeignAddressDenied(t *testing.T) {
	api := newTestAPI(t)
	alice := api.addUser("alice@example.com", false)
	bob := api.addUser("bob@example.com", false)
	addr := api.addAddress(bob, "Arbat 2", false)

	rec := api.do(http.MethodDelete, "/api/v1/addresses/"+addr.ID, api.tokenFor(alice), nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "PERMISSION_DENIED", decodeError(t, rec).Code)
	_, err := memAddresses{api.store}.GetByID(context.Background(), addr.ID)
	assert.NoError(t, err)
}

// ============================================================================
// Orders
// ============================================================================

func TestOrders_CreateComputesTotal(t *testing.T) {
	api := newTestAPI(t)
	alice := api.addUser("alice@example.com", false)
	addr := api.addAddress(alice, "Tverskaya 1", true)
	burger := api.addProduct("Burger", 10, 5)
	fries := api.addProduct("Fries", 5, 5)

	rec := api.do(http.MethodPost, "/api/v1/orders", api.tokenFor(alice), map[string]any{
		"address_id":   addr.ID,
		"delivery_fee": 3,
		"items": []map[string]any{
			{"product_id": burger.ID, "quantity": 2},
			{"product_id": fries.ID, "quantity": 1},
		},
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decodeData[domain.Order](t, rec)
	assert.Equal(t, int64(25), order.TotalAmount)
	assert.Equal(t, int64(3), order.DeliveryFee)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, alice.ID, order.UserID)
	require.Len(t, order.Items, 2)
	assert.Equal(t, int64(10), order.Items[0].UnitPrice)
}

func TestOrders_CreateWithUnknownProduct(t *testing.T) {
	api := newTestAPI(t)
	alice := api.addUser("alice@example.com", false)
	addr := api.addAddress(alice, "Tverskaya 1", true)
	burger := api.addProduct("Burger", 10, 5)

	rec := api.do(http.MethodPost, "/api/v1/orders", api.tokenFor(alice), map[string]any{
		"address_id": addr.ID,
		"items": []map[string]any{
			{"product_id": burger.ID, "quantity": 1},
			{"product_id": uuid.NewString(), "quantity": 1},
		},
	})

	require.Equal(t, http.StatusNotFound, rec.Code)
	orders, total, err := memOrders{api.store}.List(context.Background(), repository.OrderFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, orders)
}

func TestOrders_CreateRejectsTotalOverflow(t *testing.T) {
	api := newTestAPI(t)
	alice := api.addUser("alice@example.com", false)
	addr := api.addAddress(alice, "Tverskaya 1", true)
	caviar := api.addProduct("Caviar", domain.MaxProductPrice, 1)

	items := make([]map[string]any, 1000)
	for i := range items {
		items[i] = map[string]any{"product_id": caviar.ID, "quantity": domain.MaxItemQuantity}
	}
	rec := api.do(http.MethodPost, "/api/v1/orders", api.tokenFor(alice), map[string]any{
		"address_id": addr.ID,
		"items":      items,
	})

	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
	_, total, err := memOrders{api.store}.List(context.Background(), repository.OrderFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestOrders_PriceChangeKeepsSnapshot(t *testing.T) {
	api := newTestAPI(t)
	admin := api.addUser("admin@example.com", true)
	alice := api.addUser("alice@example.com", false)
	order := api.placeOrder(alice)
	productID := order.Items[0].ProductID

	rec := api.do(http.MethodPut, "/api/v1/products/"+productID, api.tokenFor(admin), map[string]any{"price": 999})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(999), decodeData[domain.Product](t, rec).Price)

	rec = api.do(http.MethodGet, "/api/v1/orders/"+order.ID, api.tokenFor(alice), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	details := decodeData[domain.OrderDetails](t, rec)
	assert.Equal(t, int64(20), details.Total)
	require.Len(t, details.Items, 1)
	assert.Equal(t, int64(10), details.Items[0].UnitPrice)
	assert.Equal(t, int64(20), details.Items[0].TotalPrice)
}

func TestOrders_CreateOnForeignAddress(t *testing.T) {
	api := newTestAPI(t)
	alice := api.addUser("alice@example.com", false)
	bob := api.addUser("bob@example.com", false)
	addr := api.addAddress(bob, "Arbat 2", true)
	burger := api.addProduct("Burger", 10, 5)

	rec := api.do(http.MethodPost, "/api/v1/orders", api.tokenFor(alice), map[string]any{
		"address_id": addr.ID,
		"items":      []map[string]any{{"product_id": burger.ID, "quantity": 1}},
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "PERMISSION_DENIED", decodeError(t, rec).Code)
}

func TestOrders_CreateValidation(t *testing.T) {
	api := newTestAPI(t)
	alice := api.addUser("alice@example.com", false)
	addr := api.addAddress(alice, "Tverskaya 1", true)

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "no items", body: map[string]any{"address_id": addr.ID, "items": []any{}}},
		{name: "zero quantity", body: map[string]any{
			"address_id": addr.ID,
			"items":      []map[string]any{{"product_id": uuid.NewString(), "quantity": 0}},
		}},
		{name: "quantity above maximum", body: map[string]any{
			"address_id": addr.ID,
			"items":      []map[string]any{{"product_id": uuid.NewString(), "quantity": 10001}},
		}},
		{name: "quantity beyond int32", body: map[string]any{
			"address_id": addr.ID,
			"items":      []map[string]any{{"product_id": uuid.NewString(), "quantity": 3000000000}},
		}},
		{name: "negative fee", body: map[string]any{
			"address_id":   addr.ID,
			"delivery_fee": -1,
			"items":        []map[string]any{{"product_id": uuid.NewString(), "quantity": 1}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(http.MethodPost, "/api/v1/orders", api.tokenFor(alice), tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
		})
	}
}

func TestOrders_CancelThenDeliverRejected(t *testing.T) {
	api := newTestAPI(t)
	admin := api.addUser("admin@example.com", true)
	alice := api.addUser("alice@example.com", false)
	order := api.placeOrder(alice)

	rec := api.do(http.MethodDelete, "/api/v1/orders/"+order.ID, api.tokenFor(alice), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.OrderStatusCancelled, decodeData[domain.Order](t, rec).Status)

	rec = api.do(http.MethodPatch, "/api/v1/orders/"+order.ID+"/status", api.tokenFor(admin),
		map[string]string{"status": domain.OrderStatusDelivered})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", decodeError(t, rec).Code)

	stored, err := memOrders{api.store}.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, stored.Status)
}

func TestOrders_DeliveredCannotBeCancelled(t *testing.T) {
	api := newTestAPI(t)
	admin := api.addUser("admin@example.com", true)
	alice := api.addUser("alice@example.com", false)
	order := api.placeOrder(alice)

	rec := api.do(http.MethodPatch, "/api/v1/orders/"+order.ID+"/status", api.tokenFor(admin),
		map[string]string{"status": domain.OrderStatusDelivered})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodDelete, "/api/v1/orders/"+order.ID, api.tokenFor(alice), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", decodeError(t, rec).Code)
}

func TestOrders_StatusChangeRequiresAdmin(t *testing.T) {
	api := newTestAPI(t)
	alice := api.addUser("alice@example.com", false)
	order := api.placeOrder(alice)

	rec := api.do(http.MethodPatch, "/api/v1/orders/"+order.ID+"/status", api.tokenFor(alice),
		map[string]string{"status": domain.OrderStatusConfirmed})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPut, "/api/v1/orders/"+order.ID, api.tokenFor(alice),
		map[string]any{"status": domain.OrderStatusConfirmed})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPut, "/api/v1/orders/"+order.ID, api.tokenFor(alice),
		map[string]any{"special_instructions": "ring twice"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeData[domain.Order](t, rec)
	assert.Equal(t, "ring twice", updated.SpecialInstructions)
	assert.Equal(t, domain.OrderStatusPending, updated.Status)
}

func TestOrders_RejectedStatusLeavesFieldsUntouched(t *testing.T) {
	api := newTestAPI(t)
	admin := api.addUser("admin@example.com", true)
	alice := api.addUser("alice@example.com", false)
	order := api.placeOrder(alice)
	token := api.tokenFor(admin)

	rec := api.do(http.MethodDelete, "/api/v1/orders/"+order.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPut, "/api/v1/orders/"+order.ID, token, map[string]any{
		"status":  domain.OrderStatusPending,
		"is_paid": true,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", decodeError(t, rec).Code)

	stored, err := memOrders{api.store}.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, stored.Status)
	assert.False(t, stored.IsPaid)
}

func TestOrders_AdminStatusAndFieldsTogether(t *testing.T) {
	api := newTestAPI(t)
	admin := api.addUser("admin@example.com", true)
	alice := api.addUser("alice@example.com", false)
	order := api.placeOrder(alice)

	rec := api.do(http.MethodPut, "/api/v1/orders/"+order.ID, api.tokenFor(admin), map[string]any{
		"status":         domain.OrderStatusConfirmed,
		"payment_method": "card",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeData[domain.Order](t, rec)
	assert.Equal(t, domain.OrderStatusConfirmed, updated.Status)
	assert.Equal(t, "card", updated.PaymentMethod)
}

func TestOrders_VisibilityAndDetails(t *testing.T) {
	api := newTestAPI(t)
	admin := api.addUser("admin@example.com", true)
	alice := api.addUser("alice@example.com", false)
	bob := api.addUser("bob@example.com", false)
	order := api.placeOrder(alice)

	rec := api.do(http.MethodGet, "/api/v1/orders/"+order.ID, api.tokenFor(bob), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "PERMISSION_DENIED", decodeError(t, rec).Code)

	rec = api.do(http.MethodGet, "/api/v1/orders/"+order.ID, api.tokenFor(admin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	details := decodeData[domain.OrderDetails](t, rec)
	assert.Equal(t, order.ID, details.OrderID)
	require.NotNil(t, details.Address)
	require.Len(t, details.Items, 1)
	assert.Equal(t, "Burger", details.Items[0].ProductName)
	assert.Equal(t, int64(20), details.Items[0].TotalPrice)

	rec = api.do(http.MethodGet, "/api/v1/orders", api.tokenFor(bob), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decodeData[pagination.Result[domain.Order]](t, rec).Total)

	rec = api.do(http.MethodGet, "/api/v1/orders?user_id="+alice.ID, api.tokenFor(admin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeData[pagination.Result[domain.Order]](t, rec).Total)
}

func TestOrders_ListRejectsBadDays(t *testing.T) {
	api := newTestAPI(t)
	alice := api.addUser("alice@example.com", false)

	rec := api.do(http.MethodGet, "/api/v1/orders?days=0", api.tokenFor(alice), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", decodeError(t, rec).Code)

	rec = api.do(http.MethodGet, "/api/v1/orders?status=lost", api.tokenFor(alice), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrders_AdminListRejectsMalformedUserID(t *testing.T) {
	api := newTestAPI(t)
	admin := api.addUser("admin@example.com", true)

	rec := api.do(http.MethodGet, "/api/v1/orders?user_id=42", api.tokenFor(admin), nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", decodeError(t, rec).Code)
}

// ============================================================================
// Operational endpoints
// ============================================================================

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func (a *testAPI) placeOrder(owner *domain.User) *domain.Order {
	a.t.Helper()
	addr := a.addAddress(owner, "Tverskaya 1", true)
	burger := a.addProduct("Burger", 10, 5)

	rec := a.do(http.MethodPost, "/api/v1/orders", a.tokenFor(owner), map[string]any{
		"address_id": addr.ID,
		"items":      []map[string]any{{"product_id": burger.ID, "quantity": 2}},
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return ptr(decodeData[domain.Order](a.t, rec))
}

func ptr[T any](v T) *T { return &v }
