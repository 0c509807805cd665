package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ballunia/airtabletest"
	"ballunia/entities"
	"ballunia/repository"
	"ballunia/services"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testOrigins = []string{"https://shop.ballunia.com", "http://localhost:5173", "http://localhost:8888"}

type testEnv struct {
	airtable *airtabletest.Server
	handler  http.Handler
}

func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()
	at := airtabletest.NewServer()
	t.Cleanup(at.Close)
	at.SeedCatalog()
	at.Add("Territories",
		airtabletest.Record("recT1", map[string]any{"Zip Code": "94110", "Territory Name": "SF Mission"}),
	)

	log := zap.NewNop()
	client, err := repository.NewAirtableClient(repository.AirtableConfig{
		BaseURL:   at.APIURL(),
		Token:     token,
		BaseID:    airtabletest.BaseID,
		Timeout:   5 * time.Second,
		RateLimit: 1000,
	}, log)
	require.NoError(t, err)
	catalog, err := repository.NewCatalogRepository(client)
	require.NoError(t, err)
	delivery, err := repository.NewDeliveryRepository(client, "Territories")
	require.NoError(t, err)

	bs := services.NewBundleService(catalog, log)
	h := NewHandler(HandlerParams{
		BndService:    bs,
		CrtService:    services.NewCartService(repository.NewMemoryStore(), &bs, "https://ballunia.com", log),
		PrdService:    services.NewProductService(catalog, "", log),
		DlvService:    services.NewDeliveryService(delivery, log),
		SqsService:    services.NewSquarespaceService("http://127.0.0.1:1", "", "", time.Second, log),
		Logger:        log,
		AirtableReady: client.Configured(),
	})
	router := mux.NewRouter()
	h.Register(router)
	return &testEnv{airtable: at, handler: CORS(testOrigins, router)}
}

func (e *testEnv) do(t *testing.T, method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Origin", "http://localhost:5173")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func sessionCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "cartSessionId" {
			return c
		}
	}
	t.Fatal("no cartSessionId cookie set")
	return nil
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, airtabletest.Token)

	t.Run("known origin is echoed", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/get-bundle-templates", nil)
		assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", rec.Header().Get("Vary"))
		assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
	})

	t.Run("unknown origin falls back", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/get-bundle-templates", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		assert.Equal(t, "https://shop.ballunia.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("empty allow-list grants no origin", func(t *testing.T) {
		h := CORS(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("preflight", func(t *testing.T) {
		rec := env.do(t, http.MethodOptions, "/cart/bundles", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	})
}

func TestGetBundleConfig(t *testing.T) {
	env := newTestEnv(t, airtabletest.Token)

	t.Run("resolved", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/get-bundle-config?templateNK=CLASSIC", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		cfg := decode[entities.BundleConfig](t, rec)
		assert.Equal(t, "CLASSIC", cfg.Template.NK)
		assert.Len(t, cfg.Products.Main, 3)
		assert.Contains(t, rec.Body.String(), `"latex":[]`)
	})

	t.Run("unknown template", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/get-bundle-config?templateNK=NOPE", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"Bundle Template not found"}`, rec.Body.String())
	})

	t.Run("missing parameter", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/get-bundle-config", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Missing templateNK parameter"}`, rec.Body.String())
	})
}

func TestMissingAirtableCredentials(t *testing.T) {
	env := newTestEnv(t, "")

	for _, target := range []string{"/get-bundle-config?templateNK=CLASSIC", "/service-area-check?zip=94110", "/territories"} {
		rec := env.do(t, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, target)
		assert.JSONEq(t, `{"error":"Missing Airtable credentials"}`, rec.Body.String(), target)
	}
}

func TestServiceAreaCheck(t *testing.T) {
	env := newTestEnv(t, airtabletest.Token)

	rec := env.do(t, http.MethodGet, "/service-area-check?zip=94110", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"zip":"94110","inService":true,"territory":"SF Mission"}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/service-area-check", map[string]string{"zip": "10001"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"zip":"10001","inService":false,"territory":null}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/service-area-check", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.airtable.Fail("Territories", http.StatusForbidden)
	rec = env.do(t, http.MethodGet, "/service-area-check?zip=94110", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeliveryWindowsFailure(t *testing.T) {
	env := newTestEnv(t, airtabletest.Token)
	env.airtable.Fail("Delivery Windows", http.StatusInternalServerError)

	rec := env.do(t, http.MethodGet, "/delivery-windows?zip=94110", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"Failed to fetch delivery windows"`)
	assert.Contains(t, rec.Body.String(), `"details":`)
}

func TestValidateBundle(t *testing.T) {
	env := newTestEnv(t, airtabletest.Token)

	rec := env.do(t, http.MethodPost, "/validate-bundle", map[string]any{
		"templateNK": "CLASSIC",
		"selection":  map[string]any{"main": []string{"recM1"}, "accent": []string{"recA1", "recA2"}, "weight": []string{"recW1"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"valid":false,"messages":["Select at least 3 main balloons."]}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/validate-bundle", map[string]any{
		"templateNK": "CLASSIC",
		"selection": map[string]any{
			"main":   []string{"recM1", "recM2", "recM3"},
			"accent": []string{"recA1", "recA2"},
			"weight": []string{"recW1", "recW2"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"valid":false,"messages":["Select exactly 1 weight."]}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/validate-bundle", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDebugProductsRequiresToken(t *testing.T) {
	env := newTestEnv(t, airtabletest.Token)
	rec := env.do(t, http.MethodGet, "/debug-products", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateCartWithoutCredentials(t *testing.T) {
	env := newTestEnv(t, airtabletest.Token)
	rec := env.do(t, http.MethodPost, "/create-cart", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing Squarespace API credentials")
}

func TestCartFlow(t *testing.T) {
	env := newTestEnv(t, airtabletest.Token)

	rec := env.do(t, http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"subtotal":0,"totalQty":0}`, rec.Body.String())
	session := sessionCookieFrom(t, rec)

	rec = env.do(t, http.MethodPost, "/cart/items", map[string]any{
		"type": "product", "name": "Pump", "price": 15, "quantity": 2,
		"product": map[string]any{"sku": "BX-9", "variantId": "var-9"},
	}, session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cart := decode[entities.CartResponse](t, rec)
	require.Len(t, cart.Items, 1)
	pumpId := cart.Items[0].Id

	rec = env.do(t, http.MethodPost, "/cart/bundles", map[string]any{
		"templateNK": "CLASSIC",
		"selection": map[string]any{
			"main":   []string{"recM1", "recM2", "recM3"},
			"accent": []string{"recA1", "recA2"},
			"weight": []string{"recW1"},
		},
	}, session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cart = decode[entities.CartResponse](t, rec)
	assert.Len(t, cart.Items, 2)
	assert.Equal(t, 115.0, cart.Subtotal)

	rec = env.do(t, http.MethodPost, "/cart/bundles", map[string]any{
		"templateNK": "CLASSIC",
		"selection":  map[string]any{"main": []string{"recM1"}},
	}, session)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Select at least 3 main balloons.")

	rec = env.do(t, http.MethodPut, "/cart/items/"+pumpId+"/quantity", map[string]any{"quantity": 3}, session)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, decode[entities.CartResponse](t, rec).TotalQty)

	rec = env.do(t, http.MethodPut, "/cart/items/"+pumpId+"/quantity", map[string]any{}, session)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/cart/checkout", nil, session)
	require.Equal(t, http.StatusOK, rec.Code)
	co := decode[entities.Checkout](t, rec)
	assert.True(t, strings.HasPrefix(co.Url, "https://ballunia.com/cart?add="))
	assert.Empty(t, co.Skipped)

	rec = env.do(t, http.MethodDelete, "/cart/items/"+pumpId, nil, session)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[entities.CartResponse](t, rec).Items, 1)

	rec = env.do(t, http.MethodGet, "/cart", nil)
	assert.Empty(t, decode[entities.CartResponse](t, rec).Items)

	rec = env.do(t, http.MethodDelete, "/cart", nil, session)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[entities.CartResponse](t, rec).Items)
}

func TestCartQuantityBounds(t *testing.T) {
	env := newTestEnv(t, airtabletest.Token)

	rec := env.do(t, http.MethodPost, "/cart/items", map[string]any{
		"type": "product", "name": "Pump", "price": 15, "quantity": 1e20,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	session := sessionCookieFrom(t, rec)

	rec = env.do(t, http.MethodPost, "/cart/items", map[string]any{
		"type": "product", "name": "Pump", "price": 15, "quantity": 1.5,
	}, session)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/cart/items", map[string]any{
		"type": "product", "name": "Pump", "price": 15, "quantity": services.MaxLineQuantity,
		"product": map[string]any{"sku": "BX-9", "variantId": "var-9"},
	}, session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cart := decode[entities.CartResponse](t, rec)
	require.Len(t, cart.Items, 1)
	lineId := cart.Items[0].Id

	for _, qty := range []any{1e20, -0.5, 2.25, services.MaxLineQuantity + 1} {
		rec = env.do(t, http.MethodPut, "/cart/items/"+lineId+"/quantity", map[string]any{"quantity": qty}, session)
		assert.Equal(t, http.StatusBadRequest, rec.Code, qty)
	}

	rec = env.do(t, http.MethodGet, "/cart", nil, session)
	assert.Equal(t, services.MaxLineQuantity, decode[entities.CartResponse](t, rec).TotalQty)
}

func TestCheckoutEmptyCart(t *testing.T) {
	env := newTestEnv(t, airtabletest.Token)

	rec := env.do(t, http.MethodGet, "/cart/checkout", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No items selected.")
}

func TestErrorHandleMiddlewareRecovers(t *testing.T) {
	h := NewHandler(HandlerParams{Logger: zap.NewNop()})
	router := mux.NewRouter()
	router.Use(h.ErrorHandleMiddleware)
	router.HandleFunc("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "something went wrong")
}
