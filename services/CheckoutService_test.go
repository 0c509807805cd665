package services

import (
	"context"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"ballunia/entities"
	"ballunia/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildCheckoutURL(t *testing.T) {
	items := []entities.CartLineItem{
		{Id: "l1", Type: entities.LineProduct, Quantity: 2, Product: &entities.ProductRef{Sku: "A", VariantId: "va"}},
		{Id: "l2", Type: entities.LineBundle, Quantity: 1, Bundle: &entities.BundlePayload{Items: []entities.BundleItem{
			{Id: "m1", VariantId: "vm1"},
			{Id: "m2"},
			{Id: "w1", VariantId: "vw1"},
		}}},
		{Id: "l3", Type: entities.LineProduct, Quantity: 1, Product: &entities.ProductRef{Sku: "B"}},
		{Id: "l4", Type: entities.LineBundle, Quantity: 1, Bundle: &entities.BundlePayload{}},
	}

	co := BuildCheckoutURL("https://ballunia.com/", items)
	assert.Equal(t, []string{"l3", "l4"}, co.Skipped)

	u, err := url.Parse(co.Url)
	require.NoError(t, err)
	assert.Equal(t, "ballunia.com", u.Host)
	assert.Equal(t, "/cart", u.Path)
	assert.Equal(t, "va:1,va:1,vm1:1,vw1:1", u.Query().Get("add"))
}

func TestBuildCheckoutURLEmpty(t *testing.T) {
	co := BuildCheckoutURL("https://ballunia.com", nil)
	assert.Empty(t, co.Url)
	assert.NotNil(t, co.Skipped)
	assert.Empty(t, co.Skipped)

	co = BuildCheckoutURL("https://ballunia.com", []entities.CartLineItem{
		{Id: "l1", Type: entities.LineProduct, Quantity: 3, Product: &entities.ProductRef{Sku: "A"}},
	})
	assert.Empty(t, co.Url)
	assert.Equal(t, []string{"l1"}, co.Skipped)
}

func TestBuildCheckoutURLCapsQuantity(t *testing.T) {
	co := BuildCheckoutURL("https://ballunia.com", []entities.CartLineItem{
		{Id: "l1", Type: entities.LineProduct, Quantity: math.MaxInt, Product: &entities.ProductRef{Sku: "A", VariantId: "va"}},
	})
	u, err := url.Parse(co.Url)
	require.NoError(t, err)
	assert.Len(t, strings.Split(u.Query().Get("add"), ","), MaxLineQuantity)
}

func TestSquarespaceCreateCart(t *testing.T) {
	var gotBody string
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotHeaders = r.Header.Clone()
		switch r.URL.Path {
		case "/1.0/commerce/carts":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"cart":{"id":"cart_123"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ss := NewSquarespaceService(srv.URL+"/1.0", "sq-key", "site-9", 5*time.Second, zap.NewNop())
	id, err := ss.CreateCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cart_123", id)
	assert.Equal(t, "{}", gotBody)
	assert.Equal(t, "Bearer sq-key", gotHeaders.Get("Authorization"))
	assert.Equal(t, "site-9", gotHeaders.Get("X-Site-Id"))
}

func TestSquarespaceCreateCartErrors(t *testing.T) {
	t.Run("missing credentials", func(t *testing.T) {
		ss := NewSquarespaceService("http://127.0.0.1:1", "", "site", time.Second, zap.NewNop())
		_, err := ss.CreateCart(context.Background())
		assert.ErrorIs(t, err, models.ErrServerError)
		assert.Contains(t, err.Error(), "Missing Squarespace API credentials")
	})

	for name, body := range map[string]string{
		"non json":   "<html>maintenance</html>",
		"no cart id": `{"cart":{}}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte(body))
			}))
			defer srv.Close()

			ss := NewSquarespaceService(srv.URL, "k", "s", time.Second, zap.NewNop())
			_, err := ss.CreateCart(context.Background())
			assert.ErrorIs(t, err, models.ErrMalformedUpstream)
		})
	}
}
