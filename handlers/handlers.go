package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"ballunia/entities"
	"ballunia/models"
	"ballunia/services"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	sessionCookie = "cartSessionId"
	sessionHeader = "X-Cart-Session"
	debugHeader   = "X-Debug-Token"
	sessionTTL    = 24 * time.Hour
)

type Handler struct {
	bs  services.BundleService
	cs  services.CartService
	ps  services.ProductService
	ds  services.DeliveryService
	sq  services.SquarespaceService
	log *zap.Logger

	airtableReady bool
}

type HandlerParams struct {
	BndService    services.BundleService
	CrtService    services.CartService
	PrdService    services.ProductService
	DlvService    services.DeliveryService
	SqsService    services.SquarespaceService
	Logger        *zap.Logger
	AirtableReady bool
}

func NewHandler(params HandlerParams) *Handler {
	return &Handler{
		bs:            params.BndService,
		cs:            params.CrtService,
		ps:            params.PrdService,
		ds:            params.DlvService,
		sq:            params.SqsService,
		log:           params.Logger,
		airtableReady: params.AirtableReady,
	}
}

// Register mounts every endpoint on router.
func (h *Handler) Register(router *mux.Router) {
	router.Use(h.ErrorHandleMiddleware)

	router.HandleFunc("/get-bundle-templates", h.GetBundleTemplates).Methods(http.MethodGet)
	router.HandleFunc("/get-bundle-config", h.GetBundleConfig).Methods(http.MethodGet)
	router.HandleFunc("/validate-bundle", h.ValidateBundle).Methods(http.MethodPost)
	router.HandleFunc("/get-products", h.GetProducts).Methods(http.MethodGet)
	router.HandleFunc("/debug-products", h.DebugProducts).Methods(http.MethodGet)
	router.HandleFunc("/service-area-check", h.ServiceAreaCheck).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/delivery-windows", h.DeliveryWindows).Methods(http.MethodGet)
	router.HandleFunc("/territories", h.Territories).Methods(http.MethodGet)
	router.HandleFunc("/create-cart", h.CreateCart).Methods(http.MethodPost)

	router.HandleFunc("/cart", h.GetCart).Methods(http.MethodGet)
	router.HandleFunc("/cart", h.ClearCart).Methods(http.MethodDelete)
	router.HandleFunc("/cart/items", h.AddToCart).Methods(http.MethodPost)
	router.HandleFunc("/cart/items/{id}", h.DeleteFromCart).Methods(http.MethodDelete)
	router.HandleFunc("/cart/items/{id}/quantity", h.SetQuantity).Methods(http.MethodPut)
	router.HandleFunc("/cart/bundles", h.CommitBundle).Methods(http.MethodPost)
	router.HandleFunc("/cart/checkout", h.Checkout).Methods(http.MethodGet)
}

// bundles

func (h *Handler) GetBundleTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.bs.ListTemplates(r.Context())
	if err != nil {
		h.log.Error("get-bundle-templates", zap.Error(err))
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

func (h *Handler) GetBundleConfig(w http.ResponseWriter, r *http.Request) {
	templateNK := r.URL.Query().Get("templateNK")
	if templateNK == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Missing templateNK parameter"})
		return
	}
	cfg, err := h.bs.Resolve(r.Context(), templateNK)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) ValidateBundle(w http.ResponseWriter, r *http.Request) {
	var req models.ValidateBundleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Info("unmarshal failed", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid body"})
		return
	}
	if req.TemplateNK == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Missing templateNK parameter"})
		return
	}
	v, err := h.bs.ValidateSelection(r.Context(), req.TemplateNK, req.Selection)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// products

func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.ps.ListProducts(r.Context())
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) DebugProducts(w http.ResponseWriter, r *http.Request) {
	records, err := h.ps.DebugProducts(r.Context(), r.Header.Get(debugHeader))
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// delivery

func (h *Handler) ServiceAreaCheck(w http.ResponseWriter, r *http.Request) {
	h.log.Info("service area request", zap.String("method", r.Method))
	if !h.airtableReady {
		WriteErrorResponse(w, models.ErrMissingCredentials)
		return
	}

	var zip string
	if r.Method == http.MethodPost {
		var body models.ZipRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid body"})
			return
		}
		zip = body.Zip
	} else {
		zip = r.URL.Query().Get("zip")
	}
	if strings.TrimSpace(zip) == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Missing zip parameter"})
		return
	}

	area, err := h.ds.CheckServiceArea(r.Context(), zip)
	if err != nil {
		var upstream *models.UpstreamStatusError
		if errors.As(err, &upstream) {
			writeJSON(w, upstream.Status, models.ErrorResponse{Error: upstream.Body})
			return
		}
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, area)
}

func (h *Handler) DeliveryWindows(w http.ResponseWriter, r *http.Request) {
	windows, err := h.ds.DeliveryWindows(r.Context(), r.URL.Query().Get("zip"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to fetch delivery windows",
			Details: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, windows)
}

func (h *Handler) Territories(w http.ResponseWriter, r *http.Request) {
	if !h.airtableReady {
		WriteErrorResponse(w, models.ErrMissingCredentials)
		return
	}
	records, err := h.ds.Territories(r.Context())
	if err != nil {
		var upstream *models.UpstreamStatusError
		if errors.As(err, &upstream) {
			writeJSON(w, upstream.Status, models.ErrorResponse{Error: upstream.Body})
			return
		}
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	cartId, err := h.sq.CreateCart(r.Context())
	if err != nil {
		h.log.Error("create-cart", zap.Error(err))
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"cartId": cartId})
}

// cart

func (h *Handler) session(w http.ResponseWriter, r *http.Request) string {
	if id := r.Header.Get(sessionHeader); id != "" {
		return id
	}
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := h.cs.CreateCartSession()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		Expires:  time.Now().Add(sessionTTL),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
	w.Header().Set(sessionHeader, id)
	return id
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.respondCart(w, func(sessionId string) (entities.CartResponse, error) {
		return h.cs.GetCart(r.Context(), sessionId)
	}, h.session(w, r))
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.respondCart(w, func(sessionId string) (entities.CartResponse, error) {
		return h.cs.Clear(r.Context(), sessionId)
	}, h.session(w, r))
}

func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var draft entities.CartDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		h.log.Info("unmarshal failed", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid body"})
		return
	}
	h.respondCart(w, func(sessionId string) (entities.CartResponse, error) {
		return h.cs.AddItem(r.Context(), sessionId, draft)
	}, h.session(w, r))
}

func (h *Handler) DeleteFromCart(w http.ResponseWriter, r *http.Request) {
	lineId := mux.Vars(r)["id"]
	h.respondCart(w, func(sessionId string) (entities.CartResponse, error) {
		return h.cs.RemoveItem(r.Context(), sessionId, lineId)
	}, h.session(w, r))
}

func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	lineId := mux.Vars(r)["id"]
	var body models.QuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Quantity == nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "quantity is required"})
		return
	}
	h.respondCart(w, func(sessionId string) (entities.CartResponse, error) {
		return h.cs.SetQuantity(r.Context(), sessionId, lineId, *body.Quantity)
	}, h.session(w, r))
}

func (h *Handler) CommitBundle(w http.ResponseWriter, r *http.Request) {
	var req models.CommitBundleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Info("unmarshal failed", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid body"})
		return
	}
	h.respondCart(w, func(sessionId string) (entities.CartResponse, error) {
		return h.cs.CommitBundle(r.Context(), sessionId, req)
	}, h.session(w, r))
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	co, err := h.cs.Checkout(r.Context(), h.session(w, r))
	if err != nil {
		if !errors.Is(err, models.ErrBadRequest) {
			h.log.Error("checkout", zap.Error(err))
		}
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, co)
}

func (h *Handler) respondCart(w http.ResponseWriter, op func(string) (entities.CartResponse, error), sessionId string) {
	cart, err := op(sessionId)
	if err != nil {
		if !errors.Is(err, models.ErrBadRequest) && !errors.Is(err, models.ErrValidationFailed) {
			h.log.Error("cart operation failed", zap.String("session", sessionId), zap.Error(err))
		}
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}
