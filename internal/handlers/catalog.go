package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/soudorock6666/Pet-Shop/internal/firebase"
	"github.com/soudorock6666/Pet-Shop/internal/middleware"
	"github.com/soudorock6666/Pet-Shop/internal/models"
	"github.com/soudorock6666/Pet-Shop/internal/services"
	"github.com/soudorock6666/Pet-Shop/pkg/utils"
)

// CatalogHandler handles product catalog HTTP endpoints.
//
// Reads are available to every authenticated user; mutations sit behind the
// admin capability middleware, which re-checks the caller's role on every
// request before the handler runs.
type CatalogHandler struct {
	catalog   *services.CatalogService  // Listing, lookups, watching
	mutations *services.MutationService // Validated submissions
	sessions  *services.SessionService  // Upstream token access
}

// NewCatalogHandler creates a catalog handler.
func NewCatalogHandler(
	catalog *services.CatalogService,
	mutations *services.MutationService,
	sessions *services.SessionService,
) *CatalogHandler {
	return &CatalogHandler{
		catalog:   catalog,
		mutations: mutations,
		sessions:  sessions,
	}
}

// ListProducts returns the catalog, optionally narrowed by the categoria
// query parameter (matched case-insensitively).
//
//	GET /api/v1/products?categoria=peixes
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	idToken, err := h.sessions.IDToken(r.Context(), session)
	if err != nil {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Session expired")
		return
	}

	categoria := r.URL.Query().Get("categoria")

	start := time.Now()
	products, err := h.catalog.List(r.Context(), idToken, categoria)
	if err != nil {
		middleware.RecordUpstreamRequest("store", "list_products", "error", time.Since(start))
		h.respondStoreError(w, r, err, "Failed to list products")
		return
	}
	middleware.RecordUpstreamRequest("store", "list_products", "success", time.Since(start))

	utils.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"products": products,
		"count":    len(products),
	})
}

// GetProduct returns a single product by id.
//
//	GET /api/v1/products/{id}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	idToken, err := h.sessions.IDToken(r.Context(), session)
	if err != nil {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Session expired")
		return
	}

	id := chi.URLParam(r, "id")
	product, err := h.catalog.Get(r.Context(), idToken, id)
	if err != nil {
		h.respondStoreError(w, r, err, "Failed to fetch product")
		return
	}

	utils.RespondWithJSON(w, r, http.StatusOK, product)
}

// CreateProduct validates and persists a new product. Admin only.
//
// The submission pipeline is strict: validation first (no network on a bad
// draft), then the image upload, then the document write. An upload failure
// aborts the whole submission.
//
//	POST /api/v1/products
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, "")
}

// UpdateProduct validates and merges a draft into an existing product.
// Admin only. Fields outside the draft survive untouched.
//
//	PUT /api/v1/products/{id}
func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Missing product ID")
		return
	}
	h.submit(w, r, id)
}

// submit runs the shared create/update path.
func (h *CatalogHandler) submit(w http.ResponseWriter, r *http.Request, existingID string) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var draft models.ProductDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Invalid request")
		return
	}

	idToken, err := h.sessions.IDToken(r.Context(), session)
	if err != nil {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Session expired")
		return
	}

	start := time.Now()
	id, err := h.mutations.Submit(r.Context(), idToken, &draft, existingID)
	if err != nil {
		var validationErr *services.ValidationError
		if errors.As(err, &validationErr) {
			utils.RespondWithFieldError(w, r, http.StatusBadRequest, validationErr.Field, validationErr.Message)
			return
		}
		middleware.RecordUpstreamRequest("store", "submit_product", "error", time.Since(start))
		log.Error().Err(err).Str("uid", session.UID).Msg("Product submission failed")
		h.respondStoreError(w, r, err, "Erro ao salvar produto")
		return
	}
	middleware.RecordUpstreamRequest("store", "submit_product", "success", time.Since(start))

	status := http.StatusOK
	if existingID == "" {
		status = http.StatusCreated
	}
	utils.RespondWithJSON(w, r, status, map[string]interface{}{
		"id":      id,
		"message": "Produto salvo com sucesso",
	})
}

// DeleteProduct removes a product from the catalog. Admin only.
//
//	DELETE /api/v1/products/{id}
func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Missing product ID")
		return
	}

	idToken, err := h.sessions.IDToken(r.Context(), session)
	if err != nil {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Session expired")
		return
	}

	if err := h.catalog.Delete(r.Context(), idToken, id); err != nil {
		h.respondStoreError(w, r, err, "Erro ao excluir produto")
		return
	}

	utils.RespondWithMessage(w, r, http.StatusOK, "Produto excluído com sucesso")
}

// WatchProducts streams catalog snapshots as server-sent events, optionally
// narrowed by the categoria query parameter. A snapshot event is sent
// immediately, then whenever the visible catalog changes. A failed upstream
// read ends the stream with an error event; clients reconnect to resume.
//
//	GET /api/v1/products/watch?categoria=racao
func (h *CatalogHandler) WatchProducts(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	idToken, err := h.sessions.IDToken(r.Context(), session)
	if err != nil {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Session expired")
		return
	}

	categoria := r.URL.Query().Get("categoria")
	watcher := h.catalog.Watch(r.Context(), idToken, categoria)
	defer watcher.Unsubscribe()

	middleware.WatcherStarted()
	defer middleware.WatcherStopped()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Err != nil {
				writeSSE(w, "error", map[string]string{"error": "watch failed"})
				flusher.Flush()
				return
			}
			if err := writeSSE(w, "snapshot", event.Products); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// respondStoreError maps document store failures onto HTTP responses.
func (h *CatalogHandler) respondStoreError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, firebase.ErrNotFound):
		utils.RespondWithError(w, r, http.StatusNotFound, "Produto não encontrado")
	case errors.Is(err, firebase.ErrPermissionDenied):
		utils.RespondWithError(w, r, http.StatusForbidden, "Você não tem permissão para realizar esta ação")
	default:
		log.Error().Err(err).Msg("Document store request failed")
		utils.RespondWithError(w, r, http.StatusBadGateway, fallback)
	}
}

// writeSSE writes one server-sent event with a JSON payload.
func writeSSE(w http.ResponseWriter, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
