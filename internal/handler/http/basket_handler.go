package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vasiliy-maslov/megano/internal/basket"
	"github.com/vasiliy-maslov/megano/internal/session"
)

type BasketHandler struct {
	service  basket.Service
	validate *validator.Validate
	now      func() time.Time
}

func NewBasketHandler(service basket.Service) *BasketHandler {
	return &BasketHandler{service: service, validate: newValidator(), now: time.Now}
}

func (h *BasketHandler) RegisterRoutes(router chi.Router) {
	router.Get("/api/basket", h.handleGetBasket)
	router.Post("/api/basket", h.handleAddToBasket)
	router.Delete("/api/basket", h.handleRemoveFromBasket)
}

func (h *BasketHandler) handleGetBasket(w http.ResponseWriter, r *http.Request) {
	h.respondWithBasket(w, r, session.FromContext(r.Context()).Basket())
}

func (h *BasketHandler) handleAddToBasket(w http.ResponseWriter, r *http.Request) {
	var requestPayload BasketRequest
	if !decodeJSON(w, r, &requestPayload, true) || !validateRequest(w, h.validate, requestPayload) {
		return
	}

	b := session.FromContext(r.Context()).Basket()
	if err := h.service.Add(r.Context(), b, requestPayload.ID, requestPayload.Count); err != nil {
		respondWithServiceError(w, err, "Failed to add product to basket")
		return
	}
	if !saveSession(w, r) {
		return
	}
	h.respondWithBasket(w, r, b)
}

func (h *BasketHandler) handleRemoveFromBasket(w http.ResponseWriter, r *http.Request) {
	var requestPayload BasketRequest
	if !decodeJSON(w, r, &requestPayload, true) || !validateRequest(w, h.validate, requestPayload) {
		return
	}

	b := session.FromContext(r.Context()).Basket()
	if err := h.service.Remove(r.Context(), b, requestPayload.ID, requestPayload.Count); err != nil {
		respondWithServiceError(w, err, "Failed to remove product from basket")
		return
	}
	if !saveSession(w, r) {
		return
	}
	h.respondWithBasket(w, r, b)
}

func (h *BasketHandler) respondWithBasket(w http.ResponseWriter, r *http.Request, b *basket.Basket) {
	lines, err := h.service.Lines(r.Context(), b)
	if err != nil {
		respondWithServiceError(w, err, "Failed to load basket")
		return
	}
	respondWithJSON(w, http.StatusOK, toBasketItems(lines, h.now()))
}
