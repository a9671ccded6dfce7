package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/megano/internal/auth"
	"github.com/vasiliy-maslov/megano/internal/order"
	"github.com/vasiliy-maslov/megano/internal/session"
)

type OrderHandler struct {
	service  order.Service
	tokens   *auth.Tokens
	validate *validator.Validate
}

func NewOrderHandler(service order.Service, tokens *auth.Tokens) *OrderHandler {
	return &OrderHandler{service: service, tokens: tokens, validate: newValidator()}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Group(func(r chi.Router) {
		r.Use(h.tokens.RequireUser)
		r.Get("/api/orders", h.handleListOrders)
		r.Post("/api/orders", h.handleCreateOrder)
		r.Get("/api/order/{id}", h.handleGetOrder)
		r.Post("/api/order/{id}", h.handleUpdateCheckout)
		r.Post("/api/payment/{id}", h.handlePayment)
	})
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	details, err := h.service.List(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}

	responsePayload := make([]OrderResponse, 0, len(details))
	for _, d := range details {
		responsePayload = append(responsePayload, toOrder(d))
	}
	respondWithJSON(w, http.StatusOK, responsePayload)
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var requestPayload []OrderProductRequest
	if !decodeJSON(w, r, &requestPayload, false) {
		return
	}

	ids := make([]int64, 0, len(requestPayload))
	for _, p := range requestPayload {
		if !validateRequest(w, h.validate, p) {
			return
		}
		ids = append(ids, p.ID)
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	b := session.FromContext(r.Context()).Basket()

	orderID, err := h.service.Create(r.Context(), userID, b, ids)
	if err != nil {
		respondWithServiceError(w, err, "Failed to create order")
		return
	}
	respondWithJSON(w, http.StatusOK, OrderCreatedResponse{OrderID: orderID})
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	d, err := h.service.Get(r.Context(), userID, orderID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get order")
		return
	}
	respondWithJSON(w, http.StatusOK, toOrder(*d))
}

func (h *OrderHandler) handleUpdateCheckout(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var requestPayload CheckoutRequest
	if !decodeJSON(w, r, &requestPayload, false) {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	d, err := h.service.UpdateCheckout(r.Context(), userID, orderID, order.Checkout{
		FullName:     requestPayload.FullName,
		Email:        requestPayload.Email,
		Phone:        requestPayload.Phone,
		DeliveryType: requestPayload.DeliveryType,
		PaymentType:  requestPayload.PaymentType,
		City:         requestPayload.City,
		Address:      requestPayload.Address,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to update order")
		return
	}
	respondWithJSON(w, http.StatusOK, toOrder(*d))
}

// handlePayment accepts the order and empties the basket.
func (h *OrderHandler) handlePayment(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var requestPayload PaymentRequest
	if !decodeJSON(w, r, &requestPayload, false) || !validateRequest(w, h.validate, requestPayload) {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	err := h.service.Pay(r.Context(), userID, orderID, order.Card{
		Number: requestPayload.Number,
		Name:   requestPayload.Name,
		Month:  requestPayload.Month,
		Year:   requestPayload.Year,
		Code:   requestPayload.Code,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to pay for order")
		return
	}

	session.FromContext(r.Context()).Basket().Clear()
	if !saveSession(w, r) {
		log.Error().Int64("order_id", orderID).Msg("Order paid but basket could not be cleared")
		return
	}
	w.WriteHeader(http.StatusOK)
}
