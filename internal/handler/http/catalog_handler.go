package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/megano/internal/auth"
	"github.com/vasiliy-maslov/megano/internal/catalog"
	"github.com/vasiliy-maslov/megano/internal/profile"
)

type CatalogHandler struct {
	service  catalog.Service
	profiles profile.Service
	tokens   *auth.Tokens
	validate *validator.Validate
	now      func() time.Time
}

// NewCatalogHandler serves the catalog and product endpoints. profiles
// supplies the reviewer's name and email.
func NewCatalogHandler(service catalog.Service, profiles profile.Service, tokens *auth.Tokens) *CatalogHandler {
	return &CatalogHandler{service: service, profiles: profiles, tokens: tokens, validate: newValidator(), now: time.Now}
}

func (h *CatalogHandler) RegisterRoutes(router chi.Router) {
	router.Get("/api/categories", h.handleCategories)
	router.Get("/api/banners", h.handleBanners)
	router.Get("/api/catalog", h.handleCatalog)
	router.Get("/api/tags", h.handleTags)
	router.Get("/api/sales", h.handleSales)
	router.Get("/api/products/limited", h.handleLimited)
	router.Get("/api/products/popular", h.handlePopular)
	router.Get("/api/product/{id}", h.handleProduct)
	router.With(h.tokens.RequireUser).Post("/api/product/{id}/reviews", h.handleCreateReview)
}

func (h *CatalogHandler) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list categories")
		return
	}
	respondWithJSON(w, http.StatusOK, nonNil(categories))
}

func (h *CatalogHandler) handleBanners(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.Banners(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list banners")
		return
	}
	respondWithJSON(w, http.StatusOK, ItemsResponse[ProductShortResponse]{Items: toProductShorts(products, h.now())})
}

func (h *CatalogHandler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	filter, err := catalog.ParseFilter(r.URL.Query())
	if err != nil {
		respondWithServiceError(w, err, "Invalid catalog filter")
		return
	}

	page, err := h.service.Catalog(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list catalog")
		return
	}
	respondWithJSON(w, http.StatusOK, PageResponse[ProductShortResponse]{
		Items:       toProductShorts(page.Items, h.now()),
		CurrentPage: page.CurrentPage,
		LastPage:    page.LastPage,
	})
}

func (h *CatalogHandler) handleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.service.Tags(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list tags")
		return
	}
	respondWithJSON(w, http.StatusOK, nonNil(tags))
}

func (h *CatalogHandler) handleSales(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("currentPage"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			log.Warn().Str("current_page", raw).Msg("Invalid sales page")
			respondWithError(w, http.StatusBadRequest, "Invalid currentPage parameter")
			return
		}
		page = n
	}

	sales, err := h.service.Sales(r.Context(), page)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list sales")
		return
	}
	items := make([]SaleResponse, 0, len(sales.Items))
	for _, s := range sales.Items {
		items = append(items, toSale(s))
	}
	respondWithJSON(w, http.StatusOK, PageResponse[SaleResponse]{
		Items:       items,
		CurrentPage: sales.CurrentPage,
		LastPage:    sales.LastPage,
	})
}

func (h *CatalogHandler) handleLimited(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.Limited(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list limited products")
		return
	}
	respondWithJSON(w, http.StatusOK, toProductShorts(products, h.now()))
}

func (h *CatalogHandler) handlePopular(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.Popular(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list popular products")
		return
	}
	respondWithJSON(w, http.StatusOK, toProductShorts(products, h.now()))
}

func (h *CatalogHandler) handleProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.Product(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get product")
		return
	}
	respondWithJSON(w, http.StatusOK, toProductDetail(*p, h.now()))
}

func (h *CatalogHandler) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var requestPayload ReviewRequest
	if !decodeJSON(w, r, &requestPayload, false) || !validateRequest(w, h.validate, requestPayload) {
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	reviewer, err := h.profiles.GetProfile(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to load reviewer profile")
		return
	}

	review, err := h.service.CreateReview(r.Context(), catalog.ReviewInput{
		ProductID: id,
		Author:    reviewer.FullName,
		Email:     reviewer.Email,
		Text:      requestPayload.Text,
		Rate:      requestPayload.Rate,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to create review")
		return
	}
	respondWithJSON(w, http.StatusCreated, toReview(*review))
}
