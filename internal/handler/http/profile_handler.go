package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/megano/internal/auth"
	"github.com/vasiliy-maslov/megano/internal/profile"
	"github.com/vasiliy-maslov/megano/internal/session"
)

// maxAvatarRequest bounds the multipart body; the service enforces the
// exact avatar size limit.
const maxAvatarRequest = 4 << 20

type ProfileHandler struct {
	service  profile.Service
	tokens   *auth.Tokens
	validate *validator.Validate
}

func NewProfileHandler(service profile.Service, tokens *auth.Tokens) *ProfileHandler {
	return &ProfileHandler{service: service, tokens: tokens, validate: newValidator()}
}

func (h *ProfileHandler) RegisterRoutes(router chi.Router) {
	router.Post("/api/sign-in", h.handleSignIn)
	router.Post("/api/sign-up", h.handleSignUp)
	router.Post("/api/sign-out", h.handleSignOut)

	router.Group(func(r chi.Router) {
		r.Use(h.tokens.RequireUser)
		r.Get("/api/profile", h.handleGetProfile)
		r.Post("/api/profile", h.handleUpdateProfile)
		r.Post("/api/profile/password", h.handleChangePassword)
		r.Post("/api/profile/avatar", h.handleUploadAvatar)
	})
}

func (h *ProfileHandler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var requestPayload SignInRequest
	if !decodeJSON(w, r, &requestPayload, true) || !validateRequest(w, h.validate, requestPayload) {
		return
	}

	user, err := h.service.SignIn(r.Context(), requestPayload.Username, requestPayload.Password)
	if err != nil {
		respondWithServiceError(w, err, "Failed to sign in")
		return
	}
	h.startSession(w, r, user.ID, http.StatusOK)
}

func (h *ProfileHandler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var requestPayload SignUpRequest
	if !decodeJSON(w, r, &requestPayload, true) || !validateRequest(w, h.validate, requestPayload) {
		return
	}

	user, err := h.service.SignUp(r.Context(), requestPayload.Name, requestPayload.Username, requestPayload.Password)
	if err != nil {
		respondWithServiceError(w, err, "Failed to sign up")
		return
	}
	h.startSession(w, r, user.ID, http.StatusCreated)
}

// startSession binds the session to userID, keeping the basket, and returns
// a bearer token for API clients.
func (h *ProfileHandler) startSession(w http.ResponseWriter, r *http.Request, userID int64, code int) {
	sess := session.FromContext(r.Context())
	if err := sess.Login(r.Context(), userID); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to log session in")
		respondWithError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}
	if !saveSession(w, r) {
		return
	}

	token, err := h.tokens.Generate(userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to generate token")
		respondWithError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	respondWithJSON(w, code, TokenResponse{Token: token})
}

func (h *ProfileHandler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := session.FromContext(r.Context()).Destroy(r.Context(), w); err != nil {
		log.Error().Err(err).Msg("Failed to destroy session")
		respondWithError(w, http.StatusInternalServerError, "Failed to sign out")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *ProfileHandler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	p, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get profile")
		return
	}
	respondWithJSON(w, http.StatusOK, toProfile(p))
}

func (h *ProfileHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var requestPayload UpdateProfileRequest
	if !decodeJSON(w, r, &requestPayload, true) {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	p, err := h.service.UpdateProfile(r.Context(), userID, profile.Patch{
		FullName: requestPayload.FullName,
		Email:    requestPayload.Email,
		Phone:    requestPayload.Phone,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to update profile")
		return
	}
	respondWithJSON(w, http.StatusOK, toProfile(p))
}

func (h *ProfileHandler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var requestPayload ChangePasswordRequest
	if !decodeJSON(w, r, &requestPayload, true) || !validateRequest(w, h.validate, requestPayload) {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	err := h.service.ChangePassword(r.Context(), userID, requestPayload.CurrentPassword, requestPayload.NewPassword)
	if err != nil {
		respondWithServiceError(w, err, "Failed to change password")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *ProfileHandler) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarRequest)
	if err := r.ParseMultipartForm(maxAvatarRequest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithServiceError(w, profile.ErrAvatarTooLarge, "Avatar is too large")
			return
		}
		log.Warn().Err(err).Msg("Failed to parse avatar upload")
		respondWithError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		log.Warn().Err(err).Msg("Avatar file is missing")
		respondWithError(w, http.StatusBadRequest, "Avatar file is required")
		return
	}
	defer file.Close()

	userID, _ := auth.UserIDFromContext(r.Context())
	p, err := h.service.UploadAvatar(r.Context(), userID, header.Filename, header.Size, file)
	if err != nil {
		respondWithServiceError(w, err, "Failed to upload avatar")
		return
	}
	respondWithJSON(w, http.StatusOK, toProfile(p))
}
