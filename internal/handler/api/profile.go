package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/restory/server/internal/domain"
	"github.com/restory/server/internal/handler"
)

// dateLayout is the wire format for date-only fields
const dateLayout = "2006-01-02"

// ProfileHandler handles user profile routes
type ProfileHandler struct {
	profiles domain.ProfileService
	logger   *slog.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profiles domain.ProfileService, logger *slog.Logger) *ProfileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileHandler{
		profiles: profiles,
		logger:   logger,
	}
}

type profileResponse struct {
	UserID      string          `json:"user_id"`
	Bio         string          `json:"bio"`
	DateOfBirth string          `json:"date_of_birth,omitempty"`
	Location    domain.Location `json:"location"`
	Interests   []string        `json:"interests"`
}

func toProfileResponse(p *domain.Profile) profileResponse {
	resp := profileResponse{
		UserID:    p.UserID,
		Bio:       p.Bio,
		Location:  p.Location,
		Interests: p.Interests,
	}
	if p.DateOfBirth != nil {
		resp.DateOfBirth = p.DateOfBirth.Format(dateLayout)
	}
	if resp.Interests == nil {
		resp.Interests = []string{}
	}
	return resp
}

// Get handles GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := domain.UserFromContext(r.Context())
	if !ok {
		handler.UnauthorizedResponse(w, r)
		return
	}

	profile, err := h.profiles.GetProfile(r.Context(), user.ID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, toProfileResponse(profile))
}

type upsertProfileRequest struct {
	Bio         string          `json:"bio" validate:"max=300"`
	DateOfBirth string          `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Location    domain.Location `json:"location"`
	Interests   []string        `json:"interests" validate:"max=20,dive,max=50"`
}

// Upsert handles PUT /api/profile
func (h *ProfileHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	user, ok := domain.UserFromContext(r.Context())
	if !ok {
		handler.UnauthorizedResponse(w, r)
		return
	}

	var req upsertProfileRequest
	if err := handler.Decode(r, &req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	params := domain.UpsertProfileParams{
		Bio:       req.Bio,
		Location:  req.Location,
		Interests: req.Interests,
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse(dateLayout, req.DateOfBirth)
		if err != nil {
			handler.ErrorResponse(w, r, domain.Invalid("profile.upsert", "date_of_birth must be in YYYY-MM-DD format"))
			return
		}
		params.DateOfBirth = &dob
	}

	profile, err := h.profiles.UpsertProfile(r.Context(), user.ID, params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, toProfileResponse(profile))
}
