package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/restory/server/internal/auth"
	"github.com/restory/server/internal/domain"
	"github.com/restory/server/internal/handler"
)

// AuthHandler handles registration and login routes
type AuthHandler struct {
	users  domain.UserService
	tokens *auth.TokenManager
	logger *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users domain.UserService, tokens *auth.TokenManager, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// Field names mirror what the web client submits and renders.
type userResponse struct {
	ID        string `json:"id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
}

type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Firstname: u.FirstName,
		Lastname:  u.LastName,
		Email:     u.Email,
	}
}

type registerRequest struct {
	Firstname string `json:"firstname" validate:"required,min=1,max=50"`
	Lastname  string `json:"lastname" validate:"required,min=1,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := handler.Decode(r, &req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	user, err := h.users.Register(r.Context(), req.Firstname, req.Lastname, req.Email, req.Password)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		handler.InternalErrorResponse(w, r, err)
		return
	}

	h.logger.Info("user registered", "user_id", user.ID, "email", user.Email)

	handler.RespondJSON(w, http.StatusCreated, authResponse{
		User:  toUserResponse(user),
		Token: token,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := handler.Decode(r, &req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		// Bad credentials always map to 401 so the response does not
		// reveal whether the email is registered
		if errors.Is(err, domain.ErrInvalidPassword) {
			handler.ErrorResponse(w, r, domain.Unauthorized("auth.login", "Invalid email or password"))
			return
		}
		handler.ErrorResponse(w, r, err)
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		handler.InternalErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, authResponse{
		User:  toUserResponse(user),
		Token: token,
	})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	authUser, ok := domain.UserFromContext(r.Context())
	if !ok {
		handler.UnauthorizedResponse(w, r)
		return
	}

	user, err := h.users.GetUserByID(r.Context(), authUser.ID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, toUserResponse(user))
}
