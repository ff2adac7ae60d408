package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mkotov/splitton/internal/auth"
	"github.com/mkotov/splitton/internal/middleware"
	"github.com/mkotov/splitton/internal/models"
	"github.com/mkotov/splitton/internal/storage"
	"github.com/mkotov/splitton/internal/ton"
)

// AuthHandler serves Mini App login and user wallet configuration.
type AuthHandler struct {
	store      storage.Store
	jwtManager *auth.JWTManager
	botToken   string
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(store storage.Store, jwtManager *auth.JWTManager, botToken string) *AuthHandler {
	return &AuthHandler{store: store, jwtManager: jwtManager, botToken: botToken}
}

type loginRequest struct {
	InitData string `json:"initData"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// TelegramLogin handles POST /api/auth/telegram: verifies the Mini App
// init data signature, upserts the user (resolving any waiting
// participant entries), and returns a session token.
func (h *AuthHandler) TelegramLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequestf("invalid request body"))
		return
	}

	tgUser, err := auth.VerifyInitData(req.InitData, h.botToken)
	if err != nil {
		writeError(w, err)
		return
	}

	user := &models.User{
		TelegramID: tgUser.ID,
		Username:   tgUser.Username,
		FirstName:  tgUser.FirstName,
	}
	if err := h.store.UpsertUser(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}

	token, err := h.jwtManager.Generate(user)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("user logged in", "user_id", user.ID, "telegram_id", user.TelegramID)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

type walletRequest struct {
	Address string `json:"address"`
}

// UpdateWallet handles PUT /api/users/me/wallet. The address is validated
// before it is ever persisted or used to render a deep link.
func (h *AuthHandler) UpdateWallet(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequestf("invalid request body"))
		return
	}
	if err := ton.ValidateAddress(req.Address); err != nil {
		writeError(w, err)
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.store.SetWalletAddress(r.Context(), userID, req.Address); err != nil {
		writeError(w, err)
		return
	}

	slog.Info("wallet address updated", "user_id", userID)
	writeJSON(w, http.StatusOK, map[string]string{"address": req.Address})
}
