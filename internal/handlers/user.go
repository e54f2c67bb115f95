// handlers/user.go
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vedreal/airdrop_backend/internal/models"
	"github.com/vedreal/airdrop_backend/internal/pkg/response"
	"github.com/vedreal/airdrop_backend/internal/repositories"
	"github.com/vedreal/airdrop_backend/internal/services/cache"
	"github.com/vedreal/airdrop_backend/internal/services/checkin"
)

// Почтовые домены, которые принимает кампания.
var allowedEmailDomains = map[string]bool{
	"gmail.com":   true,
	"hotmail.com": true,
	"outlook.com": true,
	"yahoo.com":   true,
	"yandex.com":  true,
}

type UserHandler struct {
	store repositories.UserStore
	cache *cache.UserCache
}

func NewUserHandler(store repositories.UserStore, userCache *cache.UserCache) *UserHandler {
	return &UserHandler{store: store, cache: userCache}
}

// GetUserHandler отдаёт строку участника по telegram ID.
func (h *UserHandler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	telegramID := chi.URLParam(r, "telegramID")
	ctx := r.Context()

	if user, ok := h.cache.Get(ctx, telegramID); ok {
		response.RespondWithJSON(w, http.StatusOK, user)
		return
	}

	user, err := h.store.GetByTelegramID(ctx, telegramID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		response.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		log.Printf("❌ Ошибка чтения пользователя %s: %v", telegramID, err)
		response.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}

	h.cache.Set(ctx, user)
	response.RespondWithJSON(w, http.StatusOK, user)
}

// CheckInHandler — ежедневный чек-ин: не чаще раза в календарные сутки UTC.
// Повторная попытка в те же сутки — явный 403, без мутаций.
func (h *UserHandler) CheckInHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.TelegramID == "" {
		response.RespondWithValidationError(w, "telegramId is required", "telegramId")
		return
	}

	ctx := r.Context()

	// Кулдаун проверяется по свежей строке из базы, кэш не используется.
	user, err := h.store.GetByTelegramID(ctx, req.TelegramID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		response.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		log.Printf("❌ Ошибка чтения пользователя %s: %v", req.TelegramID, err)
		response.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}

	now := time.Now().UTC()
	if !checkin.Allowed(user.LastCheckIn, now) {
		response.RespondWithError(w, http.StatusForbidden, "Already checked in today")
		return
	}

	updated, err := h.store.RecordCheckIn(ctx, req.TelegramID, checkin.Reward, now)
	if errors.Is(err, repositories.ErrUserNotFound) {
		response.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		log.Printf("❌ Ошибка чек-ина %s: %v", req.TelegramID, err)
		response.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}

	h.cache.Set(ctx, updated)
	response.RespondWithJSON(w, http.StatusOK, updated)
}

// SubmitEmailHandler записывает email один раз; домен — из фиксированного
// списка. Повторная отправка, даже валидного адреса, — ошибка, старый
// адрес не меняется.
func (h *UserHandler) SubmitEmailHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.TelegramID == "" {
		response.RespondWithValidationError(w, "telegramId is required", "telegramId")
		return
	}
	if msg, ok := validateEmail(req.Email); !ok {
		response.RespondWithValidationError(w, msg, "email")
		return
	}

	ctx := r.Context()

	updated, err := h.store.SetEmail(ctx, req.TelegramID, req.Email)
	if errors.Is(err, repositories.ErrEmailAlreadySet) {
		response.RespondWithError(w, http.StatusBadRequest, "Email already submitted and cannot be changed.")
		return
	}
	if errors.Is(err, repositories.ErrUserNotFound) {
		response.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		log.Printf("❌ Ошибка записи email для %s: %v", req.TelegramID, err)
		response.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}

	h.cache.Set(ctx, updated)
	response.RespondWithJSON(w, http.StatusOK, updated)
}

func validateEmail(email string) (string, bool) {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "Invalid email address", false
	}
	if !allowedEmailDomains[strings.ToLower(parts[1])] {
		return "Only Gmail, Hotmail, Outlook, Yahoo, and Yandex are allowed.", false
	}
	return "", true
}
