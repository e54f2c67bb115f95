// handlers/auth.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/vedreal/airdrop_backend/internal/models"
	"github.com/vedreal/airdrop_backend/internal/pkg/response"
	"github.com/vedreal/airdrop_backend/internal/repositories"
	"github.com/vedreal/airdrop_backend/internal/services/age"
	"github.com/vedreal/airdrop_backend/internal/services/cache"
	"github.com/vedreal/airdrop_backend/internal/services/notify"
)

// Фиксированный бонус рефереру за каждого приглашённого eligible-участника.
const (
	referralRewardPoints = 5.0
	referralRewardTon    = 0.002
)

type AuthHandler struct {
	store    repositories.UserStore
	cache    *cache.UserCache
	notifier *notify.TelegramNotifier
}

func NewAuthHandler(store repositories.UserStore, userCache *cache.UserCache, notifier *notify.TelegramNotifier) *AuthHandler {
	return &AuthHandler{
		store:    store,
		cache:    userCache,
		notifier: notifier,
	}
}

// LoginHandler — первая точка контакта мини-аппы. Существующему telegramId
// возвращает его строку как есть (200); новому считает возраст по ID,
// допуск и стартовые очки, начисляет бонус рефереру и создаёт строку (201).
// Возраст и допуск считаются ровно один раз и дальше не пересчитываются.
func (h *AuthHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.TelegramID == "" {
		response.RespondWithValidationError(w, "telegramId is required", "telegramId")
		return
	}

	ctx := r.Context()

	user, err := h.store.GetByTelegramID(ctx, req.TelegramID)
	if err == nil {
		h.cache.Set(ctx, user)
		response.RespondWithJSON(w, http.StatusOK, user)
		return
	}
	if !errors.Is(err, repositories.ErrUserNotFound) {
		log.Printf("❌ Ошибка поиска пользователя %s: %v", req.TelegramID, err)
		response.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}

	// Новый участник: возраст из демо-override либо по таблице диапазонов ID.
	var years float64
	if req.MockAgeYears != nil {
		years = *req.MockAgeYears
	} else {
		id, parseErr := strconv.ParseInt(req.TelegramID, 10, 64)
		if parseErr != nil || id <= 0 {
			response.RespondWithValidationError(w, "telegramId must be a positive number", "telegramId")
			return
		}
		years = age.Estimate(id)
	}

	eligible := age.IsEligible(years)
	points := age.InitialPoints(years)

	// Бонус рефереру — вторичный эффект: его сбой не должен ломать регистрацию.
	if req.ReferredBy != "" && eligible {
		h.rewardReferrer(ctx, req.ReferredBy)
	}

	newUser := &models.User{
		TelegramID:      req.TelegramID,
		Username:        req.Username,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Points:          points,
		TonBalance:      0,
		AccountAgeYears: years,
		IsEligible:      eligible,
		ReferralCode:    req.TelegramID,
		ReferredBy:      req.ReferredBy,
	}

	created, err := h.store.Create(ctx, newUser)
	if errors.Is(err, repositories.ErrUserAlreadyExists) {
		// Гонка двух первых заходов: строку уже создал параллельный запрос.
		existing, getErr := h.store.GetByTelegramID(ctx, req.TelegramID)
		if getErr != nil {
			log.Printf("❌ Ошибка чтения пользователя %s после гонки создания: %v", req.TelegramID, getErr)
			response.RespondWithError(w, http.StatusInternalServerError, "Database error")
			return
		}
		response.RespondWithJSON(w, http.StatusOK, existing)
		return
	}
	if err != nil {
		log.Printf("❌ Ошибка создания пользователя %s: %v", req.TelegramID, err)
		response.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}

	h.cache.Set(ctx, created)
	response.RespondWithJSON(w, http.StatusCreated, created)
}

func (h *AuthHandler) rewardReferrer(ctx context.Context, referralCode string) {
	err := h.store.AddReferralReward(ctx, referralCode, referralRewardPoints, referralRewardTon)
	if errors.Is(err, repositories.ErrUserNotFound) {
		// Код никому не принадлежит — молча пропускаем, как и оригинал.
		return
	}
	if err != nil {
		log.Printf("❌ Не удалось начислить реферальный бонус %s: %v", referralCode, err)
		return
	}

	h.cache.Invalidate(ctx, referralCode)

	if h.notifier.Enabled() {
		notifyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.notifier.NotifyReferralReward(notifyCtx, referralCode, referralRewardPoints, referralRewardTon); err != nil {
			log.Printf("❌ Не удалось уведомить реферера %s: %v", referralCode, err)
		}
	}
}
