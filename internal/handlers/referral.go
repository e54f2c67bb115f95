// handlers/referral.go
package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vedreal/airdrop_backend/internal/models"
	"github.com/vedreal/airdrop_backend/internal/pkg/response"
	"github.com/vedreal/airdrop_backend/internal/repositories"
)

type ReferralHandler struct {
	store repositories.UserStore
}

func NewReferralHandler(store repositories.UserStore) *ReferralHandler {
	return &ReferralHandler{store: store}
}

// ListReferralsHandler — все приглашённые по коду (код = telegram ID реферера).
func (h *ReferralHandler) ListReferralsHandler(w http.ResponseWriter, r *http.Request) {
	referralCode := chi.URLParam(r, "telegramID")

	referrals, err := h.store.ListByReferrer(r.Context(), referralCode)
	if err != nil {
		log.Printf("❌ Ошибка выборки рефералов %s: %v", referralCode, err)
		response.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if referrals == nil {
		referrals = []models.User{}
	}

	response.RespondWithJSON(w, http.StatusOK, referrals)
}
