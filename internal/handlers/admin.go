// handlers/admin.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vedreal/airdrop_backend/internal/models"
	"github.com/vedreal/airdrop_backend/internal/pkg/response"
	"github.com/vedreal/airdrop_backend/internal/repositories"
	"github.com/vedreal/airdrop_backend/internal/services/cache"
	"github.com/xuri/excelize/v2"
)

type AdminHandler struct {
	store repositories.UserStore
	cache *cache.UserCache
}

func NewAdminHandler(store repositories.UserStore, userCache *cache.UserCache) *AdminHandler {
	return &AdminHandler{store: store, cache: userCache}
}

// ListUsersHandler — полный список участников кампании.
func (h *AdminHandler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListAll(r.Context())
	if err != nil {
		log.Printf("❌ Ошибка выборки участников: %v", err)
		response.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if users == nil {
		users = []models.User{}
	}
	response.RespondWithJSON(w, http.StatusOK, users)
}

// ExportUsersHandler выгружает участников в Excel.
func (h *AdminHandler) ExportUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListAll(r.Context())
	if err != nil {
		log.Printf("❌ Ошибка выборки участников для экспорта: %v", err)
		response.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Participants"
	f.SetSheetName("Sheet1", sheet)

	headers := []interface{}{
		"Telegram ID", "Username", "First Name", "Last Name", "Points", "TON Balance",
		"Email", "Account Age (years)", "Eligible", "Last Check-in", "Referred By", "Created At",
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		response.RespondWithError(w, http.StatusInternalServerError, "Export error")
		return
	}

	for i, u := range users {
		lastCheckIn := ""
		if u.LastCheckIn != nil {
			lastCheckIn = u.LastCheckIn.Format("2006-01-02 15:04:05")
		}
		row := []interface{}{
			u.TelegramID, u.Username, u.FirstName, u.LastName, u.Points, u.TonBalance,
			u.Email, u.AccountAgeYears, u.IsEligible, lastCheckIn, u.ReferredBy,
			u.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			response.RespondWithError(w, http.StatusInternalServerError, "Export error")
			return
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="airdrop_users.xlsx"`)
	if err := f.Write(w); err != nil {
		log.Printf("❌ Ошибка записи Excel-файла: %v", err)
	}
}

// StatsHandler — сводка по кампании.
func (h *AdminHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.CountStats(r.Context())
	if err != nil {
		log.Printf("❌ Ошибка подсчёта статистики: %v", err)
		response.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	response.RespondWithJSON(w, http.StatusOK, stats)
}

// UpdateUserHandler — точечная правка карточки участника из админки.
// Меняются только отображаемые поля и адрес кошелька; балансы, возраст
// и допуск этим путём не трогаются.
func (h *AdminHandler) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	telegramID := chi.URLParam(r, "telegramID")

	var upd models.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ctx := r.Context()
	updated, err := h.store.Update(ctx, telegramID, upd)
	if errors.Is(err, repositories.ErrUserNotFound) {
		response.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		log.Printf("❌ Ошибка обновления пользователя %s: %v", telegramID, err)
		response.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}

	h.cache.Invalidate(ctx, telegramID)
	response.RespondWithJSON(w, http.StatusOK, updated)
}
