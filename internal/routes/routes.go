package routes

import (
	"database/sql"
	"net/http"

	"github.com/vedreal/airdrop_backend/config"
	"github.com/vedreal/airdrop_backend/internal/handlers"
	"github.com/vedreal/airdrop_backend/internal/middleware"
	"github.com/vedreal/airdrop_backend/internal/pkg/response"
	"github.com/vedreal/airdrop_backend/internal/repositories"
	"github.com/vedreal/airdrop_backend/internal/services/cache"
	"github.com/vedreal/airdrop_backend/internal/services/notify"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // ← алиас!
	"github.com/redis/go-redis/v9"
)

// Setup инициализирует и возвращает настроенный маршрутизатор.
func Setup(cfg *config.Config, database *sql.DB, redisClient *redis.Client) *chi.Mux {
	store := repositories.NewUserRepository(database)
	userCache := cache.NewUserCache(redisClient)
	notifier := notify.NewTelegramNotifier(cfg.TelegramBotToken)

	authHandler := handlers.NewAuthHandler(store, userCache, notifier)
	userHandler := handlers.NewUserHandler(store, userCache)
	referralHandler := handlers.NewReferralHandler(store)
	adminHandler := handlers.NewAdminHandler(store, userCache)

	router := chi.NewRouter()
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	// Публичные маршруты
	router.Post("/api/auth/login", authHandler.LoginHandler)
	router.Get("/api/user/{telegramID}", userHandler.GetUserHandler)
	router.Post("/api/user/check-in", userHandler.CheckInHandler)
	router.Post("/api/user/email", userHandler.SubmitEmailHandler)
	router.Get("/api/referrals/{telegramID}", referralHandler.ListReferralsHandler)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Админка: статический ключ в заголовке, см. middleware.AdminOnly.
	router.Group(func(r chi.Router) {
		r.Use(middleware.AdminOnly(cfg.AdminKey))

		r.Get("/api/admin/users", adminHandler.ListUsersHandler)
		r.Get("/api/admin/users/export", adminHandler.ExportUsersHandler)
		r.Get("/api/admin/stats", adminHandler.StatsHandler)
		r.Patch("/api/admin/users/{telegramID}", adminHandler.UpdateUserHandler)
	})

	return router
}
