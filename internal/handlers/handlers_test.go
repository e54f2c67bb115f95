package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vedreal/airdrop_backend/internal/models"
	"github.com/vedreal/airdrop_backend/internal/repositories"
	"github.com/vedreal/airdrop_backend/internal/services/cache"
	"github.com/vedreal/airdrop_backend/internal/services/notify"
)

// fakeStore — потокобезопасная замена Postgres для тестов хендлеров.
type fakeStore struct {
	mu    sync.Mutex
	users map[string]*models.User
	order []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*models.User)}
}

func (s *fakeStore) GetByTelegramID(_ context.Context, telegramID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[telegramID]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *fakeStore) Create(_ context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.TelegramID]; ok {
		return nil, repositories.ErrUserAlreadyExists
	}
	copied := *user
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now().UTC()
	}
	s.users[user.TelegramID] = &copied
	s.order = append(s.order, user.TelegramID)
	result := copied
	return &result, nil
}

func (s *fakeStore) Update(_ context.Context, telegramID string, upd models.UserUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[telegramID]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.WalletAddress != nil {
		u.WalletAddress = *upd.WalletAddress
	}
	if upd.Points != nil {
		u.Points = *upd.Points
	}
	if upd.TonBalance != nil {
		u.TonBalance = *upd.TonBalance
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.LastCheckIn != nil {
		t := *upd.LastCheckIn
		u.LastCheckIn = &t
	}
	copied := *u
	return &copied, nil
}

func (s *fakeStore) ListByReferrer(_ context.Context, referralCode string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.User
	for _, id := range s.order {
		if s.users[id].ReferredBy == referralCode {
			result = append(result, *s.users[id])
		}
	}
	return result, nil
}

func (s *fakeStore) ListAll(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.User
	for _, id := range s.order {
		result = append(result, *s.users[id])
	}
	return result, nil
}

func (s *fakeStore) RecordCheckIn(_ context.Context, telegramID string, points float64, now time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[telegramID]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	u.Points += points
	t := now.UTC()
	u.LastCheckIn = &t
	copied := *u
	return &copied, nil
}

func (s *fakeStore) SetEmail(_ context.Context, telegramID, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[telegramID]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	if u.Email != "" {
		return nil, repositories.ErrEmailAlreadySet
	}
	u.Email = email
	copied := *u
	return &copied, nil
}

func (s *fakeStore) AddReferralReward(_ context.Context, referralCode string, points, ton float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ReferralCode == referralCode {
			u.Points += points
			u.TonBalance += ton
			return nil
		}
	}
	return repositories.ErrUserNotFound
}

func (s *fakeStore) CountStats(_ context.Context) (*models.CampaignStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &models.CampaignStats{}
	for _, u := range s.users {
		stats.TotalUsers++
		if u.IsEligible {
			stats.EligibleUsers++
		}
		stats.TotalPoints += u.Points
		stats.TotalTon += u.TonBalance
	}
	return stats, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// raceStore имитирует гонку двух первых заходов: к моменту Create строку
// уже вставил параллельный запрос.
type raceStore struct {
	*fakeStore
}

func (s *raceStore) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if _, err := s.fakeStore.Create(ctx, user); err != nil {
		return nil, err
	}
	return nil, repositories.ErrUserAlreadyExists
}

func newTestRouter(store repositories.UserStore) *chi.Mux {
	userCache := cache.NewUserCache(nil)
	notifier := notify.NewTelegramNotifier("")

	authHandler := NewAuthHandler(store, userCache, notifier)
	userHandler := NewUserHandler(store, userCache)
	referralHandler := NewReferralHandler(store)
	adminHandler := NewAdminHandler(store, userCache)

	router := chi.NewRouter()
	router.Post("/api/auth/login", authHandler.LoginHandler)
	router.Get("/api/user/{telegramID}", userHandler.GetUserHandler)
	router.Post("/api/user/check-in", userHandler.CheckInHandler)
	router.Post("/api/user/email", userHandler.SubmitEmailHandler)
	router.Get("/api/referrals/{telegramID}", referralHandler.ListReferralsHandler)
	router.Patch("/api/admin/users/{telegramID}", adminHandler.UpdateUserHandler)
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeUser(t *testing.T, rec *httptest.ResponseRecorder) models.User {
	t.Helper()
	var u models.User
	if err := json.Unmarshal(rec.Body.Bytes(), &u); err != nil {
		t.Fatalf("decode user: %v (body: %s)", err, rec.Body.String())
	}
	return u
}

func seedUser(store *fakeStore, telegramID string, eligible bool, points float64) *models.User {
	u := &models.User{
		TelegramID:      telegramID,
		Points:          points,
		AccountAgeYears: 2.5,
		IsEligible:      eligible,
		ReferralCode:    telegramID,
		CreatedAt:       time.Now().UTC(),
	}
	store.users[telegramID] = u
	store.order = append(store.order, telegramID)
	return u
}

func TestLogin_CreatesUser(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", models.LoginRequest{
		TelegramID: "50000000",
		Username:   "oldtimer",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}

	u := decodeUser(t, rec)
	if u.AccountAgeYears != 11 {
		t.Errorf("accountAgeYears = %v, want 11", u.AccountAgeYears)
	}
	if !u.IsEligible {
		t.Error("user with 11y account must be eligible")
	}
	if u.Points != 11000 {
		t.Errorf("points = %v, want 11000", u.Points)
	}
	if u.ReferralCode != "50000000" {
		t.Errorf("referralCode = %q, want own telegram ID", u.ReferralCode)
	}
}

func TestLogin_NewAccountNotEligible(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", models.LoginRequest{
		TelegramID: "9000000000",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	u := decodeUser(t, rec)
	if u.AccountAgeYears != 0.5 || u.IsEligible || u.Points != 0 {
		t.Errorf("got age %v, eligible %v, points %v; want 0.5, false, 0",
			u.AccountAgeYears, u.IsEligible, u.Points)
	}
}

func TestLogin_Idempotent(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)

	first := doJSON(t, router, http.MethodPost, "/api/auth/login", models.LoginRequest{TelegramID: "50000000"})
	if first.Code != http.StatusCreated {
		t.Fatalf("first login status = %d, want 201", first.Code)
	}

	second := doJSON(t, router, http.MethodPost, "/api/auth/login", models.LoginRequest{TelegramID: "50000000"})
	if second.Code != http.StatusOK {
		t.Fatalf("second login status = %d, want 200", second.Code)
	}

	if store.count() != 1 {
		t.Errorf("store has %d rows, want 1", store.count())
	}
	if decodeUser(t, first).Points != decodeUser(t, second).Points {
		t.Error("both logins must return the same row")
	}
}

func TestLogin_MissingTelegramID(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", models.LoginRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var body struct {
		Message string `json:"message"`
		Field   string `json:"field"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Field != "telegramId" {
		t.Errorf("field = %q, want telegramId", body.Field)
	}
	if store.count() != 0 {
		t.Error("validation failure must not create a row")
	}
}

func TestLogin_NonNumericTelegramID(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", models.LoginRequest{TelegramID: "not_a_number"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if store.count() != 0 {
		t.Error("validation failure must not create a row")
	}
}

func TestLogin_MockAgeOverride(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)

	mock := 2.5
	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", models.LoginRequest{
		TelegramID:   "demo_user",
		MockAgeYears: &mock,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}

	u := decodeUser(t, rec)
	if u.AccountAgeYears != 2.5 || !u.IsEligible || u.Points != 2500 {
		t.Errorf("got age %v, eligible %v, points %v; want 2.5, true, 2500",
			u.AccountAgeYears, u.IsEligible, u.Points)
	}
}

func TestLogin_ReferralReward(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)
	seedUser(store, "111", true, 100)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", models.LoginRequest{
		TelegramID: "50000000",
		ReferredBy: "111",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	referrer, _ := store.GetByTelegramID(context.Background(), "111")
	if referrer.Points != 105 {
		t.Errorf("referrer points = %v, want 105 (+5)", referrer.Points)
	}
	if referrer.TonBalance != 0.002 {
		t.Errorf("referrer tonBalance = %v, want 0.002", referrer.TonBalance)
	}
}

func TestLogin_IneligibleRefereeNoReward(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)
	seedUser(store, "111", true, 100)

	// ID свежего аккаунта: возраст 0.5, допуска нет — бонуса тоже.
	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", models.LoginRequest{
		TelegramID: "9000000000",
		ReferredBy: "111",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	referrer, _ := store.GetByTelegramID(context.Background(), "111")
	if referrer.Points != 100 || referrer.TonBalance != 0 {
		t.Errorf("referrer must be unchanged, got points %v, ton %v", referrer.Points, referrer.TonBalance)
	}
}

func TestLogin_UnknownReferralCode(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", models.LoginRequest{
		TelegramID: "50000000",
		ReferredBy: "does_not_exist",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("unknown referral code must not block creation, status = %d", rec.Code)
	}
}

func TestLogin_DuplicateCreateRace(t *testing.T) {
	store := &raceStore{fakeStore: newFakeStore()}
	router := newTestRouter(store)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", models.LoginRequest{TelegramID: "50000000"})
	if rec.Code != http.StatusOK {
		t.Fatalf("losing racer must get 200 existing, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if store.count() != 1 {
		t.Errorf("store has %d rows, want exactly 1", store.count())
	}
}

func TestGetUser(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)
	seedUser(store, "111", true, 2500)

	rec := doJSON(t, router, http.MethodGet, "/api/user/111", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if u := decodeUser(t, rec); u.TelegramID != "111" {
		t.Errorf("telegramId = %q, want 111", u.TelegramID)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/user/999", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown user status = %d, want 404", rec.Code)
	}
}

func TestCheckIn_First(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)
	seedUser(store, "111", true, 2500)

	rec := doJSON(t, router, http.MethodPost, "/api/user/check-in", models.CheckInRequest{TelegramID: "111"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	u := decodeUser(t, rec)
	if u.Points != 2510 {
		t.Errorf("points = %v, want 2510 (+10)", u.Points)
	}
	if u.LastCheckIn == nil {
		t.Error("lastCheckIn must be set after check-in")
	}
}

func TestCheckIn_SameDayForbidden(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)
	u := seedUser(store, "111", true, 2500)
	now := time.Now().UTC()
	u.LastCheckIn = &now

	rec := doJSON(t, router, http.MethodPost, "/api/user/check-in", models.CheckInRequest{TelegramID: "111"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	after, _ := store.GetByTelegramID(context.Background(), "111")
	if after.Points != 2500 {
		t.Errorf("forbidden check-in must not mutate points, got %v", after.Points)
	}
	if !after.LastCheckIn.Equal(now) {
		t.Error("forbidden check-in must not advance lastCheckIn")
	}
}

func TestCheckIn_NextDayAllowed(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)
	u := seedUser(store, "111", true, 2500)
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	u.LastCheckIn = &yesterday

	rec := doJSON(t, router, http.MethodPost, "/api/user/check-in", models.CheckInRequest{TelegramID: "111"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if decodeUser(t, rec).Points != 2510 {
		t.Error("next-day check-in must award 10 points")
	}
}

func TestCheckIn_UnknownUser(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)

	rec := doJSON(t, router, http.MethodPost, "/api/user/check-in", models.CheckInRequest{TelegramID: "999"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 (not-found is distinct from cooldown)", rec.Code)
	}
}

func TestSubmitEmail_AllowedDomain(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)
	seedUser(store, "111", true, 2500)

	rec := doJSON(t, router, http.MethodPost, "/api/user/email", models.SubmitEmailRequest{
		TelegramID: "111",
		Email:      "user@yandex.com",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	if decodeUser(t, rec).Email != "user@yandex.com" {
		t.Error("email must be stored")
	}
}

func TestSubmitEmail_DisallowedDomain(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)
	seedUser(store, "111", true, 2500)

	rec := doJSON(t, router, http.MethodPost, "/api/user/email", models.SubmitEmailRequest{
		TelegramID: "111",
		Email:      "user@icloud.com",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var body struct {
		Field string `json:"field"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Field != "email" {
		t.Errorf("field = %q, want email", body.Field)
	}
}

func TestSubmitEmail_Malformed(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)
	seedUser(store, "111", true, 2500)

	for _, email := range []string{"", "no-at-sign", "@gmail.com", "user@"} {
		rec := doJSON(t, router, http.MethodPost, "/api/user/email", models.SubmitEmailRequest{
			TelegramID: "111",
			Email:      email,
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("email %q: status = %d, want 400", email, rec.Code)
		}
	}
}

func TestSubmitEmail_WriteOnce(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)
	seedUser(store, "111", true, 2500)

	first := doJSON(t, router, http.MethodPost, "/api/user/email", models.SubmitEmailRequest{
		TelegramID: "111",
		Email:      "first@gmail.com",
	})
	if first.Code != http.StatusOK {
		t.Fatalf("first submission status = %d, want 200", first.Code)
	}

	second := doJSON(t, router, http.MethodPost, "/api/user/email", models.SubmitEmailRequest{
		TelegramID: "111",
		Email:      "second@gmail.com",
	})
	if second.Code != http.StatusBadRequest {
		t.Fatalf("second submission status = %d, want 400", second.Code)
	}

	after, _ := store.GetByTelegramID(context.Background(), "111")
	if after.Email != "first@gmail.com" {
		t.Errorf("email = %q, original address must be unchanged", after.Email)
	}
}

func TestListReferrals(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)
	seedUser(store, "111", true, 100)

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("child_%d", i)
		u := seedUser(store, id, true, 0)
		u.ReferredBy = "111"
	}
	seedUser(store, "stranger", true, 0)

	rec := doJSON(t, router, http.MethodGet, "/api/referrals/111", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var list []models.User
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("got %d referrals, want 3", len(list))
	}
}

func TestListReferrals_EmptyIsArray(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)

	rec := doJSON(t, router, http.MethodGet, "/api/referrals/nobody", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "[]" {
		t.Errorf("empty result must be a JSON array, got %s", rec.Body.String())
	}
}

func TestAdminUpdateUser(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)
	seedUser(store, "111", true, 2500)

	rec := doJSON(t, router, http.MethodPatch, "/api/admin/users/111", map[string]interface{}{
		"username": "renamed",
		"points":   999999, // балансы через админ-патч не правятся
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	after, _ := store.GetByTelegramID(context.Background(), "111")
	if after.Username != "renamed" {
		t.Errorf("username = %q, want renamed", after.Username)
	}
	if after.Points != 2500 {
		t.Errorf("points = %v, admin patch must not touch balances", after.Points)
	}
}
