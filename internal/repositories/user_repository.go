package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/vedreal/airdrop_backend/internal/models"
)

var (
	// ErrUserNotFound — строки с таким telegram_id (или referral_code) нет.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserAlreadyExists — нарушение уникальности telegram_id при создании.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrEmailAlreadySet — email пишется один раз и уже записан.
	ErrEmailAlreadySet = errors.New("email already set")
)

// UserStore — контракт хранилища участников. Хендлеры работают только
// через него, поэтому в тестах вместо Postgres подставляется фейк.
type UserStore interface {
	GetByTelegramID(ctx context.Context, telegramID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, telegramID string, upd models.UserUpdate) (*models.User, error)
	ListByReferrer(ctx context.Context, referralCode string) ([]models.User, error)
	ListAll(ctx context.Context) ([]models.User, error)
	RecordCheckIn(ctx context.Context, telegramID string, points float64, now time.Time) (*models.User, error)
	SetEmail(ctx context.Context, telegramID, email string) (*models.User, error)
	AddReferralReward(ctx context.Context, referralCode string, points, ton float64) error
	CountStats(ctx context.Context) (*models.CampaignStats, error)
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `telegram_id, username, first_name, last_name, points, ton_balance,
	email, wallet_address, account_age_years, is_eligible, last_check_in,
	referral_code, referred_by, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var username, firstName, lastName, email, wallet, referralCode, referredBy sql.NullString
	var lastCheckIn sql.NullTime

	err := row.Scan(
		&u.TelegramID,
		&username,
		&firstName,
		&lastName,
		&u.Points,
		&u.TonBalance,
		&email,
		&wallet,
		&u.AccountAgeYears,
		&u.IsEligible,
		&lastCheckIn,
		&referralCode,
		&referredBy,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Username = username.String
	u.FirstName = firstName.String
	u.LastName = lastName.String
	u.Email = email.String
	u.WalletAddress = wallet.String
	u.ReferralCode = referralCode.String
	u.ReferredBy = referredBy.String
	if lastCheckIn.Valid {
		t := lastCheckIn.Time.UTC()
		u.LastCheckIn = &t
	}
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// GetByTelegramID возвращает строку участника либо ErrUserNotFound.
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка чтения пользователя: %w", err)
	}
	return user, nil
}

// Create вставляет новую строку. Уникальность telegram_id обеспечивает
// констрейнт в БД: при гонке двух первых заходов одна вставка получит
// ErrUserAlreadyExists, второй строки не будет.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (telegram_id, username, first_name, last_name, points, ton_balance,
			email, wallet_address, account_age_years, is_eligible, last_check_in,
			referral_code, referred_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + userColumns
	row := r.db.QueryRowContext(ctx, query,
		user.TelegramID,
		nullString(user.Username),
		nullString(user.FirstName),
		nullString(user.LastName),
		user.Points,
		user.TonBalance,
		nullString(user.Email),
		nullString(user.WalletAddress),
		user.AccountAgeYears,
		user.IsEligible,
		user.LastCheckIn,
		user.ReferralCode,
		nullString(user.ReferredBy),
	)
	created, err := scanUser(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return created, nil
}

// Update применяет только переданные (не nil) поля.
func (r *UserRepository) Update(ctx context.Context, telegramID string, upd models.UserUpdate) (*models.User, error) {
	var set []string
	var args []interface{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Username != nil {
		add("username", nullString(*upd.Username))
	}
	if upd.FirstName != nil {
		add("first_name", nullString(*upd.FirstName))
	}
	if upd.LastName != nil {
		add("last_name", nullString(*upd.LastName))
	}
	if upd.WalletAddress != nil {
		add("wallet_address", nullString(*upd.WalletAddress))
	}
	if upd.Points != nil {
		add("points", *upd.Points)
	}
	if upd.TonBalance != nil {
		add("ton_balance", *upd.TonBalance)
	}
	if upd.Email != nil {
		add("email", nullString(*upd.Email))
	}
	if upd.LastCheckIn != nil {
		add("last_check_in", *upd.LastCheckIn)
	}

	if len(set) == 0 {
		return r.GetByTelegramID(ctx, telegramID)
	}

	args = append(args, telegramID)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE telegram_id = $%d RETURNING `+userColumns,
		strings.Join(set, ", "), len(args))

	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка обновления пользователя: %w", err)
	}
	return user, nil
}

// ListByReferrer — все приглашённые по реферальному коду, в порядке вставки.
func (r *UserRepository) ListByReferrer(ctx context.Context, referralCode string) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE referred_by = $1 ORDER BY id`
	return r.queryUsers(ctx, query, referralCode)
}

// ListAll — все участники кампании (админка).
func (r *UserRepository) ListAll(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`
	return r.queryUsers(ctx, query)
}

func (r *UserRepository) queryUsers(ctx context.Context, query string, args ...interface{}) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки пользователей: %w", err)
	}
	defer rows.Close()

	var result []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения строки: %w", err)
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}

// RecordCheckIn атомарно начисляет очки и двигает last_check_in.
func (r *UserRepository) RecordCheckIn(ctx context.Context, telegramID string, points float64, now time.Time) (*models.User, error) {
	query := `
		UPDATE users
		SET points = points + $1, last_check_in = $2
		WHERE telegram_id = $3
		RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRowContext(ctx, query, points, now.UTC(), telegramID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка чек-ина: %w", err)
	}
	return user, nil
}

// SetEmail записывает email один раз: условие email IS NULL — страж на
// пути записи, повторная попытка получает ErrEmailAlreadySet.
func (r *UserRepository) SetEmail(ctx context.Context, telegramID, email string) (*models.User, error) {
	query := `
		UPDATE users
		SET email = $1
		WHERE telegram_id = $2 AND email IS NULL
		RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email, telegramID))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ошибка записи email: %w", err)
	}

	// Ноль строк: либо пользователя нет, либо email уже записан.
	existing, getErr := r.GetByTelegramID(ctx, telegramID)
	if getErr != nil {
		return nil, getErr
	}
	if existing.Email != "" {
		return nil, ErrEmailAlreadySet
	}
	return nil, fmt.Errorf("ошибка записи email для %s", telegramID)
}

// AddReferralReward атомарно инкрементит баланс реферера по его коду,
// без read-modify-write в приложении: параллельные рефералы не теряются.
func (r *UserRepository) AddReferralReward(ctx context.Context, referralCode string, points, ton float64) error {
	query := `
		UPDATE users
		SET points = points + $1, ton_balance = ton_balance + $2
		WHERE referral_code = $3`
	res, err := r.db.ExecContext(ctx, query, points, ton, referralCode)
	if err != nil {
		return fmt.Errorf("ошибка начисления реферального бонуса: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка начисления реферального бонуса: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CountStats — сводные цифры кампании одним запросом.
func (r *UserRepository) CountStats(ctx context.Context) (*models.CampaignStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_eligible),
		       COALESCE(SUM(points), 0),
		       COALESCE(SUM(ton_balance), 0)
		FROM users`
	var stats models.CampaignStats
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalUsers,
		&stats.EligibleUsers,
		&stats.TotalPoints,
		&stats.TotalTon,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта статистики: %w", err)
	}
	return &stats, nil
}
