package db

import (
	"database/sql"
	"log"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id SERIAL PRIMARY KEY,
	telegram_id TEXT NOT NULL UNIQUE,
	username TEXT,
	first_name TEXT,
	last_name TEXT,
	points DOUBLE PRECISION NOT NULL DEFAULT 0,
	ton_balance DOUBLE PRECISION NOT NULL DEFAULT 0,
	email TEXT,
	wallet_address TEXT,
	account_age_years DOUBLE PRECISION NOT NULL DEFAULT 0,
	is_eligible BOOLEAN NOT NULL DEFAULT FALSE,
	last_check_in TIMESTAMPTZ,
	referral_code TEXT UNIQUE,
	referred_by TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_users_referred_by ON users (referred_by);
`

// InitDB инициализирует соединение с базой данных и создает таблицы
func InitDB(dsn string) *sql.DB {
	database, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("Ошибка при открытии базы данных: %v", err)
	}

	if err = database.Ping(); err != nil {
		log.Fatalf("Ошибка при подключении к базе данных: %v", err)
	}

	if _, err = database.Exec(schema); err != nil {
		log.Fatalf("Не удалось создать таблицы: %v", err)
	}

	log.Println("База данных успешно инициализирована")
	return database
}

// SeedDemoUsers добавляет двух демо-участников (eligible и нет) для разработки.
func SeedDemoUsers(database *sql.DB) {
	seeds := []struct {
		telegramID string
		username   string
		firstName  string
		ageYears   float64
		isEligible bool
		points     float64
	}{
		{"seed_user_1", "crypto_king", "Alex", 2.5, true, 2500},
		{"seed_user_2", "noob_trader", "Bob", 0.5, false, 0},
	}

	for _, s := range seeds {
		_, err := database.Exec(`
			INSERT INTO users (telegram_id, username, first_name, account_age_years, is_eligible, points, referral_code)
			VALUES ($1, $2, $3, $4, $5, $6, $1)
			ON CONFLICT (telegram_id) DO NOTHING`,
			s.telegramID, s.username, s.firstName, s.ageYears, s.isEligible, s.points,
		)
		if err != nil {
			log.Printf("❌ Не удалось добавить демо-пользователя %s: %v", s.telegramID, err)
		}
	}
	log.Println("Демо-пользователи добавлены")
}
