package models

import "time"

// User — строка таблицы users. Имена JSON-полей совпадают с тем,
// что ожидает мини-аппа.
type User struct {
	TelegramID      string     `json:"telegramId"`
	Username        string     `json:"username,omitempty"`
	FirstName       string     `json:"firstName,omitempty"`
	LastName        string     `json:"lastName,omitempty"`
	Points          float64    `json:"points"`
	TonBalance      float64    `json:"tonBalance"`
	Email           string     `json:"email,omitempty"`
	WalletAddress   string     `json:"walletAddress,omitempty"`
	AccountAgeYears float64    `json:"accountAgeYears"`
	IsEligible      bool       `json:"isEligible"`
	LastCheckIn     *time.Time `json:"lastCheckIn,omitempty"`
	ReferralCode    string     `json:"referralCode"`
	ReferredBy      string     `json:"referredBy,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// UserUpdate — частичное обновление: применяются только заполненные (не nil) поля.
type UserUpdate struct {
	Username      *string    `json:"username,omitempty"`
	FirstName     *string    `json:"firstName,omitempty"`
	LastName      *string    `json:"lastName,omitempty"`
	WalletAddress *string    `json:"walletAddress,omitempty"`
	Points        *float64   `json:"-"`
	TonBalance    *float64   `json:"-"`
	Email         *string    `json:"-"`
	LastCheckIn   *time.Time `json:"-"`
}

type LoginRequest struct {
	TelegramID string `json:"telegramId"`
	Username   string `json:"username,omitempty"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	ReferredBy string `json:"referredBy,omitempty"`
	// Демо-режим: явный возраст вместо оценки по ID.
	MockAgeYears *float64 `json:"mockAgeYears,omitempty"`
}

type CheckInRequest struct {
	TelegramID string `json:"telegramId"`
}

type SubmitEmailRequest struct {
	TelegramID string `json:"telegramId"`
	Email      string `json:"email"`
}

// CampaignStats — сводка по кампании для админки и фонового лога.
type CampaignStats struct {
	TotalUsers    int     `json:"totalUsers"`
	EligibleUsers int     `json:"eligibleUsers"`
	TotalPoints   float64 `json:"totalPoints"`
	TotalTon      float64 `json:"totalTonBalance"`
}
