package age

import "math"

// Telegram раздаёт числовые ID последовательно, поэтому сам ID —
// грубая оценка даты регистрации: чем меньше ID, тем старше аккаунт.
type bracket struct {
	maxID int64 // верхняя граница, не включительно
	years float64
}

var brackets = []bracket{
	{100_000_000, 11},
	{300_000_000, 9},
	{500_000_000, 7.5},
	{800_000_000, 6.5},
	{1_200_000_000, 5.5},
	{1_800_000_000, 4.5},
	{2_500_000_000, 3.5},
	{3_500_000_000, 2.8},
	{5_000_000_000, 2.2},
	{6_000_000_000, 1.7},
	{7_000_000_000, 1.3},
	{7_500_000_000, 1.0},
	{8_000_000_000, 0.8},
}

// fallbackYears — возраст для ID выше последней границы (самые свежие аккаунты).
const fallbackYears = 0.5

// eligibleMinYears — порог допуска к кампании.
const eligibleMinYears = 1.0

// Estimate возвращает оценку возраста аккаунта в годах по числовому Telegram ID.
// Детерминированная: никакого рандома и внешних источников.
func Estimate(id int64) float64 {
	for _, b := range brackets {
		if id < b.maxID {
			return b.years
		}
	}
	return fallbackYears
}

// IsEligible — допущен ли аккаунт с таким возрастом к кампании.
func IsEligible(years float64) bool {
	return years >= eligibleMinYears
}

// InitialPoints — стартовые очки за возраст аккаунта.
// Начисляются один раз при создании строки и больше не пересчитываются.
func InitialPoints(years float64) float64 {
	if !IsEligible(years) {
		return 0
	}
	return math.Floor(years * 1000)
}
