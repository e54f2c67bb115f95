package checkin

import "time"

// Reward — очки за ежедневный чек-ин.
const Reward = 10.0

// Allowed решает, можно ли чекиниться сейчас. Кулдаун считается по
// календарным суткам UTC, а не по скользящему 24-часовому окну:
// чек-ин разрешён, если последнего не было вовсе либо его UTC-дата
// строго раньше UTC-даты текущего момента.
func Allowed(last *time.Time, now time.Time) bool {
	if last == nil {
		return true
	}
	return utcDay(*last).Before(utcDay(now))
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
