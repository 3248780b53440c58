package models

import "time"

type WeekStatus string

const (
	Locked    WeekStatus = "locked"
	Unlocked  WeekStatus = "unlocked"
	Completed WeekStatus = "completed"
)

// OrientationWeek: неделя 0, её нельзя заблокировать.
const OrientationWeek = 0

type ProgressRecord struct {
	UserID          int64      `db:"user_id"`
	Week            int        `db:"week"`
	Status          WeekStatus `db:"status"`
	OverrideByAdmin bool       `db:"override_by_admin"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// DefaultStatus: статус недели до любых переходов.
func DefaultStatus(week int) WeekStatus {
	if week == OrientationWeek {
		return Unlocked
	}
	return Locked
}

// Accessible: неделя открыта для работы.
func (s WeekStatus) Accessible() bool { return s == Unlocked || s == Completed }
