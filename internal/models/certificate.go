package models

import "time"

type Certificate struct {
	ID       int64     `db:"id"`
	UserID   int64     `db:"user_id"`
	Serial   string    `db:"serial"`
	IssuedAt time.Time `db:"issued_at"`
	FileRef  string    `db:"file_ref"`
}

// ProgramMeta: данные программы для бланка сертификата.
type ProgramMeta struct {
	Title      string
	Issuer     string
	TotalWeeks int
	Serial     string
	IssuedAt   time.Time
}
