package models

import "time"

type Role string

const (
	Student Role = "student"
	Admin   Role = "admin"
)

func (r Role) Valid() bool { return r == Student || r == Admin }

type User struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	FullName  *string   `db:"full_name"`
	Email     *string   `db:"email"`
	Role      Role      `db:"role"`
	Cohort    string    `db:"cohort"`
	IsActive  bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
}

// DisplayName: ФИО, если задано, иначе логин.
func (u *User) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	return u.Username
}
