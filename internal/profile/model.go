package profile

import "github.com/vasiliy-maslov/megano/internal/apperr"

type User struct {
	ID           int64  `db:"id"`
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
}

type Avatar struct {
	Src string
	Alt string
}

type Profile struct {
	UserID   int64
	FullName string
	Email    string
	Phone    string
	Avatar   *Avatar
}

// Patch holds the profile fields a client sent. Nil fields keep their
// current value.
type Patch struct {
	FullName *string
	Email    *string
	Phone    *string
}

var (
	ErrUserNotFound       = apperr.New(apperr.KindNotFound, "user not found")
	ErrUsernameTaken      = apperr.New(apperr.KindConflict, "a user with this username already exists")
	ErrEmailTaken         = apperr.New(apperr.KindConflict, "a user with this email already exists")
	ErrPhoneTaken         = apperr.New(apperr.KindConflict, "a user with this phone already exists")
	ErrInvalidCredentials = apperr.New(apperr.KindUnauthorized, "invalid username or password")
)
