package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type Repository interface {
	// CreateUser inserts the user and an empty profile carrying fullName.
	CreateUser(ctx context.Context, user *User, fullName string) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdatePassword(ctx context.Context, userID int64, hash string) error
	GetProfile(ctx context.Context, userID int64) (*Profile, error)
	UpdateProfile(ctx context.Context, p *Profile) error
	UpdateAvatar(ctx context.Context, userID int64, avatar Avatar) error
	EmailTaken(ctx context.Context, email string, exceptUserID int64) (bool, error)
	PhoneTaken(ctx context.Context, phone string, exceptUserID int64) (bool, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const (
	usersUsernameKey = "users_username_key"
	profilesEmailKey = "profiles_email_key"
	profilesPhoneKey = "profiles_phone_key"
)

// uniqueViolation maps a unique constraint failure to its domain error.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case usersUsernameKey:
		return ErrUsernameTaken
	case profilesEmailKey:
		return ErrEmailTaken
	case profilesPhoneKey:
		return ErrPhoneTaken
	}
	return nil
}

func (r *postgresRepository) CreateUser(ctx context.Context, user *User, fullName string) (id int64, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Msg("repository: panic recovered, rolling back transaction")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("repository: failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("repository: failed to rollback transaction")
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	err = tx.QueryRow(ctx, `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING id
	`, user.Username, user.PasswordHash).Scan(&user.ID)
	if err != nil {
		if domainErr := uniqueViolation(err); domainErr != nil {
			return 0, domainErr
		}
		return 0, fmt.Errorf("repository: failed to insert user: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO profiles (user_id, full_name)
		VALUES ($1, $2)
	`, user.ID, fullName)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to insert profile for user %d: %w", user.ID, err)
	}

	return user.ID, nil
}

func (r *postgresRepository) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return r.getUser(ctx, `SELECT id, username, password_hash FROM users WHERE id = $1`, id)
}

func (r *postgresRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return r.getUser(ctx, `SELECT id, username, password_hash FROM users WHERE username = $1`, username)
}

func (r *postgresRepository) getUser(ctx context.Context, query string, arg any) (*User, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query user: %w", err)
	}
	u, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[User])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("repository: failed to scan user: %w", err)
	}
	return u, nil
}

func (r *postgresRepository) UpdatePassword(ctx context.Context, userID int64, hash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, userID)
	if err != nil {
		return fmt.Errorf("repository: failed to update password for user %d: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *postgresRepository) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	var (
		p         Profile
		avatarSrc string
		avatarAlt string
	)
	err := r.db.QueryRow(ctx, `
		SELECT user_id, full_name, COALESCE(email, ''), COALESCE(phone, ''), avatar_src, avatar_alt
		FROM profiles
		WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.FullName, &p.Email, &p.Phone, &avatarSrc, &avatarAlt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("repository: failed to select profile for user %d: %w", userID, err)
	}
	if avatarSrc != "" {
		p.Avatar = &Avatar{Src: avatarSrc, Alt: avatarAlt}
	}
	return &p, nil
}

// UpdateProfile stores an empty email or phone as NULL so the unique
// constraints only apply to filled-in values.
func (r *postgresRepository) UpdateProfile(ctx context.Context, p *Profile) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE profiles
		SET full_name = $1, email = NULLIF($2, ''), phone = NULLIF($3, '')
		WHERE user_id = $4
	`, p.FullName, p.Email, p.Phone, p.UserID)
	if err != nil {
		if domainErr := uniqueViolation(err); domainErr != nil {
			return domainErr
		}
		return fmt.Errorf("repository: failed to update profile for user %d: %w", p.UserID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *postgresRepository) UpdateAvatar(ctx context.Context, userID int64, avatar Avatar) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE profiles SET avatar_src = $1, avatar_alt = $2 WHERE user_id = $3
	`, avatar.Src, avatar.Alt, userID)
	if err != nil {
		return fmt.Errorf("repository: failed to update avatar for user %d: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *postgresRepository) EmailTaken(ctx context.Context, email string, exceptUserID int64) (bool, error) {
	return r.taken(ctx, `SELECT EXISTS (SELECT 1 FROM profiles WHERE email = $1 AND user_id <> $2)`, email, exceptUserID)
}

func (r *postgresRepository) PhoneTaken(ctx context.Context, phone string, exceptUserID int64) (bool, error) {
	return r.taken(ctx, `SELECT EXISTS (SELECT 1 FROM profiles WHERE phone = $1 AND user_id <> $2)`, phone, exceptUserID)
}

func (r *postgresRepository) taken(ctx context.Context, query, value string, exceptUserID int64) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, query, value, exceptUserID).Scan(&exists); err != nil {
		return false, fmt.Errorf("repository: failed to check uniqueness: %w", err)
	}
	return exists, nil
}
