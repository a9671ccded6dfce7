package profile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/vasiliy-maslov/megano/internal/storage"
)

type Service interface {
	SignUp(ctx context.Context, name, username, password string) (*User, error)
	SignIn(ctx context.Context, username, password string) (*User, error)
	GetProfile(ctx context.Context, userID int64) (*Profile, error)
	UpdateProfile(ctx context.Context, userID int64, patch Patch) (*Profile, error)
	ChangePassword(ctx context.Context, userID int64, current, next string) error
	UploadAvatar(ctx context.Context, userID int64, filename string, size int64, r io.Reader) (*Profile, error)
}

type service struct {
	repo     Repository
	disk     storage.Disk
	validate *validator.Validate
	cost     int
}

func NewService(repo Repository, disk storage.Disk) Service {
	return &service{repo: repo, disk: disk, validate: validator.New(), cost: bcrypt.DefaultCost}
}

// NewServiceWithCost is NewService with a custom bcrypt cost.
func NewServiceWithCost(repo Repository, disk storage.Disk, cost int) Service {
	return &service{repo: repo, disk: disk, validate: validator.New(), cost: cost}
}

func (s *service) SignUp(ctx context.Context, name, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}
	if err := ValidateFullName(name); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to generate password hash")
		return nil, fmt.Errorf("service: failed to hash password: %w", err)
	}

	user := &User{Username: username, PasswordHash: string(hash)}
	id, err := s.repo.CreateUser(ctx, user, strings.Join(strings.Fields(name), " "))
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			log.Warn().Str("username", username).Msg("service: username already taken")
			return nil, ErrUsernameTaken
		}
		log.Error().Err(err).Msg("service: failed to create user in repository")
		return nil, fmt.Errorf("service: failed to create user: %w", err)
	}
	user.ID = id

	log.Info().Int64("user_id", id).Msg("service: user signed up")
	return user, nil
}

func (s *service) SignIn(ctx context.Context, username, password string) (*User, error) {
	user, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		log.Error().Err(err).Msg("service: failed to fetch user by username")
		return nil, fmt.Errorf("service: failed to fetch user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Warn().Int64("user_id", user.ID).Msg("service: sign-in with wrong password")
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *service) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		log.Error().Err(err).Int64("user_id", userID).Msg("service: failed to fetch profile in repository")
		return nil, fmt.Errorf("service: failed to fetch profile: %w", err)
	}
	return p, nil
}

func (s *service) UpdateProfile(ctx context.Context, userID int64, patch Patch) (*Profile, error) {
	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if patch.FullName != nil {
		if err := ValidateFullName(*patch.FullName); err != nil {
			return nil, err
		}
		p.FullName = strings.Join(strings.Fields(*patch.FullName), " ")
	}

	if patch.Phone != nil {
		phone := strings.TrimSpace(*patch.Phone)
		if err := ValidatePhone(phone); err != nil {
			return nil, err
		}
		if phone != "" && phone != p.Phone {
			if err := s.ensureFree(ctx, s.repo.PhoneTaken, phone, userID, ErrPhoneTaken); err != nil {
				return nil, err
			}
		}
		p.Phone = phone
	}

	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		if email != "" {
			if err := s.validate.Var(email, "email"); err != nil {
				return nil, ErrInvalidEmail
			}
		}
		if email != "" && email != p.Email {
			if err := s.ensureFree(ctx, s.repo.EmailTaken, email, userID, ErrEmailTaken); err != nil {
				return nil, err
			}
		}
		p.Email = email
	}

	if err := s.repo.UpdateProfile(ctx, p); err != nil {
		if errors.Is(err, ErrEmailTaken) || errors.Is(err, ErrPhoneTaken) || errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		log.Error().Err(err).Int64("user_id", userID).Msg("service: failed to update profile in repository")
		return nil, fmt.Errorf("service: failed to update profile: %w", err)
	}
	return p, nil
}

func (s *service) ensureFree(ctx context.Context, taken func(context.Context, string, int64) (bool, error), value string, userID int64, conflict error) error {
	exists, err := taken(ctx, value, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("service: failed to check profile uniqueness")
		return fmt.Errorf("service: failed to check uniqueness: %w", err)
	}
	if exists {
		log.Warn().Int64("user_id", userID).Err(conflict).Msg("service: profile value already in use")
		return conflict
	}
	return nil
}

func (s *service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if err := ValidatePassword(next); err != nil {
		return err
	}
	if current == next {
		return ErrSamePassword
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		log.Error().Err(err).Int64("user_id", userID).Msg("service: failed to fetch user by id")
		return fmt.Errorf("service: failed to fetch user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		log.Warn().Int64("user_id", userID).Msg("service: password change with wrong current password")
		return ErrWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to generate password hash")
		return fmt.Errorf("service: failed to hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("service: failed to update password in repository")
		return fmt.Errorf("service: failed to update password: %w", err)
	}

	log.Info().Int64("user_id", userID).Msg("service: password changed")
	return nil
}

// UploadAvatar stores the image under users/avatars/id_<userID>/ with a
// random file name keeping the original extension.
func (s *service) UploadAvatar(ctx context.Context, userID int64, filename string, size int64, r io.Reader) (*Profile, error) {
	if err := ValidateAvatarFile(filename, size); err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		log.Error().Err(err).Int64("user_id", userID).Msg("service: failed to fetch user by id")
		return nil, fmt.Errorf("service: failed to fetch user: %w", err)
	}

	name, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate avatar name: %w", err)
	}
	path := AvatarPath(userID, name.String()+strings.ToLower(filepath.Ext(filename)))

	if err := s.disk.Put(ctx, path, r); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Str("path", path).Msg("service: failed to store avatar")
		return nil, fmt.Errorf("service: failed to store avatar: %w", err)
	}

	avatar := Avatar{Src: s.disk.URL(path), Alt: fmt.Sprintf("#%d %s avatar", userID, user.Username)}
	if err := s.repo.UpdateAvatar(ctx, userID, avatar); err != nil {
		if delErr := s.disk.Delete(ctx, path); delErr != nil {
			log.Error().Err(delErr).Str("path", path).Msg("service: failed to remove orphaned avatar")
		}
		log.Error().Err(err).Int64("user_id", userID).Msg("service: failed to save avatar in repository")
		return nil, fmt.Errorf("service: failed to save avatar: %w", err)
	}

	return s.GetProfile(ctx, userID)
}

func AvatarPath(userID int64, file string) string {
	return fmt.Sprintf("users/avatars/id_%d/%s", userID, file)
}
