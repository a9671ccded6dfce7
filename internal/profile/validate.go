package profile

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vasiliy-maslov/megano/internal/apperr"
)

const (
	minPasswordLength = 8
	maxAvatarSize     = 2_097_152
)

var (
	ErrFullNameFormat  = apperr.New(apperr.KindValidation, "enter first name, last name and patronymic separated by spaces")
	ErrFullNameDigits  = apperr.New(apperr.KindValidation, "full name must not contain digits")
	ErrWeakPassword    = apperr.New(apperr.KindValidation, "password must be at least 8 characters and contain lowercase and uppercase latin letters and digits")
	ErrInvalidPhone    = apperr.New(apperr.KindValidation, "invalid phone number")
	ErrAvatarNotImage  = apperr.New(apperr.KindValidation, "avatar must be an image")
	ErrAvatarTooLarge  = apperr.New(apperr.KindValidation, "avatar must be smaller than 2MB")
	ErrSamePassword    = apperr.New(apperr.KindValidation, "new password must differ from the current one")
	ErrWrongPassword   = apperr.New(apperr.KindValidation, "current password is incorrect")
	ErrInvalidEmail    = apperr.New(apperr.KindValidation, "invalid email")
	ErrInvalidUsername = apperr.New(apperr.KindValidation, "username is required")
)

var phonePattern = regexp.MustCompile(`^(?:[78]\d{10}|\+7\d{10})$`)

var avatarExtensions = map[string]bool{".jpg": true, ".png": true, ".jpeg": true, ".gif": true}

// ValidateFullName requires exactly three whitespace separated words and no
// digits.
func ValidateFullName(fullName string) error {
	if len(strings.Fields(fullName)) != 3 {
		return ErrFullNameFormat
	}
	for _, r := range fullName {
		if unicode.IsDigit(r) {
			return ErrFullNameDigits
		}
	}
	return nil
}

// ValidatePassword requires more than seven characters with at least one
// lowercase and one uppercase ASCII letter and one ASCII digit.
func ValidatePassword(password string) error {
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	if !lower || !upper || !digit || utf8.RuneCountInString(password) < minPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// ValidatePhone accepts an empty phone or a Russian number in the 11 digit
// form starting with 7 or 8, or +7 followed by 10 digits.
func ValidatePhone(phone string) error {
	if phone == "" || phonePattern.MatchString(phone) {
		return nil
	}
	return ErrInvalidPhone
}

func ValidateAvatarFile(filename string, size int64) error {
	if !avatarExtensions[strings.ToLower(filepath.Ext(filename))] {
		return ErrAvatarNotImage
	}
	if size >= maxAvatarSize {
		return ErrAvatarTooLarge
	}
	return nil
}
