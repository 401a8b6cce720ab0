package session

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fjod/shopsphere/internal/domain"
)

var (
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	namePattern    = regexp.MustCompile(`^[a-zA-Z\s\-']+$`)
	phonePattern   = regexp.MustCompile(`^[6-9]\d{9}$`)
	letterPattern  = regexp.MustCompile(`[a-zA-Z]`)
	digitPattern   = regexp.MustCompile(`\d`)
	specialPattern = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]`)
	phoneNoise     = strings.NewReplacer(" ", "", "-", "", "\t", "")
)

// FieldErrors maps a form field to what is wrong with it.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return "invalid signup: " + strings.Join(parts, "; ")
}

func ValidateSignup(req domain.SignupRequest) error {
	errs := FieldErrors{}
	if msg := ValidateName(req.Name); msg != "" {
		errs["name"] = msg
	}
	if msg := ValidateEmail(req.Email); msg != "" {
		errs["email"] = msg
	}
	if msg := ValidatePhone(req.Phone); msg != "" {
		errs["phone"] = msg
	}
	if msgs := ValidatePassword(req.Password); len(msgs) > 0 {
		errs["password"] = strings.Join(msgs, "; ")
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func ValidateName(name string) string {
	name = strings.TrimSpace(name)
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		return "Name is required"
	case n < 2:
		return "Name must be at least 2 characters"
	case n > 100:
		return "Name must be less than 100 characters"
	}
	if !namePattern.MatchString(name) {
		return "Name can only contain letters, spaces, hyphens, and apostrophes (no numbers or special characters)"
	}
	return ""
}

func ValidateEmail(email string) string {
	if strings.TrimSpace(email) == "" {
		return "Email is required"
	}
	if !emailPattern.MatchString(email) {
		return "Invalid email format"
	}
	return ""
}

// CleanPhone drops the spaces and hyphens shoppers type between digit groups.
func CleanPhone(phone string) string {
	return phoneNoise.Replace(strings.TrimSpace(phone))
}

func ValidatePhone(phone string) string {
	cleaned := CleanPhone(phone)
	if cleaned == "" {
		return "Phone number is required"
	}
	if len(cleaned) != 10 || strings.Trim(cleaned, "0123456789") != "" {
		return "Phone number must be exactly 10 digits"
	}
	if !phonePattern.MatchString(cleaned) {
		return "Phone number must start with 6, 7, 8, or 9"
	}
	return ""
}

// ValidatePassword lists every rule the password breaks.
func ValidatePassword(password string) []string {
	if password == "" {
		return []string{"Password is required"}
	}
	var errs []string
	if utf8.RuneCountInString(password) < 6 {
		errs = append(errs, "Password must be at least 6 characters")
	}
	if !letterPattern.MatchString(password) {
		errs = append(errs, "Password must contain at least one alphabet")
	}
	if !digitPattern.MatchString(password) {
		errs = append(errs, "Password must contain at least one digit")
	}
	if !specialPattern.MatchString(password) {
		errs = append(errs, "Password must contain at least one special character")
	}
	return errs
}
