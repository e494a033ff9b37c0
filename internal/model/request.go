package model

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sakif/moodmingle/internal/apperror"
)

// Field limits shared by client-side validation and the backend.
const (
	MinUsernameLength    = 3
	MaxUsernameLength    = 32
	MinPasswordLength    = 8
	MaxPasswordBytes     = 72 // bcrypt limit
	MaxDisplayNameLength = 32
	MaxLocationLength    = 100
)

// Credentials is a login attempt. Identifier is a username or an email address.
type Credentials struct {
	Identifier string `json:"username"`
	Password   string `json:"password"`
}

// Validate runs the checks that can be made before any network call.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Identifier) == "" {
		return apperror.ValidationFailed("username", "username or email is required")
	}
	if c.Password == "" {
		return apperror.ValidationFailed("password", "password is required")
	}
	return nil
}

// Registration is a signup request. ConfirmPassword is optional; when set it must
// match Password. It never goes over the wire.
type Registration struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"-"`
	DisplayName     string `json:"displayName"`
}

// Normalize trims the free-text fields in place.
func (r *Registration) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
}

func (r Registration) Validate() error {
	r.Normalize()

	if err := ValidateUsername(r.Username); err != nil {
		return err
	}
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	if err := ValidatePassword(r.Password); err != nil {
		return err
	}
	if r.ConfirmPassword != "" && r.ConfirmPassword != r.Password {
		return apperror.ValidationFailed("confirmPassword", "passwords do not match")
	}
	return ValidateDisplayName(r.DisplayName)
}

// ValidateUsername requires 3-32 letters, digits or underscores.
func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return apperror.ValidationFailed("username",
			fmt.Sprintf("username must be between %d and %d characters", MinUsernameLength, MaxUsernameLength))
	}
	for _, ch := range username {
		if !unicode.IsLetter(ch) && !unicode.IsDigit(ch) && ch != '_' {
			return apperror.ValidationFailed("username",
				"username can only contain letters, numbers, and underscores")
		}
	}
	return nil
}

// ValidateEmail is a shape check only: one '@' with something on both sides and a dot
// in the domain.
func ValidateEmail(email string) error {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") || !strings.Contains(domain, ".") {
		return apperror.ValidationFailed("email", "a valid email address is required")
	}
	return nil
}

func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordBytes {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", MaxPasswordBytes))
	}
	return nil
}

func ValidateDisplayName(name string) error {
	if name == "" {
		return apperror.ValidationFailed("displayName", "Display name is required")
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return apperror.ValidationFailed("displayName",
			fmt.Sprintf("display name must be at most %d characters", MaxDisplayNameLength))
	}
	return nil
}

// ProfileUpdate is a partial profile change; nil fields are left alone.
type ProfileUpdate struct {
	DisplayName *string `json:"displayName,omitempty"`
	Location    *string `json:"location,omitempty"`
}

func (p ProfileUpdate) IsEmpty() bool {
	return p.DisplayName == nil && p.Location == nil
}

// Normalize trims the provided fields in place.
func (p *ProfileUpdate) Normalize() {
	if p.DisplayName != nil {
		v := strings.TrimSpace(*p.DisplayName)
		p.DisplayName = &v
	}
	if p.Location != nil {
		v := strings.TrimSpace(*p.Location)
		p.Location = &v
	}
}

func (p ProfileUpdate) Validate() error {
	if p.IsEmpty() {
		return apperror.ValidationFailed("", "nothing to update")
	}
	p.Normalize()
	if p.DisplayName != nil {
		if err := ValidateDisplayName(*p.DisplayName); err != nil {
			return err
		}
	}
	if p.Location != nil && utf8.RuneCountInString(*p.Location) > MaxLocationLength {
		return apperror.ValidationFailed("location",
			fmt.Sprintf("location must be at most %d characters", MaxLocationLength))
	}
	return nil
}

// Apply merges the provided fields into id.
func (p ProfileUpdate) Apply(id *Identity) {
	p.Normalize()
	if p.DisplayName != nil {
		id.DisplayName = *p.DisplayName
	}
	if p.Location != nil {
		id.Location = *p.Location
	}
}
