package session

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/rp-jtw/storefront/internal/apperr"
	"github.com/rp-jtw/storefront/internal/backend"
)

// DefaultISDCode is used when the form leaves the country code empty.
const DefaultISDCode = "+91"

var (
	nonDigits  = regexp.MustCompile(`\D`)
	isdPattern = regexp.MustCompile(`^\+[0-9]{1,4}$`)
	otpPattern = regexp.MustCompile(`^[0-9]{6}$`)
	gstPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
)

// NormalizePhone strips every non-digit character.
func NormalizePhone(raw string) string {
	return nonDigits.ReplaceAllString(raw, "")
}

// ValidatePhone returns the normalized number, which must be exactly 10 digits.
func ValidatePhone(raw string) (string, error) {
	phone := NormalizePhone(raw)
	if len(phone) != 10 {
		return "", apperr.Invalid("phoneNumber", "Phone number must be exactly 10 digits.")
	}
	return phone, nil
}

// ValidateISDCode defaults an empty code and checks the +<digits> shape.
func ValidateISDCode(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if code == "" {
		return DefaultISDCode, nil
	}
	if !strings.HasPrefix(code, "+") {
		code = "+" + code
	}
	if !isdPattern.MatchString(code) {
		return "", apperr.Invalid("isdCode", "Country code must look like +91.")
	}
	return code, nil
}

// ValidateOTP requires exactly six digits.
func ValidateOTP(raw string) (string, error) {
	code := strings.Join(strings.Fields(raw), "")
	if !otpPattern.MatchString(code) {
		return "", apperr.Invalid("otp", "Please enter the complete 6-digit OTP.")
	}
	return code, nil
}

// ProfileForm is what the user fills in after verifying their number.
type ProfileForm struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	BusinessName string `json:"businessName"`
	GSTNumber    string `json:"gstNumber"`
	Email        string `json:"email"`
	City         string `json:"city"`
	State        string `json:"state"`
}

// Validate checks mandatory fields and the optional GSTIN, returning the
// trimmed update to send to the backend.
func (f ProfileForm) Validate() (backend.ProfileUpdate, error) {
	u := backend.ProfileUpdate{
		FirstName:    strings.TrimSpace(f.FirstName),
		LastName:     strings.TrimSpace(f.LastName),
		BusinessName: strings.TrimSpace(f.BusinessName),
		GSTNumber:    strings.ToUpper(strings.TrimSpace(f.GSTNumber)),
		Email:        strings.TrimSpace(f.Email),
		City:         strings.TrimSpace(f.City),
		State:        strings.TrimSpace(f.State),
	}

	required := []struct{ field, value, label string }{
		{"firstName", u.FirstName, "First name"},
		{"lastName", u.LastName, "Last name"},
		{"businessName", u.BusinessName, "Business name"},
		{"email", u.Email, "Email"},
		{"city", u.City, "City"},
		{"state", u.State, "State"},
	}
	for _, r := range required {
		if r.value == "" {
			return backend.ProfileUpdate{}, apperr.Invalid(r.field, r.label+" is required.")
		}
	}

	if addr, err := mail.ParseAddress(u.Email); err != nil || addr.Address != u.Email {
		return backend.ProfileUpdate{}, apperr.Invalid("email", "Enter a valid email address.")
	}
	if u.GSTNumber != "" && !gstPattern.MatchString(u.GSTNumber) {
		return backend.ProfileUpdate{}, apperr.Invalid("gstNumber", "GST number is not a valid GSTIN.")
	}
	return u, nil
}
