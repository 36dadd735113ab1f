package session

import "time"

// Session is the storefront state kept per browser.
type Session struct {
	ID           string    `json:"id"`
	AccessToken  string    `json:"accessToken,omitempty"`
	ISDCode      string    `json:"isdCode,omitempty"`
	PhoneNumber  string    `json:"phoneNumber,omitempty"`
	OTPRequested bool      `json:"otpRequested,omitempty"`
	Status       Status    `json:"status"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Authenticated reports whether the session holds a backend access token.
func (s Session) Authenticated() bool { return s.AccessToken != "" }

// Stage derives the sign-in stage from the stored fields.
func (s Session) Stage() Stage {
	if !s.Authenticated() {
		if s.OTPRequested {
			return StageOTPSent
		}
		return StageAnonymous
	}
	switch s.Status {
	case StatusUnverified:
		return StageAnonymous
	case StatusPendingDetails:
		return StageProfilePending
	case StatusPendingApproval:
		return StageAwaitingApproval
	case StatusApproved:
		return StageApproved
	}
	return StageAnonymous
}

// Access is the outcome of the catalog guard.
type Access struct {
	Allowed  bool   `json:"allowed"`
	Stage    Stage  `json:"stage"`
	Status   Status `json:"status"`
	Redirect string `json:"redirect,omitempty"`
}

// Views the UI is sent to when the catalog is refused.
const (
	RedirectHome    = "/"
	RedirectProfile = "/profile"
)

func accessFor(s Session) Access {
	a := Access{Stage: s.Stage(), Status: s.Status}
	if !s.Authenticated() {
		a.Redirect = RedirectHome
		return a
	}
	switch s.Status {
	case StatusApproved:
		a.Allowed = true
	case StatusPendingDetails, StatusPendingApproval:
		a.Redirect = RedirectProfile
	case StatusUnverified:
		a.Redirect = RedirectHome
	}
	return a
}
