package session

import (
	"encoding/json"
	"fmt"
)

// Status is the approval state of a storefront account. It is always taken
// from the backend, never advanced locally.
type Status int

const (
	StatusUnverified Status = iota
	StatusPendingDetails
	StatusPendingApproval
	StatusApproved
)

// ParseStatus maps the backend's wire value onto Status. Both "active" and
// "approved" mean the admin has approved the account.
func ParseStatus(raw string) (Status, error) {
	switch raw {
	case "pending_details":
		return StatusPendingDetails, nil
	case "pending":
		return StatusPendingApproval, nil
	case "active", "approved":
		return StatusApproved, nil
	default:
		return StatusUnverified, fmt.Errorf("unexpected account status %q", raw)
	}
}

func (s Status) String() string {
	switch s {
	case StatusUnverified:
		return "unverified"
	case StatusPendingDetails:
		return "pending_details"
	case StatusPendingApproval:
		return "pending"
	case StatusApproved:
		return "approved"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// CanBrowseCatalog is the approval gate.
func (s Status) CanBrowseCatalog() bool {
	switch s {
	case StatusApproved:
		return true
	case StatusUnverified, StatusPendingDetails, StatusPendingApproval:
		return false
	}
	return false
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "unverified" || raw == "" {
		*s = StatusUnverified
		return nil
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Stage is where a session sits in the sign-in flow.
type Stage string

const (
	StageAnonymous        Stage = "anonymous"
	StageOTPSent          Stage = "otp_sent"
	StageProfilePending   Stage = "profile_pending"
	StageAwaitingApproval Stage = "awaiting_approval"
	StageApproved         Stage = "approved"
)
