package types

import (
	"github.com/google/uuid"

	"github.com/kbenali/resto-backend/pkg/enums"
)

// Actor identifies who performed a state transition or deduction. It is
// carried for audit attribution only; authorization happens before the core
// engines are invoked.
type Actor struct {
	UserID uuid.UUID       `json:"user_id"`
	Role   enums.StaffRole `json:"role"`
}

// Fingerprint is the coarse client identity used to tell "same customer
// reconnecting" apart from "a different customer" on a table.
type Fingerprint struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}

// Matches reports whether both origin address and agent string are equal.
func (f Fingerprint) Matches(other Fingerprint) bool {
	return f.IPAddress == other.IPAddress && f.UserAgent == other.UserAgent
}
