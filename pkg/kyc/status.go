// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package kyc

import (
	"encoding/json"
	"fmt"
)

// Airtable field names read by the status lookup.
const (
	FieldWalletAddress      = "Wallet Address"
	FieldVerificationStatus = "Owner Verification Status"
)

// Standing is the owner verification value stored in Airtable.
type Standing string

const (
	StandingVerified     Standing = "Verified"
	StandingRejected     Standing = "Rejected"
	StandingPending      Standing = "Pending"
	StandingExpired      Standing = "Expired"
	StandingNotSubmitted Standing = "Not Submitted"
)

// Status is the KYC state reported to callers.
type Status string

const (
	StatusNotSubmitted Status = "NOT_SUBMITTED"
	StatusPending      Status = "PENDING"
	StatusRejected     Status = "REJECTED"
	StatusApproved     Status = "APPROVED"
	StatusExpired      Status = "EXPIRED"
)

var standingStatus = map[Standing]Status{
	StandingVerified:     StatusApproved,
	StandingRejected:     StatusRejected,
	StandingPending:      StatusPending,
	StandingExpired:      StatusExpired,
	StandingNotSubmitted: StatusNotSubmitted,
}

// ParseStanding rejects values outside the known set.
func ParseStanding(raw string) (Standing, error) {
	s := Standing(raw)
	if _, ok := standingStatus[s]; !ok {
		return "", fmt.Errorf("unknown verification standing %q", raw)
	}
	return s, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Standing) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("verification standing: %w", err)
	}
	parsed, err := ParseStanding(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Status maps the Airtable standing to the public status.
func (s Standing) Status() Status {
	if st, ok := standingStatus[s]; ok {
		return st
	}
	return StatusNotSubmitted
}

// StandingFromFields extracts the verification standing from a record's
// fields. Airtable omits empty cells, so a missing field reads as
// StandingNotSubmitted.
func StandingFromFields(fields map[string]json.RawMessage) (Standing, error) {
	raw, ok := fields[FieldVerificationStatus]
	if !ok || string(raw) == "null" {
		return StandingNotSubmitted, nil
	}
	var s Standing
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return s, nil
}

// Resolve picks the effective status for an account from its records, in
// upstream order: the first Verified record wins, otherwise the first record
// decides, and no records means StatusNotSubmitted.
func Resolve(standings []Standing) Status {
	for _, s := range standings {
		if s == StandingVerified {
			return s.Status()
		}
	}
	if len(standings) == 0 {
		return StatusNotSubmitted
	}
	return standings[0].Status()
}

// Response is the body returned for an account status lookup.
type Response struct {
	AccountID AccountID `json:"account_id"`
	Status    Status    `json:"kyc_status"`
}
