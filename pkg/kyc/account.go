// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package kyc

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	minAccountIDLen = 2
	maxAccountIDLen = 64
)

// accountIDPattern accepts dot-separated parts of lowercase alphanumerics
// joined by single '-' or '_' separators.
var accountIDPattern = regexp.MustCompile(`^(([a-z\d]+[\-_])*[a-z\d]+\.)*([a-z\d]+[\-_])*[a-z\d]+$`)

// InvalidAccountIDError describes why an account ID was rejected.
type InvalidAccountIDError struct {
	ID     string
	Reason string
}

func (e *InvalidAccountIDError) Error() string {
	return fmt.Sprintf("invalid account id %q: %s", e.ID, e.Reason)
}

// AccountID is a validated NEAR account identifier.
type AccountID string

// ParseAccountID validates id and returns it as an AccountID.
func ParseAccountID(id string) (AccountID, error) {
	switch {
	case len(id) < minAccountIDLen:
		return "", &InvalidAccountIDError{ID: id, Reason: fmt.Sprintf("shorter than %d characters", minAccountIDLen)}
	case len(id) > maxAccountIDLen:
		return "", &InvalidAccountIDError{ID: id, Reason: fmt.Sprintf("longer than %d characters", maxAccountIDLen)}
	case !accountIDPattern.MatchString(id):
		return "", &InvalidAccountIDError{ID: id, Reason: "must be lowercase alphanumeric parts separated by '.', '-' or '_'"}
	}
	return AccountID(id), nil
}

func (a AccountID) String() string {
	return string(a)
}

// WalletFilterFormula returns the Airtable formula selecting records whose
// comma-separated "Wallet Address" field contains the account. Dots are
// matched literally.
func (a AccountID) WalletFilterFormula() string {
	pattern := strings.ReplaceAll(string(a), ".", "[.]")
	return fmt.Sprintf("REGEX_MATCH({%s}, '(^|,)%s(,|$)')", FieldWalletAddress, pattern)
}
