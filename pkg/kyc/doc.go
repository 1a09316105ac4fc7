// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package kyc holds the KYC domain rules applied to Airtable records: which
// account identifiers are accepted, how the stored owner verification
// standing maps to a public status, and which record decides when an account
// has several.
package kyc
