// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package proxy provides the HTTP front of the KYC proxy. Callers read KYC
// records through it without holding the Airtable credential: the proxy
// injects the bearer token server-side, relays the upstream listing verbatim,
// and answers per-account status lookups by interpreting the owner
// verification standing stored in the table.
//
// Routes, relative to the configured route path (default /kyc):
//
//	GET /kyc               relay GET <api>/v0/<base>/<table> unchanged
//	GET /kyc/{account_id}  {"account_id": "...", "kyc_status": "..."}
//	GET /healthz           liveness, never contacts Airtable
package proxy
