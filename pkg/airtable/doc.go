// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package airtable talks to the Airtable REST API on behalf of the proxy. It
// builds list requests against a single configured table
// (<api>/v0/<base>/<table>), attaches the bearer credential and the headers
// Airtable expects, and decodes list responses when the caller needs to look
// inside them.
package airtable
