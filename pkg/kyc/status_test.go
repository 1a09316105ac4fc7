// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package kyc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandingStatus(t *testing.T) {
	cases := map[Standing]Status{
		StandingVerified:     StatusApproved,
		StandingRejected:     StatusRejected,
		StandingPending:      StatusPending,
		StandingExpired:      StatusExpired,
		StandingNotSubmitted: StatusNotSubmitted,
	}
	for standing, want := range cases {
		assert.Equal(t, want, standing.Status(), string(standing))
	}
}

func TestStandingUnmarshal(t *testing.T) {
	var s Standing
	require.NoError(t, json.Unmarshal([]byte(`"Not Submitted"`), &s))
	assert.Equal(t, StandingNotSubmitted, s)

	require.Error(t, json.Unmarshal([]byte(`"Approved"`), &s))
	require.Error(t, json.Unmarshal([]byte(`42`), &s))
}

func TestStandingFromFields(t *testing.T) {
	s, err := StandingFromFields(map[string]json.RawMessage{
		FieldVerificationStatus: json.RawMessage(`"Pending"`),
		FieldWalletAddress:      json.RawMessage(`"alice.near"`),
	})
	require.NoError(t, err)
	assert.Equal(t, StandingPending, s)

	s, err = StandingFromFields(map[string]json.RawMessage{})
	require.NoError(t, err)
	assert.Equal(t, StandingNotSubmitted, s)

	_, err = StandingFromFields(map[string]json.RawMessage{
		FieldVerificationStatus: json.RawMessage(`"Unknown"`),
	})
	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	assert.Equal(t, StatusNotSubmitted, Resolve(nil))
	assert.Equal(t, StatusRejected, Resolve([]Standing{StandingRejected, StandingPending}))
	assert.Equal(t, StatusApproved, Resolve([]Standing{StandingExpired, StandingPending, StandingVerified}))
	assert.Equal(t, StatusExpired, Resolve([]Standing{StandingExpired}))
}

func TestResponseJSON(t *testing.T) {
	body, err := json.Marshal(Response{AccountID: "alice.near", Status: StatusApproved})
	require.NoError(t, err)
	assert.JSONEq(t, `{"account_id":"alice.near","kyc_status":"APPROVED"}`, string(body))
}
