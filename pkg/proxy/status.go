// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package proxy

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/go-core-stack/kyc-proxy/pkg/airtable"
	"github.com/go-core-stack/kyc-proxy/pkg/kyc"
)

// serveAccountStatus looks up the records tied to one wallet and reports the
// effective KYC status.
func (p *Proxy) serveAccountStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	event := hlog.FromRequest(r)

	accountID, err := kyc.ParseAccountID(r.PathValue("account_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		event.Debug().Err(err).Msg("rejected account id")
		return
	}

	list, err := p.upstream.ListRecords(r.Context(), p.statusQuery(accountID))
	if err != nil {
		status, msg := statusLookupFailure(err)
		writeError(w, status, msg)

		var statusErr *airtable.StatusError
		if errors.As(err, &statusErr) {
			event.Warn().
				Int("upstream_status", statusErr.StatusCode).
				Bytes("upstream_body", statusErr.Body).
				Str("account_id", accountID.String()).
				Dur("duration", time.Since(start)).
				Msg("status lookup failed")
			return
		}
		event.Error().
			Err(err).
			Str("account_id", accountID.String()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("status lookup failed")
		return
	}

	standings := make([]kyc.Standing, 0, len(list.Records))
	for _, rec := range list.Records {
		standing, err := kyc.StandingFromFields(rec.Fields)
		if err != nil {
			writeError(w, http.StatusBadGateway, "unrecognised verification status in upstream record")
			event.Error().
				Err(err).
				Str("account_id", accountID.String()).
				Str("record_id", rec.ID).
				Msg("status lookup failed")
			return
		}
		standings = append(standings, standing)
	}

	resp := kyc.Response{
		AccountID: accountID,
		Status:    kyc.Resolve(standings),
	}
	writeJSON(w, http.StatusOK, resp)

	event.Debug().
		Str("account_id", accountID.String()).
		Str("kyc_status", string(resp.Status)).
		Int("records", len(list.Records)).
		Msg("status resolved")
}

func (p *Proxy) statusQuery(accountID kyc.AccountID) url.Values {
	query := url.Values{}
	query.Set("maxRecords", strconv.Itoa(p.cfg.Airtable.StatusMaxRecords))
	if p.cfg.Airtable.StatusView != "" {
		query.Set("view", p.cfg.Airtable.StatusView)
	}
	query.Set("filterByFormula", accountID.WalletFilterFormula())
	return query
}

// statusLookupFailure maps a ListRecords error to the status and message
// returned to the caller. Upstream error bodies are logged, never relayed.
func statusLookupFailure(err error) (int, string) {
	var statusErr *airtable.StatusError
	if errors.As(err, &statusErr) {
		return http.StatusBadGateway, fmt.Sprintf("upstream returned status %d", statusErr.StatusCode)
	}

	var httpErr *httpError
	if errors.As(classifyUpstreamError(err), &httpErr) && httpErr.Status == http.StatusGatewayTimeout {
		return http.StatusGatewayTimeout, http.StatusText(http.StatusGatewayTimeout)
	}
	if errors.Is(err, airtable.ErrMalformedResponse) {
		return http.StatusBadGateway, "malformed upstream response"
	}
	return http.StatusBadGateway, http.StatusText(http.StatusBadGateway)
}
