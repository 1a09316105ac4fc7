// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-core-stack/kyc-proxy/pkg/auth"
	"github.com/go-core-stack/kyc-proxy/pkg/config"
	"github.com/go-core-stack/kyc-proxy/pkg/requestid"
)

// UserAgent identifies the proxy to Airtable.
const UserAgent = "kyc-proxy/1.0"

// maxErrorBody bounds how much of a failed response is kept on StatusError.
const maxErrorBody = 64 * 1024

// ErrMalformedResponse marks a 2xx response whose body could not be decoded.
var ErrMalformedResponse = errors.New("malformed airtable response")

// listParams are the list-records query parameters Airtable documents.
var listParams = map[string]struct{}{
	"maxRecords":            {},
	"pageSize":              {},
	"offset":                {},
	"view":                  {},
	"filterByFormula":       {},
	"cellFormat":            {},
	"timeZone":              {},
	"userLocale":            {},
	"returnFieldsByFieldId": {},
}

// listParamPrefixes cover the bracketed array parameters, e.g. fields[] and
// sort[0][field].
var listParamPrefixes = []string{"fields[", "sort[", "recordMetadata["}

// Record is a single row of a list response.
type Record struct {
	ID          string                     `json:"id"`
	CreatedTime string                     `json:"createdTime"`
	Fields      map[string]json.RawMessage `json:"fields"`
}

// ListResponse is the body of GET /v0/<base>/<table>.
type ListResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

// StatusError is returned by ListRecords when Airtable answers with a
// non-success status.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("airtable returned status %d", e.StatusCode)
}

// Client issues authenticated requests against one Airtable table.
type Client struct {
	tableURL *url.URL
	http     *http.Client
	bearer   *auth.Bearer
}

// NewClient builds a Client for the table described by cfg. httpClient is
// used as-is so callers control timeouts and transport.
func NewClient(cfg config.Airtable, httpClient *http.Client) (*Client, error) {
	if cfg.APIURL == nil || !cfg.APIURL.IsAbs() {
		return nil, errors.New("airtable api url must be absolute")
	}
	if cfg.BaseID == "" || cfg.TableID == "" {
		return nil, errors.New("airtable base and table ids are required")
	}
	if cfg.APIToken == "" {
		return nil, auth.ErrEmptyToken
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		tableURL: TableURL(cfg),
		http:     httpClient,
		bearer:   auth.NewBearer(cfg.APIToken),
	}, nil
}

// TableURL returns <api>/v0/<base>/<table> for cfg, with the IDs
// path-escaped.
func TableURL(cfg config.Airtable) *url.URL {
	u := *cfg.APIURL
	u.Path = strings.TrimSuffix(cfg.APIURL.Path, "/") + "/v0/" + cfg.BaseID + "/" + cfg.TableID
	u.RawPath = strings.TrimSuffix(cfg.APIURL.EscapedPath(), "/") + "/v0/" + url.PathEscape(cfg.BaseID) + "/" + url.PathEscape(cfg.TableID)
	u.RawQuery = ""
	u.Fragment = ""
	return &u
}

// TableURL returns a copy of the table endpoint.
func (c *Client) TableURL() *url.URL {
	u := *c.tableURL
	return &u
}

// FilterListQuery keeps only the list-records parameters Airtable accepts.
func FilterListQuery(in url.Values) url.Values {
	out := make(url.Values)
	for key, vals := range in {
		if !isListParam(key) {
			continue
		}
		out[key] = append([]string(nil), vals...)
	}
	return out
}

func isListParam(key string) bool {
	if _, ok := listParams[key]; ok {
		return true
	}
	for _, prefix := range listParamPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// NewListRequest builds an authenticated GET for the table with query
// appended. The request carries exactly one Authorization header.
func (c *Client) NewListRequest(ctx context.Context, query url.Values) (*http.Request, error) {
	target := c.TableURL()
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	if id := requestid.FromContext(ctx); id != "" {
		req.Header.Set(requestid.Header, id)
	}
	if err := c.bearer.Attach(req); err != nil {
		return nil, fmt.Errorf("attach credential: %w", err)
	}
	return req, nil
}

// List performs the list request and returns the raw upstream response. Any
// status code is returned without error; the caller owns the body.
func (c *Client) List(ctx context.Context, query url.Values) (*http.Response, error) {
	req, err := c.NewListRequest(ctx, query)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perform upstream request: %w", err)
	}
	return resp, nil
}

// ListRecords performs the list request and decodes the records. Non-2xx
// responses yield a *StatusError.
func (c *Client) ListRecords(ctx context.Context, query url.Values) (*ListResponse, error) {
	resp, err := c.List(ctx, query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}

	var out ListResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return &out, nil
}
