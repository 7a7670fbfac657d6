package callback

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
)

// Response is the untrusted input the provider posts to the callback
// endpoint. Only the fields below are ever read; nothing in a Response is
// trusted until the Validator has accepted it.
type Response struct {
	// State should echo the pending request's state.
	State string `json:"state"`

	// IDToken is the compact-JWT id_token.
	IDToken string `json:"id_token"`

	// Error, ErrorDescription and ErrorURI carry a provider-reported
	// authentication failure. See:
	// https://openid.net/specs/openid-connect-core-1_0.html#AuthError
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorURI         string `json:"error_uri"`
}

// ReadResponse reads a callback Response from an inbound request. Form
// encoded bodies (and, for completeness, query parameters) are read via
// FormValue; a JSON content type switches to decoding the body as a JSON
// object. Absent fields are left empty, which the Validator treats as their
// own failure modes.
func ReadResponse(req *http.Request) (*Response, error) {
	const op = "callback.ReadResponse"
	if req == nil {
		return nil, fmt.Errorf("%s: request is nil", op)
	}
	ct := req.Header.Get("Content-Type")
	if ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && mt == "application/json" {
			var r Response
			if err := json.NewDecoder(req.Body).Decode(&r); err != nil {
				return nil, fmt.Errorf("%s: unable to decode JSON body: %w", op, err)
			}
			return &r, nil
		}
	}
	return &Response{
		State:            req.FormValue("state"),
		IDToken:          req.FormValue("id_token"),
		Error:            req.FormValue("error"),
		ErrorDescription: req.FormValue("error_description"),
		ErrorURI:         req.FormValue("error_uri"),
	}, nil
}

// AuthErrorResponse represents a provider-reported OAuth2 error response.
type AuthErrorResponse struct {
	Error       string
	Description string
	URI         string
}

// authError returns the provider-reported failure carried by the response,
// or nil when the response doesn't report one.
func (r *Response) authError() *AuthErrorResponse {
	if r.Error == "" {
		return nil
	}
	return &AuthErrorResponse{
		Error:       r.Error,
		Description: r.ErrorDescription,
		URI:         r.ErrorURI,
	}
}
