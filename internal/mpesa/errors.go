package mpesa

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrCredentialsRejected means the OAuth endpoint refused the consumer key/secret.
	ErrCredentialsRejected = errors.New("gateway_credentials_rejected")
	// ErrTokenUnavailable means no token could be obtained (network, 5xx, malformed body).
	ErrTokenUnavailable = errors.New("gateway_token_unavailable")
	// ErrGatewayRejected means the gateway answered with a non-success code.
	ErrGatewayRejected = errors.New("gateway_rejected")
	// ErrGatewayUnavailable covers timeouts, transport errors and 5xx answers.
	ErrGatewayUnavailable = errors.New("gateway_unavailable")

	ErrInvalidPhoneNumber = errors.New("invalid_phone_number")
	ErrInvalidRequest     = errors.New("invalid_gateway_request")
	ErrInvalidCallback    = errors.New("invalid_callback")
)

// GatewayError carries what the gateway said about a failed call.
type GatewayError struct {
	Kind       error
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	var b strings.Builder
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("gateway_error")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *GatewayError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// errorBody is the gateway's error envelope.
type errorBody struct {
	RequestID    string         `json:"requestId"`
	ErrorCode    numberOrString `json:"errorCode"`
	ErrorMessage string         `json:"errorMessage"`
}

func parseErrorBody(body []byte) errorBody {
	var out errorBody
	_ = json.Unmarshal(body, &out)
	return out
}

// numberOrString decodes a JSON number or string into its text form. Other
// JSON kinds decode to the empty string.
type numberOrString string

func (v *numberOrString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*v = ""
		return nil
	}
	switch b[0] {
	case '{', '[', 't', 'f':
		*v = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = numberOrString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*v = numberOrString(n.String())
	return nil
}

func (v numberOrString) String() string { return string(v) }
