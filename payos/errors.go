package payos

import (
	"errors"
	"fmt"
)

// Business-status codes. "00" is the gateway's only success marker; the
// remaining codes are synthesized locally for failures the gateway reports
// out of band (HTTP status) or not at all (integrity).
const (
	codeSuccess             = "00"
	codeInternalServerError = "20"
	codeWebhookURLInvalid   = "400"
	codeUnauthorized        = "401"
	codeDataNotIntegrity    = "DATA_NOT_INTEGRITY"
)

// GatewayError is a business-level failure: either reported by the gateway
// in its response envelope, or synthesized locally with one of the fixed
// codes above. Transport failures (network, malformed JSON) are plain
// wrapped errors, not GatewayErrors.
type GatewayError struct {
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payos: gateway error %s: %s", e.Code, e.Message)
}

// ErrDataNotIntegrity is returned whenever a locally recomputed signature
// does not match the one supplied by the gateway or a webhook. It is always
// fatal to the call; there is no partial-trust mode.
var ErrDataNotIntegrity = &GatewayError{
	Code:    codeDataNotIntegrity,
	Message: "the data is unreliable because the signature of the response does not match the signature of the data",
}

// Validation sentinels for malformed local input.
var (
	ErrInvalidParameter = errors.New("invalid parameter: order id must be a positive integer or a non-empty string")
	ErrNoData           = errors.New("no data in webhook body")
	ErrNoSignature      = errors.New("no signature in webhook body")
)
