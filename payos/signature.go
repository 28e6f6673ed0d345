package payos

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// canonicalQuery serializes a flat payload into the deterministic
// key=value&key=value form the gateway signs. Keys are ordered by byte
// value; no URL-encoding is applied. This is a signing canonicalization,
// not a query string, even though it looks like one.
func canonicalQuery(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(renderValue(payload[k]))
	}
	return b.String()
}

// renderValue coerces a payload value to the string form the gateway's own
// signer produces. null and the literal strings "undefined"/"null" render
// empty; arrays are key-sorted per element and JSON-encoded. Do not "fix"
// these rules: the remote signer relies on the same coercion.
func renderValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		if t == "undefined" || t == "null" {
			return ""
		}
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		return renderArray(t)
	default:
		b, err := marshalCompact(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// renderArray JSON-encodes an array value. Go's encoder already writes map
// keys in sorted order, which matches the gateway sorting each element
// before stringifying.
func renderArray(vs []any) string {
	b, err := marshalCompact(vs)
	if err != nil {
		return ""
	}
	return string(b)
}

// marshalCompact is json.Marshal without HTML escaping, so values holding
// URLs or ampersands sign byte-identically to the gateway's output.
func marshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// SignPayload computes the HMAC-SHA256 hex digest of the payload's canonical
// form under key. It returns "" when the payload is absent or the key is
// empty: signing is best-effort at this layer and callers decide how to
// react.
func SignPayload(payload map[string]any, key string) string {
	if payload == nil || key == "" {
		return ""
	}
	return hmacHex(canonicalQuery(payload), key)
}

// SignPaymentRequest computes the signature for a payment-creation request.
// The gateway signs exactly five fields in this fixed order; sorting here
// would silently break the contract.
func SignPaymentRequest(req *CheckoutRequest, key string) string {
	if req == nil || key == "" {
		return ""
	}
	msg := fmt.Sprintf("amount=%d&cancelUrl=%s&description=%s&orderCode=%d&returnUrl=%s",
		req.Amount, req.CancelURL, req.Description, req.OrderCode, req.ReturnURL)
	return hmacHex(msg, key)
}

func hmacHex(msg, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// decodePayload unmarshals raw JSON into a payload map, keeping numbers as
// json.Number so large order codes and decimal forms survive byte-exactly
// into the canonical form.
func decodePayload(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// verifyDataSignature recomputes the signature of raw under key and compares
// it against the claimed one. A mismatch means the data cannot be trusted,
// regardless of HTTP status.
func verifyDataSignature(raw json.RawMessage, claimed, key string) error {
	payload, err := decodePayload(raw)
	if err != nil {
		return fmt.Errorf("payos: decode signed data: %w", err)
	}
	if SignPayload(payload, key) != claimed {
		return ErrDataNotIntegrity
	}
	return nil
}
