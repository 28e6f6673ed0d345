package payos

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestCanonicalQuery(t *testing.T) {
	t.Run("sorts keys by byte value", func(t *testing.T) {
		got := canonicalQuery(map[string]any{
			"b": "2",
			"Z": "0",
			"a": "1",
		})
		want := "Z=0&a=1&b=2"
		if got != want {
			t.Fatalf("canonicalQuery = %q, want %q", got, want)
		}
	})

	t.Run("value coercion follows the gateway convention", func(t *testing.T) {
		got := canonicalQuery(map[string]any{
			"nil":   nil,
			"undef": "undefined",
			"null":  "null",
			"num":   json.Number("9007199254740991"),
			"dec":   json.Number("10.5"),
			"flag":  true,
		})
		want := "dec=10.5&flag=true&nil=&null=&num=9007199254740991&undef="
		if got != want {
			t.Fatalf("canonicalQuery = %q, want %q", got, want)
		}
	})

	t.Run("arrays encode with sorted element keys and no HTML escaping", func(t *testing.T) {
		got := canonicalQuery(map[string]any{
			"transactions": []any{
				map[string]any{"reference": "FT1", "amount": json.Number("2000"), "description": "a&b"},
			},
		})
		want := `transactions=[{"amount":2000,"description":"a&b","reference":"FT1"}]`
		if got != want {
			t.Fatalf("canonicalQuery = %q, want %q", got, want)
		}
	})
}

func TestSignPayload(t *testing.T) {
	t.Run("deterministic and insertion-order independent", func(t *testing.T) {
		first := map[string]any{}
		for _, k := range []string{"a", "b", "c", "d"} {
			first[k] = k + "-value"
		}
		second := map[string]any{}
		for _, k := range []string{"d", "b", "a", "c"} {
			second[k] = k + "-value"
		}

		s1 := SignPayload(first, "k")
		s2 := SignPayload(second, "k")
		if s1 == "" || s1 != s2 {
			t.Fatalf("signatures differ across insertion orders: %q vs %q", s1, s2)
		}
		if s1 != SignPayload(first, "k") {
			t.Fatal("signature is not deterministic")
		}
	})

	t.Run("known digest", func(t *testing.T) {
		got := SignPayload(map[string]any{"a": "1", "b": "2"}, "k")
		want := "acaa976e196269880b8b3898a5ec2f3881696e4570890e89538ba5a0cbfe2829"
		if got != want {
			t.Fatalf("SignPayload = %q, want %q", got, want)
		}
	})

	t.Run("empty key or absent payload yields empty signature", func(t *testing.T) {
		if got := SignPayload(nil, "k"); got != "" {
			t.Fatalf("SignPayload(nil) = %q, want empty", got)
		}
		if got := SignPayload(map[string]any{"a": "1"}, ""); got != "" {
			t.Fatalf("SignPayload with empty key = %q, want empty", got)
		}
	})

	t.Run("key change flips the digest", func(t *testing.T) {
		payload := map[string]any{"a": "1"}
		if SignPayload(payload, "k1") == SignPayload(payload, "k2") {
			t.Fatal("different keys produced the same digest")
		}
	})
}

func TestSignPaymentRequest(t *testing.T) {
	req := &CheckoutRequest{
		Amount:      1000,
		Description: "test",
		OrderCode:   123,
		ReturnURL:   "https://x",
		CancelURL:   "https://y",
	}

	t.Run("golden digest", func(t *testing.T) {
		got := SignPaymentRequest(req, "secret")
		want := "779bad487fb1e09e4242bc2e7cade8835a678361c5ade9badad8839b817ba2bb"
		if got != want {
			t.Fatalf("SignPaymentRequest = %q, want %q", got, want)
		}
	})

	t.Run("matches the generic signer for the five fields", func(t *testing.T) {
		// The fixed field order happens to be alphabetical, so both signer
		// variants must agree on this payload.
		generic := SignPayload(map[string]any{
			"amount":      int64(1000),
			"cancelUrl":   "https://y",
			"description": "test",
			"orderCode":   int64(123),
			"returnUrl":   "https://x",
		}, "secret")
		if got := SignPaymentRequest(req, "secret"); got != generic {
			t.Fatalf("signers disagree: %q vs %q", got, generic)
		}
	})

	t.Run("null guard", func(t *testing.T) {
		if got := SignPaymentRequest(nil, "secret"); got != "" {
			t.Fatalf("SignPaymentRequest(nil) = %q, want empty", got)
		}
		if got := SignPaymentRequest(req, ""); got != "" {
			t.Fatalf("SignPaymentRequest with empty key = %q, want empty", got)
		}
	})
}

func TestVerifyDataSignature(t *testing.T) {
	data := map[string]any{"orderCode": 123, "amount": 1000, "status": StatusPaid}
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	sig := SignPayload(map[string]any{
		"orderCode": json.Number("123"),
		"amount":    json.Number("1000"),
		"status":    StatusPaid,
	}, "secret")

	t.Run("round trip verifies", func(t *testing.T) {
		if err := verifyDataSignature(raw, sig, "secret"); err != nil {
			t.Fatalf("expected clean verify, got: %v", err)
		}
	})

	t.Run("altered data fails", func(t *testing.T) {
		tampered := []byte(`{"orderCode":124,"amount":1000,"status":"PAID"}`)
		if err := verifyDataSignature(tampered, sig, "secret"); !errors.Is(err, ErrDataNotIntegrity) {
			t.Fatalf("expected ErrDataNotIntegrity, got: %v", err)
		}
	})

	t.Run("altered key fails", func(t *testing.T) {
		if err := verifyDataSignature(raw, sig, "Secret"); !errors.Is(err, ErrDataNotIntegrity) {
			t.Fatalf("expected ErrDataNotIntegrity, got: %v", err)
		}
	})
}
