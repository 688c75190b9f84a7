package payment

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// envelopeHeader is the minimal shape every X-PAYMENT envelope carries,
// enough to route to a rail without fully decoding the rail-specific
// payload.
type envelopeHeader struct {
	Scheme string `json:"scheme"`
}

// DecodeScheme extracts the "scheme" field from an opaque X-PAYMENT
// envelope so the Gate can select a rail. Envelopes are base64-encoded JSON
// per the x402 convention; a raw JSON envelope is accepted too, for
// facilitators/tests that skip the base64 layer.
func DecodeScheme(envelope string) (string, error) {
	raw := []byte(envelope)
	if decoded, err := base64.StdEncoding.DecodeString(envelope); err == nil {
		raw = decoded
	}

	var hdr envelopeHeader
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return "", fmt.Errorf("payment: malformed X-PAYMENT envelope: %w", err)
	}
	if hdr.Scheme == "" {
		return "", fmt.Errorf("payment: X-PAYMENT envelope has no scheme")
	}
	return hdr.Scheme, nil
}
