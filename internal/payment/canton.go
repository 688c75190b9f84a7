package payment

import (
	"context"
	"fmt"
)

// CantonClient talks to a Canton ledger facilitator using the x402
// "exact-canton" scheme. Canton coin (CC) settles 1:1 with USD; the amount
// is carried as a decimal string rather than an integer atomic unit to
// preserve precision on the ledger side.
type CantonClient struct {
	http       *httpClient
	settleHTTP *httpClient
	Network    string
	PayeeParty string
}

// NewCantonClient builds a Canton facilitator client against facilitatorURL.
// See EVMClient for why verify and settle carry different timeouts.
func NewCantonClient(facilitatorURL, network, payeeParty string) *CantonClient {
	return &CantonClient{
		http:       newHTTPClient(facilitatorURL, WithTimeout(VerifyTimeout)),
		settleHTTP: newHTTPClient(facilitatorURL, WithTimeout(SettleTimeout)),
		Network:    network,
		PayeeParty: payeeParty,
	}
}

func (c *CantonClient) Scheme() string { return "exact-canton" }

type cantonVerifyRequest struct {
	Scheme      string `json:"scheme"`
	Network     string `json:"network"`
	Envelope    string `json:"paymentPayload"`
	RequiredUSD string `json:"maxAmountRequired"`
	PayeeParty  string `json:"payTo"`
}

type cantonVerifyResponse struct {
	Verdict string `json:"verdict"`
	Reason  string `json:"reason"`
}

func (c *CantonClient) Verify(ctx context.Context, envelope string, requiredAtomic string) (VerifyResult, error) {
	var out cantonVerifyResponse
	status, err := c.http.postJSON(ctx, "/verify", cantonVerifyRequest{
		Scheme:      c.Scheme(),
		Network:     c.Network,
		Envelope:    envelope,
		RequiredUSD: requiredAtomic,
		PayeeParty:  c.PayeeParty,
	}, &out)
	if err != nil {
		return VerifyResult{Verdict: VerdictRejected, Reason: err.Error()}, err
	}
	if status != 200 {
		return VerifyResult{Verdict: VerdictRejected, Reason: fmt.Sprintf("facilitator returned HTTP %d", status)}, nil
	}
	if out.Verdict != string(VerdictVerified) {
		return VerifyResult{Verdict: VerdictRejected, Reason: out.Reason}, nil
	}
	return VerifyResult{Verdict: VerdictVerified}, nil
}

type cantonSettleRequest struct {
	Scheme   string `json:"scheme"`
	Network  string `json:"network"`
	Envelope string `json:"paymentPayload"`
}

type cantonSettleResponse struct {
	Result string `json:"result"`
	TxRef  string `json:"txRef"`
	Reason string `json:"reason"`
}

func (c *CantonClient) Settle(ctx context.Context, envelope string) (SettleResult, error) {
	var out cantonSettleResponse
	status, err := c.settleHTTP.postJSON(ctx, "/settle", cantonSettleRequest{
		Scheme:   c.Scheme(),
		Network:  c.Network,
		Envelope: envelope,
	}, &out)
	if err != nil {
		return SettleResult{Result: SettlementFailed, Reason: err.Error()}, err
	}
	if status != 200 || out.Result != string(SettlementSettled) {
		return SettleResult{Result: SettlementFailed, Reason: out.Reason}, nil
	}
	return SettleResult{Result: SettlementSettled, TxRef: out.TxRef}, nil
}

// AtomicUnitsForUSD implements the Canton conversion rule: 1:1 USD->CC,
// emitted as a decimal string.
func (c *CantonClient) AtomicUnitsForUSD(usd float64) string {
	return fmt.Sprintf("%.2f", usd)
}

func (c *CantonClient) CurrencySymbol() string { return "CC" }

func (c *CantonClient) Requirement(usd float64, description string) Requirement {
	return Requirement{
		Scheme:            c.Scheme(),
		Network:           c.Network,
		Asset:             "CC",
		MaxAmountRequired: c.AtomicUnitsForUSD(usd),
		PayTo:             c.PayeeParty,
		Description:       description,
	}
}
