package payment

import (
	"context"
	"fmt"
	"math"
)

// EVMClient talks to an EVM stablecoin facilitator using the x402 "exact"
// scheme.
type EVMClient struct {
	http       *httpClient
	settleHTTP *httpClient
	Network    string
	Asset      string
	PayTo      string
}

// NewEVMClient builds an EVM facilitator client against facilitatorURL.
// Verify and settle use separate timeouts: verify gates the client's
// visible response so it stays short, settle happens after the response
// has already been sent so it can afford to wait longer.
func NewEVMClient(facilitatorURL, network, asset, payTo string) *EVMClient {
	return &EVMClient{
		http:       newHTTPClient(facilitatorURL, WithTimeout(VerifyTimeout)),
		settleHTTP: newHTTPClient(facilitatorURL, WithTimeout(SettleTimeout)),
		Network:    network,
		Asset:      asset,
		PayTo:      payTo,
	}
}

func (c *EVMClient) Scheme() string { return "exact" }

type evmVerifyRequest struct {
	Scheme         string `json:"scheme"`
	Network        string `json:"network"`
	Envelope       string `json:"paymentPayload"`
	RequiredAtomic string `json:"maxAmountRequired"`
	PayTo          string `json:"payTo"`
}

type evmVerifyResponse struct {
	Verdict string `json:"verdict"`
	Reason  string `json:"reason"`
}

func (c *EVMClient) Verify(ctx context.Context, envelope string, requiredAtomic string) (VerifyResult, error) {
	var out evmVerifyResponse
	status, err := c.http.postJSON(ctx, "/verify", evmVerifyRequest{
		Scheme:         c.Scheme(),
		Network:        c.Network,
		Envelope:       envelope,
		RequiredAtomic: requiredAtomic,
		PayTo:          c.PayTo,
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

type evmSettleRequest struct {
	Scheme   string `json:"scheme"`
	Network  string `json:"network"`
	Envelope string `json:"paymentPayload"`
}

type evmSettleResponse struct {
	Result string `json:"result"`
	TxRef  string `json:"txRef"`
	Reason string `json:"reason"`
}

func (c *EVMClient) Settle(ctx context.Context, envelope string) (SettleResult, error) {
	var out evmSettleResponse
	status, err := c.settleHTTP.postJSON(ctx, "/settle", evmSettleRequest{
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

// AtomicUnitsForUSD implements the EVM/USDC conversion rule: atomic = round(usd * 10^6).
func (c *EVMClient) AtomicUnitsForUSD(usd float64) string {
	atomic := math.Round(usd * 1_000_000)
	return fmt.Sprintf("%d", int64(atomic))
}

func (c *EVMClient) CurrencySymbol() string { return "USDC" }

func (c *EVMClient) Requirement(usd float64, description string) Requirement {
	return Requirement{
		Scheme:            c.Scheme(),
		Network:           c.Network,
		Asset:             c.Asset,
		MaxAmountRequired: c.AtomicUnitsForUSD(usd),
		PayTo:             c.PayTo,
		Description:       description,
	}
}
