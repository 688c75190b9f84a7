package payment

import "context"

// FacilitatorClient is the uniform verify/settle capability set shared by
// every rail. The Gate dispatches to clients by their Scheme, so its
// select/verify/settle logic does not depend on which rail is in use;
// NewGate, however, accepts exactly one EVM and one Canton client, and the
// Gate has no method for adding a further rail.
type FacilitatorClient interface {
	// Scheme is the payment envelope scheme this client handles, e.g.
	// "exact" or "exact-canton".
	Scheme() string

	// Verify asks the facilitator to validate envelope against the required
	// amount (in this rail's atomic/native units), charged to this client's
	// configured payee.
	Verify(ctx context.Context, envelope string, requiredAtomic string) (VerifyResult, error)

	// Settle asks the facilitator to finalize a previously verified payment.
	Settle(ctx context.Context, envelope string) (SettleResult, error)

	// AtomicUnitsForUSD converts a USD amount into this rail's wire
	// representation of "amount required".
	AtomicUnitsForUSD(usd float64) string

	// CurrencySymbol names the settlement currency for telemetry/receipts.
	CurrencySymbol() string

	// Requirement builds this rail's entry of a 402 response's "accepts" array.
	Requirement(usd float64, description string) Requirement
}
