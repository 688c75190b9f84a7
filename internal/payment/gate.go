package payment

import (
	"context"
	"fmt"
)

// Gate decides the required price per tool call and mediates
// verify-before-execute, settle-after-execute. It holds the enabled rails
// in a fixed order (EVM before Canton) so 402 bodies and discovery
// records list them deterministically.
type Gate struct {
	order    []Rail
	clients  map[Rail]FacilitatorClient
	byScheme map[string]Rail
}

// NewGate builds a Gate from whichever rails are enabled. Pass a nil client
// for a disabled rail.
func NewGate(evm, canton FacilitatorClient) *Gate {
	g := &Gate{clients: make(map[Rail]FacilitatorClient), byScheme: make(map[string]Rail)}
	if evm != nil {
		g.order = append(g.order, RailEVM)
		g.clients[RailEVM] = evm
		g.byScheme[evm.Scheme()] = RailEVM
	}
	if canton != nil {
		g.order = append(g.order, RailCanton)
		g.clients[RailCanton] = canton
		g.byScheme[canton.Scheme()] = RailCanton
	}
	return g
}

// Enabled reports whether any rail is configured.
func (g *Gate) Enabled() bool { return len(g.order) > 0 }

// Requirements builds the 402 body's "accepts" array, one entry per enabled
// rail, in the Gate's fixed deterministic order.
func (g *Gate) Requirements(usd float64, description string) []Requirement {
	reqs := make([]Requirement, 0, len(g.order))
	for _, rail := range g.order {
		reqs = append(reqs, g.clients[rail].Requirement(usd, description))
	}
	return reqs
}

// SelectRail resolves a client-presented envelope scheme ("exact" or
// "exact-canton") to the matching rail and client. An unrecognized scheme
// is reported so the caller can respond HTTP 400.
func (g *Gate) SelectRail(scheme string) (Rail, FacilitatorClient, error) {
	rail, ok := g.byScheme[scheme]
	if !ok {
		return "", nil, fmt.Errorf("payment: unknown scheme %q", scheme)
	}
	return rail, g.clients[rail], nil
}

// Verify runs the facilitator verify call for rail against requiredUSD.
func (g *Gate) Verify(ctx context.Context, rail Rail, envelope string, requiredUSD float64) (VerifyResult, error) {
	client, ok := g.clients[rail]
	if !ok {
		return VerifyResult{}, fmt.Errorf("payment: rail %q not enabled", rail)
	}
	atomic := client.AtomicUnitsForUSD(requiredUSD)
	return client.Verify(ctx, envelope, atomic)
}

// Settle runs the facilitator settle call for rail. Settlement is only ever
// invoked after a successful terminal frame; the Gate does not itself
// enforce that ordering, it trusts its caller.
func (g *Gate) Settle(ctx context.Context, rail Rail, envelope string) (SettleResult, error) {
	client, ok := g.clients[rail]
	if !ok {
		return SettleResult{}, fmt.Errorf("payment: rail %q not enabled", rail)
	}
	return client.Settle(ctx, envelope)
}

// CurrencyFor returns the settlement currency symbol for rail, for
// telemetry records.
func (g *Gate) CurrencyFor(rail Rail) string {
	if client, ok := g.clients[rail]; ok {
		return client.CurrencySymbol()
	}
	return ""
}
