package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEVMClient_AtomicUnitsForUSD(t *testing.T) {
	c := NewEVMClient("http://example.invalid", "base-sepolia", "0xusdc", "0xpayee")
	assert.Equal(t, "100000", c.AtomicUnitsForUSD(0.10))
	assert.Equal(t, "1000000", c.AtomicUnitsForUSD(1.00))
}

func TestCantonClient_AtomicUnitsForUSD(t *testing.T) {
	c := NewCantonClient("http://example.invalid", "canton-mainnet", "Party::abc")
	assert.Equal(t, "0.10", c.AtomicUnitsForUSD(0.10))
}

func TestGate_RequirementsOrderingIsEVMFirst(t *testing.T) {
	evm := NewEVMClient("http://evm.invalid", "base", "0xusdc", "0xpayee")
	canton := NewCantonClient("http://canton.invalid", "canton", "Party::abc")
	g := NewGate(evm, canton)

	reqs := g.Requirements(0.10, "validate call")
	require.Len(t, reqs, 2)
	assert.Equal(t, "exact", reqs[0].Scheme)
	assert.Equal(t, "exact-canton", reqs[1].Scheme)
}

func TestGate_SelectRailUnknownScheme(t *testing.T) {
	g := NewGate(NewEVMClient("http://evm.invalid", "base", "0xusdc", "0xpayee"), nil)
	_, _, err := g.SelectRail("exact-canton")
	require.Error(t, err)
}

func TestGate_VerifyAgainstFakeFacilitator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/verify":
			json.NewEncoder(w).Encode(map[string]string{"verdict": "verified"})
		case "/settle":
			json.NewEncoder(w).Encode(map[string]string{"result": "settled", "txRef": "0xabc"})
		}
	}))
	defer srv.Close()

	evm := NewEVMClient(srv.URL, "base", "0xusdc", "0xpayee")
	g := NewGate(evm, nil)

	verify, err := g.Verify(context.Background(), RailEVM, "envelope-opaque", 0.10)
	require.NoError(t, err)
	assert.Equal(t, VerdictVerified, verify.Verdict)

	settle, err := g.Settle(context.Background(), RailEVM, "envelope-opaque")
	require.NoError(t, err)
	assert.Equal(t, SettlementSettled, settle.Result)
	assert.Equal(t, "0xabc", settle.TxRef)
}

func TestGate_VerifyRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"verdict": "rejected", "reason": "insufficient"})
	}))
	defer srv.Close()

	evm := NewEVMClient(srv.URL, "base", "0xusdc", "0xpayee")
	g := NewGate(evm, nil)

	verify, err := g.Verify(context.Background(), RailEVM, "bad-envelope", 0.10)
	require.NoError(t, err)
	assert.Equal(t, VerdictRejected, verify.Verdict)
	assert.Equal(t, "insufficient", verify.Reason)
}
