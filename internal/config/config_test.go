package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getenvFrom(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(getenvFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, 7284, cfg.ListenPort)
	assert.False(t, cfg.DCAPEnabled)
	assert.False(t, cfg.X402Enabled)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_X402EnabledRequiresWalletAndFacilitator(t *testing.T) {
	_, err := Load(getenvFrom(map[string]string{"X402_ENABLED": "true"}))
	assert.Error(t, err)

	_, err = Load(getenvFrom(map[string]string{
		"X402_ENABLED":        "true",
		"X402_WALLET_ADDRESS": "0xpayee",
	}))
	assert.Error(t, err)

	cfg, err := Load(getenvFrom(map[string]string{
		"X402_ENABLED":         "true",
		"X402_WALLET_ADDRESS":  "0xpayee",
		"X402_FACILITATOR_URL": "https://facilitator.example",
	}))
	require.NoError(t, err)
	assert.True(t, cfg.X402Enabled)
}

func TestLoad_CantonEnabledRequiresFacilitatorAndPayee(t *testing.T) {
	_, err := Load(getenvFrom(map[string]string{"CANTON_ENABLED": "true"}))
	assert.Error(t, err)

	cfg, err := Load(getenvFrom(map[string]string{
		"CANTON_ENABLED":         "true",
		"CANTON_FACILITATOR_URL": "https://canton.example",
		"CANTON_PAYEE_PARTY":     "Party::abc",
	}))
	require.NoError(t, err)
	assert.True(t, cfg.CantonEnabled)
}

func TestLoad_InvalidPort(t *testing.T) {
	_, err := Load(getenvFrom(map[string]string{"MCP_SERVER_URL": "70000"}))
	assert.Error(t, err)
}
