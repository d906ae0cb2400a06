package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:3031", cfg.BindAddress)
	assert.Equal(t, ModeStandalone, cfg.Mode)
}

func TestParse_ManagedRequiresOrchestratorURLAndSecret(t *testing.T) {
	_, err := Parse([]string{"--mode=managed"})
	assert.ErrorIs(t, err, ErrMissingOrchestratorURL)

	_, err = Parse([]string{"--mode=managed", "--orchestrator-url=ws://orch:9000"})
	assert.ErrorIs(t, err, ErrMissingSharedSecret)

	cfg, err := Parse([]string{"--mode=managed", "--orchestrator-url=ws://orch:9000", "--api-key=secret"})
	require.NoError(t, err)
	assert.Equal(t, ModeManaged, cfg.Mode)
}

func TestParse_InvalidMode(t *testing.T) {
	_, err := Parse([]string{"--mode=bogus"})
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestParse_MemoryFloor(t *testing.T) {
	_, err := Parse([]string{"--max-memory=0"})
	assert.NoError(t, err)

	cfg, err := Parse([]string{"--max-memory=2"})
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxMemoryGB)
}

func TestValidate_NegativeMemory(t *testing.T) {
	c := Config{Mode: ModeStandalone, MaxMemoryGB: -1}
	assert.ErrorIs(t, c.Validate(), ErrInvalidMemoryLimit)
}
