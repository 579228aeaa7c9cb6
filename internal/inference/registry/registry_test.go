package registry

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chatgateway-backend/internal/config"
	"github.com/yungbote/chatgateway-backend/internal/inference/engine"
	"github.com/yungbote/chatgateway-backend/internal/inference/engine/mock"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
)

func TestResolveDefaultCatalog(t *testing.T) {
	r, err := New(DefaultCatalog(), "", nil)
	require.NoError(t, err)

	d, err := r.Resolve("claude-3-opus-20240229")
	require.NoError(t, err)
	assert.Equal(t, VendorAnthropic, d.Vendor)
	assert.Equal(t, TierPremium, d.Tier)
	assert.True(t, d.OutputPricePerM.Equal(decimal.NewFromInt(75)))

	_, err = r.Resolve("gpt-5")
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.Equal(t, "gpt-3.5-turbo", r.Default().ID)
	assert.Len(t, r.List(), 16)
	assert.Equal(t, "gpt-3.5-turbo", r.List()[0].ID)
}

func TestNewRejectsBadCatalog(t *testing.T) {
	_, err := New([]ModelDescriptor{{ID: "a", Vendor: VendorOpenAI}, {ID: "a", Vendor: VendorOpenAI}}, "a", nil)
	assert.Error(t, err)

	_, err = New(DefaultCatalog(), "not-there", nil)
	assert.Error(t, err)
}

func TestHandleRequiresEngine(t *testing.T) {
	m := mock.New()
	r, err := New(DefaultCatalog(), "", map[Vendor]engine.Engine{VendorOpenAI: m})
	require.NoError(t, err)

	h, err := r.Handle("gpt-4")
	require.NoError(t, err)
	assert.Same(t, m, h.Engine)

	_, err = r.Handle("gemini-pro")
	assert.ErrorIs(t, err, ErrNoEngine)
}

func TestCheapestFree(t *testing.T) {
	r, err := New(DefaultCatalog(), "", nil)
	require.NoError(t, err)

	assert.Equal(t, "mistral-tiny-2312", r.CheapestFree(VendorMistral).ID)
	assert.Equal(t, "claude-3-haiku-20240307", r.CheapestFree(VendorAnthropic).ID)
}

func TestParseCatalog(t *testing.T) {
	raw := []byte(`
default_model: local-small
models:
  - id: local-small
    vendor: OpenAI
    tier: free
    input_price_per_million: "0.10"
    output_price_per_million: "0.20"
  - id: local-big
    vendor: anthropic
    tier: premium
    input_price_per_million: "1"
    output_price_per_million: "2.5"
`)
	models, def, err := ParseCatalog(raw)
	require.NoError(t, err)
	assert.Equal(t, "local-small", def)
	require.Len(t, models, 2)
	assert.Equal(t, VendorOpenAI, models[0].Vendor)
	assert.Equal(t, "2.5", models[1].OutputPricePerM.String())

	_, _, err = ParseCatalog([]byte("models:\n  - id: x\n    vendor: nobody\n    tier: free\n"))
	assert.Error(t, err)

	_, _, err = ParseCatalog([]byte("models:\n  - id: x\n    vendor: openai\n    tier: gold\n"))
	assert.Error(t, err)
}

func TestBuildEnginesSkipsVendorsWithoutKeys(t *testing.T) {
	engines, err := BuildEngines(config.ModelsConfig{}, map[string]config.VendorConfig{
		"openai":    {APIKey: "k", BaseURL: "https://api.openai.com/v1"},
		"anthropic": {BaseURL: "https://api.anthropic.com"},
	}, logger.Nop())
	require.NoError(t, err)
	assert.Contains(t, engines, VendorOpenAI)
	assert.NotContains(t, engines, VendorAnthropic)

	engines, err = BuildEngines(config.ModelsConfig{MockEngines: true}, nil, logger.Nop())
	require.NoError(t, err)
	assert.Len(t, engines, len(Vendors))
}
