package registry

import "github.com/shopspring/decimal"

type Vendor string

const (
	VendorOpenAI     Vendor = "openai"
	VendorAnthropic  Vendor = "anthropic"
	VendorMistral    Vendor = "mistral"
	VendorGoogle     Vendor = "google"
	VendorPerplexity Vendor = "perplexity"
)

// Vendors lists every vendor family the gateway can dispatch to.
var Vendors = []Vendor{VendorOpenAI, VendorAnthropic, VendorMistral, VendorGoogle, VendorPerplexity}

type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// ModelDescriptor is static catalog data for one model identifier.
// Prices are per million tokens.
type ModelDescriptor struct {
	ID              string          `json:"id"`
	Vendor          Vendor          `json:"vendor"`
	Tier            Tier            `json:"tier"`
	InputPricePerM  decimal.Decimal `json:"input_price_per_million"`
	OutputPricePerM decimal.Decimal `json:"output_price_per_million"`
}

func (d ModelDescriptor) IsFree() bool { return d.Tier == TierFree }
