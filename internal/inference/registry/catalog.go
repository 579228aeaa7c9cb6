package registry

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	DefaultModel string         `yaml:"default_model"`
	Models       []catalogEntry `yaml:"models"`
}

type catalogEntry struct {
	ID          string `yaml:"id"`
	Vendor      string `yaml:"vendor"`
	Tier        string `yaml:"tier"`
	InputPrice  string `yaml:"input_price_per_million"`
	OutputPrice string `yaml:"output_price_per_million"`
}

const DefaultModelID = "gpt-3.5-turbo"

func model(id string, v Vendor, t Tier, in, out string) ModelDescriptor {
	return ModelDescriptor{
		ID:              id,
		Vendor:          v,
		Tier:            t,
		InputPricePerM:  decimal.RequireFromString(in),
		OutputPricePerM: decimal.RequireFromString(out),
	}
}

// DefaultCatalog is used when no catalog file is configured.
func DefaultCatalog() []ModelDescriptor {
	return []ModelDescriptor{
		model("gpt-3.5-turbo", VendorOpenAI, TierFree, "0.50", "1.50"),
		model("gpt-4", VendorOpenAI, TierPremium, "30", "60"),
		model("gpt-4-turbo-preview", VendorOpenAI, TierPremium, "10", "30"),

		model("claude-3-haiku-20240307", VendorAnthropic, TierFree, "0.25", "1.25"),
		model("claude-3-sonnet-20240229", VendorAnthropic, TierPremium, "3", "15"),
		model("claude-3-opus-20240229", VendorAnthropic, TierPremium, "15", "75"),

		model("mistral-tiny-2312", VendorMistral, TierFree, "0.25", "0.25"),
		model("mistral-small-2312", VendorMistral, TierFree, "2", "6"),
		model("mistral-small-2402", VendorMistral, TierFree, "2", "6"),
		model("mistral-medium-2312", VendorMistral, TierPremium, "2.7", "8.1"),
		model("mistral-large-2402", VendorMistral, TierPremium, "8", "24"),

		model("gemini-pro", VendorGoogle, TierFree, "0.5", "1.5"),

		model("sonar-small-chat", VendorPerplexity, TierFree, "0.2", "0.2"),
		model("sonar-small-online", VendorPerplexity, TierFree, "0.2", "0.2"),
		model("sonar-medium-chat", VendorPerplexity, TierPremium, "0.6", "0.6"),
		model("sonar-medium-online", VendorPerplexity, TierPremium, "0.6", "0.6"),
	}
}

// LoadCatalog reads a YAML catalog. The file replaces the defaults entirely.
// The returned default model is empty when the file does not name one.
func LoadCatalog(path string) ([]ModelDescriptor, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read model catalog: %w", err)
	}
	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) ([]ModelDescriptor, string, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, "", fmt.Errorf("parse model catalog: %w", err)
	}
	if len(f.Models) == 0 {
		return nil, "", fmt.Errorf("model catalog has no models")
	}

	out := make([]ModelDescriptor, 0, len(f.Models))
	for i, e := range f.Models {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			return nil, "", fmt.Errorf("models[%d]: id required", i)
		}
		vendor := Vendor(strings.ToLower(strings.TrimSpace(e.Vendor)))
		if !knownVendor(vendor) {
			return nil, "", fmt.Errorf("models[%d] %s: unknown vendor %q", i, id, e.Vendor)
		}
		tier := Tier(strings.ToLower(strings.TrimSpace(e.Tier)))
		if tier != TierFree && tier != TierPremium {
			return nil, "", fmt.Errorf("models[%d] %s: tier must be free or premium", i, id)
		}
		in, err := parsePrice(e.InputPrice)
		if err != nil {
			return nil, "", fmt.Errorf("models[%d] %s: input price: %w", i, id, err)
		}
		outPrice, err := parsePrice(e.OutputPrice)
		if err != nil {
			return nil, "", fmt.Errorf("models[%d] %s: output price: %w", i, id, err)
		}
		out = append(out, ModelDescriptor{
			ID:              id,
			Vendor:          vendor,
			Tier:            tier,
			InputPricePerM:  in,
			OutputPricePerM: outPrice,
		})
	}
	return out, strings.TrimSpace(f.DefaultModel), nil
}

func parsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative price %s", s)
	}
	return d, nil
}

func knownVendor(v Vendor) bool {
	for _, k := range Vendors {
		if k == v {
			return true
		}
	}
	return false
}
