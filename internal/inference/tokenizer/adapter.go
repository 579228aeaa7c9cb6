// Package tokenizer turns streamed text into token counts and cost, with one
// counting strategy per vendor family.
package tokenizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/yungbote/chatgateway-backend/internal/domain/chat"
	"github.com/yungbote/chatgateway-backend/internal/inference/engine"
	"github.com/yungbote/chatgateway-backend/internal/inference/registry"
)

var ErrUnsupportedVendor = errors.New("unsupported vendor")

type Resolver interface {
	Resolve(modelID string) (registry.ModelDescriptor, error)
}

type Adapter struct {
	models   Resolver
	counters map[registry.Vendor]Counter
}

func New(models Resolver, counters map[registry.Vendor]Counter) *Adapter {
	c := make(map[registry.Vendor]Counter, len(counters))
	for v, k := range counters {
		c[v] = k
	}
	return &Adapter{models: models, counters: c}
}

// DefaultCounters returns the built-in strategy for every vendor.
func DefaultCounters() (map[registry.Vendor]Counter, error) {
	bpe, err := NewBPECounter("cl100k_base")
	if err != nil {
		return nil, err
	}
	return map[registry.Vendor]Counter{
		registry.VendorOpenAI:     bpe,
		registry.VendorPerplexity: bpe,
		registry.VendorAnthropic:  RatioCounter(7, 2), // 3.5 chars/token
		registry.VendorGoogle:     RatioCounter(4, 1),
		registry.VendorMistral:    WordPieceCounter(4),
	}, nil
}

func NewDefault(models Resolver) (*Adapter, error) {
	counters, err := DefaultCounters()
	if err != nil {
		return nil, err
	}
	return New(models, counters), nil
}

// Supports reports whether v has a counting strategy.
func (a *Adapter) Supports(v registry.Vendor) bool {
	_, ok := a.counters[v]
	return ok
}

// ComputeUsage counts input and output tokens with the vendor's strategy and
// prices them with the model's per-million rates.
func (a *Adapter) ComputeUsage(modelID, inputText, outputText string) (chat.UsageStats, error) {
	d, err := a.models.Resolve(modelID)
	if err != nil {
		return chat.UsageStats{}, err
	}
	c, ok := a.counters[d.Vendor]
	if !ok {
		return chat.UsageStats{}, fmt.Errorf("%w: %s", ErrUnsupportedVendor, d.Vendor)
	}
	in := c.Count(inputText)
	out := c.Count(outputText)
	return chat.UsageStats{
		InputTokens:  in,
		OutputTokens: out,
		Cost:         Cost(d, in, out),
	}, nil
}

var million = decimal.NewFromInt(1_000_000)

// Cost is exact; no rounding is applied.
func Cost(d registry.ModelDescriptor, inputTokens, outputTokens int) decimal.Decimal {
	in := decimal.NewFromInt(int64(inputTokens)).Mul(d.InputPricePerM)
	out := decimal.NewFromInt(int64(outputTokens)).Mul(d.OutputPricePerM)
	return in.Add(out).Div(million)
}

// SerializeContext renders messages as the text billed as input.
func SerializeContext(messages []engine.Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, m.Role+": "+m.Content)
	}
	return strings.Join(parts, "\n")
}
