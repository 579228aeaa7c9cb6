package registry

import (
	"fmt"

	"github.com/yungbote/chatgateway-backend/internal/config"
	"github.com/yungbote/chatgateway-backend/internal/inference/engine"
	"github.com/yungbote/chatgateway-backend/internal/inference/engine/anthropic"
	"github.com/yungbote/chatgateway-backend/internal/inference/engine/gemini"
	"github.com/yungbote/chatgateway-backend/internal/inference/engine/mock"
	"github.com/yungbote/chatgateway-backend/internal/inference/engine/oaihttp"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
)

type engineConstructor func(engine.Config) (engine.Engine, error)

// constructors dispatches on vendor, never on model name.
var constructors = map[Vendor]engineConstructor{
	VendorOpenAI:     func(c engine.Config) (engine.Engine, error) { return oaihttp.New(c) },
	VendorMistral:    func(c engine.Config) (engine.Engine, error) { return oaihttp.New(c) },
	VendorPerplexity: func(c engine.Config) (engine.Engine, error) { return oaihttp.New(c) },
	VendorAnthropic:  func(c engine.Config) (engine.Engine, error) { return anthropic.New(c) },
	VendorGoogle:     func(c engine.Config) (engine.Engine, error) { return gemini.New(c) },
}

// BuildEngines constructs one engine per vendor that has an API key. Vendors
// without credentials are skipped and their models fail at dispatch time.
func BuildEngines(cfg config.ModelsConfig, vendors map[string]config.VendorConfig, log *logger.Logger) (map[Vendor]engine.Engine, error) {
	out := make(map[Vendor]engine.Engine, len(Vendors))
	if cfg.MockEngines {
		m := mock.New()
		for _, v := range Vendors {
			out[v] = m
		}
		log.Warn("using mock engines for all vendors")
		return out, nil
	}
	for _, v := range Vendors {
		vc, ok := vendors[string(v)]
		if !ok || vc.APIKey == "" {
			log.Info("vendor disabled: no api key", "vendor", v)
			continue
		}
		e, err := constructors[v](engine.Config{
			BaseURL:       vc.BaseURL,
			APIKey:        vc.APIKey,
			Timeout:       vc.Timeout,
			StreamTimeout: vc.StreamTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("build %s engine: %w", v, err)
		}
		out[v] = e
	}
	return out, nil
}

// Load builds the registry from config: the YAML catalog when configured,
// otherwise the built-in defaults. A default model named in the file wins
// over the configured one.
func Load(cfg config.ModelsConfig, vendors map[string]config.VendorConfig, log *logger.Logger) (*Registry, error) {
	models := DefaultCatalog()
	defaultID := cfg.DefaultModel
	if cfg.CatalogPath != "" {
		m, fileDefault, err := LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		models = m
		if fileDefault != "" {
			defaultID = fileDefault
		}
	}
	engines, err := BuildEngines(cfg, vendors, log)
	if err != nil {
		return nil, err
	}
	return New(models, defaultID, engines)
}
