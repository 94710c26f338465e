package embedding

import (
	"github.com/kiosk404/reinsmem/internal/memory/entity"
)

// NewProvider selects a concrete Provider from cfg, grounded on the
// teacher's own embedding.NewProvider (memory-core/embedding/factory.go):
// try the requested backend, then cfg.Fallback, recording which happened.
func NewProvider(cfg entity.EmbeddingConfig) (*Result, error) {
	create := func(id string) (Provider, error) {
		switch id {
		case "local", "":
			return NewLocal(cfg.Model), nil
		case "http":
			if cfg.Remote.BaseURL == "" {
				return nil, entity.New(entity.KindValidation, "embedding.NewProvider", "http provider requires a base URL")
			}
			return NewHTTP(HTTPOptions{
				BaseURL: cfg.Remote.BaseURL,
				APIKey:  cfg.Remote.APIKey,
				Model:   cfg.Model,
				Headers: cfg.Remote.Headers,
			}), nil
		default:
			return nil, entity.New(entity.KindValidation, "embedding.NewProvider", "unsupported embedding provider: "+id)
		}
	}

	requested := cfg.Provider
	provider, err := create(requested)
	if err == nil {
		return &Result{Provider: provider, RequestedBackend: requested}, nil
	}

	if cfg.Fallback != "" && cfg.Fallback != "none" && cfg.Fallback != requested {
		fallback, fallbackErr := create(cfg.Fallback)
		if fallbackErr != nil {
			return nil, entity.Wrap(entity.KindValidation, "embedding.NewProvider", fallbackErr)
		}
		return &Result{
			Provider:         fallback,
			RequestedBackend: requested,
			FallbackFrom:     requested,
			FallbackReason:   err.Error(),
		}, nil
	}

	return nil, err
}
