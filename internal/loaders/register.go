package loaders

import (
	"fmt"

	"github.com/lexara-six/ingestion/internal/domain"
	"github.com/lexara-six/ingestion/internal/loader"
)

// BuildRegistry wires every concrete loader this module ships against the
// shared propose-fact client and geo cache, keyed by the job_type names
// the coordinator and worker both need to agree on.
func BuildRegistry(client domain.ProposeFactClient, geo *loader.GeoCache) *loader.Registry {
	reg := loader.NewRegistry()

	reg.Register("iowa_business", func(raw map[string]any) (loader.Loader, error) {
		cfg, err := DecodeSourceConfig(raw)
		if err != nil {
			return nil, fmt.Errorf("op=loaders.register.iowa_business: %w", err)
		}
		return NewBusinessLoader(cfg, client, geo), nil
	})

	reg.Register("iowa_asbestos", func(raw map[string]any) (loader.Loader, error) {
		cfg, err := DecodeSourceConfig(raw)
		if err != nil {
			return nil, fmt.Errorf("op=loaders.register.iowa_asbestos: %w", err)
		}
		return NewAsbestosLoader(cfg, client), nil
	})

	reg.Register("medical_facility", func(raw map[string]any) (loader.Loader, error) {
		cfg, err := DecodeSourceConfig(raw)
		if err != nil {
			return nil, fmt.Errorf("op=loaders.register.medical_facility: %w", err)
		}
		state, _ := raw["state"].(string)
		return NewFacilityLoader(cfg, client, state), nil
	})

	return reg
}
