package ports

import "go.trai.ch/knit/internal/core/domain"

// ConfigLoader defines the interface for loading the project configuration.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads knit.yaml from cwd or the nearest parent directory.
	// Defaults are returned when no config file exists.
	Load(cwd string) (*domain.Config, error)

	// DiscoverRoot walks up from cwd to the directory containing knit.yaml.
	DiscoverRoot(cwd string) (string, error)
}
