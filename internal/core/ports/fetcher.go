package ports

import (
	"context"

	"go.trai.ch/knit/internal/core/domain"
)

// Fetcher retrieves module source bytes.
//
//go:generate mockgen -source=fetcher.go -destination=mocks/mock_fetcher.go -package=mocks
type Fetcher interface {
	// Fetch returns the source of a local or remote module.
	// Concurrent calls for the same remote identity share one retrieval.
	Fetch(ctx context.Context, id domain.ModuleID) ([]byte, error)
}
