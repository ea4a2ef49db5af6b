package ports

import "context"

// Optimizer post-processes a finished bundle, typically by minifying it.
//
//go:generate mockgen -source=optimizer.go -destination=mocks/mock_optimizer.go -package=mocks
type Optimizer interface {
	// Optimize returns the optimized bundle. If the optimizer is not installed
	// it returns src unchanged.
	Optimize(ctx context.Context, src []byte) ([]byte, error)

	// Check reports whether the optimizer can run.
	Check(ctx context.Context) error
}
