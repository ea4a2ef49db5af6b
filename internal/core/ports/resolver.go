package ports

import "go.trai.ch/knit/internal/core/domain"

// SpecifierResolver turns an import specifier into a module identity.
//
//go:generate mockgen -source=resolver.go -destination=mocks/mock_resolver.go -package=mocks
type SpecifierResolver interface {
	// Resolve resolves specifier as written in importer. It performs no I/O.
	Resolve(specifier string, importer domain.ModuleID) (domain.ModuleID, error)
	// ResolveEntry resolves the entry argument of a build against the working directory.
	ResolveEntry(arg, cwd string) (domain.ModuleID, error)
}
