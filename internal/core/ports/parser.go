package ports

import "go.trai.ch/knit/internal/core/domain"

// Parser extracts import and export statements from module source.
//
//go:generate mockgen -source=parser.go -destination=mocks/mock_parser.go -package=mocks
type Parser interface {
	Parse(id domain.ModuleID, source []byte) (*domain.ParsedModule, error)
}
