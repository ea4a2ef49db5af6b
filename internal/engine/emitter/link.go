package emitter

import "go.trai.ch/knit/internal/core/domain"

// linker checks that every imported or re-exported name is provided by its target.
type linker struct {
	g     *domain.Graph
	names map[domain.ModuleID]map[string]struct{}
}

func newLinker(g *domain.Graph) *linker {
	return &linker{g: g, names: make(map[domain.ModuleID]map[string]struct{})}
}

// exported returns the names a module exports, following star re-exports.
func (l *linker) exported(id domain.ModuleID) map[string]struct{} {
	if names, ok := l.names[id]; ok {
		return names
	}
	names := make(map[string]struct{})
	l.names[id] = names

	m, ok := l.g.Get(id)
	if !ok {
		return names
	}
	for _, exp := range m.Exports {
		if !exp.Star {
			names[exp.Exported] = struct{}{}
			continue
		}
		for name := range l.exported(m.Imports[exp.Edge].Target) {
			if name != domain.DefaultName {
				names[name] = struct{}{}
			}
		}
	}
	return names
}

func (l *linker) check(m *domain.Module) error {
	for _, edge := range m.Imports {
		for _, b := range edge.Bindings {
			if err := l.require(m, edge, b.Imported); err != nil {
				return err
			}
		}
	}
	for _, exp := range m.Exports {
		if !exp.IsReexport() || exp.Star {
			continue
		}
		if err := l.require(m, m.Imports[exp.Edge], exp.Imported); err != nil {
			return err
		}
	}
	return nil
}

func (l *linker) require(m *domain.Module, edge domain.ImportEdge, name string) error {
	if name == domain.NamespaceName {
		return nil
	}
	if _, ok := l.exported(edge.Target)[name]; ok {
		return nil
	}
	return domain.NewError(domain.ErrMissingExport, nil,
		"module", m.ID.String(),
		"name", name,
		"specifier", edge.Specifier,
		"line", edge.Line,
	)
}
