// Package emitter rewrites the modules of a graph into one self-contained script.
package emitter

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.trai.ch/knit/internal/core/domain"
)

const (
	registry       = "__knit"
	exportsVar     = "__exports"
	accessorPrefix = "__knit_i"
)

// Emitter turns an ordered graph into a domain.Bundle.
type Emitter struct{}

// New creates a new Emitter.
func New() *Emitter {
	return &Emitter{}
}

// Emit wraps every module of order in its own factory function and rewrites its
// import and export statements into registry accesses. Blocks appear in order,
// so the entry module, which order places last, initialises last.
func (e *Emitter) Emit(g *domain.Graph, order []domain.ModuleID) (*domain.Bundle, error) {
	if err := checkKeys(order); err != nil {
		return nil, err
	}

	l := newLinker(g)
	root := g.Entry().Dir()
	bundle := &domain.Bundle{
		Prologue: prologue,
		Shim:     shim,
		Blocks:   make([]domain.Block, 0, len(order)),
		Epilogue: epilogue,
	}

	for _, id := range order {
		m, ok := g.Get(id)
		if !ok {
			return nil, domain.NewError(domain.ErrIncompleteGraph, nil, "module", id.String())
		}
		if err := l.check(m); err != nil {
			return nil, err
		}
		bundle.Blocks = append(bundle.Blocks, domain.Block{
			ID:   id,
			Key:  id.Key(),
			Text: renderBlock(m, m.ID.DisplayName(root)),
		})
	}

	for _, id := range order {
		m, _ := g.Get(id)
		m.Status = domain.StatusEmitted
	}
	return bundle, nil
}

// checkKeys fails when two identities share an emitted key.
func checkKeys(order []domain.ModuleID) error {
	seen := make(map[string]domain.ModuleID, len(order))
	for _, id := range order {
		key := id.Key()
		if other, ok := seen[key]; ok && other != id {
			return domain.NewError(domain.ErrModuleKeyCollision, nil,
				"key", key,
				"module", id.String(),
				"other", other.String(),
			)
		}
		seen[key] = id
	}
	return nil
}

func renderBlock(m *domain.Module, name string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "// %s\n", name)
	fmt.Fprintf(&b, "%s.module(%s, function (%s) {\n", registry, strconv.Quote(m.ID.Key()), exportsVar)
	b.WriteString("\"use strict\";\n")
	writeExports(&b, m, importedValues(m))
	writeImports(&b, m)
	writeBody(&b, m)
	if !strings.HasSuffix(b.String(), "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("});\n")
	return b.String()
}

// writeExports registers a getter for every named export, then forwards star re-exports.
func writeExports(b *strings.Builder, m *domain.Module, locals map[string]string) {
	var getters []string
	for _, exp := range m.Exports {
		if exp.Star {
			continue
		}
		getters = append(getters, fmt.Sprintf("  %s: function () { return %s; }",
			strconv.Quote(exp.Exported), exportValue(m, exp, locals)))
	}
	if len(getters) > 0 {
		fmt.Fprintf(b, "%s.exports(%s, {\n%s\n});\n", registry, exportsVar, strings.Join(getters, ",\n"))
	}

	for _, exp := range m.Exports {
		if exp.Star {
			fmt.Fprintf(b, "%s.reexport(%s, %s);\n", registry, exportsVar, importCall(m.Imports[exp.Edge].Target))
		}
	}
}

func exportValue(m *domain.Module, exp domain.ExportBinding, locals map[string]string) string {
	if !exp.IsReexport() {
		if value, ok := locals[exp.Local]; ok {
			return value
		}
		return exp.Local
	}
	target := importCall(m.Imports[exp.Edge].Target)
	if exp.Imported == domain.NamespaceName {
		return target
	}
	return target + member(exp.Imported)
}

// importedValues maps every imported local name, except namespaces, to the
// expression that reads it through its accessor.
func importedValues(m *domain.Module) map[string]string {
	values := make(map[string]string)
	for i, edge := range m.Imports {
		for _, binding := range edge.Bindings {
			if binding.Imported != domain.NamespaceName {
				values[binding.Local] = accessor(i) + member(binding.Imported)
			}
		}
	}
	return values
}

// writeImports binds one accessor per import statement with default or named
// bindings, and a constant per namespace binding.
func writeImports(b *strings.Builder, m *domain.Module) {
	for _, st := range m.Statements {
		if st.Kind != domain.StmtImport {
			continue
		}
		edge := m.Imports[st.Edge]
		named := false
		for _, binding := range edge.Bindings {
			if binding.Imported != domain.NamespaceName {
				named = true
			}
		}
		if named {
			fmt.Fprintf(b, "const %s = %s;\n", accessor(st.Edge), importCall(edge.Target))
		}
		for _, binding := range edge.Bindings {
			if binding.Imported == domain.NamespaceName {
				fmt.Fprintf(b, "const %s = %s;\n", binding.Local, importCall(edge.Target))
			}
		}
	}
}

// edit replaces a span of the module source.
type edit struct {
	span domain.Span
	text string
}

// edits lists the replacements of a module body in source order. Removed
// statements leave a semicolon, so the code around them is not joined, and
// keep their line breaks so line numbers stay close to the source.
func edits(m *domain.Module) []edit {
	out := make([]edit, 0, len(m.Statements)+len(m.References))
	for _, st := range m.Statements {
		e := edit{span: st.Span}
		switch st.Kind {
		case domain.StmtExportDefaultExpression:
			e.text = "const " + domain.DefaultLocal + " ="
		case domain.StmtExportDeclaration, domain.StmtExportDefaultDeclaration:
		default:
			e.text = ";" + strings.Repeat("\n", bytes.Count(m.Source[st.Span.Start:st.Span.End], []byte{'\n'}))
		}
		out = append(out, e)
	}
	for _, ref := range m.References {
		value := accessor(ref.Edge) + member(ref.Imported)
		switch {
		case ref.Shorthand:
			value = string(m.Source[ref.Span.Start:ref.Span.End]) + ": " + value
		case ref.Call:
			value = "(0, " + value + ")"
		}
		out = append(out, edit{span: ref.Span, text: value})
	}
	slices.SortFunc(out, func(a, b edit) int {
		return cmp.Compare(a.span.Start, b.span.Start)
	})
	return out
}

// writeBody copies the module source with its import and export syntax removed
// and every use of an imported name redirected to its accessor.
func writeBody(b *strings.Builder, m *domain.Module) {
	pos := 0
	for _, e := range edits(m) {
		b.Write(m.Source[pos:e.span.Start])
		b.WriteString(e.text)
		pos = e.span.End
	}
	b.Write(m.Source[pos:])
}

func accessor(edge int) string {
	return accessorPrefix + strconv.Itoa(edge)
}

func importCall(target domain.ModuleID) string {
	return fmt.Sprintf("%s.import(%s)", registry, strconv.Quote(target.Key()))
}

func member(name string) string {
	if isIdentifier(name) {
		return "." + name
	}
	return "[" + strconv.Quote(name) + "]"
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		letter := c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if !letter && (i == 0 || c < '0' || c > '9') {
			return false
		}
	}
	return true
}
