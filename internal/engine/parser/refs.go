package parser

import (
	"bytes"
	"fmt"
	"strings"

	"go.trai.ch/knit/internal/core/domain"
)

// declarationKeywords introduce a binding named by the following identifier.
var declarationKeywords = map[string]bool{
	"var": true, "let": true, "const": true, "function": true, "class": true,
}

// importedName locates the export an imported local name reads.
type importedName struct {
	edge     int
	imported string
}

// refWalker finds every use of an imported local name outside the import and
// export statements. Names are not scope-resolved: a nested declaration that
// reuses an imported name is rejected instead of being rewritten.
type refWalker struct {
	scanner
	id     domain.ModuleID
	locals map[string]importedName
	stmts  []domain.Statement
	next   int
	refs   []domain.Reference
	// binding marks references written where a declaration could bind the name.
	binding []bool
	err     error
}

func importedLocals(imports []domain.ImportEdge) map[string]importedName {
	locals := make(map[string]importedName)
	for i, edge := range imports {
		for _, b := range edge.Bindings {
			if b.Imported == domain.NamespaceName {
				continue
			}
			locals[b.Local] = importedName{edge: i, imported: b.Imported}
		}
	}
	return locals
}

// collectReferences records the uses of imported names in parsed.
func collectReferences(id domain.ModuleID, src []byte, parsed *domain.ParsedModule) ([]domain.Reference, error) {
	locals := importedLocals(parsed.Imports)
	if len(locals) == 0 {
		return nil, nil
	}

	w := &refWalker{
		scanner: scanner{src: src},
		id:      id,
		locals:  locals,
		stmts:   parsed.Statements,
	}
	w.onWord = w.word
	w.onClose = w.closed

	if bytes.HasPrefix(src, []byte("#!")) {
		w.skipLineComment()
	}
	for !w.eof() && w.err == nil {
		if w.next < len(w.stmts) && w.pos >= w.stmts[w.next].Span.Start {
			w.skipStatement(w.stmts[w.next])
			w.next++
			continue
		}
		w.step()
	}
	return w.refs, w.err
}

// skipStatement moves past the part of a statement the rewriter replaces.
func (w *refWalker) skipStatement(st domain.Statement) {
	if w.pos < st.Span.End {
		w.pos = st.Span.End
	}
	switch st.Kind {
	case domain.StmtExportDefaultExpression:
		w.lastSig = '='
	case domain.StmtExportDeclaration, domain.StmtExportDefaultDeclaration:
		w.lastSig = sigStart
	default:
		w.lastSig = ';'
	}
}

func (w *refWalker) word(start int, word string) {
	name, ok := w.locals[word]
	if !ok || w.err != nil {
		return
	}

	prev := w.lastSig
	i := w.significant(w.pos)
	next := w.peekAt(i)
	arrow := next == '=' && w.peekAt(i+1) == '>'
	top, _ := w.top()

	switch {
	case prev == '.':
		return
	case prev == sigIdent && (w.lastWord == "break" || w.lastWord == "continue"):
		return
	case next == ':' && (prev == sigStart || strings.IndexByte(";{},", prev) >= 0):
		// Property key or label.
		return
	case w.member && (top.kind == frameClass || next == '('):
		return
	}

	binding := (prev == sigSpread || prev == ':' || strings.IndexByte("(,{[", prev) >= 0) &&
		strings.IndexByte(",)}]=", next) >= 0
	if arrow || (prev == sigIdent && declarationKeywords[w.lastWord]) || (top.decl && binding) {
		w.err = w.redeclared(start, word)
		return
	}

	shorthand := top.kind == frameObject && (prev == '{' || prev == ',') &&
		(next == ',' || next == '}' || next == '=')
	w.refs = append(w.refs, domain.Reference{
		Span:      domain.Span{Start: start, End: w.pos},
		Edge:      name.edge,
		Imported:  name.imported,
		Shorthand: shorthand,
		Call:      !shorthand && (next == '(' || next == '`'),
	})
	w.binding = append(w.binding, binding)
}

// closed rejects parameter lists that bind an imported name.
func (w *refWalker) closed(f frame) {
	if f.open != '(' || w.err != nil {
		return
	}
	i := w.significant(w.pos)
	arrow := w.peekAt(i) == '=' && w.peekAt(i+1) == '>'
	if f.kind != frameParams && !arrow {
		return
	}
	for j := len(w.refs) - 1; j >= 0 && w.refs[j].Span.Start > f.start; j-- {
		if w.binding[j] {
			ref := w.refs[j].Span
			w.err = w.redeclared(ref.Start, string(w.src[ref.Start:ref.End]))
			return
		}
	}
}

func (w *refWalker) redeclared(offset int, name string) error {
	line, col := position(w.src, offset)
	return &domain.SyntaxError{
		Module: w.id,
		Line:   line,
		Column: col,
		Offset: offset,
		Reason: fmt.Sprintf("imported binding %q is redeclared in a nested scope", name),
	}
}
