package domain

// Status is the lifecycle state of a module record.
type Status uint8

const (
	// StatusPending means the module was discovered but not fetched yet.
	StatusPending Status = iota
	// StatusFetched means the source bytes are available.
	StatusFetched
	// StatusParsed means imports and exports were extracted.
	StatusParsed
	// StatusResolved means every import edge has a target identity.
	StatusResolved
	// StatusEmitted means the module was written into a bundle.
	StatusEmitted
	// StatusFailed means processing the module aborted the build.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFetched:
		return "fetched"
	case StatusParsed:
		return "parsed"
	case StatusResolved:
		return "resolved"
	case StatusEmitted:
		return "emitted"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Names with special meaning in bindings.
const (
	// DefaultName is the export name of a module's default export.
	DefaultName = "default"
	// NamespaceName marks a namespace binding (import * as ns).
	NamespaceName = "*"
	// DefaultLocal is the local identifier bound to an export default expression.
	DefaultLocal = "__knit_default"
)

// Span is a half-open byte range [Start, End) in a module's source.
type Span struct {
	Start int
	End   int
}

// Binding maps a name exported by the target module to a local identifier.
// Imported is DefaultName, NamespaceName or an export name.
type Binding struct {
	Imported string
	Local    string
}

// ImportEdge is one static dependency of a module, in source order.
// Re-export statements produce edges without bindings.
type ImportEdge struct {
	Specifier string
	Bindings  []Binding
	Target    ModuleID
	Statement int
	Line      int
}

// ExportBinding is one name a module exposes.
type ExportBinding struct {
	// Exported is the public name. Empty for star re-exports.
	Exported string
	// Local is the identifier holding the value for local exports.
	Local string
	// Edge is the index of the import edge for re-exports, or -1.
	Edge int
	// Imported is the name read from the re-exported module.
	// NamespaceName re-exports the whole namespace under Exported.
	Imported string
	// Star marks export * from.
	Star bool
}

// IsReexport reports whether the binding forwards another module's export.
func (e ExportBinding) IsReexport() bool {
	return e.Edge >= 0
}

// StatementKind classifies a recognised import or export statement.
type StatementKind uint8

const (
	// StmtImport is an import declaration. The whole statement is removed.
	StmtImport StatementKind = iota
	// StmtExportDeclaration is export followed by a declaration. Only the keyword is removed.
	StmtExportDeclaration
	// StmtExportDefaultDeclaration is export default followed by a named function or class.
	// Both keywords are removed.
	StmtExportDefaultDeclaration
	// StmtExportDefaultExpression is export default followed by an expression.
	// The keywords are replaced by a local binding.
	StmtExportDefaultExpression
	// StmtExportList is export { ... } without a source. The whole statement is removed.
	StmtExportList
	// StmtReexport is export ... from. The whole statement is removed.
	StmtReexport
)

// Statement records where a recognised statement sits in the source and
// which part of it the rewriter replaces.
type Statement struct {
	Kind StatementKind
	Span Span
	Edge int
}

// Reference is a use of an imported local name in the module body. The rewriter
// replaces it with a read of the export, so the importer sees the current value.
type Reference struct {
	Span Span
	// Edge and Imported name the export being read.
	Edge     int
	Imported string
	// Shorthand marks a shorthand object property ({x}).
	Shorthand bool
	// Call marks a callee, which is read without a receiver.
	Call bool
}

// ParsedModule is the parser's view of a module.
type ParsedModule struct {
	Imports    []ImportEdge
	Exports    []ExportBinding
	Statements []Statement
	References []Reference
}

// Module is the record the graph keeps for each discovered module.
type Module struct {
	ID         ModuleID
	Source     []byte
	Imports    []ImportEdge
	Exports    []ExportBinding
	Statements []Statement
	References []Reference
	Status     Status
	// Discovery is the order in which the module was first seen, starting at 0 for the entry.
	Discovery int
}

// NewModule creates a pending module record.
func NewModule(id ModuleID, discovery int) *Module {
	return &Module{
		ID:        id,
		Status:    StatusPending,
		Discovery: discovery,
	}
}

// Apply copies a parse result into the record. Import edges are copied so that
// the parse result can be shared.
func (m *Module) Apply(p *ParsedModule) {
	m.Imports = make([]ImportEdge, len(p.Imports))
	copy(m.Imports, p.Imports)
	m.Exports = p.Exports
	m.Statements = p.Statements
	m.References = p.References
}

// Dependencies returns the distinct import targets in source order.
func (m *Module) Dependencies() []ModuleID {
	seen := make(map[ModuleID]struct{}, len(m.Imports))
	deps := make([]ModuleID, 0, len(m.Imports))
	for _, edge := range m.Imports {
		if _, ok := seen[edge.Target]; ok {
			continue
		}
		seen[edge.Target] = struct{}{}
		deps = append(deps, edge.Target)
	}
	return deps
}
