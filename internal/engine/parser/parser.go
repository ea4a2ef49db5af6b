// Package parser extracts the static import and export statements of a JavaScript module.
//
// It is a statement-level recognizer, not a JavaScript parser: only top-level
// import and export forms are structurally significant, and everything between
// them is skipped as opaque text.
package parser

import (
	"bytes"
	"fmt"
	"strings"

	"go.trai.ch/knit/internal/core/domain"
)

// Parser recognizes import and export statements.
type Parser struct{}

// New creates a new Parser.
func New() *Parser {
	return &Parser{}
}

// Parse scans source and returns its imports, exports and statement spans.
// A malformed import or export statement yields a *domain.SyntaxError.
func (p *Parser) Parse(id domain.ModuleID, source []byte) (*domain.ParsedModule, error) {
	st := &state{
		scanner: scanner{src: source},
		id:      id,
		out:     &domain.ParsedModule{},
		names:   make(map[string]struct{}),
	}
	if bytes.HasPrefix(source, []byte("#!")) {
		st.skipLineComment()
	}
	if err := st.run(); err != nil {
		return nil, err
	}
	refs, err := collectReferences(id, source, st.out)
	if err != nil {
		return nil, err
	}
	st.out.References = refs
	return st.out, nil
}

// state is the parser's position within one module.
type state struct {
	scanner
	id    domain.ModuleID
	out   *domain.ParsedModule
	names map[string]struct{}
}

// reservedWords cannot be used as local binding names.
var reservedWords = map[string]bool{
	"await": true, "break": true, "case": true, "catch": true, "class": true,
	"const": true, "continue": true, "debugger": true, "default": true, "delete": true,
	"do": true, "else": true, "enum": true, "export": true, "extends": true,
	"false": true, "finally": true, "for": true, "function": true, "if": true,
	"import": true, "in": true, "instanceof": true, "let": true, "new": true,
	"null": true, "return": true, "static": true, "super": true, "switch": true,
	"this": true, "throw": true, "true": true, "try": true, "typeof": true,
	"var": true, "void": true, "while": true, "with": true, "yield": true,
}

type listItem struct {
	name     string
	alias    string
	isString bool
	aliased  bool
}

func (st *state) run() error {
	for !st.eof() {
		c := st.peek()
		if st.depth != 0 || !isIdentStart(c) {
			st.step()
			continue
		}

		start := st.pos
		word := st.readWord()
		if st.lastSig == '.' || (word != "import" && word != "export") {
			st.keyword(word)
			st.member = false
			st.lastWord = word
			st.lastSig = sigIdent
			continue
		}

		var err error
		if word == "import" {
			err = st.parseImport(start)
		} else {
			err = st.parseExport(start)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (st *state) errorAt(offset int, format string, args ...any) error {
	line, col := position(st.src, offset)
	return &domain.SyntaxError{
		Module: st.id,
		Line:   line,
		Column: col,
		Offset: offset,
		Reason: fmt.Sprintf(format, args...),
	}
}

// position returns the 1-based line and column of offset.
func position(src []byte, offset int) (int, int) {
	if offset > len(src) {
		offset = len(src)
	}
	line := 1 + bytes.Count(src[:offset], []byte{'\n'})
	col := offset + 1
	if i := bytes.LastIndexByte(src[:offset], '\n'); i >= 0 {
		col = offset - i
	}
	return line, col
}

func (st *state) parseImport(start int) error {
	st.skipTrivia()
	switch c := st.peek(); c {
	case '(', '.':
		// import() and import.meta are expressions.
		st.lastWord = "import"
		st.lastSig = sigIdent
		return nil
	case '\'', '"':
		spec, err := st.readSpecifier()
		if err != nil {
			return err
		}
		return st.finishImport(start, spec, nil)
	}

	bindings, err := st.parseImportClause()
	if err != nil {
		return err
	}

	st.skipTrivia()
	if st.peekWord() != "from" {
		return st.errorAt(st.pos, "expected from after import bindings")
	}
	st.readWord()
	st.skipTrivia()
	spec, err := st.readSpecifier()
	if err != nil {
		return err
	}
	return st.finishImport(start, spec, bindings)
}

func (st *state) parseImportClause() ([]domain.Binding, error) {
	var bindings []domain.Binding

	if isIdentStart(st.peek()) {
		at := st.pos
		name := st.readWord()
		if name == "from" {
			st.skipTrivia()
			if c := st.peek(); c == '\'' || c == '"' || st.eof() {
				return nil, st.errorAt(at, "missing import binding clause")
			}
		}
		if err := st.checkLocal(at, name); err != nil {
			return nil, err
		}
		bindings = append(bindings, domain.Binding{Imported: domain.DefaultName, Local: name})

		st.skipTrivia()
		if st.peek() != ',' {
			return bindings, nil
		}
		st.pos++
		st.skipTrivia()
		if c := st.peek(); c != '{' && c != '*' {
			return nil, st.errorAt(st.pos, "expected named or namespace import after default import")
		}
	}

	switch st.peek() {
	case '*':
		st.pos++
		st.skipTrivia()
		if st.peekWord() != "as" {
			return nil, st.errorAt(st.pos, "expected as after *")
		}
		st.readWord()
		st.skipTrivia()
		at := st.pos
		name := st.readWord()
		if err := st.checkLocal(at, name); err != nil {
			return nil, err
		}
		bindings = append(bindings, domain.Binding{Imported: domain.NamespaceName, Local: name})
	case '{':
		items, err := st.parseList()
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if item.isString && !item.aliased {
				return nil, st.errorAt(st.pos, "string import name %q needs an alias", item.name)
			}
			if err := st.checkLocal(st.pos, item.alias); err != nil {
				return nil, err
			}
			bindings = append(bindings, domain.Binding{Imported: item.name, Local: item.alias})
		}
	default:
		if bindings == nil {
			return nil, st.errorAt(st.pos, "missing import binding clause")
		}
	}
	return bindings, nil
}

func (st *state) checkLocal(offset int, name string) error {
	if !isIdentifier(name) || reservedWords[name] {
		if name == "" {
			return st.errorAt(offset, "expected binding name")
		}
		return st.errorAt(offset, "invalid binding name %q", name)
	}
	return nil
}

func (st *state) finishImport(start int, spec string, bindings []domain.Binding) error {
	if err := st.rejectAttributes(); err != nil {
		return err
	}
	end := st.statementEnd()

	edge := len(st.out.Imports)
	st.out.Imports = append(st.out.Imports, domain.ImportEdge{
		Specifier: spec,
		Bindings:  bindings,
		Statement: len(st.out.Statements),
		Line:      st.line(start),
	})
	st.out.Statements = append(st.out.Statements, domain.Statement{
		Kind: domain.StmtImport,
		Span: domain.Span{Start: start, End: end},
		Edge: edge,
	})
	return nil
}

// rejectAttributes fails on import attributes, which the bundle cannot honour.
func (st *state) rejectAttributes() error {
	save := st.pos
	st.skipTrivia()
	if w := st.peekWord(); w == "with" || w == "assert" {
		at := st.pos
		st.readWord()
		st.skipTrivia()
		if st.peek() == '{' {
			return st.errorAt(at, "import attributes are not supported")
		}
	}
	st.pos = save
	return nil
}

// statementEnd consumes an optional semicolon and returns the end of the statement.
func (st *state) statementEnd() int {
	end := st.pos
	st.skipTrivia()
	if st.peek() == ';' {
		st.pos++
		end = st.pos
	} else {
		st.pos = end
	}
	st.lastSig = sigStart
	return end
}

func (st *state) line(offset int) int {
	l, _ := position(st.src, offset)
	return l
}

// readSpecifier reads a quoted module specifier.
func (st *state) readSpecifier() (string, error) {
	c := st.peek()
	if c != '\'' && c != '"' {
		return "", st.errorAt(st.pos, "missing module specifier")
	}
	return st.readString()
}

func (st *state) readString() (string, error) {
	start := st.pos
	quote := st.peek()
	if !st.skipQuoted(quote) {
		return "", st.errorAt(start, "unterminated string literal")
	}
	return unquote(st.src[start+1 : st.pos-1]), nil
}

func unquote(raw []byte) string {
	if bytes.IndexByte(raw, '\\') < 0 {
		return string(raw)
	}
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 == len(raw) {
			b.WriteByte(c)
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(raw[i])
		}
	}
	return b.String()
}

// parseList parses a brace-delimited list of names with optional aliases.
func (st *state) parseList() ([]listItem, error) {
	open := st.pos
	st.pos++

	var items []listItem
	for {
		st.skipTrivia()
		if st.eof() {
			return nil, st.errorAt(open, "unterminated binding list")
		}
		if st.peek() == '}' {
			st.pos++
			return items, nil
		}

		var item listItem
		switch c := st.peek(); {
		case c == '\'' || c == '"':
			name, err := st.readString()
			if err != nil {
				return nil, err
			}
			item.name = name
			item.isString = true
		case isIdentStart(c):
			item.name = st.readWord()
		default:
			return nil, st.errorAt(st.pos, "expected name in binding list")
		}
		item.alias = item.name

		st.skipTrivia()
		if st.peekWord() == "as" {
			st.readWord()
			st.skipTrivia()
			switch c := st.peek(); {
			case c == '\'' || c == '"':
				alias, err := st.readString()
				if err != nil {
					return nil, err
				}
				item.alias = alias
			case isIdentStart(c):
				item.alias = st.readWord()
			default:
				return nil, st.errorAt(st.pos, "expected name after as")
			}
			item.aliased = true
			st.skipTrivia()
		}
		items = append(items, item)

		switch st.peek() {
		case ',':
			st.pos++
		case '}':
		default:
			if st.eof() {
				return nil, st.errorAt(open, "unterminated binding list")
			}
			return nil, st.errorAt(st.pos, "expected , or } in binding list")
		}
	}
}

func (st *state) addExport(offset int, b domain.ExportBinding) error {
	if !b.Star {
		if _, dup := st.names[b.Exported]; dup {
			return st.errorAt(offset, "duplicate export %q", b.Exported)
		}
		st.names[b.Exported] = struct{}{}
	}
	st.out.Exports = append(st.out.Exports, b)
	return nil
}

func (st *state) parseExport(start int) error {
	st.skipTrivia()
	switch c := st.peek(); {
	case c == '*':
		return st.parseStarReexport(start)
	case c == '{':
		return st.parseExportList(start)
	case isIdentStart(c):
	default:
		return st.errorAt(start, "unrecognized export form")
	}

	wordStart := st.pos
	word := st.peekWord()
	switch word {
	case "default":
		st.readWord()
		return st.parseExportDefault(start)
	case "var", "let", "const":
		st.readWord()
		st.addStatement(domain.StmtExportDeclaration, start, wordStart, -1)
		return st.parseVariableNames(start)
	case "function", "class", "async":
		name := st.parseDeclarationName()
		if name == "" && word == "async" {
			return st.errorAt(start, "unrecognized export form")
		}
		if name == "" {
			return st.errorAt(wordStart, "exported %s needs a name", word)
		}
		st.addStatement(domain.StmtExportDeclaration, start, wordStart, -1)
		return st.addExport(start, domain.ExportBinding{Exported: name, Local: name, Edge: -1})
	default:
		return st.errorAt(start, "unrecognized export form")
	}
}

func (st *state) addStatement(kind domain.StatementKind, start, end, edge int) {
	st.out.Statements = append(st.out.Statements, domain.Statement{
		Kind: kind,
		Span: domain.Span{Start: start, End: end},
		Edge: edge,
	})
}

// parseDeclarationName consumes the head of a function or class declaration up
// to and including its name. It returns "" for anonymous declarations and for
// async not followed by function, leaving the position at the first token after
// the keywords.
func (st *state) parseDeclarationName() string {
	save := st.pos
	word := st.readWord()
	if word == "async" {
		if st.skipTrivia() || st.peekWord() != "function" {
			st.pos = save
			return ""
		}
		word = st.readWord()
	}

	st.skipTrivia()
	if word == "function" && st.peek() == '*' {
		st.pos++
		st.skipTrivia()
	}

	name := st.peekWord()
	if name == "" || (word == "class" && name == "extends") {
		return ""
	}
	st.readWord()
	st.lastWord = name
	st.lastSig = sigIdent
	return name
}

func (st *state) parseExportDefault(start int) error {
	keywordEnd := st.pos
	st.skipTrivia()
	declStart := st.pos

	if w := st.peekWord(); w == "function" || w == "class" || w == "async" {
		if name := st.parseDeclarationName(); name != "" {
			st.addStatement(domain.StmtExportDefaultDeclaration, start, declStart, -1)
			return st.addExport(start, domain.ExportBinding{Exported: domain.DefaultName, Local: name, Edge: -1})
		}
		st.pos = declStart
	}

	st.addStatement(domain.StmtExportDefaultExpression, start, keywordEnd, -1)
	st.lastSig = '='
	return st.addExport(start, domain.ExportBinding{Exported: domain.DefaultName, Local: domain.DefaultLocal, Edge: -1})
}

// parseVariableNames collects the names of export var/let/const and skips
// their initializers.
func (st *state) parseVariableNames(start int) error {
	for {
		st.skipTrivia()
		at := st.pos
		switch c := st.peek(); {
		case c == '{' || c == '[':
			return st.errorAt(at, "destructuring in export declarations is not supported")
		case !isIdentStart(c):
			return st.errorAt(at, "expected variable name")
		}
		name := st.readWord()
		if err := st.addExport(at, domain.ExportBinding{Exported: name, Local: name, Edge: -1}); err != nil {
			return err
		}
		st.lastWord = name
		st.lastSig = sigIdent

		save := st.pos
		st.skipTrivia()
		if st.peek() == '=' && st.peekAt(st.pos+1) != '=' {
			st.pos++
			st.lastSig = '='
			st.skipInitializer()
		} else {
			st.pos = save
		}

		save = st.pos
		st.skipTrivia()
		if st.peek() != ',' {
			st.pos = save
			return nil
		}
		st.pos++
	}
}

// skipInitializer advances to the comma, semicolon or line break that ends an
// initializer expression at the current depth.
func (st *state) skipInitializer() {
	base := st.depth
	started := false
	for !st.eof() {
		c := st.peek()
		if st.depth == base {
			switch {
			case c == ',' || c == ';' || c == '}' || c == ')' || c == ']':
				return
			case c == '\n' && started && st.endsStatement():
				return
			}
		}
		if !isSpace(c) {
			started = true
		}
		st.step()
	}
}

// endsStatement reports whether a line break at the current position ends the
// statement by automatic semicolon insertion.
func (st *state) endsStatement() bool {
	switch st.lastSig {
	case sigIdent, sigValue, ')', ']', '}':
	default:
		return false
	}
	if st.lastSig == sigIdent && regexKeywords[st.lastWord] {
		return false
	}
	i := st.pos
	for i < len(st.src) && isSpace(st.src[i]) {
		i++
	}
	if i >= len(st.src) {
		return true
	}
	return !strings.ContainsRune(".?,([+-*/%=&|^<>:;`", rune(st.src[i]))
}

func (st *state) parseStarReexport(start int) error {
	st.pos++
	st.skipTrivia()

	binding := domain.ExportBinding{Edge: len(st.out.Imports), Star: true}
	if st.peekWord() == "as" {
		st.readWord()
		st.skipTrivia()
		var name string
		switch c := st.peek(); {
		case c == '\'' || c == '"':
			s, err := st.readString()
			if err != nil {
				return err
			}
			name = s
		case isIdentStart(c):
			name = st.readWord()
		default:
			return st.errorAt(st.pos, "expected name after as")
		}
		binding = domain.ExportBinding{Exported: name, Edge: len(st.out.Imports), Imported: domain.NamespaceName}
		st.skipTrivia()
	}

	if st.peekWord() != "from" {
		return st.errorAt(st.pos, "expected from in export * statement")
	}
	st.readWord()
	st.skipTrivia()
	spec, err := st.readSpecifier()
	if err != nil {
		return err
	}
	if err := st.addExport(start, binding); err != nil {
		return err
	}
	return st.finishReexport(start, spec)
}

func (st *state) finishReexport(start int, spec string) error {
	if err := st.rejectAttributes(); err != nil {
		return err
	}
	end := st.statementEnd()
	edge := len(st.out.Imports)
	st.out.Imports = append(st.out.Imports, domain.ImportEdge{
		Specifier: spec,
		Statement: len(st.out.Statements),
		Line:      st.line(start),
	})
	st.addStatement(domain.StmtReexport, start, end, edge)
	return nil
}

func (st *state) parseExportList(start int) error {
	items, err := st.parseList()
	if err != nil {
		return err
	}

	save := st.pos
	st.skipTrivia()
	if st.peekWord() == "from" {
		st.readWord()
		st.skipTrivia()
		spec, err := st.readSpecifier()
		if err != nil {
			return err
		}
		edge := len(st.out.Imports)
		for _, item := range items {
			b := domain.ExportBinding{Exported: item.alias, Edge: edge, Imported: item.name}
			if err := st.addExport(start, b); err != nil {
				return err
			}
		}
		return st.finishReexport(start, spec)
	}
	st.pos = save

	for _, item := range items {
		if item.isString || !isIdentifier(item.name) {
			return st.errorAt(start, "export list names a non-local binding %q", item.name)
		}
		b := domain.ExportBinding{Exported: item.alias, Local: item.name, Edge: -1}
		if err := st.addExport(start, b); err != nil {
			return err
		}
	}
	end := st.statementEnd()
	st.addStatement(domain.StmtExportList, start, end, -1)
	return nil
}
