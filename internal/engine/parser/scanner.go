package parser

import "strings"

// Markers for the last significant token seen by the scanner.
const (
	sigStart  = 0   // start of input or of a statement
	sigIdent  = 'a' // identifier or keyword, see lastWord
	sigValue  = 'v' // number, string, template or regular expression
	sigHeader = 'h' // closing parenthesis of an if, for, while, with or switch head
	sigArrow  = 'r' // =>
	sigSpread = 's' // ...
)

// regexKeywords are the keywords after which a slash starts a regular expression.
var regexKeywords = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

// operators are the punctuators after which a name is read as a value.
const operators = "=+-*/%&|^!~<>?:"

type frameKind uint8

const (
	frameExpr frameKind = iota // parentheses, brackets and template substitutions
	frameBlock
	frameObject
	frameClass
	frameHead   // parenthesised head of if, for, while, with or switch
	frameParams // parameter list of a function, method or catch clause
)

// frame is an open bracket.
type frame struct {
	open  byte
	kind  frameKind
	start int
	// decl marks a pattern opened right after var, let or const.
	decl bool
}

// scanner walks JavaScript source one lexical unit at a time. It knows just
// enough of the grammar to skip strings, templates, comments and regular
// expression literals, and to tell blocks from object literals.
type scanner struct {
	src      []byte
	pos      int
	depth    int
	frames   []frame
	lastSig  byte
	lastWord string

	// member is set when the last identifier named a class or object member.
	member       bool
	fnPending    bool
	classPending bool
	classDepth   int

	// onWord sees every identifier before it becomes the last significant token.
	onWord func(start int, word string)
	// onClose sees every bracket after it is closed.
	onClose func(f frame)
}

func (s *scanner) eof() bool {
	return s.pos >= len(s.src)
}

func (s *scanner) peek() byte {
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) peekAt(i int) byte {
	if i >= len(s.src) {
		return 0
	}
	return s.src[i]
}

// step consumes one lexical unit and updates depth and the last significant token.
func (s *scanner) step() {
	c := s.src[s.pos]
	switch {
	case isSpace(c):
		s.pos++
		return
	case c == '/' && s.peekAt(s.pos+1) == '/':
		s.skipLineComment()
		return
	case c == '/' && s.peekAt(s.pos+1) == '*':
		s.skipBlockComment()
		return
	}

	member := s.member
	s.member = false
	switch {
	case c == '\'' || c == '"':
		s.skipQuoted(c)
		s.lastSig = sigValue
	case c == '`':
		s.skipTemplate()
		s.lastSig = sigValue
	case c == '/':
		if s.regexAllowed() && s.skipRegex() {
			s.lastSig = sigValue
			return
		}
		s.pos++
		s.lastSig = c
	case c == '{' || c == '(' || c == '[':
		s.open(c, member)
		s.pos++
		s.lastSig = c
	case c == '}' || c == ')' || c == ']':
		f := s.close()
		s.pos++
		s.lastSig = c
		if f.kind == frameHead {
			s.lastSig = sigHeader
		}
		if s.onClose != nil {
			s.onClose(f)
		}
	case isDigit(c):
		for !s.eof() && (isIdentPart(s.peek()) || s.peek() == '.') {
			s.pos++
		}
		s.lastSig = sigValue
	case isIdentStart(c):
		start := s.pos
		word := s.readWord()
		s.member = s.memberPosition()
		if s.onWord != nil {
			s.onWord(start, word)
		}
		s.keyword(word)
		s.lastWord = word
		s.lastSig = sigIdent
	case c == '.' && s.peekAt(s.pos+1) == '.' && s.peekAt(s.pos+2) == '.':
		s.pos += 3
		s.lastSig = sigSpread
	case c == '=' && s.peekAt(s.pos+1) == '>':
		s.pos += 2
		s.lastSig = sigArrow
	default:
		s.pos++
		s.lastSig = c
	}
}

// regexAllowed reports whether a slash at the current position starts a
// regular expression. A slash after a closing parenthesis is a division unless
// the parenthesis closed a statement head. Calls such as f(x) /re/ are
// indistinguishable from division without a full parser and are read as division.
func (s *scanner) regexAllowed() bool {
	switch s.lastSig {
	case sigStart, '}':
		return true
	case sigIdent:
		return regexKeywords[s.lastWord]
	case sigValue, ')', ']':
		return false
	default:
		return true
	}
}

func (s *scanner) keyword(word string) {
	switch word {
	case "function":
		s.fnPending = true
	case "class":
		s.classPending = true
		s.classDepth = s.depth
	}
}

// memberPosition reports whether an identifier at the current token names a
// member of the innermost object literal or class body.
func (s *scanner) memberPosition() bool {
	f, ok := s.top()
	if !ok {
		return false
	}
	switch f.kind {
	case frameObject:
		switch s.lastSig {
		case '{', ',', '*':
			return true
		case sigIdent:
			return s.lastWord == "get" || s.lastWord == "set" || s.lastWord == "async"
		}
	case frameClass:
		if s.lastSig == sigIdent {
			return !regexKeywords[s.lastWord]
		}
		return s.lastSig == sigStart || strings.IndexByte(operators, s.lastSig) < 0
	}
	return false
}

func (s *scanner) open(c byte, member bool) {
	f := frame{open: c, kind: frameExpr, start: s.pos}
	switch c {
	case '{':
		f.kind = s.braceKind()
	case '(':
		f.kind = s.parenKind(member)
	}
	if c != '(' && s.lastSig == sigIdent {
		switch s.lastWord {
		case "var", "let", "const":
			f.decl = true
		}
	}
	s.push(f)
}

func (s *scanner) braceKind() frameKind {
	if s.classPending && s.classDepth == s.depth {
		s.classPending = false
		return frameClass
	}
	switch s.lastSig {
	case sigStart, sigHeader, sigArrow, sigValue, ';', '{', '}', ')':
		return frameBlock
	case sigIdent:
		if regexKeywords[s.lastWord] && s.lastWord != "do" && s.lastWord != "else" {
			return frameObject
		}
		return frameBlock
	default:
		return frameObject
	}
}

func (s *scanner) parenKind(member bool) frameKind {
	if s.fnPending || member {
		s.fnPending = false
		return frameParams
	}
	if s.lastSig == sigIdent {
		switch s.lastWord {
		case "if", "for", "while", "with", "switch":
			return frameHead
		case "catch":
			return frameParams
		}
	}
	return frameExpr
}

func (s *scanner) push(f frame) {
	s.frames = append(s.frames, f)
	s.depth++
}

func (s *scanner) close() frame {
	n := len(s.frames)
	if n == 0 {
		return frame{}
	}
	f := s.frames[n-1]
	s.frames = s.frames[:n-1]
	s.depth--
	return f
}

func (s *scanner) top() (frame, bool) {
	if len(s.frames) == 0 {
		return frame{}, false
	}
	return s.frames[len(s.frames)-1], true
}

func (s *scanner) readWord() string {
	start := s.pos
	for !s.eof() && isIdentPart(s.peek()) {
		s.pos++
	}
	return string(s.src[start:s.pos])
}

func (s *scanner) skipLineComment() {
	for !s.eof() && s.peek() != '\n' {
		s.pos++
	}
}

func (s *scanner) skipBlockComment() {
	s.pos += 2
	for !s.eof() {
		if s.peek() == '*' && s.peekAt(s.pos+1) == '/' {
			s.pos += 2
			return
		}
		s.pos++
	}
}

// skipQuoted skips a string literal. It reports false when the literal is not
// closed on the same line.
func (s *scanner) skipQuoted(quote byte) bool {
	s.pos++
	for !s.eof() {
		switch c := s.peek(); c {
		case '\\':
			s.pos += 2
		case quote:
			s.pos++
			return true
		case '\n':
			return false
		default:
			s.pos++
		}
	}
	s.pos = len(s.src)
	return false
}

// skipTemplate skips a template literal including nested substitutions.
func (s *scanner) skipTemplate() {
	s.pos++
	for !s.eof() {
		switch s.peek() {
		case '\\':
			s.pos += 2
		case '`':
			s.pos++
			return
		case '$':
			if s.peekAt(s.pos+1) != '{' {
				s.pos++
				continue
			}
			base := s.depth
			s.push(frame{open: '$', kind: frameExpr, start: s.pos})
			s.pos += 2
			s.lastSig = '{'
			for !s.eof() && s.depth > base {
				s.step()
			}
		default:
			s.pos++
		}
	}
	s.pos = len(s.src)
}

// skipRegex skips a regular expression literal starting at the current slash.
// A line break before the closing slash means the slash was a division.
func (s *scanner) skipRegex() bool {
	i := s.pos + 1
	inClass := false
	for i < len(s.src) {
		switch c := s.src[i]; {
		case c == '\\':
			i += 2
			continue
		case c == '\n':
			return false
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			i++
			for i < len(s.src) && isIdentPart(s.src[i]) {
				i++
			}
			s.pos = i
			return true
		}
		i++
	}
	return false
}

// skipTrivia skips whitespace and comments. It reports whether a line break was crossed.
func (s *scanner) skipTrivia() bool {
	newline := false
	for !s.eof() {
		c := s.peek()
		switch {
		case c == '\n':
			newline = true
			s.pos++
		case isSpace(c):
			s.pos++
		case c == '/' && s.peekAt(s.pos+1) == '/':
			s.skipLineComment()
		case c == '/' && s.peekAt(s.pos+1) == '*':
			start := s.pos
			s.skipBlockComment()
			for _, b := range s.src[start:s.pos] {
				if b == '\n' {
					newline = true
				}
			}
		default:
			return newline
		}
	}
	return newline
}

// significant returns the offset of the first byte at or after i that is not
// whitespace or comment.
func (s *scanner) significant(i int) int {
	for i < len(s.src) {
		switch c := s.src[i]; {
		case isSpace(c):
			i++
		case c == '/' && s.peekAt(i+1) == '/':
			for i < len(s.src) && s.src[i] != '\n' {
				i++
			}
		case c == '/' && s.peekAt(i+1) == '*':
			end := strings.Index(string(s.src[i+2:]), "*/")
			if end < 0 {
				return len(s.src)
			}
			i += end + 4
		default:
			return i
		}
	}
	return i
}

// peekWord returns the identifier at the current position without consuming it.
func (s *scanner) peekWord() string {
	if s.eof() || !isIdentStart(s.peek()) {
		return ""
	}
	end := s.pos
	for end < len(s.src) && isIdentPart(s.src[end]) {
		end++
	}
	return string(s.src[s.pos:end])
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return true
}
