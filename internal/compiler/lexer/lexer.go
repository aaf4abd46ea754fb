package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"vivigo/internal/compiler/token"
)

// Lexer turns viviscript source into tokens. Newlines are significant and
// emitted as tokens; spaces, tabs and carriage returns inside a line are
// skipped. After `lua`, `$` and `if` the lexer switches to a raw-capture mode
// and hands the payload back as a single SCRIPT token.
type Lexer struct {
	input        string
	position     int  // current offset in input (bytes)
	readPosition int  // next reading position (bytes)
	ch           rune // current character
	line         int  // current line (1-based)
	column       int  // current column (1-based)

	rawLine  bool // capture rest of line as SCRIPT ($ blocks, if conditions)
	rawBlock bool // capture until an `enlu` line as SCRIPT (lua blocks)
}

func New(input string) *Lexer {
	l := &Lexer{
		input:  input,
		line:   1,
		column: 0,
	}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
	} else {
		r, size := utf8.DecodeRuneInString(l.input[l.readPosition:])
		l.ch = r
		l.position = l.readPosition
		l.readPosition += size

		if l.ch == '\n' {
			l.line++
			l.column = 0
		} else {
			l.column++
		}
	}
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func (l *Lexer) currentPos() token.Position {
	return token.Position{
		Line:   l.line,
		Column: l.column,
		Offset: l.position,
	}
}

func (l *Lexer) NextToken() token.Token {
	if l.rawLine {
		l.rawLine = false
		return l.readRawLine()
	}
	if l.rawBlock {
		l.rawBlock = false
		return l.readRawBlock()
	}

	l.skipWhitespace()

	pos := l.currentPos()
	var tok token.Token

	switch l.ch {
	case '\n':
		tok = token.Token{Type: token.NEWLINE, Literal: "\n", Pos: pos}
	case '#':
		return l.readComment()
	case ':':
		tok = token.Token{Type: token.COLON, Literal: ":", Pos: pos}
	case '@':
		tok = token.Token{Type: token.AT, Literal: "@", Pos: pos}
	case '=':
		tok = token.Token{Type: token.EQUALS, Literal: "=", Pos: pos}
	case '-':
		tok = token.Token{Type: token.MINUS, Literal: "-", Pos: pos}
	case '$':
		l.rawLine = true
		tok = token.Token{Type: token.DOLLAR, Literal: "$", Pos: pos}
	case '"', '\'':
		return l.readString()
	case 0:
		tok = token.Token{Type: token.EOF, Literal: "", Pos: pos}
		return tok
	default:
		if isLetter(l.ch) {
			lit := l.readIdentifier()
			typ := token.LookupIdent(lit)
			// ident immediately followed by '=' lexes as a parameter key
			if typ == token.IDENT && l.ch == '=' {
				l.readChar()
				return token.Token{Type: token.PARAMKEY, Literal: lit, Pos: pos}
			}
			switch typ {
			case token.LUA:
				l.rawBlock = true
			case token.IF:
				l.rawLine = true
			}
			return token.Token{Type: typ, Literal: lit, Pos: pos}
		}
		if isDigit(l.ch) {
			return token.Token{Type: token.NUMBER, Literal: l.readNumber(), Pos: pos}
		}
		bad := string(l.ch)
		l.skipToNewline()
		return token.Token{Type: token.ILLEGAL, Literal: "unexpected character " + bad, Pos: pos}
	}

	l.readChar()
	return tok
}

// readRawLine captures the remainder of the current line.
func (l *Lexer) readRawLine() token.Token {
	l.skipWhitespace()
	pos := l.currentPos()
	start := l.position
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
	return token.Token{
		Type:    token.SCRIPT,
		Literal: strings.TrimSpace(l.input[start:l.position]),
		Pos:     pos,
	}
}

// readRawBlock captures every line up to (not including) a line whose trimmed
// content is the `enlu` terminator. The terminator itself is left in the
// stream for the parser to consume.
func (l *Lexer) readRawBlock() token.Token {
	// skip the remainder of the introducing line
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
	if l.ch == '\n' {
		l.readChar()
	}
	pos := l.currentPos()
	start := l.position

	for {
		lineStart := l.position
		lineNo := l.line
		for l.ch != '\n' && l.ch != 0 {
			l.readChar()
		}
		if strings.TrimSpace(l.input[lineStart:l.position]) == "enlu" {
			content := l.input[start:lineStart]
			l.rewindTo(lineStart, lineNo)
			return token.Token{Type: token.SCRIPT, Literal: strings.TrimSpace(content), Pos: pos}
		}
		if l.ch == 0 {
			// unterminated block; parser reports the missing enlu
			return token.Token{Type: token.SCRIPT, Literal: strings.TrimSpace(l.input[start:l.position]), Pos: pos}
		}
		l.readChar()
	}
}

// rewindTo repositions the lexer at an earlier byte offset on the given line.
func (l *Lexer) rewindTo(offset, line int) {
	l.readPosition = offset
	l.line = line
	l.column = 0
	l.readChar()
}

func (l *Lexer) readComment() token.Token {
	pos := l.currentPos()
	start := l.position
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
	return token.Token{Type: token.COMMENT, Literal: l.input[start:l.position], Pos: pos}
}

func (l *Lexer) readString() token.Token {
	pos := l.currentPos()
	quote := l.ch
	l.readChar()

	if quote == '"' && l.ch == '"' && l.peekChar() == '"' {
		l.readChar()
		l.readChar()
		return l.readTripleString(pos)
	}

	var b strings.Builder
	for {
		switch l.ch {
		case 0, '\n':
			l.skipToNewline()
			return token.Token{Type: token.ILLEGAL, Literal: "unterminated string literal", Pos: pos}
		case '\\':
			l.readChar()
			b.WriteRune(unescape(l.ch))
			l.readChar()
		case quote:
			l.readChar()
			return token.Token{Type: token.STRING, Literal: b.String(), Pos: pos}
		default:
			b.WriteRune(l.ch)
			l.readChar()
		}
	}
}

// readTripleString consumes a """…""" literal, preserving internal newlines.
func (l *Lexer) readTripleString(pos token.Position) token.Token {
	var b strings.Builder
	for {
		switch l.ch {
		case 0:
			return token.Token{Type: token.ILLEGAL, Literal: "unterminated string literal", Pos: pos}
		case '\\':
			l.readChar()
			b.WriteRune(unescape(l.ch))
			l.readChar()
		case '"':
			if l.peekChar() == '"' {
				l.readChar()
				if l.peekChar() == '"' {
					l.readChar()
					l.readChar()
					return token.Token{Type: token.STRING, Literal: b.String(), Pos: pos}
				}
				b.WriteString(`""`)
				l.readChar()
				continue
			}
			b.WriteRune('"')
			l.readChar()
		default:
			b.WriteRune(l.ch)
			l.readChar()
		}
	}
}

func unescape(ch rune) rune {
	switch ch {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case 0:
		return '\\'
	default:
		return ch
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func (l *Lexer) readNumber() string {
	start := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[start:l.position]
}

// skipWhitespace skips spaces, tabs and carriage returns, never newlines.
func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *Lexer) skipToNewline() {
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
}

func isLetter(ch rune) bool {
	return unicode.IsLetter(ch) || ch == '_'
}

func isDigit(ch rune) bool {
	return unicode.IsDigit(ch)
}
