package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"vivigo/internal/compiler/ast"
	"vivigo/internal/compiler/errors"
	"vivigo/internal/compiler/lexer"
	"vivigo/internal/compiler/token"
)

// audio channels known to the runtime; play/stop on anything else is a
// parse-time diagnostic.
var audioChannels = map[string]bool{
	"music": true,
	"sound": true,
	"voice": true,
}

// final parenthesized group with no nested parens: the dialogue voice index
var voiceIndexRe = regexp.MustCompile(`\(([^()]*)\)$`)

// Parser consumes tokens and produces a Script plus a diagnostics list. It
// never panics on malformed input: unexpected tokens become Error AST nodes
// and the parser resynchronizes at the next newline.
type Parser struct {
	l         *lexer.Lexer
	file      string
	curToken  token.Token
	peekToken token.Token
	errs      *errors.ErrorList
}

func New(l *lexer.Lexer, file string) *Parser {
	p := &Parser{
		l:    l,
		file: file,
		errs: errors.NewErrorList(),
	}
	p.nextToken()
	p.nextToken()
	return p
}

// Parse runs to EOF. The returned ErrorList is non-nil and may be empty;
// callers reject the script when it has entries.
func (p *Parser) Parse() (*ast.Script, *errors.ErrorList) {
	script := &ast.Script{}
	for !p.curTokenIs(token.EOF) {
		if stmt := p.parseStmt(); stmt != nil {
			script.Body = append(script.Body, stmt)
		}
	}
	return script, p.errs
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t token.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t token.TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) position(pos token.Position) errors.Position {
	return errors.Position{File: p.file, Line: pos.Line, Column: pos.Column, Offset: pos.Offset}
}

func (p *Parser) addError(pos token.Position, format string, args ...interface{}) {
	p.errs.Add(p.position(pos), "parser", fmt.Sprintf(format, args...))
}

// synchronize skips to the next statement boundary after an error.
func (p *Parser) synchronize() {
	for !p.curTokenIs(token.NEWLINE) && !p.curTokenIs(token.EOF) {
		p.nextToken()
	}
	if p.curTokenIs(token.NEWLINE) {
		p.nextToken()
	}
}

// fail records a diagnostic, resynchronizes, and yields an Error node.
func (p *Parser) fail(pos token.Position, format string, args ...interface{}) ast.Stmt {
	p.addError(pos, format, args...)
	p.synchronize()
	return &ast.Error{Span: pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) skipTrivia() {
	for p.curTokenIs(token.NEWLINE) || p.curTokenIs(token.COMMENT) {
		p.nextToken()
	}
}

// expectEnd enforces the statement terminator: an optional trailing comment,
// then a newline or end of input.
func (p *Parser) expectEnd() bool {
	if p.curTokenIs(token.COMMENT) {
		p.nextToken()
	}
	switch p.curToken.Type {
	case token.NEWLINE:
		p.nextToken()
		return true
	case token.EOF:
		return true
	default:
		p.addError(p.curToken.Pos, "expected end of statement, got %s (%q)", p.curToken.Type, p.curToken.Literal)
		p.synchronize()
		return false
	}
}

func (p *Parser) ident() (string, bool) {
	if p.curTokenIs(token.IDENT) || p.curTokenIs(token.RESERVED) {
		lit := p.curToken.Literal
		p.nextToken()
		return lit, true
	}
	p.addError(p.curToken.Pos, "expected identifier, got %s (%q)", p.curToken.Type, p.curToken.Literal)
	return "", false
}

// strOrIdent accepts a string literal or a bare word. Reserved prepositions
// and flags are plain words outside their clause position.
func (p *Parser) strOrIdent() (string, bool) {
	switch p.curToken.Type {
	case token.STRING, token.IDENT, token.RESERVED, token.FLAG:
		lit := p.curToken.Literal
		p.nextToken()
		return lit, true
	}
	p.addError(p.curToken.Pos, "expected string or identifier, got %s (%q)", p.curToken.Type, p.curToken.Literal)
	return "", false
}

func (p *Parser) str() (string, bool) {
	if p.curTokenIs(token.STRING) {
		lit := p.curToken.Literal
		p.nextToken()
		return lit, true
	}
	p.addError(p.curToken.Pos, "expected string, got %s (%q)", p.curToken.Type, p.curToken.Literal)
	return "", false
}

// num parses a numeric literal with optional leading minus.
func (p *Parser) num() (float64, bool) {
	neg := false
	if p.curTokenIs(token.MINUS) {
		neg = true
		p.nextToken()
	}
	if !p.curTokenIs(token.NUMBER) {
		p.addError(p.curToken.Pos, "expected number, got %s (%q)", p.curToken.Type, p.curToken.Literal)
		return 0, false
	}
	v, err := strconv.ParseFloat(p.curToken.Literal, 64)
	if err != nil {
		p.addError(p.curToken.Pos, "invalid number %q", p.curToken.Literal)
		p.nextToken()
		return 0, false
	}
	p.nextToken()
	if neg {
		v = -v
	}
	return v, true
}

// parseStmt dispatches on the current token; nil means trivia was consumed
// and no statement was produced.
func (p *Parser) parseStmt() ast.Stmt {
	switch p.curToken.Type {
	case token.NEWLINE, token.COMMENT:
		p.skipTrivia()
		return nil
	case token.ILLEGAL:
		pos := p.curToken.Pos
		msg := p.curToken.Literal
		p.errs.Add(p.position(pos), "lexer", msg)
		p.synchronize()
		return &ast.Error{Span: pos, Msg: msg}
	case token.CHARACTER:
		return p.parseCharacter()
	case token.LABEL:
		return p.parseLabel()
	case token.CHOICE:
		return p.parseChoice()
	case token.IF:
		return p.parseIf()
	case token.JUMP:
		return p.parseJump()
	case token.CALL:
		return p.parseCall()
	case token.COLON:
		return p.parseNarration()
	case token.PLAY:
		return p.parsePlay()
	case token.STOP:
		return p.parseStop()
	case token.SCENE:
		return p.parseScene()
	case token.SHOW:
		return p.parseShow()
	case token.HIDE:
		return p.parseHide()
	case token.LUA:
		return p.parseLuaBlock()
	case token.DOLLAR:
		return p.parseDollarBlock()
	case token.IDENT, token.RESERVED:
		return p.parseDialogue()
	default:
		return p.fail(p.curToken.Pos, "unexpected token %s (%q) at statement start", p.curToken.Type, p.curToken.Literal)
	}
}

func (p *Parser) parseCharacter() ast.Stmt {
	span := p.curToken.Pos
	p.nextToken()

	id, ok := p.ident()
	if !ok {
		return p.fail(p.curToken.Pos, "character needs an identifier")
	}

	stmt := &ast.CharacterDef{Span: span, ID: id}
	seenName := false
	for p.curTokenIs(token.PARAMKEY) {
		key := p.curToken.Literal
		keyPos := p.curToken.Pos
		p.nextToken()
		val, ok := p.strOrIdent()
		if !ok {
			p.synchronize()
			return &ast.Error{Span: span, Msg: "bad character parameter"}
		}
		switch key {
		case "name":
			stmt.Name = val
			seenName = true
		case "image_tag":
			stmt.ImageTag = val
		case "voice_tag":
			stmt.VoiceTag = val
		default:
			p.addError(keyPos, "unknown character parameter %q", key)
		}
	}
	if !seenName {
		return p.fail(span, "character %q is missing name=", id)
	}
	p.expectEnd()
	return stmt
}

func (p *Parser) parseLabel() ast.Stmt {
	span := p.curToken.Pos
	p.nextToken()

	id, ok := p.ident()
	if !ok {
		return p.fail(p.curToken.Pos, "label needs an identifier")
	}
	p.expectEnd()

	var body []ast.Stmt
	for {
		p.skipTrivia()
		if p.curTokenIs(token.ENLABEL) {
			p.nextToken()
			p.expectEnd()
			break
		}
		if p.curTokenIs(token.EOF) {
			// unterminated body at end of input is a hard failure
			p.addError(span, "label %q is not closed before end of file (missing enlb)", id)
			break
		}
		if stmt := p.parseStmt(); stmt != nil {
			body = append(body, stmt)
		}
	}
	return &ast.Label{Span: span, ID: id, Body: body}
}

func (p *Parser) parseChoice() ast.Stmt {
	span := p.curToken.Pos
	p.nextToken()

	stmt := &ast.Choice{Span: span}
	if p.curTokenIs(token.STRING) {
		stmt.Title = p.curToken.Literal
		p.nextToken()
	}
	p.expectEnd()

	for {
		p.skipTrivia()
		if p.curTokenIs(token.ENCHOICE) {
			p.nextToken()
			p.expectEnd()
			break
		}
		if p.curTokenIs(token.EOF) {
			p.addError(span, "choice is not closed before end of file (missing enco)")
			break
		}

		text, ok := p.str()
		if !ok {
			p.synchronize()
			continue
		}
		if !p.curTokenIs(token.COLON) {
			p.addError(p.curToken.Pos, "expected ':' after choice option %q", text)
			p.synchronize()
			continue
		}
		p.nextToken()

		// exactly one statement per arm; wrap longer bodies in a label
		body := p.parseStmt()
		if body == nil || isErrorStmt(body) {
			p.addError(span, "choice option %q has an empty body", text)
			continue
		}
		stmt.Arms = append(stmt.Arms, ast.ChoiceArm{Text: text, Body: []ast.Stmt{body}})
	}

	if len(stmt.Arms) == 0 {
		p.addError(span, "choice has no options")
	}
	return stmt
}

func (p *Parser) parseIf() ast.Stmt {
	span := p.curToken.Pos
	stmt := &ast.If{Span: span}

	for {
		// current token is `if`; its condition arrives as one raw token
		p.nextToken()
		if !p.curTokenIs(token.SCRIPT) || p.curToken.Literal == "" {
			return p.fail(p.curToken.Pos, "if needs a condition")
		}
		cond := p.curToken.Literal
		p.nextToken()
		p.expectEnd()

		var body []ast.Stmt
		closed := false
		for {
			p.skipTrivia()
			if p.curTokenIs(token.ENIF) {
				closed = true
				break
			}
			if p.curTokenIs(token.ELSE) {
				break
			}
			if p.curTokenIs(token.EOF) {
				p.addError(span, "if is not closed before end of file (missing enif)")
				closed = true
				break
			}
			if s := p.parseStmt(); s != nil {
				body = append(body, s)
			}
		}
		stmt.Branches = append(stmt.Branches, ast.IfBranch{Cond: cond, Body: body})

		if closed {
			if p.curTokenIs(token.ENIF) {
				p.nextToken()
				p.expectEnd()
			}
			return stmt
		}

		// at `else`: either `else if <cond>` starts the next branch, or the
		// final else body runs to enif
		p.nextToken()
		if p.curTokenIs(token.IF) {
			continue
		}
		p.expectEnd()
		for {
			p.skipTrivia()
			if p.curTokenIs(token.ENIF) {
				p.nextToken()
				p.expectEnd()
				return stmt
			}
			if p.curTokenIs(token.EOF) {
				p.addError(span, "if is not closed before end of file (missing enif)")
				return stmt
			}
			if s := p.parseStmt(); s != nil {
				stmt.Else = append(stmt.Else, s)
			}
		}
	}
}

func (p *Parser) parseJump() ast.Stmt {
	span := p.curToken.Pos
	p.nextToken()
	target, ok := p.ident()
	if !ok {
		return p.fail(p.curToken.Pos, "jump needs a label name")
	}
	p.expectEnd()
	return &ast.Jump{Span: span, Target: target}
}

func (p *Parser) parseCall() ast.Stmt {
	span := p.curToken.Pos
	p.nextToken()
	target, ok := p.ident()
	if !ok {
		return p.fail(p.curToken.Pos, "call needs a label name")
	}
	p.expectEnd()
	return &ast.Call{Span: span, Target: target}
}

func (p *Parser) parseNarration() ast.Stmt {
	span := p.curToken.Pos
	p.nextToken()
	text, ok := p.str()
	if !ok {
		return p.fail(p.curToken.Pos, "narration needs a string")
	}
	p.expectEnd()

	var lines []string
	for _, l := range strings.Split(strings.TrimSpace(text), "\n") {
		lines = append(lines, l)
	}
	return &ast.Narration{Span: span, Lines: lines}
}

func (p *Parser) parseDialogue() ast.Stmt {
	span := p.curToken.Pos
	name := p.curToken.Literal
	p.nextToken()

	alias := ""
	if p.curTokenIs(token.AT) {
		p.nextToken()
		a, ok := p.strOrIdent()
		if !ok {
			return p.fail(p.curToken.Pos, "dialogue alias after @ is missing")
		}
		alias = a
	}

	if !p.curTokenIs(token.COLON) {
		return p.fail(p.curToken.Pos, "expected ':' after speaker %q", name)
	}
	p.nextToken()

	text, ok := p.str()
	if !ok {
		return p.fail(p.curToken.Pos, "dialogue needs a string")
	}
	p.expectEnd()

	voiceIndex := ""
	if m := voiceIndexRe.FindStringSubmatch(text); m != nil {
		voiceIndex = m[1]
		text = strings.TrimSpace(voiceIndexRe.ReplaceAllString(text, ""))
	}

	return &ast.Dialogue{
		Span:       span,
		Speaker:    ast.Speaker{Name: name, Alias: alias},
		Text:       text,
		VoiceIndex: voiceIndex,
	}
}

func (p *Parser) parsePlay() ast.Stmt {
	span := p.curToken.Pos
	p.nextToken()

	channel, ok := p.strOrIdent()
	if !ok {
		return p.fail(p.curToken.Pos, "play needs a channel")
	}
	if !audioChannels[channel] {
		return p.fail(span, "no audio channel named %q", channel)
	}

	resource, ok := p.strOrIdent()
	if !ok {
		return p.fail(p.curToken.Pos, "play needs a resource")
	}

	stmt := &ast.Audio{
		Span:     span,
		Action:   ast.AudioPlay,
		Channel:  channel,
		Resource: resource,
		// the music channel loops unless a flag says otherwise
		Options: ast.AudioOptions{Loop: channel == "music"},
	}

	seenLoopFlag := false
	for p.curTokenIs(token.PARAMKEY) || p.curTokenIs(token.FLAG) {
		key := p.curToken.Literal
		keyPos := p.curToken.Pos
		if p.curTokenIs(token.FLAG) {
			p.nextToken()
			if seenLoopFlag {
				return p.fail(keyPos, "loop already set for this play statement")
			}
			seenLoopFlag = true
			switch key {
			case "loop":
				stmt.Options.Loop = true
			case "noloop":
				stmt.Options.Loop = false
			}
			continue
		}
		p.nextToken()
		v, ok := p.num()
		if !ok {
			p.synchronize()
			return &ast.Error{Span: span, Msg: "bad play parameter"}
		}
		switch key {
		case "volume":
			stmt.Options.Volume = &v
		case "fade_in":
			stmt.Options.FadeIn = &v
		default:
			p.addError(keyPos, "unknown play parameter %q", key)
		}
	}
	p.expectEnd()
	return stmt
}

func (p *Parser) parseStop() ast.Stmt {
	span := p.curToken.Pos
	p.nextToken()

	channel, ok := p.strOrIdent()
	if !ok {
		return p.fail(p.curToken.Pos, "stop needs a channel")
	}
	if !audioChannels[channel] {
		return p.fail(span, "no audio channel named %q", channel)
	}

	stmt := &ast.Audio{Span: span, Action: ast.AudioStop, Channel: channel}
	for p.curTokenIs(token.PARAMKEY) {
		key := p.curToken.Literal
		keyPos := p.curToken.Pos
		p.nextToken()
		v, ok := p.num()
		if !ok {
			p.synchronize()
			return &ast.Error{Span: span, Msg: "bad stop parameter"}
		}
		if key != "fade_out" {
			p.addError(keyPos, "stop accepts only fade_out=, got %q", key)
			continue
		}
		stmt.Options.FadeOut = &v
	}
	p.expectEnd()
	return stmt
}

func (p *Parser) parseScene() ast.Stmt {
	span := p.curToken.Pos
	p.nextToken()

	stmt := &ast.Scene{Span: span}
	switch p.curToken.Type {
	case token.IDENT:
		img := &ast.SceneImage{Prefix: p.curToken.Literal}
		p.nextToken()
		for p.curTokenIs(token.IDENT) || p.curTokenIs(token.STRING) {
			img.Attrs = append(img.Attrs, p.curToken.Literal)
			p.nextToken()
		}
		stmt.Image = img
	case token.STRING:
		stmt.Image = &ast.SceneImage{Prefix: p.curToken.Literal}
		p.nextToken()
	}

	if p.curTokenIs(token.RESERVED) {
		if p.curToken.Literal != "with" {
			return p.fail(p.curToken.Pos, "scene accepts only a with-clause, got %q", p.curToken.Literal)
		}
		p.nextToken()
		effect, ok := p.strOrIdent()
		if !ok {
			return p.fail(p.curToken.Pos, "with needs a transition name")
		}
		stmt.Transition = effect
	}
	p.expectEnd()
	return stmt
}

func (p *Parser) parseShow() ast.Stmt {
	span := p.curToken.Pos
	p.nextToken()

	target, ok := p.strOrIdent()
	if !ok {
		return p.fail(p.curToken.Pos, "show needs a target")
	}
	stmt := &ast.Show{Span: span, Target: target}

	for {
		if p.curTokenIs(token.MINUS) {
			p.nextToken()
			tag, ok := p.strOrIdent()
			if !ok {
				return p.fail(p.curToken.Pos, "expected tag after '-'")
			}
			stmt.Attrs = append(stmt.Attrs, ast.ShowAttr{Op: ast.AttrRemove, Tag: tag})
			continue
		}
		if p.curTokenIs(token.IDENT) || p.curTokenIs(token.STRING) {
			stmt.Attrs = append(stmt.Attrs, ast.ShowAttr{Op: ast.AttrAdd, Tag: p.curToken.Literal})
			p.nextToken()
			continue
		}
		break
	}

	for p.curTokenIs(token.RESERVED) {
		clause := p.curToken.Literal
		clausePos := p.curToken.Pos
		p.nextToken()
		val, ok := p.strOrIdent()
		if !ok {
			return p.fail(p.curToken.Pos, "%s needs a value", clause)
		}
		switch clause {
		case "at":
			if stmt.Position != "" {
				return p.fail(clausePos, "duplicate at-clause on show")
			}
			stmt.Position = val
		case "with":
			if stmt.Transition != "" {
				return p.fail(clausePos, "duplicate with-clause on show")
			}
			stmt.Transition = val
		}
	}
	p.expectEnd()
	return stmt
}

func (p *Parser) parseHide() ast.Stmt {
	span := p.curToken.Pos
	p.nextToken()

	target, ok := p.strOrIdent()
	if !ok {
		return p.fail(p.curToken.Pos, "hide needs a target")
	}
	stmt := &ast.Hide{Span: span, Target: target}

	if p.curTokenIs(token.RESERVED) && p.curToken.Literal == "with" {
		p.nextToken()
		effect, ok := p.strOrIdent()
		if !ok {
			return p.fail(p.curToken.Pos, "with needs a transition name")
		}
		stmt.Transition = effect
	}
	p.expectEnd()
	return stmt
}

func (p *Parser) parseLuaBlock() ast.Stmt {
	span := p.curToken.Pos
	p.nextToken()

	if !p.curTokenIs(token.SCRIPT) {
		return p.fail(p.curToken.Pos, "expected script block after lua")
	}
	code := p.curToken.Literal
	p.nextToken()
	p.skipTrivia()
	if !p.curTokenIs(token.ENLUA) {
		return p.fail(span, "lua block is not closed (missing enlu)")
	}
	p.nextToken()
	p.expectEnd()
	return &ast.ScriptBlock{Span: span, Code: code}
}

func (p *Parser) parseDollarBlock() ast.Stmt {
	span := p.curToken.Pos
	p.nextToken()

	if !p.curTokenIs(token.SCRIPT) || p.curToken.Literal == "" {
		return p.fail(p.curToken.Pos, "expected an expression after $")
	}
	code := p.curToken.Literal
	p.nextToken()
	p.expectEnd()
	return &ast.ScriptBlock{Span: span, Code: code}
}

func isErrorStmt(s ast.Stmt) bool {
	_, ok := s.(*ast.Error)
	return ok
}
