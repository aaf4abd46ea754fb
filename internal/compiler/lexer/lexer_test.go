package lexer

import (
	"testing"

	"vivigo/internal/compiler/token"
)

func TestKeywords(t *testing.T) {
	input := `character scene show hide play stop label choice jump call else enlb enco enif`

	expected := []token.TokenType{
		token.CHARACTER, token.SCENE, token.SHOW, token.HIDE, token.PLAY,
		token.STOP, token.LABEL, token.CHOICE, token.JUMP, token.CALL,
		token.ELSE, token.ENLABEL, token.ENCHOICE, token.ENIF,
	}

	l := New(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp {
			t.Fatalf("test[%d] - expected %s, got %s (%q)", i, exp, tok.Type, tok.Literal)
		}
	}
	if tok := l.NextToken(); tok.Type != token.EOF {
		t.Fatalf("expected EOF, got %s", tok.Type)
	}
}

func TestPunctuationAndNewlines(t *testing.T) {
	input := ": @ -\nnext"

	expected := []struct {
		typ token.TokenType
		lit string
	}{
		{token.COLON, ":"},
		{token.AT, "@"},
		{token.MINUS, "-"},
		{token.NEWLINE, "\n"},
		{token.IDENT, "next"},
		{token.EOF, ""},
	}

	l := New(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ || tok.Literal != exp.lit {
			t.Fatalf("test[%d] - expected %s(%q), got %s(%q)", i, exp.typ, exp.lit, tok.Type, tok.Literal)
		}
	}
}

func TestParamKeysAndFlags(t *testing.T) {
	input := `name=Alice volume=0.5 loop noloop with at`

	expected := []struct {
		typ token.TokenType
		lit string
	}{
		{token.PARAMKEY, "name"},
		{token.IDENT, "Alice"},
		{token.PARAMKEY, "volume"},
		{token.NUMBER, "0.5"},
		{token.FLAG, "loop"},
		{token.FLAG, "noloop"},
		{token.RESERVED, "with"},
		{token.RESERVED, "at"},
	}

	l := New(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ || tok.Literal != exp.lit {
			t.Fatalf("test[%d] - expected %s(%q), got %s(%q)", i, exp.typ, exp.lit, tok.Type, tok.Literal)
		}
	}
}

func TestStrings(t *testing.T) {
	input := `"hello" "esc\"aped\n" 'single' """multi
line"""`

	expected := []string{"hello", "esc\"aped\n", "single", "multi\nline"}

	l := New(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != token.STRING {
			t.Fatalf("test[%d] - expected STRING, got %s (%q)", i, tok.Type, tok.Literal)
		}
		if tok.Literal != exp {
			t.Fatalf("test[%d] - expected %q, got %q", i, exp, tok.Literal)
		}
	}
}

func TestNumbers(t *testing.T) {
	input := `42 3.14 0`

	expected := []string{"42", "3.14", "0"}
	l := New(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != token.NUMBER || tok.Literal != exp {
			t.Fatalf("test[%d] - expected NUMBER(%q), got %s(%q)", i, exp, tok.Type, tok.Literal)
		}
	}
}

func TestComments(t *testing.T) {
	input := "jump good # to the good ending\njump bad"

	l := New(input)
	if tok := l.NextToken(); tok.Type != token.JUMP {
		t.Fatalf("expected JUMP, got %s", tok.Type)
	}
	if tok := l.NextToken(); tok.Type != token.IDENT || tok.Literal != "good" {
		t.Fatalf("expected IDENT(good), got %s(%q)", tok.Type, tok.Literal)
	}
	tok := l.NextToken()
	if tok.Type != token.COMMENT {
		t.Fatalf("expected COMMENT, got %s", tok.Type)
	}
	if tok := l.NextToken(); tok.Type != token.NEWLINE {
		t.Fatalf("expected NEWLINE after comment, got %s", tok.Type)
	}
	if tok := l.NextToken(); tok.Type != token.JUMP {
		t.Fatalf("expected JUMP, got %s", tok.Type)
	}
}

func TestDollarCapturesRestOfLine(t *testing.T) {
	input := "$ vn.Set(\"score\", 7)\njump next"

	l := New(input)
	if tok := l.NextToken(); tok.Type != token.DOLLAR {
		t.Fatalf("expected DOLLAR, got %s", tok.Type)
	}
	tok := l.NextToken()
	if tok.Type != token.SCRIPT {
		t.Fatalf("expected SCRIPT, got %s (%q)", tok.Type, tok.Literal)
	}
	if tok.Literal != `vn.Set("score", 7)` {
		t.Fatalf("wrong capture: %q", tok.Literal)
	}
	if tok := l.NextToken(); tok.Type != token.NEWLINE {
		t.Fatalf("expected NEWLINE, got %s", tok.Type)
	}
	if tok := l.NextToken(); tok.Type != token.JUMP {
		t.Fatalf("expected JUMP, got %s", tok.Type)
	}
}

func TestLuaBlockCapture(t *testing.T) {
	input := "lua\nvn.Set(\"a\", 1)\nvn.Set(\"b\", 2)\nenlu\njump next"

	l := New(input)
	if tok := l.NextToken(); tok.Type != token.LUA {
		t.Fatalf("expected LUA, got %s", tok.Type)
	}
	tok := l.NextToken()
	if tok.Type != token.SCRIPT {
		t.Fatalf("expected SCRIPT, got %s (%q)", tok.Type, tok.Literal)
	}
	if tok.Literal != "vn.Set(\"a\", 1)\nvn.Set(\"b\", 2)" {
		t.Fatalf("wrong capture: %q", tok.Literal)
	}
	if tok := l.NextToken(); tok.Type != token.ENLUA {
		t.Fatalf("expected ENLUA after block, got %s (%q)", tok.Type, tok.Literal)
	}
	if tok := l.NextToken(); tok.Type != token.NEWLINE {
		t.Fatalf("expected NEWLINE, got %s", tok.Type)
	}
	if tok := l.NextToken(); tok.Type != token.JUMP {
		t.Fatalf("expected JUMP, got %s", tok.Type)
	}
}

func TestIfConditionCapture(t *testing.T) {
	input := "if f.x > 0\n"

	l := New(input)
	if tok := l.NextToken(); tok.Type != token.IF {
		t.Fatalf("expected IF, got %s", tok.Type)
	}
	tok := l.NextToken()
	if tok.Type != token.SCRIPT || tok.Literal != "f.x > 0" {
		t.Fatalf("expected SCRIPT(f.x > 0), got %s(%q)", tok.Type, tok.Literal)
	}
	if tok := l.NextToken(); tok.Type != token.NEWLINE {
		t.Fatalf("expected NEWLINE, got %s", tok.Type)
	}
}

func TestUnterminatedStringRecovers(t *testing.T) {
	input := ":\"oops\njump next"

	l := New(input)
	if tok := l.NextToken(); tok.Type != token.COLON {
		t.Fatalf("expected COLON, got %s", tok.Type)
	}
	tok := l.NextToken()
	if tok.Type != token.ILLEGAL {
		t.Fatalf("expected ILLEGAL, got %s (%q)", tok.Type, tok.Literal)
	}
	// lexing continues at the next newline
	if tok := l.NextToken(); tok.Type != token.NEWLINE {
		t.Fatalf("expected NEWLINE, got %s", tok.Type)
	}
	if tok := l.NextToken(); tok.Type != token.JUMP {
		t.Fatalf("expected JUMP, got %s", tok.Type)
	}
}

func TestUnknownCharacterRecovers(t *testing.T) {
	input := "^ garbage\njump next"

	l := New(input)
	tok := l.NextToken()
	if tok.Type != token.ILLEGAL {
		t.Fatalf("expected ILLEGAL, got %s (%q)", tok.Type, tok.Literal)
	}
	if tok := l.NextToken(); tok.Type != token.NEWLINE {
		t.Fatalf("expected NEWLINE, got %s", tok.Type)
	}
	if tok := l.NextToken(); tok.Type != token.JUMP {
		t.Fatalf("expected JUMP, got %s", tok.Type)
	}
}

func TestPositions(t *testing.T) {
	input := "label init\n:\"hi\""

	l := New(input)
	tok := l.NextToken()
	if tok.Pos.Line != 1 || tok.Pos.Offset != 0 {
		t.Fatalf("label pos = %+v", tok.Pos)
	}
	tok = l.NextToken() // init
	if tok.Pos.Line != 1 || tok.Pos.Offset != 6 {
		t.Fatalf("init pos = %+v", tok.Pos)
	}
	l.NextToken() // newline
	tok = l.NextToken()
	if tok.Type != token.COLON || tok.Pos.Line != 2 {
		t.Fatalf("colon pos = %+v (%s)", tok.Pos, tok.Type)
	}
}
