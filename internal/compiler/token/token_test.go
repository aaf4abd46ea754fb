package token

import "testing"

func TestLookupIdent(t *testing.T) {
	tests := []struct {
		ident string
		want  TokenType
	}{
		{"label", LABEL},
		{"character", CHARACTER},
		{"enlb", ENLABEL},
		{"enco", ENCHOICE},
		{"enlu", ENLUA},
		{"enif", ENIF},
		{"loop", FLAG},
		{"noloop", FLAG},
		{"with", RESERVED},
		{"at", RESERVED},
		{"alice", IDENT},
		{"_private", IDENT},
	}
	for _, tt := range tests {
		if got := LookupIdent(tt.ident); got != tt.want {
			t.Fatalf("LookupIdent(%q) = %s, want %s", tt.ident, got, tt.want)
		}
	}
}
