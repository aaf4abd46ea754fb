package manager

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vivigo/internal/compiler/ast"
)

func writeScript(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadProjectIndexesLabels(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "main.vivi", "label init\njump good\nenlb\nlabel good\n:\"Win\"\nenlb\n")

	m := New()
	if err := m.LoadProject(dir); err != nil {
		t.Fatalf("load: %v", err)
	}

	for _, name := range []string{"init", "good"} {
		if _, ok := m.GetLabel(name); !ok {
			t.Fatalf("label %q missing from index", name)
		}
	}
}

func TestParseFailureAbortsLoad(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "ok.vivi", "label a\n:\"x\"\nenlb\n")
	writeScript(t, dir, "bad.vivi", "jump\n")

	m := New()
	if err := m.LoadProject(dir); err == nil {
		t.Fatal("expected project load to fail on the bad file")
	}
}

func TestCrossFileCollision(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "a.vivi", "label init\n:\"a\"\nenlb\n")
	writeScript(t, dir, "b.vivi", "label init\n:\"b\"\nenlb\n")

	m := New()
	err := m.LoadProject(dir)
	if err == nil {
		t.Fatal("expected a collision error")
	}
	if !strings.Contains(err.Error(), "init") {
		t.Fatalf("collision error should name the label: %v", err)
	}
}

func TestInFileDuplicateRejected(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "a.vivi", "label x\n:\"1\"\nenlb\nlabel x\n:\"2\"\nenlb\n")

	m := New()
	if err := m.LoadProject(dir); err == nil {
		t.Fatal("expected duplicate-in-file error")
	}
}

func TestNarrationSplitting(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "a.vivi", "label init\n:\"\"\"one\ntwo\nthree\"\"\"\nenlb\n")

	m := New()
	if err := m.LoadProject(dir); err != nil {
		t.Fatalf("load: %v", err)
	}
	body, _ := m.GetLabel("init")
	if len(body) != 3 {
		t.Fatalf("expected 3 narration statements, got %d", len(body))
	}
	for i, want := range []string{"one", "two", "three"} {
		n, ok := body[i].(*ast.Narration)
		if !ok || len(n.Lines) != 1 || n.Lines[0] != want {
			t.Fatalf("stmt %d: %#v", i, body[i])
		}
	}
}

func TestAnonymousBlockIDs(t *testing.T) {
	src := "label init\nchoice \"Go?\"\n \"Yes\": jump good\n \"No\": jump bad\nenco\nif f.x > 0\n :\"pos\"\nelse\n :\"neg\"\nenif\nenlb\nlabel good\n:\"w\"\nenlb\nlabel bad\n:\"l\"\nenlb\n"
	dir := t.TempDir()
	writeScript(t, dir, "a.vivi", src)

	m := New()
	if err := m.LoadProject(dir); err != nil {
		t.Fatalf("load: %v", err)
	}

	body, _ := m.GetLabel("init")
	c := body[0].(*ast.Choice)
	if c.AssignedID != "init@choice_0" {
		t.Fatalf("choice id = %q", c.AssignedID)
	}
	i := body[1].(*ast.If)
	if i.AssignedID != "init@if_0" {
		t.Fatalf("if id = %q", i.AssignedID)
	}

	// derived blocks are registered so the executor can enter them by name
	for _, name := range []string{
		"init@choice_0_opt0", "init@choice_0_opt1",
		"init@if_0_b0", "init@if_0_else",
	} {
		if _, ok := m.GetLabel(name); !ok {
			t.Fatalf("derived block %q missing from index", name)
		}
	}
}

func TestAnonymousIDDeterminism(t *testing.T) {
	src := "label init\nchoice\n \"A\": jump init\nenco\nchoice\n \"B\": jump init\nenco\nenlb\n"
	ids := func() []string {
		dir := t.TempDir()
		writeScript(t, dir, "a.vivi", src)
		m := New()
		if err := m.LoadProject(dir); err != nil {
			t.Fatalf("load: %v", err)
		}
		body, _ := m.GetLabel("init")
		var out []string
		for _, s := range body {
			out = append(out, s.(*ast.Choice).AssignedID)
		}
		return out
	}

	a, b := ids(), ids()
	if len(a) != 2 || a[0] != "init@choice_0" || a[1] != "init@choice_1" {
		t.Fatalf("unexpected ids: %v", a)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("ids differ across loads: %v vs %v", a, b)
		}
	}
}

func TestCollectCharacters(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "chars.vivi", "character alice name=Alice voice_tag=al\ncharacter bob name=Bob\n")
	writeScript(t, dir, "main.vivi", "label init\n:\"x\"\nenlb\n")

	m := New()
	if err := m.LoadProject(dir); err != nil {
		t.Fatalf("load: %v", err)
	}
	chars := m.CollectCharacters()
	if len(chars) != 2 {
		t.Fatalf("expected 2 characters, got %d", len(chars))
	}
	if chars["alice"].Name != "Alice" || chars["alice"].VoiceTag != "al" {
		t.Fatalf("bad alice: %+v", chars["alice"])
	}
}

func TestNestedLabelIndexed(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "a.vivi", "label outer\n:\"x\"\nlabel inner\n:\"y\"\nenlb\nenlb\n")

	m := New()
	if err := m.LoadProject(dir); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := m.GetLabel("inner"); !ok {
		t.Fatal("nested label missing from index")
	}
}

func TestIgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "main.vivi", "label init\n:\"x\"\nenlb\n")
	writeScript(t, dir, "notes.txt", "not a script {{{")

	m := New()
	if err := m.LoadProject(dir); err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Labels() == 0 {
		t.Fatal("expected labels from the .vivi file")
	}
}
