// Package manager assembles a script project into a globally addressable
// label table: it walks the project directory, parses every script file,
// runs the post-parse passes and indexes labels and characters.
package manager

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"vivigo/internal/compiler/ast"
	"vivigo/internal/compiler/lexer"
	"vivigo/internal/compiler/parser"
	"vivigo/internal/engine/runtime"
	"vivigo/internal/log"
)

// Ext is the script file extension used for project discovery.
const Ext = ".vivi"

// ScriptManager owns the parsed programs and the label index. Statement
// sequences in the index are shared (slice headers over immutable backing
// arrays) with every frame that enters them.
type ScriptManager struct {
	programs []*ast.Script

	labels       map[string][]ast.Stmt
	labelSources map[string]string // label id -> file key, for collision reports

	sources map[string]string // file path -> source text, for diagnostics
}

func New() *ScriptManager {
	return &ScriptManager{
		labels:       make(map[string][]ast.Stmt),
		labelSources: make(map[string]string),
		sources:      make(map[string]string),
	}
}

// LoadProject walks root and loads every *.vivi file. Any parse failure or
// label collision aborts the load.
func (m *ScriptManager) LoadProject(root string) error {
	logger := log.WithComponent("manager")
	logger.Info("scanning script project", "root", root)

	loaded := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, Ext) {
			return nil
		}
		if err := m.LoadFile(path); err != nil {
			return err
		}
		loaded++
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("project loaded", "files", loaded, "labels", len(m.labels))
	return nil
}

// LoadFile parses and indexes a single script file.
func (m *ScriptManager) LoadFile(path string) error {
	logger := log.WithComponent("manager")

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script %s: %w", path, err)
	}
	content := string(data)

	p := parser.New(lexer.New(content), path)
	script, diags := p.Parse()
	if diags.HasErrors() {
		for _, d := range diags.Errors {
			logger.Error("syntax error", "file", path, "line", d.Pos.Line, "msg", d.Message)
		}
		return fmt.Errorf("parse failed for %s: %d error(s)", path, diags.Len())
	}

	fileKey := strings.TrimSuffix(filepath.Base(path), Ext)

	// post-parse passes: explode multi-line narration, then assign stable
	// ids to anonymous choice/if blocks and register their bodies
	script.Body = splitNarration(script.Body)
	assignBlockIDs(script.Body, fileKey, m.labels)

	if err := m.indexLabels(script.Body, fileKey); err != nil {
		return err
	}

	m.programs = append(m.programs, script)
	m.sources[path] = content
	return nil
}

// GetLabel resolves a label or anonymous-block id to its statement sequence.
func (m *ScriptManager) GetLabel(name string) ([]ast.Stmt, bool) {
	body, ok := m.labels[name]
	return body, ok
}

// Labels returns the number of indexed statement sequences.
func (m *ScriptManager) Labels() int { return len(m.labels) }

// Source returns the cached source text for a loaded file.
func (m *ScriptManager) Source(path string) (string, bool) {
	s, ok := m.sources[path]
	return s, ok
}

// CollectCharacters gathers every character definition across all files.
func (m *ScriptManager) CollectCharacters() map[string]runtime.Character {
	chars := make(map[string]runtime.Character)
	for _, script := range m.programs {
		collectCharacters(script.Body, chars)
	}
	return chars
}

func collectCharacters(stmts []ast.Stmt, out map[string]runtime.Character) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.CharacterDef:
			out[s.ID] = runtime.Character{
				ID:       s.ID,
				Name:     s.Name,
				ImageTag: s.ImageTag,
				VoiceTag: s.VoiceTag,
			}
		case *ast.Label:
			collectCharacters(s.Body, out)
		}
	}
}

// indexLabels registers every label, at any nesting depth, rejecting
// duplicates within a file and across files with distinct messages.
func (m *ScriptManager) indexLabels(stmts []ast.Stmt, fileKey string) error {
	for _, stmt := range stmts {
		l, ok := stmt.(*ast.Label)
		if !ok {
			continue
		}
		if existing, dup := m.labelSources[l.ID]; dup {
			if existing == fileKey {
				return fmt.Errorf("label %q is defined twice in %s", l.ID, fileKey)
			}
			return fmt.Errorf("label collision: %q is defined in both %s and %s", l.ID, existing, fileKey)
		}
		m.labelSources[l.ID] = fileKey
		m.labels[l.ID] = l.Body
		if err := m.indexLabels(l.Body, fileKey); err != nil {
			return err
		}
	}
	return nil
}

// splitNarration explodes every multi-line narration into one statement per
// line (preserving spans), recursing into label, choice-arm and if-branch
// bodies.
func splitNarration(body []ast.Stmt) []ast.Stmt {
	out := make([]ast.Stmt, 0, len(body))
	for _, stmt := range body {
		switch s := stmt.(type) {
		case *ast.Narration:
			if len(s.Lines) > 1 {
				for _, line := range s.Lines {
					out = append(out, &ast.Narration{Span: s.Span, Lines: []string{line}})
				}
				continue
			}
		case *ast.Label:
			s.Body = splitNarration(s.Body)
		case *ast.Choice:
			for j := range s.Arms {
				s.Arms[j].Body = splitNarration(s.Arms[j].Body)
			}
		case *ast.If:
			for j := range s.Branches {
				s.Branches[j].Body = splitNarration(s.Branches[j].Body)
			}
			if s.Else != nil {
				s.Else = splitNarration(s.Else)
			}
		}
		out = append(out, stmt)
	}
	return out
}

// assignBlockIDs walks the tree assigning each choice and if a stable id of
// the form <scope>@<kind>_<n>, registering arm and branch bodies under
// derived names so the executor can enter (and restore into) them.
func assignBlockIDs(stmts []ast.Stmt, scope string, index map[string][]ast.Stmt) {
	counters := map[string]int{}

	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.Label:
			assignBlockIDs(s.Body, s.ID, index)
		case *ast.If:
			n := counters["if"]
			counters["if"]++
			base := fmt.Sprintf("%s@if_%d", scope, n)
			s.AssignedID = base

			for idx := range s.Branches {
				branchID := fmt.Sprintf("%s_b%d", base, idx)
				assignBlockIDs(s.Branches[idx].Body, branchID, index)
				index[branchID] = s.Branches[idx].Body
			}
			if s.Else != nil {
				elseID := base + "_else"
				assignBlockIDs(s.Else, elseID, index)
				index[elseID] = s.Else
			}
		case *ast.Choice:
			n := counters["choice"]
			counters["choice"]++
			base := fmt.Sprintf("%s@choice_%d", scope, n)
			s.AssignedID = base

			for idx := range s.Arms {
				armID := fmt.Sprintf("%s_opt%d", base, idx)
				assignBlockIDs(s.Arms[idx].Body, armID, index)
				index[armID] = s.Arms[idx].Body
			}
		}
	}
}
