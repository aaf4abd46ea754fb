package scripting

import (
	"reflect"
	"testing"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestEvalStringDottedAccess(t *testing.T) {
	e := newTestEngine(t)
	e.InjectSaveVars(map[string]any{"score": 7, "name": "Bo"})

	if got := e.EvalString("f.score"); got != "7" {
		t.Fatalf("f.score = %q", got)
	}
	if got := e.EvalString("f.name"); got != "Bo" {
		t.Fatalf("f.name = %q", got)
	}
}

func TestEvalStringGlobals(t *testing.T) {
	e := newTestEngine(t)
	e.InjectGlobals(map[string]any{"endings": 2})

	if got := e.EvalString("sf.endings"); got != "2" {
		t.Fatalf("sf.endings = %q", got)
	}
}

func TestEvalStringErrorMarker(t *testing.T) {
	e := newTestEngine(t)
	if got := e.EvalString("((("); got != "{ERR:(((}" {
		t.Fatalf("marker = %q", got)
	}
}

func TestEvalBool(t *testing.T) {
	e := newTestEngine(t)
	e.InjectSaveVars(map[string]any{"x": 7})

	if !e.EvalBool("f.x > 0") {
		t.Fatal("f.x > 0 should be true")
	}
	if e.EvalBool("f.x > 10") {
		t.Fatal("f.x > 10 should be false")
	}
}

func TestEvalBoolErrorYieldsFalse(t *testing.T) {
	e := newTestEngine(t)
	if e.EvalBool("%%%") {
		t.Fatal("a malformed condition must evaluate to false")
	}
}

func TestRunMutatesVars(t *testing.T) {
	e := newTestEngine(t)
	e.Run(`vn.Set("score", 7)`)

	if got := e.ExtractSaveVars()["score"]; got != 7 {
		t.Fatalf("score = %#v", got)
	}
	if got := e.EvalString("f.score"); got != "7" {
		t.Fatalf("f.score = %q", got)
	}
}

func TestRunGlobalsAndGet(t *testing.T) {
	e := newTestEngine(t)
	e.InjectSaveVars(map[string]any{"score": 41})
	e.Run(`vn.SetGlobal("best", vn.Get("score"))`)

	if got := e.ExtractGlobals()["best"]; got != 41 {
		t.Fatalf("best = %#v", got)
	}
}

func TestRunErrorIsNotFatal(t *testing.T) {
	e := newTestEngine(t)
	e.Run(`this is not go`)
	e.Run(`vn.Set("after", 1)`)
	if got := e.ExtractSaveVars()["after"]; got != 1 {
		t.Fatalf("engine did not survive a bad block: %#v", got)
	}
}

func TestCommandQueue(t *testing.T) {
	e := newTestEngine(t)
	e.Run(`vn.Jump("ending")`)
	e.Run(`vn.SaveGlobal()`)

	cmds := e.DrainCommands()
	want := []Command{JumpTo{Target: "ending"}, PersistGlobals{}}
	if !reflect.DeepEqual(cmds, want) {
		t.Fatalf("cmds = %#v", cmds)
	}
	if len(e.DrainCommands()) != 0 {
		t.Fatal("drain must clear the queue")
	}
}

func TestInjectNormalizesJSONNumbers(t *testing.T) {
	e := newTestEngine(t)
	// the shape a JSON decode produces
	e.InjectSaveVars(map[string]any{"score": float64(7), "ratio": 0.5})

	if got := e.ExtractSaveVars()["score"]; got != 7 {
		t.Fatalf("score = %#v", got)
	}
	if got := e.ExtractSaveVars()["ratio"]; got != 0.5 {
		t.Fatalf("ratio = %#v", got)
	}
	if got := e.EvalString("f.score"); got != "7" {
		t.Fatalf("f.score = %q", got)
	}
}
