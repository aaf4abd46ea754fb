package scripting

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/flosch/pongo2/v6"
	"github.com/traefik/yaegi/interp"

	"vivigo/internal/log"
)

// Engine is the default Evaluator. Expressions ({…} interpolation and if
// conditions) are evaluated as pongo2 expressions over the variable store,
// which gives dotted access into the save table (`f.score`) and the
// session-global table (`sf.cleared`) with recoverable errors. Script blocks
// are Go snippets interpreted by yaegi against an exported `vn` API bound to
// the same store.
type Engine struct {
	vars    map[string]any // per-save table, serialized with each slot
	globals map[string]any // session-global table, persisted separately
	cmds    []Command

	interp *interp.Interpreter
	logger *slog.Logger
}

func init() {
	// raw narrative text, not HTML
	pongo2.SetAutoescape(false)
}

func NewEngine() (*Engine, error) {
	e := &Engine{
		vars:    make(map[string]any),
		globals: make(map[string]any),
		logger:  log.WithComponent("scripting"),
	}

	i := interp.New(interp.Options{})
	exports := interp.Exports{
		"vn/vn": {
			"Get":        reflect.ValueOf(e.apiGet),
			"Set":        reflect.ValueOf(e.apiSet),
			"Global":     reflect.ValueOf(e.apiGlobal),
			"SetGlobal":  reflect.ValueOf(e.apiSetGlobal),
			"Jump":       reflect.ValueOf(e.apiJump),
			"SaveGlobal": reflect.ValueOf(e.apiSaveGlobal),
			"Print":      reflect.ValueOf(e.apiPrint),
		},
	}
	if err := i.Use(exports); err != nil {
		return nil, fmt.Errorf("scripting: register vn api: %w", err)
	}
	if _, err := i.Eval(`import "vn"`); err != nil {
		return nil, fmt.Errorf("scripting: import vn api: %w", err)
	}
	e.interp = i
	return e, nil
}

// Run executes a script block. Evaluator errors are logged, never raised.
func (e *Engine) Run(code string) {
	if _, err := e.interp.Eval(code); err != nil {
		e.logger.Error("script block failed", "err", err)
	}
}

func (e *Engine) context() pongo2.Context {
	return pongo2.Context{"f": e.vars, "sf": e.globals}
}

func (e *Engine) EvalString(expr string) string {
	tpl, err := pongo2.FromString("{{ " + expr + " }}")
	if err != nil {
		e.logger.Error("interpolation parse failed", "expr", expr, "err", err)
		return "{ERR:" + expr + "}"
	}
	out, err := tpl.Execute(e.context())
	if err != nil {
		e.logger.Error("interpolation failed", "expr", expr, "err", err)
		return "{ERR:" + expr + "}"
	}
	return out
}

func (e *Engine) EvalBool(expr string) bool {
	tpl, err := pongo2.FromString("{% if " + expr + " %}1{% endif %}")
	if err != nil {
		e.logger.Error("condition parse failed", "expr", expr, "err", err)
		return false
	}
	out, err := tpl.Execute(e.context())
	if err != nil {
		e.logger.Error("condition failed", "expr", expr, "err", err)
		return false
	}
	return out == "1"
}

func (e *Engine) InjectSaveVars(vars map[string]any) {
	e.vars = normalize(vars)
}

func (e *Engine) ExtractSaveVars() map[string]any {
	return e.vars
}

func (e *Engine) InjectGlobals(vars map[string]any) {
	e.globals = normalize(vars)
}

func (e *Engine) ExtractGlobals() map[string]any {
	return e.globals
}

func (e *Engine) DrainCommands() []Command {
	cmds := e.cmds
	e.cmds = nil
	return cmds
}

// vn API, exported into the interpreter.

func (e *Engine) apiGet(name string) any { return e.vars[name] }

func (e *Engine) apiSet(name string, v any) { e.vars[name] = v }

func (e *Engine) apiGlobal(name string) any { return e.globals[name] }

func (e *Engine) apiSetGlobal(name string, v any) { e.globals[name] = v }

func (e *Engine) apiJump(target string) {
	e.cmds = append(e.cmds, JumpTo{Target: target})
}
func (e *Engine) apiSaveGlobal() {
	e.cmds = append(e.cmds, PersistGlobals{})
}
func (e *Engine) apiPrint(msg string) {
	e.logger.Info("[script] " + msg)
}

// normalize deep-copies an injected table, turning integral float64 values
// (the shape JSON decoding produces) back into ints so interpolation prints
// "7" rather than "7.000000".
func normalize(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case float64:
		if t == float64(int64(t)) {
			return int(t)
		}
		return t
	case map[string]any:
		return normalize(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}
