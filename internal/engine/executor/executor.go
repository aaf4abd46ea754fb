// Package executor is the story state machine: it steps statements against a
// narrative context, emits output events, and suspends on the two wait
// states (menu choice and continue) until the front-end feeds input.
package executor

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"vivigo/internal/config"
	"vivigo/internal/engine/event"
	"vivigo/internal/engine/manager"
	"vivigo/internal/engine/runtime"
	"vivigo/internal/engine/scripting"
	"vivigo/internal/log"
	"vivigo/internal/storage"
)

type Executor struct {
	stack CallStack
	eval  scripting.Evaluator

	// pendingChoice non-nil means blocked awaiting ChoiceMade; paused means
	// blocked awaiting Continue. Never both.
	pendingChoice []pendingArm
	paused        bool

	manager *manager.ScriptManager
	cfg     *config.Config
	logger  *slog.Logger
}

func New(mgr *manager.ScriptManager, eval scripting.Evaluator, cfg *config.Config) *Executor {
	return &Executor{
		eval:    eval,
		manager: mgr,
		cfg:     cfg,
		logger:  log.WithComponent("executor"),
	}
}

// Start initializes the runtime-required channels and layers, copies the
// project's character registry into ctx, and jumps to the entry label.
func (e *Executor) Start(ctx *runtime.Ctx, entryLabel string) error {
	ctx.Audios["music"] = nil
	ctx.Audios["sound"] = nil
	ctx.Audios["voice"] = nil
	ctx.Layers.Arrange = append(ctx.Layers.Arrange, masterLayer)
	ctx.Layers.Layer[masterLayer] = []runtime.Sprite{}

	for id, ch := range e.manager.CollectCharacters() {
		ctx.Characters[id] = ch
	}

	return e.performJump(entryLabel)
}

// Feed applies one input event to the executor state. It never advances the
// story past a wait on its own; the next Step does.
func (e *Executor) Feed(ev event.InputEvent) {
	switch in := ev.(type) {
	case event.Continue:
		// only a cleared pause advances the pc; stray Continues are ignored
		if !e.paused {
			return
		}
		e.paused = false
		if top := e.stack.Top(); top != nil {
			top.Advance()
		}

	case event.ChoiceMade:
		if e.pendingChoice == nil {
			return
		}
		if in.Index < 0 || in.Index >= len(e.pendingChoice) {
			e.logger.Warn("choice index out of range", "index", in.Index, "options", len(e.pendingChoice))
			return
		}
		arm := e.pendingChoice[in.Index]
		e.pendingChoice = nil
		if top := e.stack.Top(); top != nil {
			top.Advance()
		}
		e.stack.Push(NewFrame(arm.id, arm.body, 0))

	case event.Exit:
		e.stack.Clear()
		e.paused = false
		e.pendingChoice = nil
	}
}

// Step performs exactly one unit of work and reports whether the executor is
// now blocked on input. Script-internal failures (unresolvable jump or call
// targets) are fatal and returned as errors.
func (e *Executor) Step(ctx *runtime.Ctx) (waiting bool, err error) {
	// commands enqueued by script code are applied before any statement
	if done, err := e.processCommands(); done || err != nil {
		return false, err
	}

	if e.pendingChoice != nil || e.paused {
		return true, nil
	}

	top := e.stack.Top()
	if top == nil {
		ctx.Push(event.End{})
		return false, nil
	}

	stmt, ok := top.Current()
	if !ok {
		e.stack.Pop()
		return false, nil
	}

	effect := walkStmt(ctx, e.eval, e.cfg, stmt)
	for _, ev := range effect.events {
		ctx.Push(ev)
	}

	switch effect.next {
	case actContinue:
		top.Advance()
	case actJump:
		if err := e.performJump(effect.target); err != nil {
			return false, err
		}
	case actCall:
		body, ok := e.manager.GetLabel(effect.target)
		if !ok {
			return false, fmt.Errorf("call target %q not found in project", effect.target)
		}
		top.Advance()
		e.stack.Push(NewFrame(effect.target, body, 0))
	case actEnterBlock:
		top.Advance()
		e.stack.Push(NewFrame(effect.id, effect.block, 0))
	case actWaitChoice:
		e.triggerPreload(ctx)
		e.pendingChoice = effect.arms
		return true, nil
	case actWaitInput:
		e.triggerPreload(ctx)
		e.paused = true
		return true, nil
	}
	return false, nil
}

// processCommands drains the evaluator's queue; reports whether any command
// consumed this tick.
func (e *Executor) processCommands() (bool, error) {
	cmds := e.eval.DrainCommands()
	if len(cmds) == 0 {
		return false, nil
	}
	for _, cmd := range cmds {
		switch c := cmd.(type) {
		case scripting.JumpTo:
			e.logger.Info("script jump", "target", c.Target)
			if err := e.performJump(c.Target); err != nil {
				return true, err
			}
		case scripting.PersistGlobals:
			path := e.globalPath()
			if err := storage.SaveGlobal(path, e.eval.ExtractGlobals()); err != nil {
				e.logger.Error("persisting globals failed", "path", path, "err", err)
			}
		}
	}
	return true, nil
}

func (e *Executor) performJump(label string) error {
	body, ok := e.manager.GetLabel(label)
	if !ok {
		return fmt.Errorf("label %q not found in project", label)
	}
	e.stack.Clear()
	e.stack.Push(NewFrame(label, body, 0))
	return nil
}

// triggerPreload scans ahead of the current frame and emits a Preload hint
// when upcoming statements reference loadable assets.
func (e *Executor) triggerPreload(ctx *runtime.Ctx) {
	top := e.stack.Top()
	if top == nil {
		return
	}
	images, audios := scanAhead(top.Stmts, top.PC+1, e.cfg.Graphics.PreloadAhead, ctx)
	if len(images) > 0 || len(audios) > 0 {
		ctx.Push(event.Preload{Images: images, Audios: audios})
	}
}

// Snapshot serializes the call stack bottom-first.
func (e *Executor) Snapshot() []storage.FrameSnapshot {
	frames := e.stack.Frames()
	snap := make([]storage.FrameSnapshot, len(frames))
	for i, f := range frames {
		snap[i] = storage.FrameSnapshot{Label: f.Label, PC: f.PC}
	}
	return snap
}

// Restore rebuilds the call stack from a snapshot, re-resolving every label
// through the index. A missing label or an out-of-range pc means the scripts
// changed since the save was written.
func (e *Executor) Restore(snap []storage.FrameSnapshot) error {
	e.stack.Clear()
	e.pendingChoice = nil
	e.paused = false
	for _, fs := range snap {
		body, ok := e.manager.GetLabel(fs.Label)
		if !ok {
			return fmt.Errorf("%w: block %q no longer exists", storage.ErrSaveMismatch, fs.Label)
		}
		if fs.PC < 0 || fs.PC > len(body) {
			return fmt.Errorf("%w: position %d is outside block %q", storage.ErrSaveMismatch, fs.PC, fs.Label)
		}
		e.stack.Push(NewFrame(fs.Label, body, fs.PC))
	}
	return nil
}

// SyncVarsToCtx copies the evaluator's per-save table into ctx for
// serialization.
func (e *Executor) SyncVarsToCtx(ctx *runtime.Ctx) {
	ctx.Vars = e.eval.ExtractSaveVars()
}

// SyncVarsFromCtx pushes a restored table back into the evaluator.
func (e *Executor) SyncVarsFromCtx(ctx *runtime.Ctx) {
	e.eval.InjectSaveVars(ctx.Vars)
}

// LoadGlobalData seeds the evaluator's session-global table from disk; a
// missing blob is a new game.
func (e *Executor) LoadGlobalData() {
	path := e.globalPath()
	globals, err := storage.LoadGlobal(path)
	if err != nil {
		e.logger.Warn("reading global data failed", "path", path, "err", err)
		return
	}
	if globals == nil {
		e.logger.Info("no global data found (new game)")
		return
	}
	e.eval.InjectGlobals(globals)
	e.logger.Info("global data loaded")
}

func (e *Executor) globalPath() string {
	return filepath.Join(e.cfg.Storage.SaveDir, e.cfg.Storage.GlobalFile)
}
