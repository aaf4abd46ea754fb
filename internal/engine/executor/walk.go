package executor

import (
	"fmt"
	"regexp"

	"vivigo/internal/compiler/ast"
	"vivigo/internal/config"
	"vivigo/internal/engine/event"
	"vivigo/internal/engine/runtime"
	"vivigo/internal/engine/scripting"
	"vivigo/internal/log"
)

// masterLayer is the default sprite layer, present from Start on.
const masterLayer = "master"

type actionKind int

const (
	actContinue actionKind = iota
	actJump
	actCall
	actEnterBlock
	actWaitChoice
	actWaitInput
)

// pendingArm pairs a derived block id with an arm body, ready to become a
// frame once the player picks it.
type pendingArm struct {
	id   string
	body []ast.Stmt
}

// stmtEffect is what executing one statement produced: events in emission
// order plus the control-flow consequence.
type stmtEffect struct {
	events []event.OutputEvent
	next   actionKind

	target string       // actJump, actCall
	id     string       // actEnterBlock
	block  []ast.Stmt   // actEnterBlock
	arms   []pendingArm // actWaitChoice
}

var interpolateRe = regexp.MustCompile(`\{([^}]+)\}`)

// interpolate substitutes every {expr} occurrence with the evaluator's
// string form of expr.
func interpolate(eval scripting.Evaluator, text string) string {
	return interpolateRe.ReplaceAllStringFunc(text, func(m string) string {
		return eval.EvalString(m[1 : len(m)-1])
	})
}

// walkStmt executes one statement against the narrative context. It never
// touches the call stack; stack effects are reported through the action.
func walkStmt(ctx *runtime.Ctx, eval scripting.Evaluator, cfg *config.Config, stmt ast.Stmt) stmtEffect {
	switch s := stmt.(type) {
	case *ast.CharacterDef:
		ctx.Characters[s.ID] = runtime.Character{
			ID:       s.ID,
			Name:     s.Name,
			ImageTag: s.ImageTag,
			VoiceTag: s.VoiceTag,
		}
		return stmtEffect{next: actContinue}

	case *ast.Narration:
		lines := make([]string, len(s.Lines))
		for i, l := range s.Lines {
			lines[i] = interpolate(eval, l)
			ctx.History = append(ctx.History, runtime.DialogueRecord{Text: lines[i]})
		}
		return stmtEffect{
			events: []event.OutputEvent{event.ShowNarration{Lines: lines}},
			next:   actWaitInput,
		}

	case *ast.Dialogue:
		return walkDialogue(ctx, eval, cfg, s)

	case *ast.Audio:
		return walkAudio(ctx, cfg, s)

	case *ast.Scene:
		layer := ctx.Layers.Layer[masterLayer][:0]
		if s.Image != nil {
			layer = append(layer, runtime.Sprite{
				Target: s.Image.Prefix,
				Attrs:  s.Image.Attrs,
				ZIndex: cfg.Graphics.SceneZIndex,
			})
		}
		ctx.Layers.Layer[masterLayer] = layer
		return stmtEffect{
			events: []event.OutputEvent{event.NewScene{Transition: orDefault(s.Transition, cfg.Graphics.DefaultTransition)}},
			next:   actContinue,
		}

	case *ast.Show:
		return walkShow(ctx, cfg, s)

	case *ast.Hide:
		layer := ctx.Layers.Layer[masterLayer]
		for i, sp := range layer {
			if sp.Target == s.Target {
				ctx.Layers.Layer[masterLayer] = append(layer[:i], layer[i+1:]...)
				return stmtEffect{
					events: []event.OutputEvent{event.HideSprite{Target: s.Target, Transition: s.Transition}},
					next:   actContinue,
				}
			}
		}
		return stmtEffect{next: actContinue}

	case *ast.ScriptBlock:
		eval.Run(s.Code)
		return stmtEffect{next: actContinue}

	case *ast.Choice:
		if s.AssignedID == "" {
			panic("choice has no assigned id: AST was not preprocessed by the manager")
		}
		title := s.Title
		if title != "" {
			title = interpolate(eval, title)
		}
		options := make([]string, len(s.Arms))
		arms := make([]pendingArm, len(s.Arms))
		for i, arm := range s.Arms {
			options[i] = interpolate(eval, arm.Text)
			arms[i] = pendingArm{
				id:   fmt.Sprintf("%s_opt%d", s.AssignedID, i),
				body: arm.Body,
			}
		}
		return stmtEffect{
			events: []event.OutputEvent{event.ShowChoice{Title: title, Options: options}},
			next:   actWaitChoice,
			arms:   arms,
		}

	case *ast.If:
		if s.AssignedID == "" {
			panic("if has no assigned id: AST was not preprocessed by the manager")
		}
		for i, br := range s.Branches {
			if eval.EvalBool(br.Cond) {
				return stmtEffect{
					next:  actEnterBlock,
					id:    fmt.Sprintf("%s_b%d", s.AssignedID, i),
					block: br.Body,
				}
			}
		}
		if s.Else != nil {
			return stmtEffect{next: actEnterBlock, id: s.AssignedID + "_else", block: s.Else}
		}
		return stmtEffect{next: actContinue}

	case *ast.Jump:
		return stmtEffect{next: actJump, target: s.Target}

	case *ast.Call:
		return stmtEffect{next: actCall, target: s.Target}

	case *ast.Error:
		log.WithComponent("executor").Warn("skipping error statement", "line", s.Span.Line, "msg", s.Msg)
		return stmtEffect{next: actContinue}

	default:
		return stmtEffect{next: actContinue}
	}
}

func walkDialogue(ctx *runtime.Ctx, eval scripting.Evaluator, cfg *config.Config, s *ast.Dialogue) stmtEffect {
	var events []event.OutputEvent

	name := s.Speaker.Name
	voicePath := ""
	if ch, ok := ctx.Characters[name]; ok {
		name = ch.Name
		if s.VoiceIndex != "" && ch.VoiceTag != "" {
			voicePath = ch.VoiceTag + cfg.Audio.VoiceLink + s.VoiceIndex
		}
	}
	if s.Speaker.Alias != "" {
		name = s.Speaker.Alias
	}

	if voicePath != "" {
		ctx.Audios["voice"] = &runtime.Audio{
			Path:   voicePath,
			Volume: cfg.Audio.VoiceVolume,
		}
		events = append(events, event.PlayAudio{
			Channel: "voice",
			Path:    voicePath,
			Volume:  cfg.Audio.VoiceVolume,
		})
	}

	text := interpolate(eval, s.Text)
	ctx.History = append(ctx.History, runtime.DialogueRecord{
		Speaker:   name,
		Text:      text,
		VoicePath: voicePath,
	})
	events = append(events, event.ShowDialogue{Name: name, Content: text})

	return stmtEffect{events: events, next: actWaitInput}
}

func walkAudio(ctx *runtime.Ctx, cfg *config.Config, s *ast.Audio) stmtEffect {
	logger := log.WithComponent("executor")
	if _, ok := ctx.Audios[s.Channel]; !ok {
		logger.Error("audio channel is not registered", "channel", s.Channel)
	}

	if s.Action == ast.AudioPlay {
		volume := channelVolume(cfg, s.Channel)
		if s.Options.Volume != nil {
			volume = *s.Options.Volume
		}
		fadeIn := cfg.Audio.FadeIn
		if s.Options.FadeIn != nil {
			fadeIn = *s.Options.FadeIn
		}
		fadeOut := cfg.Audio.FadeOut
		if s.Options.FadeOut != nil {
			fadeOut = *s.Options.FadeOut
		}
		ctx.Audios[s.Channel] = &runtime.Audio{
			Path:    s.Resource,
			Volume:  volume,
			FadeIn:  fadeIn,
			FadeOut: fadeOut,
			Looping: s.Options.Loop,
		}
		return stmtEffect{
			events: []event.OutputEvent{event.PlayAudio{
				Channel: s.Channel,
				Path:    s.Resource,
				FadeIn:  fadeIn,
				Volume:  volume,
				Looping: s.Options.Loop,
			}},
			next: actContinue,
		}
	}

	// stop: fall back to the channel's own fade-out, clamping to zero when
	// the channel is already silent
	fadeOut := 0.0
	if s.Options.FadeOut != nil {
		fadeOut = *s.Options.FadeOut
	} else if a := ctx.Audios[s.Channel]; a != nil {
		fadeOut = a.FadeOut
	}
	ctx.Audios[s.Channel] = nil
	return stmtEffect{
		events: []event.OutputEvent{event.StopAudio{Channel: s.Channel, FadeOut: fadeOut}},
		next:   actContinue,
	}
}

func walkShow(ctx *runtime.Ctx, cfg *config.Config, s *ast.Show) stmtEffect {
	layer := ctx.Layers.Layer[masterLayer]
	transition := orDefault(s.Transition, cfg.Graphics.DefaultTransition)

	for i := range layer {
		if layer[i].Target != s.Target {
			continue
		}
		sp := &layer[i]
		for _, attr := range s.Attrs {
			switch attr.Op {
			case ast.AttrAdd:
				// the newest tag replaces the previous one
				if len(sp.Attrs) > 0 {
					sp.Attrs = sp.Attrs[:len(sp.Attrs)-1]
				}
				sp.Attrs = append(sp.Attrs, attr.Tag)
			case ast.AttrRemove:
				if len(sp.Attrs) > 0 && sp.Attrs[len(sp.Attrs)-1] == attr.Tag {
					sp.Attrs = sp.Attrs[:len(sp.Attrs)-1]
				}
			}
		}
		if s.Position != "" {
			sp.Position = s.Position
		}
		return stmtEffect{
			events: []event.OutputEvent{event.UpdateSprite{Target: s.Target, Transition: transition}},
			next:   actContinue,
		}
	}

	var attrs []string
	for _, attr := range s.Attrs {
		if attr.Op == ast.AttrAdd {
			attrs = append(attrs, attr.Tag)
		}
	}
	ctx.Layers.Layer[masterLayer] = append(layer, runtime.Sprite{
		Target:   s.Target,
		Attrs:    attrs,
		Position: s.Position,
		ZIndex:   cfg.Graphics.SpriteZIndex,
	})
	return stmtEffect{
		events: []event.OutputEvent{event.NewSprite{Target: s.Target, Transition: transition}},
		next:   actContinue,
	}
}

func channelVolume(cfg *config.Config, channel string) float64 {
	switch channel {
	case "music":
		return cfg.Audio.MusicVolume
	case "voice":
		return cfg.Audio.VoiceVolume
	default:
		return cfg.Audio.DefaultVolume
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
