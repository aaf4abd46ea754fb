package ast

import "vivigo/internal/compiler/token"

// Node is the base interface for all AST nodes
type Node interface {
	TokenLiteral() string
}

// Stmt is a single viviscript statement. Every statement carries the source
// position of its introducing token for diagnostics.
type Stmt interface {
	Node
	Pos() token.Position
	statementNode()
}

// Script is the root node representing one parsed .vivi file
type Script struct {
	Body []Stmt
}

func (s *Script) TokenLiteral() string { return "script" }

// CharacterDef: character alice name=Alice image_tag=alice voice_tag=al
type CharacterDef struct {
	Span     token.Position
	ID       string
	Name     string
	ImageTag string
	VoiceTag string
}

func (c *CharacterDef) TokenLiteral() string { return "character" }
func (c *CharacterDef) Pos() token.Position  { return c.Span }
func (c *CharacterDef) statementNode()       {}

// Label: a named statement sequence, the unit of jumps and calls
type Label struct {
	Span token.Position
	ID   string
	Body []Stmt
}

func (l *Label) TokenLiteral() string { return "label" }
func (l *Label) Pos() token.Position  { return l.Span }
func (l *Label) statementNode()       {}

// ChoiceArm is one menu option; the grammar admits exactly one statement per
// arm (multi-statement arms are modeled as calls to labels).
type ChoiceArm struct {
	Text string
	Body []Stmt
}

// Choice: a menu. AssignedID is empty until manager preprocessing runs.
type Choice struct {
	Span       token.Position
	Title      string
	Arms       []ChoiceArm
	AssignedID string
}

func (c *Choice) TokenLiteral() string { return "choice" }
func (c *Choice) Pos() token.Position  { return c.Span }
func (c *Choice) statementNode()       {}

// IfBranch pairs a raw condition source with its body.
type IfBranch struct {
	Cond string
	Body []Stmt
}

// If: conditional branching. Conditions are opaque to the compiler and
// evaluated by the expression evaluator at runtime.
type If struct {
	Span       token.Position
	Branches   []IfBranch
	Else       []Stmt
	AssignedID string
}

func (i *If) TokenLiteral() string { return "if" }
func (i *If) Pos() token.Position  { return i.Span }
func (i *If) statementNode()       {}

// Jump: transfer control to a label, clearing the call stack
type Jump struct {
	Span   token.Position
	Target string
}

func (j *Jump) TokenLiteral() string { return "jump" }
func (j *Jump) Pos() token.Position  { return j.Span }
func (j *Jump) statementNode()       {}

// Call: enter a label, returning here when it falls off the end
type Call struct {
	Span   token.Position
	Target string
}

func (c *Call) TokenLiteral() string { return "call" }
func (c *Call) Pos() token.Position  { return c.Span }
func (c *Call) statementNode()       {}

// ScriptBlock: raw embedded-script source, run by the evaluator
type ScriptBlock struct {
	Span token.Position
	Code string
}

func (s *ScriptBlock) TokenLiteral() string { return "lua" }
func (s *ScriptBlock) Pos() token.Position  { return s.Span }
func (s *ScriptBlock) statementNode()       {}

// Speaker identifies who says a dialogue line; Alias overrides the display
// name for this line only.
type Speaker struct {
	Name  string
	Alias string
}

// Dialogue: alice: "text" or alice@Stranger: "text (3)"
type Dialogue struct {
	Span       token.Position
	Speaker    Speaker
	Text       string
	VoiceIndex string
}

func (d *Dialogue) TokenLiteral() string { return d.Speaker.Name }
func (d *Dialogue) Pos() token.Position  { return d.Span }
func (d *Dialogue) statementNode()       {}

// Narration: :"text". Multi-line literals hold one entry per line until the
// manager's splitting pass explodes them.
type Narration struct {
	Span  token.Position
	Lines []string
}

func (n *Narration) TokenLiteral() string { return ":" }
func (n *Narration) Pos() token.Position  { return n.Span }
func (n *Narration) statementNode()       {}

type AudioAction int

const (
	AudioPlay AudioAction = iota
	AudioStop
)

// AudioOptions carries the optional play/stop parameters; nil means "not
// given": play falls back to the configured defaults, stop to the channel's
// own fade-out (zero when the channel is silent).
type AudioOptions struct {
	Volume  *float64
	FadeIn  *float64
	FadeOut *float64
	Loop    bool
}

// Audio: play music bgm1 volume=0.5 loop / stop music fade_out=1.0
type Audio struct {
	Span     token.Position
	Action   AudioAction
	Channel  string
	Resource string
	Options  AudioOptions
}

func (a *Audio) TokenLiteral() string {
	if a.Action == AudioPlay {
		return "play"
	}
	return "stop"
}
func (a *Audio) Pos() token.Position { return a.Span }
func (a *Audio) statementNode()      {}

type AttrOp int

const (
	AttrAdd AttrOp = iota
	AttrRemove
)

// ShowAttr is a single sprite tag operation: `tag` adds, `-tag` removes.
type ShowAttr struct {
	Op  AttrOp
	Tag string
}

// Show: show alice smile at left with dissolve
type Show struct {
	Span       token.Position
	Target     string
	Attrs      []ShowAttr
	Position   string
	Transition string
}

func (s *Show) TokenLiteral() string { return "show" }
func (s *Show) Pos() token.Position  { return s.Span }
func (s *Show) statementNode()       {}

// Hide: hide alice with fade
type Hide struct {
	Span       token.Position
	Target     string
	Transition string
}

func (h *Hide) TokenLiteral() string { return "hide" }
func (h *Hide) Pos() token.Position  { return h.Span }
func (h *Hide) statementNode()       {}

// SceneImage names the backdrop: an identifier prefix plus attribute words.
type SceneImage struct {
	Prefix string
	Attrs  []string
}

// Scene: scene bg beach with dissolve. A bare `scene` clears the stage.
type Scene struct {
	Span       token.Position
	Image      *SceneImage
	Transition string
}

func (s *Scene) TokenLiteral() string { return "scene" }
func (s *Scene) Pos() token.Position  { return s.Span }
func (s *Scene) statementNode()       {}

// Error is produced by parser recovery; it is carried in the AST for span
// bookkeeping and skipped by the executor.
type Error struct {
	Span token.Position
	Msg  string
}

func (e *Error) TokenLiteral() string { return "error" }
func (e *Error) Pos() token.Position  { return e.Span }
func (e *Error) statementNode()       {}
