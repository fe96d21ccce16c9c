package parser

import "strings"

// Script is a parsed program: a sequence of statements executed in order.
type Script struct {
	Commands []Command
}

// Command is any executable node.
type Command interface {
	isCommand()
}

// Word is one shell word, a concatenation of parts that expand and then
// join into zero or more fields.
type Word struct {
	Parts []WordPart
}

// Literal returns the word's text when it consists solely of unquoted
// literal parts. Used to recognize reserved words and assignment names.
func (w *Word) Literal() (string, bool) {
	var b strings.Builder
	for _, p := range w.Parts {
		lit, ok := p.(LitPart)
		if !ok || lit.Quoted {
			return "", false
		}
		b.WriteString(lit.Text)
	}
	return b.String(), true
}

// Raw returns the word's text with all parts flattened literally,
// expansions rendered back as source. Used for error messages.
func (w *Word) Raw() string {
	var b strings.Builder
	for _, p := range w.Parts {
		switch v := p.(type) {
		case LitPart:
			b.WriteString(v.Text)
		case ParamPart:
			b.WriteString("${" + v.Name + "}")
		case CmdSubPart:
			b.WriteString("$(" + v.Script + ")")
		case ArithPart:
			b.WriteString("$((" + v.Expr + "))")
		}
	}
	return b.String()
}

// WordPart is one segment of a word.
type WordPart interface {
	isWordPart()
}

// LitPart is literal text. Quoted parts are exempt from field splitting
// and glob expansion.
type LitPart struct {
	Text   string
	Quoted bool
}

// ParamOp selects the ${name...} expansion operator.
type ParamOp int

const (
	OpNone       ParamOp = iota
	OpDefault            // ${name:-word}
	OpAssign             // ${name:=word}
	OpError              // ${name:?word}
	OpAlternate          // ${name:+word}
	OpPrefixShort        // ${name#pat}
	OpPrefixLong         // ${name##pat}
	OpSuffixShort        // ${name%pat}
	OpSuffixLong         // ${name%%pat}
)

// ParamPart is a parameter expansion. Name may be a variable name, a
// positional digit string, or a special parameter (?, #, @, *, $, 0).
// Index holds an array subscript when present ("@", "*", or an
// arithmetic expression). Arg is the raw operator operand, expanded at
// evaluation time.
type ParamPart struct {
	Name      string
	Index     string
	Op        ParamOp
	Arg       string
	Length    bool // ${#name} or ${#name[@]}
	UnsetOnly bool // colon-less ${name-word} forms test unset, not unset-or-empty
	Quoted    bool
}

// CmdSubPart is $(...) or `...`. The inner script is kept as source and
// parsed when the substitution runs.
type CmdSubPart struct {
	Script string
	Quoted bool
}

// ArithPart is $((...)).
type ArithPart struct {
	Expr   string
	Quoted bool
}

func (LitPart) isWordPart()    {}
func (ParamPart) isWordPart()  {}
func (CmdSubPart) isWordPart() {}
func (ArithPart) isWordPart()  {}

// RedirKind enumerates redirection operators.
type RedirKind int

const (
	RedirOut      RedirKind = iota // >
	RedirAppend                    // >>
	RedirIn                        // <
	RedirHereDoc                   // << and <<-
	RedirHereStr                   // <<<
	RedirErrOut                    // 2>
	RedirErrAppend                 // 2>>
	RedirErrToOut                  // 2>&1
	RedirOutToErr                  // >&2
)

// Redirect is one redirection attached to a command. Target is the
// file name word, the here-string word, or the heredoc delimiter.
// Body holds heredoc content; Expand is false when the delimiter was
// quoted.
type Redirect struct {
	Kind   RedirKind
	Target *Word
	Body   string
	Expand bool
}

// Assignment is NAME=value or NAME[index]=value. Array assignments
// carry the element words instead of Value.
type Assignment struct {
	Name  string
	Index string // subscript source, empty for scalar
	Value *Word
	Array []*Word // NAME=(a b c)
	IsArr bool
}

// SimpleCommand is assignments, an optional command name with
// arguments, and redirections.
type SimpleCommand struct {
	Assignments []Assignment
	Name        *Word
	Args        []*Word
	Redirects   []Redirect
}

// Pipeline is commands joined by |. Negate reflects a leading !.
type Pipeline struct {
	Commands []Command
	Negate   bool
}

// ListOp joins pipelines in an AndOr chain.
type ListOp int

const (
	OpAnd ListOp = iota // &&
	OpOr                // ||
)

// AndOr is a pipeline sequence joined by && and ||. Ops[i] joins
// Pipelines[i] and Pipelines[i+1].
type AndOr struct {
	Pipelines []Command
	Ops       []ListOp
}

// Elif is one elif branch.
type Elif struct {
	Cond []Command
	Then []Command
}

// If is if/elif/else/fi.
type If struct {
	Cond      []Command
	Then      []Command
	Elifs     []Elif
	Else      []Command
	Redirects []Redirect
}

// For is for name in words; do body; done. Words nil means iterate
// over the positional parameters.
type For struct {
	Var       string
	Words     []*Word
	HasIn     bool
	Body      []Command
	Redirects []Redirect
}

// While is while/until cond; do body; done.
type While struct {
	Cond      []Command
	Body      []Command
	Until     bool
	Redirects []Redirect
}

// CaseItem is one pattern list and its body.
type CaseItem struct {
	Patterns []*Word
	Body     []Command
}

// Case is case word in ... esac.
type Case struct {
	Word      *Word
	Items     []CaseItem
	Redirects []Redirect
}

// FuncDef is name() { body } or function name { body }.
type FuncDef struct {
	Name string
	Body Command
}

// Subshell is ( body ). Execution is isolated from the caller's
// variable scope.
type Subshell struct {
	Body      []Command
	Redirects []Redirect
}

// BraceGroup is { body; }.
type BraceGroup struct {
	Body      []Command
	Redirects []Redirect
}

func (*SimpleCommand) isCommand() {}
func (*Pipeline) isCommand()      {}
func (*AndOr) isCommand()         {}
func (*If) isCommand()            {}
func (*For) isCommand()           {}
func (*While) isCommand()         {}
func (*Case) isCommand()          {}
func (*FuncDef) isCommand()       {}
func (*Subshell) isCommand()      {}
func (*BraceGroup) isCommand()    {}
