package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOne(t *testing.T, src string) Command {
	t.Helper()
	s, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, s.Commands, 1)
	return s.Commands[0]
}

func simple(t *testing.T, src string) *SimpleCommand {
	t.Helper()
	cmd, ok := parseOne(t, src).(*SimpleCommand)
	require.True(t, ok, "expected simple command, got %T", parseOne(t, src))
	return cmd
}

func TestSimpleCommand(t *testing.T) {
	cmd := simple(t, "echo hello world")
	name, _ := cmd.Name.Literal()
	assert.Equal(t, "echo", name)
	require.Len(t, cmd.Args, 2)
	a0, _ := cmd.Args[0].Literal()
	a1, _ := cmd.Args[1].Literal()
	assert.Equal(t, "hello", a0)
	assert.Equal(t, "world", a1)
}

func TestQuoting(t *testing.T) {
	cmd := simple(t, `echo 'single $x' "double $x" esc\ aped`)
	require.Len(t, cmd.Args, 3)

	lit := cmd.Args[0].Parts[0].(LitPart)
	assert.Equal(t, "single $x", lit.Text)
	assert.True(t, lit.Quoted)

	parts := cmd.Args[1].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "double ", parts[0].(LitPart).Text)
	assert.True(t, parts[0].(LitPart).Quoted)
	param := parts[1].(ParamPart)
	assert.Equal(t, "x", param.Name)
	assert.True(t, param.Quoted)

	parts = cmd.Args[2].Parts
	require.Len(t, parts, 3)
	assert.Equal(t, "esc", parts[0].(LitPart).Text)
	assert.Equal(t, " ", parts[1].(LitPart).Text)
	assert.True(t, parts[1].(LitPart).Quoted)
	assert.Equal(t, "aped", parts[2].(LitPart).Text)
}

func TestEmptyQuotes(t *testing.T) {
	cmd := simple(t, `echo ""`)
	require.Len(t, cmd.Args, 1)
	lit := cmd.Args[0].Parts[0].(LitPart)
	assert.Equal(t, "", lit.Text)
	assert.True(t, lit.Quoted)
}

func TestComments(t *testing.T) {
	s, err := Parse("echo one # trailing comment\n# whole line\necho two")
	require.NoError(t, err)
	assert.Len(t, s.Commands, 2)
}

func TestPipeline(t *testing.T) {
	pl, ok := parseOne(t, "cat f | grep x | wc -l").(*Pipeline)
	require.True(t, ok)
	assert.Len(t, pl.Commands, 3)
	assert.False(t, pl.Negate)
}

func TestNegatedPipeline(t *testing.T) {
	pl, ok := parseOne(t, "! grep x f").(*Pipeline)
	require.True(t, ok)
	assert.True(t, pl.Negate)
	assert.Len(t, pl.Commands, 1)
}

func TestAndOrChain(t *testing.T) {
	ao, ok := parseOne(t, "true && echo yes || echo no").(*AndOr)
	require.True(t, ok)
	require.Len(t, ao.Pipelines, 3)
	assert.Equal(t, []ListOp{OpAnd, OpOr}, ao.Ops)
}

func TestSequence(t *testing.T) {
	s, err := Parse("echo a; echo b\necho c")
	require.NoError(t, err)
	assert.Len(t, s.Commands, 3)
}

func TestRedirects(t *testing.T) {
	cmd := simple(t, "cmd < in.txt > out.txt 2> err.txt 2>&1 >> log.txt")
	require.Len(t, cmd.Redirects, 5)
	assert.Equal(t, RedirIn, cmd.Redirects[0].Kind)
	assert.Equal(t, RedirOut, cmd.Redirects[1].Kind)
	assert.Equal(t, RedirErrOut, cmd.Redirects[2].Kind)
	assert.Equal(t, RedirErrToOut, cmd.Redirects[3].Kind)
	assert.Equal(t, RedirAppend, cmd.Redirects[4].Kind)
	tgt, _ := cmd.Redirects[0].Target.Literal()
	assert.Equal(t, "in.txt", tgt)
}

func TestHereDoc(t *testing.T) {
	cmd := simple(t, "cat <<EOF\nline one\nline $two\nEOF\n")
	require.Len(t, cmd.Redirects, 1)
	r := cmd.Redirects[0]
	assert.Equal(t, RedirHereDoc, r.Kind)
	assert.Equal(t, "line one\nline $two\n", r.Body)
	assert.True(t, r.Expand)
}

func TestHereDocQuotedDelim(t *testing.T) {
	cmd := simple(t, "cat <<'EOF'\n$x stays\nEOF\n")
	require.Len(t, cmd.Redirects, 1)
	assert.False(t, cmd.Redirects[0].Expand)
	assert.Equal(t, "$x stays\n", cmd.Redirects[0].Body)
}

func TestHereDocStripTabs(t *testing.T) {
	cmd := simple(t, "cat <<-EOF\n\tindented\n\tEOF\n")
	require.Len(t, cmd.Redirects, 1)
	assert.Equal(t, "indented\n", cmd.Redirects[0].Body)
}

func TestHereString(t *testing.T) {
	cmd := simple(t, "cat <<< hello")
	require.Len(t, cmd.Redirects, 1)
	assert.Equal(t, RedirHereStr, cmd.Redirects[0].Kind)
}

func TestIfElifElse(t *testing.T) {
	node, ok := parseOne(t, "if a; then b; elif c; then d; else e; fi").(*If)
	require.True(t, ok)
	assert.Len(t, node.Cond, 1)
	assert.Len(t, node.Then, 1)
	require.Len(t, node.Elifs, 1)
	assert.Len(t, node.Else, 1)
}

func TestForLoop(t *testing.T) {
	node, ok := parseOne(t, "for f in a b c; do echo $f; done").(*For)
	require.True(t, ok)
	assert.Equal(t, "f", node.Var)
	assert.True(t, node.HasIn)
	assert.Len(t, node.Words, 3)
	assert.Len(t, node.Body, 1)
}

func TestForWithoutIn(t *testing.T) {
	node, ok := parseOne(t, "for arg; do echo $arg; done").(*For)
	require.True(t, ok)
	assert.False(t, node.HasIn)
	assert.Empty(t, node.Words)
}

func TestWhileUntil(t *testing.T) {
	w, ok := parseOne(t, "while true; do echo x; done").(*While)
	require.True(t, ok)
	assert.False(t, w.Until)

	u, ok := parseOne(t, "until false; do echo x; done").(*While)
	require.True(t, ok)
	assert.True(t, u.Until)
}

func TestCase(t *testing.T) {
	src := `case $x in
  a|b) echo ab ;;
  *) echo other ;;
esac`
	node, ok := parseOne(t, src).(*Case)
	require.True(t, ok)
	require.Len(t, node.Items, 2)
	assert.Len(t, node.Items[0].Patterns, 2)
	assert.Len(t, node.Items[1].Patterns, 1)
}

func TestFunctionForms(t *testing.T) {
	fd, ok := parseOne(t, "greet() { echo hi; }").(*FuncDef)
	require.True(t, ok)
	assert.Equal(t, "greet", fd.Name)
	_, isGroup := fd.Body.(*BraceGroup)
	assert.True(t, isGroup)

	fd, ok = parseOne(t, "function greet { echo hi; }").(*FuncDef)
	require.True(t, ok)
	assert.Equal(t, "greet", fd.Name)
}

func TestSubshellAndBraceGroup(t *testing.T) {
	sub, ok := parseOne(t, "(cd /tmp; pwd)").(*Subshell)
	require.True(t, ok)
	assert.Len(t, sub.Body, 2)

	grp, ok := parseOne(t, "{ echo a; echo b; }").(*BraceGroup)
	require.True(t, ok)
	assert.Len(t, grp.Body, 2)
}

func TestAssignments(t *testing.T) {
	cmd := simple(t, "X=1 Y=hello cmd arg")
	require.Len(t, cmd.Assignments, 2)
	assert.Equal(t, "X", cmd.Assignments[0].Name)
	assert.Equal(t, "Y", cmd.Assignments[1].Name)
	name, _ := cmd.Name.Literal()
	assert.Equal(t, "cmd", name)
}

func TestArrayAssignment(t *testing.T) {
	cmd := simple(t, "arr=(one two three)")
	require.Len(t, cmd.Assignments, 1)
	a := cmd.Assignments[0]
	assert.True(t, a.IsArr)
	assert.Len(t, a.Array, 3)
}

func TestIndexedAssignment(t *testing.T) {
	cmd := simple(t, "arr[2]=value")
	require.Len(t, cmd.Assignments, 1)
	assert.Equal(t, "arr", cmd.Assignments[0].Name)
	assert.Equal(t, "2", cmd.Assignments[0].Index)
}

func TestParamExpansionOps(t *testing.T) {
	tests := []struct {
		src string
		op  ParamOp
		arg string
	}{
		{"echo ${x:-def}", OpDefault, "def"},
		{"echo ${x:=def}", OpAssign, "def"},
		{"echo ${x:?msg}", OpError, "msg"},
		{"echo ${x:+alt}", OpAlternate, "alt"},
		{"echo ${x#pre}", OpPrefixShort, "pre"},
		{"echo ${x##pre}", OpPrefixLong, "pre"},
		{"echo ${x%suf}", OpSuffixShort, "suf"},
		{"echo ${x%%suf}", OpSuffixLong, "suf"},
	}
	for _, tt := range tests {
		cmd := simple(t, tt.src)
		p := cmd.Args[0].Parts[0].(ParamPart)
		assert.Equal(t, "x", p.Name, tt.src)
		assert.Equal(t, tt.op, p.Op, tt.src)
		assert.Equal(t, tt.arg, p.Arg, tt.src)
		assert.False(t, p.UnsetOnly, tt.src)
	}
}

func TestParamColonlessOps(t *testing.T) {
	tests := []struct {
		src string
		op  ParamOp
		arg string
	}{
		{"echo ${x-def}", OpDefault, "def"},
		{"echo ${x=def}", OpAssign, "def"},
		{"echo ${x?msg}", OpError, "msg"},
		{"echo ${x+alt}", OpAlternate, "alt"},
	}
	for _, tt := range tests {
		cmd := simple(t, tt.src)
		p := cmd.Args[0].Parts[0].(ParamPart)
		assert.Equal(t, "x", p.Name, tt.src)
		assert.Equal(t, tt.op, p.Op, tt.src)
		assert.Equal(t, tt.arg, p.Arg, tt.src)
		assert.True(t, p.UnsetOnly, tt.src)
	}
}

func TestParamLength(t *testing.T) {
	cmd := simple(t, "echo ${#name}")
	p := cmd.Args[0].Parts[0].(ParamPart)
	assert.True(t, p.Length)
	assert.Equal(t, "name", p.Name)
}

func TestArraySubscript(t *testing.T) {
	cmd := simple(t, "echo ${arr[1]} ${arr[@]} ${#arr[@]}")
	p0 := cmd.Args[0].Parts[0].(ParamPart)
	assert.Equal(t, "arr", p0.Name)
	assert.Equal(t, "1", p0.Index)
	p1 := cmd.Args[1].Parts[0].(ParamPart)
	assert.Equal(t, "@", p1.Index)
	p2 := cmd.Args[2].Parts[0].(ParamPart)
	assert.True(t, p2.Length)
	assert.Equal(t, "@", p2.Index)
}

func TestSpecialParams(t *testing.T) {
	cmd := simple(t, `echo $? $# $@ "$*" $1 $0`)
	names := []string{"?", "#", "@", "*", "1", "0"}
	for i, want := range names {
		p := cmd.Args[i].Parts[0].(ParamPart)
		assert.Equal(t, want, p.Name)
	}
}

func TestCommandSubstitution(t *testing.T) {
	cmd := simple(t, "echo $(ls /tmp) `date`")
	cs := cmd.Args[0].Parts[0].(CmdSubPart)
	assert.Equal(t, "ls /tmp", cs.Script)
	bt := cmd.Args[1].Parts[0].(CmdSubPart)
	assert.Equal(t, "date", bt.Script)
}

func TestNestedCommandSubstitution(t *testing.T) {
	cmd := simple(t, "echo $(echo $(echo deep))")
	cs := cmd.Args[0].Parts[0].(CmdSubPart)
	assert.Equal(t, "echo $(echo deep)", cs.Script)
}

func TestArithmeticExpansion(t *testing.T) {
	cmd := simple(t, "echo $(( (1+2) * 3 ))")
	ar := cmd.Args[0].Parts[0].(ArithPart)
	assert.Equal(t, " (1+2) * 3 ", ar.Expr)
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"echo 'unterminated",
		`echo "unterminated`,
		"if true; then echo hi",
		"for do done",
		"cat <<EOF\nno terminator",
		"case x in a) echo ;;",
		"echo |",
		"| echo",
	}
	for _, src := range tests {
		_, err := Parse(src)
		assert.Error(t, err, "source: %s", src)
		if err != nil {
			var perr *ParseError
			assert.ErrorAs(t, err, &perr, "source: %s", src)
		}
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse("echo ok\necho 'oops")
	require.Error(t, err)
	perr, ok := err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, 2, perr.Line)
}

func TestKeywordsAsArguments(t *testing.T) {
	cmd := simple(t, "echo if then fi")
	assert.Len(t, cmd.Args, 3)
}

func TestLineContinuation(t *testing.T) {
	cmd := simple(t, "echo one \\\n two")
	assert.Len(t, cmd.Args, 2)
}
