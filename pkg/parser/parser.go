package parser

import "strings"

// Parse tokenizes and parses src into a Script.
func Parse(src string) (*Script, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.parseScript()
}

type parser struct {
	toks []Token
	pos  int
}

func (p *parser) cur() Token {
	if p.pos >= len(p.toks) {
		return Token{Kind: TEOF}
	}
	return p.toks[p.pos]
}

func (p *parser) advance() Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) errHere(msg string) error {
	t := p.cur()
	return &ParseError{Line: t.Line, Col: t.Col, Msg: msg}
}

// curKeyword returns the reserved word at the cursor, if any.
func (p *parser) curKeyword() string {
	t := p.cur()
	if t.Kind != TWord {
		return ""
	}
	lit, ok := t.Word.Literal()
	if !ok {
		return ""
	}
	switch lit {
	case "if", "then", "elif", "else", "fi", "for", "while", "until",
		"do", "done", "case", "esac", "in", "function", "{", "}", "!":
		return lit
	}
	return ""
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.curKeyword() == kw {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return p.errHere("expected '" + kw + "', found " + p.cur().kindString())
	}
	return nil
}

func (p *parser) skipNewlines() {
	for p.cur().Kind == TNewline {
		p.pos++
	}
}

func (p *parser) skipSeparators() {
	for {
		switch p.cur().Kind {
		case TNewline, TSemi, TAmp:
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) parseScript() (*Script, error) {
	s := &Script{}
	p.skipSeparators()
	for p.cur().Kind != TEOF {
		cmd, err := p.parseAndOr()
		if err != nil {
			return nil, err
		}
		s.Commands = append(s.Commands, cmd)
		switch p.cur().Kind {
		case TSemi, TAmp, TNewline:
			p.skipSeparators()
		case TEOF:
		default:
			return nil, p.errHere("unexpected " + p.cur().kindString())
		}
	}
	return s, nil
}

// parseCommandList parses statements until one of the given reserved
// words appears in command position, leaving the terminator in place.
// It also stops at ')' and ';;' for subshell and case item bodies.
func (p *parser) parseCommandList(terminators ...string) ([]Command, error) {
	var cmds []Command
	for {
		p.skipSeparators()
		switch p.cur().Kind {
		case TEOF, TRParen, TDSemi:
			return cmds, nil
		}
		if kw := p.curKeyword(); kw != "" && kw != "!" && kw != "{" {
			for _, t := range terminators {
				if kw == t {
					return cmds, nil
				}
			}
			if !isCommandStart(kw) {
				return nil, p.errHere("unexpected '" + kw + "'")
			}
		}
		cmd, err := p.parseAndOr()
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
		switch p.cur().Kind {
		case TSemi, TAmp, TNewline:
			p.skipSeparators()
		case TEOF, TRParen, TDSemi:
		default:
			if p.curKeyword() == "" {
				return nil, p.errHere("unexpected " + p.cur().kindString())
			}
		}
	}
}

func isCommandStart(kw string) bool {
	switch kw {
	case "if", "for", "while", "until", "case", "function", "{", "!":
		return true
	}
	return false
}

func (p *parser) parseAndOr() (Command, error) {
	first, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}
	ao := &AndOr{Pipelines: []Command{first}}
	for {
		var op ListOp
		switch p.cur().Kind {
		case TAnd:
			op = OpAnd
		case TOr:
			op = OpOr
		default:
			if len(ao.Pipelines) == 1 {
				return first, nil
			}
			return ao, nil
		}
		p.advance()
		p.skipNewlines()
		next, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		ao.Ops = append(ao.Ops, op)
		ao.Pipelines = append(ao.Pipelines, next)
	}
}

func (p *parser) parsePipeline() (Command, error) {
	negate := p.acceptKeyword("!")
	first, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	pl := &Pipeline{Commands: []Command{first}, Negate: negate}
	for p.cur().Kind == TPipe {
		p.advance()
		p.skipNewlines()
		next, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		pl.Commands = append(pl.Commands, next)
	}
	if len(pl.Commands) == 1 && !negate {
		return first, nil
	}
	return pl, nil
}

func (p *parser) parseCommand() (Command, error) {
	switch p.cur().Kind {
	case TLParen:
		return p.parseSubshell()
	case TWord:
		switch p.curKeyword() {
		case "if":
			return p.parseIf()
		case "for":
			return p.parseFor()
		case "while":
			return p.parseWhileUntil(false)
		case "until":
			return p.parseWhileUntil(true)
		case "case":
			return p.parseCase()
		case "{":
			return p.parseBraceGroup()
		case "function":
			return p.parseFunction()
		}
		// name() { ... } function definition.
		if lit, ok := p.cur().Word.Literal(); ok && isValidName(lit) &&
			p.peekKind(1) == TLParen && p.peekKind(2) == TRParen {
			return p.parseFuncBody(lit, 3)
		}
		return p.parseSimple()
	default:
		if isRedirToken(p.cur().Kind) {
			return p.parseSimple()
		}
		return nil, p.errHere("unexpected " + p.cur().kindString())
	}
}

func (p *parser) peekKind(off int) TokenKind {
	if p.pos+off >= len(p.toks) {
		return TEOF
	}
	return p.toks[p.pos+off].Kind
}

func isValidName(s string) bool {
	if s == "" || !isNameStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isNameChar(s[i]) {
			return false
		}
	}
	return true
}

func (p *parser) parseFunction() (Command, error) {
	p.advance() // function
	t := p.cur()
	if t.Kind != TWord {
		return nil, p.errHere("expected function name")
	}
	name, ok := t.Word.Literal()
	if !ok || !isValidName(name) {
		return nil, p.errHere("invalid function name")
	}
	skip := 1
	if p.peekKind(1) == TLParen && p.peekKind(2) == TRParen {
		skip = 3
	}
	return p.parseFuncBody(name, skip)
}

func (p *parser) parseFuncBody(name string, skip int) (Command, error) {
	p.pos += skip
	p.skipNewlines()
	body, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	return &FuncDef{Name: name, Body: body}, nil
}

func (p *parser) parseSubshell() (Command, error) {
	p.advance() // (
	body, err := p.parseCommandList()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != TRParen {
		return nil, p.errHere("expected ')', found " + p.cur().kindString())
	}
	p.advance()
	sub := &Subshell{Body: body}
	if err := p.parseRedirects(&sub.Redirects); err != nil {
		return nil, err
	}
	return sub, nil
}

func (p *parser) parseBraceGroup() (Command, error) {
	p.advance() // {
	body, err := p.parseCommandList("}")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("}"); err != nil {
		return nil, err
	}
	grp := &BraceGroup{Body: body}
	if err := p.parseRedirects(&grp.Redirects); err != nil {
		return nil, err
	}
	return grp, nil
}

func (p *parser) parseIf() (Command, error) {
	p.advance() // if
	cond, err := p.parseCommandList("then")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("then"); err != nil {
		return nil, err
	}
	then, err := p.parseCommandList("elif", "else", "fi")
	if err != nil {
		return nil, err
	}
	node := &If{Cond: cond, Then: then}
	for p.curKeyword() == "elif" {
		p.advance()
		ec, err := p.parseCommandList("then")
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("then"); err != nil {
			return nil, err
		}
		et, err := p.parseCommandList("elif", "else", "fi")
		if err != nil {
			return nil, err
		}
		node.Elifs = append(node.Elifs, Elif{Cond: ec, Then: et})
	}
	if p.acceptKeyword("else") {
		els, err := p.parseCommandList("fi")
		if err != nil {
			return nil, err
		}
		node.Else = els
	}
	if err := p.expectKeyword("fi"); err != nil {
		return nil, err
	}
	if err := p.parseRedirects(&node.Redirects); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *parser) parseFor() (Command, error) {
	p.advance() // for
	t := p.cur()
	if t.Kind != TWord {
		return nil, p.errHere("expected variable name after 'for'")
	}
	name, ok := t.Word.Literal()
	if !ok || !isValidName(name) {
		return nil, p.errHere("invalid for loop variable name")
	}
	p.advance()
	node := &For{Var: name}
	if p.acceptKeyword("in") {
		node.HasIn = true
		for p.cur().Kind == TWord && p.curKeyword() == "" {
			node.Words = append(node.Words, p.advance().Word)
		}
	}
	if p.cur().Kind == TSemi {
		p.advance()
	}
	p.skipNewlines()
	if err := p.expectKeyword("do"); err != nil {
		return nil, err
	}
	body, err := p.parseCommandList("done")
	if err != nil {
		return nil, err
	}
	node.Body = body
	if err := p.expectKeyword("done"); err != nil {
		return nil, err
	}
	if err := p.parseRedirects(&node.Redirects); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *parser) parseWhileUntil(until bool) (Command, error) {
	p.advance() // while or until
	cond, err := p.parseCommandList("do")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("do"); err != nil {
		return nil, err
	}
	body, err := p.parseCommandList("done")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("done"); err != nil {
		return nil, err
	}
	node := &While{Cond: cond, Body: body, Until: until}
	if err := p.parseRedirects(&node.Redirects); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *parser) parseCase() (Command, error) {
	p.advance() // case
	if p.cur().Kind != TWord {
		return nil, p.errHere("expected word after 'case'")
	}
	node := &Case{Word: p.advance().Word}
	p.skipNewlines()
	if err := p.expectKeyword("in"); err != nil {
		return nil, err
	}
	for {
		p.skipNewlines()
		if p.acceptKeyword("esac") {
			break
		}
		if p.cur().Kind == TLParen {
			p.advance()
		}
		var item CaseItem
		for {
			if p.cur().Kind != TWord {
				return nil, p.errHere("expected case pattern")
			}
			item.Patterns = append(item.Patterns, p.advance().Word)
			if p.cur().Kind != TPipe {
				break
			}
			p.advance()
		}
		if p.cur().Kind != TRParen {
			return nil, p.errHere("expected ')' after case pattern")
		}
		p.advance()
		body, err := p.parseCommandList("esac")
		if err != nil {
			return nil, err
		}
		item.Body = body
		node.Items = append(node.Items, item)
		if p.cur().Kind == TDSemi {
			p.advance()
		}
	}
	if err := p.parseRedirects(&node.Redirects); err != nil {
		return nil, err
	}
	return node, nil
}

func isRedirToken(k TokenKind) bool {
	switch k {
	case TGt, TGtGt, TLt, THereDoc, THereStr, TErrGt, TErrGtGt, TErrToOut, TOutToErr:
		return true
	}
	return false
}

func (p *parser) parseRedirects(rs *[]Redirect) error {
	for isRedirToken(p.cur().Kind) {
		t := p.advance()
		var r Redirect
		switch t.Kind {
		case TGt:
			r.Kind = RedirOut
		case TGtGt:
			r.Kind = RedirAppend
		case TLt:
			r.Kind = RedirIn
		case TErrGt:
			r.Kind = RedirErrOut
		case TErrGtGt:
			r.Kind = RedirErrAppend
		case TErrToOut:
			*rs = append(*rs, Redirect{Kind: RedirErrToOut})
			continue
		case TOutToErr:
			*rs = append(*rs, Redirect{Kind: RedirOutToErr})
			continue
		case THereDoc:
			*rs = append(*rs, Redirect{Kind: RedirHereDoc, Target: t.Word, Body: t.Body, Expand: t.Expand})
			continue
		case THereStr:
			r.Kind = RedirHereStr
		}
		if p.cur().Kind != TWord {
			return p.errHere("expected file name after redirection")
		}
		r.Target = p.advance().Word
		*rs = append(*rs, r)
	}
	return nil
}

// parseSimple reads assignments, the command word, arguments, and
// interleaved redirections.
func (p *parser) parseSimple() (Command, error) {
	cmd := &SimpleCommand{}
	for {
		if isRedirToken(p.cur().Kind) {
			if err := p.parseRedirects(&cmd.Redirects); err != nil {
				return nil, err
			}
			continue
		}
		if p.cur().Kind != TWord {
			break
		}
		w := p.cur().Word
		if cmd.Name == nil {
			if name, index, val, ok := splitAssignment(w); ok {
				p.advance()
				a := Assignment{Name: name, Index: index, Value: val}
				if len(val.Parts) == 0 && index == "" && p.cur().Kind == TLParen {
					p.advance()
					a.IsArr = true
					a.Value = nil
					p.skipNewlines()
					for p.cur().Kind == TWord {
						a.Array = append(a.Array, p.advance().Word)
						p.skipNewlines()
					}
					if p.cur().Kind != TRParen {
						return nil, p.errHere("expected ')' to close array assignment")
					}
					p.advance()
				}
				cmd.Assignments = append(cmd.Assignments, a)
				continue
			}
			cmd.Name = w
			p.advance()
			continue
		}
		cmd.Args = append(cmd.Args, w)
		p.advance()
	}
	if cmd.Name == nil && len(cmd.Assignments) == 0 && len(cmd.Redirects) == 0 {
		return nil, p.errHere("unexpected " + p.cur().kindString())
	}
	return cmd, nil
}

// splitAssignment recognizes NAME=value and NAME[index]=value words.
func splitAssignment(w *Word) (name, index string, val *Word, ok bool) {
	if len(w.Parts) == 0 {
		return "", "", nil, false
	}
	first, isLit := w.Parts[0].(LitPart)
	if !isLit || first.Quoted {
		return "", "", nil, false
	}
	eq := strings.IndexByte(first.Text, '=')
	if eq <= 0 {
		return "", "", nil, false
	}
	lhs := first.Text[:eq]
	if br := strings.IndexByte(lhs, '['); br > 0 {
		if !strings.HasSuffix(lhs, "]") {
			return "", "", nil, false
		}
		name = lhs[:br]
		index = lhs[br+1 : len(lhs)-1]
		if index == "" {
			return "", "", nil, false
		}
	} else {
		name = lhs
	}
	if !isValidName(name) {
		return "", "", nil, false
	}
	val = &Word{}
	if rest := first.Text[eq+1:]; rest != "" {
		val.Parts = append(val.Parts, LitPart{Text: rest})
	}
	val.Parts = append(val.Parts, w.Parts[1:]...)
	return name, index, val, true
}
