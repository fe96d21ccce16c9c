package parser

import (
	"fmt"
	"strings"
)

// ParseError reports a lexing or parsing failure with its position.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("syntax error: line %d: %s", e.Line, e.Msg)
}

type heredocPending struct {
	tok    int // index into toks
	delim  string
	strip  bool
	expand bool
}

type lexer struct {
	src     string
	pos     int
	raw     bool // word scanning treats whitespace and operators literally
	toks    []Token
	pending []heredocPending
}

// ParseWordParts parses s as the body of a single word. Quotes and
// expansions are honored but whitespace and operators are literal.
// Used for the operand of ${name:-word} style operators.
func ParseWordParts(s string) (*Word, error) {
	if s == "" {
		return &Word{}, nil
	}
	l := &lexer{src: s, raw: true}
	return l.scanWord()
}

// ParseExpansionText parses s recognizing only $ expansions, backquote
// substitution, and backslash escapes of $, ` and \. Quote characters
// stay literal. Used for here-document bodies.
func ParseExpansionText(s string) (*Word, error) {
	l := &lexer{src: s}
	w := &Word{}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			w.Parts = append(w.Parts, LitPart{Text: lit.String(), Quoted: true})
			lit.Reset()
		}
	}
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '\\':
			n := l.peekAt(1)
			if n == '$' || n == '`' || n == '\\' {
				lit.WriteByte(n)
				l.pos += 2
			} else {
				lit.WriteByte('\\')
				l.pos++
			}
		case '$':
			flush()
			if err := l.scanDollar(w, true); err != nil {
				return nil, err
			}
		case '`':
			flush()
			if err := l.scanBackquote(w, true); err != nil {
				return nil, err
			}
		default:
			lit.WriteByte(c)
			l.pos++
		}
	}
	flush()
	return w, nil
}

func (l *lexer) lineCol(pos int) (int, int) {
	line, col := 1, 1
	for i := 0; i < pos && i < len(l.src); i++ {
		if l.src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

func (l *lexer) errAt(pos int, format string, args ...any) error {
	line, col := l.lineCol(pos)
	return &ParseError{Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) peekAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *lexer) emit(kind TokenKind, start int) int {
	line, col := l.lineCol(start)
	l.toks = append(l.toks, Token{Kind: kind, Line: line, Col: col})
	return len(l.toks) - 1
}

// lex tokenizes src. Heredoc bodies are gathered when the introducing
// line's newline is reached and attached to their operator tokens.
func lex(src string) ([]Token, error) {
	l := &lexer{src: src}
	for {
		l.skipBlanksAndComments()
		if l.pos >= len(l.src) {
			break
		}
		start := l.pos
		c := l.peek()
		switch {
		case c == '\n':
			l.pos++
			l.emit(TNewline, start)
			if err := l.gatherHeredocs(); err != nil {
				return nil, err
			}
		case c == ';':
			if l.peekAt(1) == ';' {
				l.pos += 2
				l.emit(TDSemi, start)
			} else {
				l.pos++
				l.emit(TSemi, start)
			}
		case c == '&':
			if l.peekAt(1) == '&' {
				l.pos += 2
				l.emit(TAnd, start)
			} else {
				l.pos++
				l.emit(TAmp, start)
			}
		case c == '|':
			if l.peekAt(1) == '|' {
				l.pos += 2
				l.emit(TOr, start)
			} else {
				l.pos++
				l.emit(TPipe, start)
			}
		case c == '(':
			l.pos++
			l.emit(TLParen, start)
		case c == ')':
			l.pos++
			l.emit(TRParen, start)
		case c == '<':
			if err := l.lexLess(start); err != nil {
				return nil, err
			}
		case c == '>':
			l.lexGreater(start, TGt, TGtGt)
		case (c == '1' || c == '2') && l.peekAt(1) == '>':
			l.pos++
			if c == '2' {
				l.lexGreater(start, TErrGt, TErrGtGt)
			} else {
				l.lexGreater(start, TGt, TGtGt)
			}
		default:
			w, err := l.scanWord()
			if err != nil {
				return nil, err
			}
			line, col := l.lineCol(start)
			l.toks = append(l.toks, Token{Kind: TWord, Word: w, Line: line, Col: col})
		}
	}
	if len(l.pending) > 0 {
		return nil, l.errAt(l.pos, "unterminated here-document delimited by %q", l.pending[0].delim)
	}
	l.emit(TEOF, len(l.src))
	return l.toks, nil
}

func (l *lexer) skipBlanksAndComments() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t':
			l.pos++
		case c == '\\' && l.peekAt(1) == '\n':
			l.pos += 2
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

// lexGreater handles >, >>, >&2, and the stderr variants when called
// after a leading fd digit.
func (l *lexer) lexGreater(start int, out, app TokenKind) {
	l.pos++ // consume >
	switch {
	case l.peek() == '>':
		l.pos++
		l.emit(app, start)
	case l.peek() == '&' && l.peekAt(1) == '1' && out == TErrGt:
		l.pos += 2
		l.emit(TErrToOut, start)
	case l.peek() == '&' && l.peekAt(1) == '2' && out == TGt:
		l.pos += 2
		l.emit(TOutToErr, start)
	default:
		l.emit(out, start)
	}
}

func (l *lexer) lexLess(start int) error {
	l.pos++ // consume <
	if l.peek() != '<' {
		l.emit(TLt, start)
		return nil
	}
	l.pos++
	if l.peek() == '<' {
		l.pos++
		l.emit(THereStr, start)
		return nil
	}
	strip := false
	if l.peek() == '-' {
		l.pos++
		strip = true
	}
	tok := l.emit(THereDoc, start)
	// The delimiter word follows immediately. A quoted delimiter
	// disables expansion in the body.
	l.skipBlanksAndComments()
	if l.pos >= len(l.src) || isWordBreak(l.peek()) {
		return l.errAt(l.pos, "expected here-document delimiter after '<<'")
	}
	w, err := l.scanWord()
	if err != nil {
		return err
	}
	delim, quoted := unquoteDelim(w)
	l.toks[tok].Word = w
	l.toks[tok].Expand = !quoted
	l.pending = append(l.pending, heredocPending{tok: tok, delim: delim, strip: strip, expand: !quoted})
	return nil
}

func unquoteDelim(w *Word) (string, bool) {
	var b strings.Builder
	quoted := false
	for _, p := range w.Parts {
		if lit, ok := p.(LitPart); ok {
			b.WriteString(lit.Text)
			if lit.Quoted {
				quoted = true
			}
		}
	}
	return b.String(), quoted
}

// gatherHeredocs consumes body lines for every heredoc operator seen
// on the line just terminated.
func (l *lexer) gatherHeredocs() error {
	for _, h := range l.pending {
		var body strings.Builder
		found := false
		for l.pos < len(l.src) {
			end := strings.IndexByte(l.src[l.pos:], '\n')
			var line string
			if end < 0 {
				line = l.src[l.pos:]
				l.pos = len(l.src)
			} else {
				line = l.src[l.pos : l.pos+end]
				l.pos += end + 1
			}
			check := line
			if h.strip {
				check = strings.TrimLeft(line, "\t")
			}
			if check == h.delim {
				found = true
				break
			}
			if h.strip {
				line = strings.TrimLeft(line, "\t")
			}
			body.WriteString(line)
			body.WriteByte('\n')
		}
		if !found {
			return l.errAt(l.pos, "unterminated here-document delimited by %q", h.delim)
		}
		l.toks[h.tok].Body = body.String()
	}
	l.pending = nil
	return nil
}

func isWordBreak(c byte) bool {
	switch c {
	case ' ', '\t', '\n', ';', '&', '|', '<', '>', '(', ')':
		return true
	}
	return false
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

// scanWord reads one word, tracking quoting per part.
func (l *lexer) scanWord() (*Word, error) {
	w := &Word{}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			w.Parts = append(w.Parts, LitPart{Text: lit.String()})
			lit.Reset()
		}
	}
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if !l.raw && isWordBreak(c) {
			break
		}
		switch c {
		case '\\':
			if l.peekAt(1) == '\n' {
				l.pos += 2
				continue
			}
			if l.pos+1 >= len(l.src) {
				lit.WriteByte('\\')
				l.pos++
				continue
			}
			flush()
			w.Parts = append(w.Parts, LitPart{Text: string(l.src[l.pos+1]), Quoted: true})
			l.pos += 2
		case '\'':
			flush()
			end := strings.IndexByte(l.src[l.pos+1:], '\'')
			if end < 0 {
				return nil, l.errAt(l.pos, "unterminated single-quoted string")
			}
			w.Parts = append(w.Parts, LitPart{Text: l.src[l.pos+1 : l.pos+1+end], Quoted: true})
			l.pos += end + 2
		case '"':
			flush()
			if err := l.scanDoubleQuoted(w); err != nil {
				return nil, err
			}
		case '$':
			flush()
			if err := l.scanDollar(w, false); err != nil {
				return nil, err
			}
		case '`':
			flush()
			if err := l.scanBackquote(w, false); err != nil {
				return nil, err
			}
		default:
			lit.WriteByte(c)
			l.pos++
		}
	}
	flush()
	if len(w.Parts) == 0 {
		return nil, l.errAt(l.pos, "expected word")
	}
	return w, nil
}

func (l *lexer) scanDoubleQuoted(w *Word) error {
	start := l.pos
	l.pos++ // consume "
	var lit strings.Builder
	produced := false
	flush := func() {
		if lit.Len() > 0 {
			w.Parts = append(w.Parts, LitPart{Text: lit.String(), Quoted: true})
			lit.Reset()
			produced = true
		}
	}
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '"':
			l.pos++
			flush()
			if !produced {
				w.Parts = append(w.Parts, LitPart{Text: "", Quoted: true})
			}
			return nil
		case '\\':
			n := l.peekAt(1)
			switch n {
			case '$', '`', '"', '\\':
				lit.WriteByte(n)
				l.pos += 2
			case '\n':
				l.pos += 2
			default:
				lit.WriteByte('\\')
				l.pos++
			}
		case '$':
			flush()
			if err := l.scanDollar(w, true); err != nil {
				return err
			}
			produced = true
		case '`':
			flush()
			if err := l.scanBackquote(w, true); err != nil {
				return err
			}
			produced = true
		default:
			lit.WriteByte(c)
			l.pos++
		}
	}
	return l.errAt(start, "unterminated double-quoted string")
}

func (l *lexer) scanBackquote(w *Word, quoted bool) error {
	start := l.pos
	l.pos++ // consume `
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\\' {
			n := l.peekAt(1)
			if n == '`' || n == '\\' || n == '$' {
				b.WriteByte(n)
				l.pos += 2
				continue
			}
		}
		if c == '`' {
			l.pos++
			w.Parts = append(w.Parts, CmdSubPart{Script: b.String(), Quoted: quoted})
			return nil
		}
		b.WriteByte(c)
		l.pos++
	}
	return l.errAt(start, "unterminated command substitution")
}

func isSpecialParam(c byte) bool {
	switch c {
	case '?', '#', '@', '*', '$', '!', '-':
		return true
	}
	return false
}

func (l *lexer) scanDollar(w *Word, quoted bool) error {
	start := l.pos
	l.pos++ // consume $
	c := l.peek()
	switch {
	case c == '(' && l.peekAt(1) == '(':
		l.pos += 2
		expr, err := l.scanArith(start)
		if err != nil {
			return err
		}
		w.Parts = append(w.Parts, ArithPart{Expr: expr, Quoted: quoted})
	case c == '(':
		l.pos++
		inner, err := l.scanBalanced(start, '(', ')')
		if err != nil {
			return err
		}
		w.Parts = append(w.Parts, CmdSubPart{Script: inner, Quoted: quoted})
	case c == '{':
		l.pos++
		inner, err := l.scanBalanced(start, '{', '}')
		if err != nil {
			return err
		}
		p, err := parseParamBody(inner, quoted)
		if err != nil {
			return l.errAt(start, "%s", err.Error())
		}
		w.Parts = append(w.Parts, p)
	case isNameStart(c):
		n := l.pos
		for n < len(l.src) && isNameChar(l.src[n]) {
			n++
		}
		w.Parts = append(w.Parts, ParamPart{Name: l.src[l.pos:n], Quoted: quoted})
		l.pos = n
	case c >= '0' && c <= '9':
		w.Parts = append(w.Parts, ParamPart{Name: string(c), Quoted: quoted})
		l.pos++
	case isSpecialParam(c):
		w.Parts = append(w.Parts, ParamPart{Name: string(c), Quoted: quoted})
		l.pos++
	default:
		// Lone dollar stays literal.
		w.Parts = append(w.Parts, LitPart{Text: "$", Quoted: quoted})
	}
	return nil
}

// scanArith consumes the body of $(( ... )) up to the closing )).
func (l *lexer) scanArith(start int) (string, error) {
	depth := 0
	from := l.pos
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			} else if l.peekAt(1) == ')' {
				expr := l.src[from:l.pos]
				l.pos += 2
				return expr, nil
			} else {
				return "", l.errAt(start, "expected '))' to close arithmetic expansion")
			}
		}
		l.pos++
	}
	return "", l.errAt(start, "unterminated arithmetic expansion")
}

// scanBalanced consumes up to the matching close delimiter, honoring
// nesting, quotes, and backslash escapes.
func (l *lexer) scanBalanced(start int, open, close byte) (string, error) {
	depth := 0
	from := l.pos
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '\\':
			l.pos++
		case '\'':
			end := strings.IndexByte(l.src[l.pos+1:], '\'')
			if end < 0 {
				return "", l.errAt(l.pos, "unterminated single-quoted string")
			}
			l.pos += end + 1
		case '"':
			l.pos++
			for l.pos < len(l.src) && l.src[l.pos] != '"' {
				if l.src[l.pos] == '\\' {
					l.pos++
				}
				l.pos++
			}
			if l.pos >= len(l.src) {
				return "", l.errAt(start, "unterminated double-quoted string")
			}
		case open:
			depth++
		case close:
			if depth == 0 {
				inner := l.src[from:l.pos]
				l.pos++
				return inner, nil
			}
			depth--
		}
		l.pos++
	}
	return "", l.errAt(start, "expected '%c'", close)
}

// parseParamBody interprets the content of ${...}.
func parseParamBody(s string, quoted bool) (ParamPart, error) {
	p := ParamPart{Quoted: quoted}
	if s == "" {
		return p, fmt.Errorf("bad substitution: ${}")
	}
	if s[0] == '#' && len(s) > 1 {
		p.Length = true
		s = s[1:]
	}
	i := 0
	switch {
	case isNameStart(s[0]):
		for i < len(s) && isNameChar(s[i]) {
			i++
		}
	case s[0] >= '0' && s[0] <= '9':
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
	case isSpecialParam(s[0]):
		i = 1
	default:
		return p, fmt.Errorf("bad substitution: ${%s}", s)
	}
	p.Name = s[:i]
	s = s[i:]
	if len(s) > 0 && s[0] == '[' {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return p, fmt.Errorf("missing ']' in subscript")
		}
		p.Index = s[1:end]
		s = s[end+1:]
	}
	if s == "" {
		return p, nil
	}
	if p.Length {
		return p, fmt.Errorf("bad substitution after ${#%s}", p.Name)
	}
	switch {
	case strings.HasPrefix(s, ":-"):
		p.Op, p.Arg = OpDefault, s[2:]
	case strings.HasPrefix(s, ":="):
		p.Op, p.Arg = OpAssign, s[2:]
	case strings.HasPrefix(s, ":?"):
		p.Op, p.Arg = OpError, s[2:]
	case strings.HasPrefix(s, ":+"):
		p.Op, p.Arg = OpAlternate, s[2:]
	case strings.HasPrefix(s, "-"):
		p.Op, p.Arg, p.UnsetOnly = OpDefault, s[1:], true
	case strings.HasPrefix(s, "="):
		p.Op, p.Arg, p.UnsetOnly = OpAssign, s[1:], true
	case strings.HasPrefix(s, "?"):
		p.Op, p.Arg, p.UnsetOnly = OpError, s[1:], true
	case strings.HasPrefix(s, "+"):
		p.Op, p.Arg, p.UnsetOnly = OpAlternate, s[1:], true
	case strings.HasPrefix(s, "##"):
		p.Op, p.Arg = OpPrefixLong, s[2:]
	case strings.HasPrefix(s, "#"):
		p.Op, p.Arg = OpPrefixShort, s[1:]
	case strings.HasPrefix(s, "%%"):
		p.Op, p.Arg = OpSuffixLong, s[2:]
	case strings.HasPrefix(s, "%"):
		p.Op, p.Arg = OpSuffixShort, s[1:]
	default:
		return p, fmt.Errorf("bad substitution: ${%s%s}", p.Name, s)
	}
	return p, nil
}
