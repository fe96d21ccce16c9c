package parser

// TokenKind enumerates lexer token types.
type TokenKind int

const (
	TEOF TokenKind = iota
	TWord
	TNewline
	TSemi      // ;
	TDSemi     // ;;
	TAmp       // &
	TPipe      // |
	TAnd       // &&
	TOr        // ||
	TLParen    // (
	TRParen    // )
	TGt        // > and 1>
	TGtGt      // >> and 1>>
	TLt        // <
	THereDoc   // << and <<-
	THereStr   // <<<
	TErrGt     // 2>
	TErrGtGt   // 2>>
	TErrToOut  // 2>&1
	TOutToErr  // >&2 and 1>&2
)

// Token is one lexical unit. Word tokens carry a parsed Word; heredoc
// operator tokens carry the gathered body once the lexer reaches it.
type Token struct {
	Kind TokenKind
	Word *Word // for TWord
	Body string // for THereDoc, filled after the introducing line ends
	// Expand is false for heredocs with a quoted delimiter.
	Expand bool
	Line   int
	Col    int
}

func (t Token) kindString() string {
	switch t.Kind {
	case TEOF:
		return "end of input"
	case TWord:
		if lit, ok := t.Word.Literal(); ok {
			return "'" + lit + "'"
		}
		return "word"
	case TNewline:
		return "newline"
	case TSemi:
		return "';'"
	case TDSemi:
		return "';;'"
	case TAmp:
		return "'&'"
	case TPipe:
		return "'|'"
	case TAnd:
		return "'&&'"
	case TOr:
		return "'||'"
	case TLParen:
		return "'('"
	case TRParen:
		return "')'"
	case TGt:
		return "'>'"
	case TGtGt:
		return "'>>'"
	case TLt:
		return "'<'"
	case THereDoc:
		return "'<<'"
	case THereStr:
		return "'<<<'"
	case TErrGt:
		return "'2>'"
	case TErrGtGt:
		return "'2>>'"
	case TErrToOut:
		return "'2>&1'"
	case TOutToErr:
		return "'>&2'"
	}
	return "token"
}
