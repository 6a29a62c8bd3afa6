// Package parser implements bracket's recursive-descent parser: it
// consumes the lexer's token stream and builds the ast tree described in
// spec.md §3, enforcing the call/path grammar from spec.md §4.2-4.3.
//
// The lookahead and panic-recover-to-error shape is grounded on
// pgavlin/yomlette's parser.templateContext (next/backup/backup2/backup3,
// errorf/unexpected, and a deferred recover that turns a panic into a
// returned error) -- adapted here to return errors normally rather than
// panic, since bracket's parser never needs yomlette's three-deep
// backup3 lookahead and a plain recursive-descent error return reads more
// idiomatically for a parser with no embedded sub-language switch.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ravenq/bracket/ast"
	"github.com/ravenq/bracket/braketerr"
	"github.com/ravenq/bracket/lexer"
	"github.com/ravenq/bracket/token"
)

// Options configures optional parser features.
type Options struct {
	Links bool
}

// Parser consumes a lexer.Lexer and builds an *ast.Document.
type Parser struct {
	source   string
	fileName string
	lex      *lexer.Lexer
	opts     Options

	peekBuf []token.Token
	line    int
}

// New creates a parser for the given named source.
func New(fileName, source string, opts Options) *Parser {
	return &Parser{
		source:   source,
		fileName: fileName,
		lex:      lexer.New(source, lexer.Options{Links: opts.Links}),
		opts:     opts,
		line:     1,
	}
}

// Parse compiles source into a Document, or returns a *braketerr.Error.
func Parse(fileName, source string, opts Options) (*ast.Document, error) {
	p := New(fileName, source, opts)
	return p.Parse()
}

func (p *Parser) errorAt(kind braketerr.Kind, pos int, notes []string, format string, args ...interface{}) error {
	return &braketerr.Error{
		Kind: kind,
		Info: braketerr.Info{
			Source:   p.source,
			FileName: p.fileName,
			Line:     p.line,
			Byte:     pos,
			Notes:    notes,
		},
		Message: fmt.Sprintf(format, args...),
	}
}

// fill ensures at least n tokens are buffered in peekBuf, pulling from the
// lexer as needed.
func (p *Parser) fill(n int) error {
	for len(p.peekBuf) < n {
		tk, err := p.lex.Next()
		if err != nil {
			return p.errorAt(braketerr.OpenStatement, p.lex.Pos(), nil, "%s", err.Error())
		}
		p.peekBuf = append(p.peekBuf, tk)
	}
	return nil
}

// advance consumes and returns the next token, committing the parser's
// line tracking.
func (p *Parser) advance() (token.Token, error) {
	if err := p.fill(1); err != nil {
		return token.Token{}, err
	}
	tk := p.peekBuf[0]
	p.peekBuf = p.peekBuf[1:]
	if tk.Lines.End > 0 {
		p.line = tk.Lines.End
	}
	return tk, nil
}

// peek returns the next token without consuming it.
func (p *Parser) peek() (token.Token, error) {
	return p.peekAt(0)
}

// peekAt returns the token n positions ahead (0 = next token) without
// consuming anything, buffering intervening tokens as needed. This gives
// tryParseElse the lookahead it needs to distinguish `{{else}}` from an
// ordinary statement without destructively consuming on a false match.
func (p *Parser) peekAt(n int) (token.Token, error) {
	if err := p.fill(n + 1); err != nil {
		return token.Token{}, err
	}
	return p.peekBuf[n], nil
}

// Parse is the top-level entry point.
func (p *Parser) Parse() (*ast.Document, error) {
	children, _, err := p.parseNodes(nil)
	if err != nil {
		return nil, err
	}
	span := token.Span{Start: 0, End: len(p.source)}
	return ast.NewDocument(span, children), nil
}

// openFrame describes a currently-open block, for mismatch detection and
// else/else-if recognition.
type openFrame struct {
	name string
}

// terminator describes whatever tag ended a parseNodes run when open !=
// nil: either an else/else-if clause (isElse) or the matching close tag.
// trimBefore is that tag's own leading `~` (trims the trailing whitespace
// of the children just parsed); trimAfter is its own trailing `~` (trims
// the leading whitespace of whatever follows: the next clause's children
// if isElse, or the block's next sibling if this is the close tag).
type terminator struct {
	isElse     bool
	expr       ast.ParamValue // the else-if condition; nil for pure else or for a close tag
	trimBefore bool
	trimAfter  bool
	span       token.Span
}

// parseNodes consumes nodes until EOF, or (when open != nil) until a
// matching EndBlockScope or an else/else-if at this nesting level.
func (p *Parser) parseNodes(open *openFrame) (children []ast.Node, term *terminator, err error) {
	for {
		tk, aerr := p.advance()
		if aerr != nil {
			return nil, nil, aerr
		}
		switch tk.Kind {
		case token.EOF:
			if open != nil {
				return nil, nil, p.errorAt(braketerr.BlockNotOpen, tk.Span.Start, nil,
					"unexpected end of input: block %q is still open", open.name)
			}
			return children, nil, nil

		case token.Text:
			children = append(children, ast.NewText(tk.Span, p.source))

		case token.RawBlockBody:
			children = append(children, ast.NewRawBlock(tk.Span, p.source))

		case token.RawCommentBody:
			children = append(children, ast.NewRawComment(tk.Span))

		case token.RawStatementBody:
			children = append(children, ast.NewRawStatement(tk.Span, tk.Value))

		case token.CommentBody:
			children = append(children, ast.NewComment(tk.Span))

		case token.StartLink:
			node, lerr := p.parseLink(tk)
			if lerr != nil {
				return nil, nil, lerr
			}
			children = append(children, node)

		case token.StartStatement, token.StartRawStatement:
			escaped := tk.Kind == token.StartStatement

			if open != nil {
				elseTerm, eerr := p.tryParseElse(tk)
				if eerr != nil {
					return nil, nil, eerr
				}
				if elseTerm != nil {
					return children, elseTerm, nil
				}
			}

			node, serr := p.parseStatement(tk, escaped)
			if serr != nil {
				return nil, nil, serr
			}
			children = append(children, node)

		case token.StartBlockScope:
			block, berr := p.parseBlock(tk)
			if berr != nil {
				return nil, nil, berr
			}
			children = append(children, block)

		case token.EndBlockScope:
			name, trimBefore, trimAfter, span2, eberr := p.parseEndBlockScope(tk)
			if eberr != nil {
				return nil, nil, eberr
			}
			if open == nil {
				return nil, nil, p.errorAt(braketerr.BlockNotOpen, tk.Span.Start, nil,
					"closing tag %q has no matching open block", name)
			}
			if name != open.name {
				return nil, nil, p.errorAt(braketerr.TagNameMismatch, tk.Span.Start, nil,
					"mismatched closing tag: opened %q, closed %q", open.name, name)
			}
			return children, &terminator{trimBefore: trimBefore, trimAfter: trimAfter, span: span2}, nil

		default:
			return nil, nil, p.errorAt(braketerr.OpenStatement, tk.Span.Start, nil,
				"unexpected token %s", tk.Kind)
		}
	}
}

// skipStatementSpace consumes whitespace/newline tokens inside statement
// mode without otherwise interpreting them.
func (p *Parser) skipStatementSpace() error {
	for {
		tk, err := p.peek()
		if err != nil {
			return err
		}
		if tk.Kind != token.Whitespace && tk.Kind != token.Newline {
			return nil
		}
		if _, err := p.advance(); err != nil {
			return err
		}
	}
}

// consumeTrailingTrim consumes an optional trim tilde immediately before
// the closing delimiter, returning whether one was present.
func (p *Parser) consumeTrailingTrim() (bool, error) {
	if err := p.skipStatementSpace(); err != nil {
		return false, err
	}
	tk, err := p.peek()
	if err != nil {
		return false, err
	}
	if tk.Kind == token.Tilde {
		if _, err := p.advance(); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// expectEnd consumes the closing `}}`/`}}}` token, returning its span.
func (p *Parser) expectEnd() (token.Span, error) {
	if err := p.skipStatementSpace(); err != nil {
		return token.Span{}, err
	}
	tk, err := p.advance()
	if err != nil {
		return token.Span{}, err
	}
	if tk.Kind != token.End {
		return token.Span{}, p.errorAt(braketerr.OpenStatement, tk.Span.Start, nil,
			"expected closing %s, found %s", "}}", tk.Kind)
	}
	return tk.Span, nil
}

// parseStatement parses the body of a `{{ ... }}` / `{{{ ... }}}`
// interpolation, having already consumed the opening delimiter token.
func (p *Parser) parseStatement(open token.Token, escaped bool) (ast.Node, error) {
	trimBefore, err := p.consumeLeadingTrim()
	if err != nil {
		return nil, err
	}
	if err := p.skipStatementSpace(); err != nil {
		return nil, err
	}

	if tk, perr := p.peek(); perr == nil && tk.Kind == token.End {
		return nil, p.errorAt(braketerr.EmptyStatement, tk.Span.Start, nil, "empty statement")
	}

	call, err := p.parseCall(open, escaped)
	if err != nil {
		return nil, err
	}
	trimAfter, err := p.consumeTrailingTrim()
	if err != nil {
		return nil, err
	}
	closeSpan, err := p.expectEnd()
	if err != nil {
		return nil, err
	}
	call.CloseSpan = &closeSpan

	span := token.Span{Start: open.Span.Start, End: closeSpan.End}
	return ast.NewStatement(span, call, trimBefore, trimAfter), nil
}

func (p *Parser) consumeLeadingTrim() (bool, error) {
	tk, err := p.peek()
	if err != nil {
		return false, err
	}
	if tk.Kind == token.Tilde {
		if _, err := p.advance(); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// parseCall parses a Call's target, arguments, and hash parameters. `open`
// is the already-consumed opening-delimiter token (used only for its
// span); the caller is responsible for consuming the closing delimiter.
func (p *Parser) parseCall(open token.Token, escaped bool) (*ast.Call, error) {
	partial := false
	if tk, err := p.peek(); err != nil {
		return nil, err
	} else if tk.Kind == token.StartPartial {
		partial = true
		if _, err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.skipStatementSpace(); err != nil {
			return nil, err
		}
		if tk, err := p.peek(); err == nil && (tk.Kind == token.End) {
			return nil, p.errorAt(braketerr.PartialIdentifier, tk.Span.Start, nil, "expected a partial name")
		}
	}

	call := &ast.Call{
		Partial:  partial,
		Escaped:  escaped,
		OpenSpan: open.Span,
		Hash:     map[string]ast.ParamValue{},
	}

	target, err := p.parseCallTarget()
	if err != nil {
		return nil, err
	}
	call.Target = target

	if partial {
		if _, ok := target.(*ast.Call); ok {
			// sub-expression target: allowed.
		} else if pth, ok := target.(*ast.Path); ok {
			_, simple := pth.SimpleName()
			isPartialBlockRef := len(pth.Components) == 1 && pth.Components[0].Kind == ast.CompLocalIdentifier &&
				pth.Components[0].Value == "partial-block" && pth.Parents == 0 && !pth.ExplicitThis && !pth.IsRoot
			if !simple && !isPartialBlockRef {
				return nil, p.errorAt(braketerr.PartialSimpleIdentifier, open.Span.Start, nil,
					"partial target must be a simple identifier or a sub-expression")
			}
		}
	}

	for {
		if err := p.skipStatementSpace(); err != nil {
			return nil, err
		}
		tk, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tk.Kind == token.End || tk.Kind == token.Tilde {
			break
		}
		if tk.Kind == token.HashKey {
			if _, err := p.advance(); err != nil {
				return nil, err
			}
			if err := p.skipStatementSpace(); err != nil {
				return nil, err
			}
			val, err := p.parseParamValue()
			if err != nil {
				return nil, err
			}
			call.HashKeys = append(call.HashKeys, tk.Value)
			call.Hash[tk.Value] = val
			continue
		}
		val, err := p.parseParamValue()
		if err != nil {
			return nil, err
		}
		call.Arguments = append(call.Arguments, val)
	}

	return call, nil
}

// parseCallTarget parses either a parenthesized sub-expression or a Path.
func (p *Parser) parseCallTarget() (ast.CallTarget, error) {
	tk, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tk.Kind == token.LeftParen {
		return p.parseSubExpr()
	}
	return p.parsePath()
}

// parseSubExpr parses `( call )`, assuming the opening paren has not yet
// been consumed.
func (p *Parser) parseSubExpr() (*ast.Call, error) {
	open, err := p.advance() // consume '('
	if err != nil {
		return nil, err
	}
	if err := p.skipStatementSpace(); err != nil {
		return nil, err
	}

	call := &ast.Call{OpenSpan: open.Span, Escaped: true, Hash: map[string]ast.ParamValue{}}
	target, err := p.parseCallTarget()
	if err != nil {
		return nil, err
	}
	call.Target = target

	for {
		if err := p.skipStatementSpace(); err != nil {
			return nil, err
		}
		tk, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tk.Kind == token.RightParen {
			break
		}
		if tk.Kind == token.End || tk.Kind == token.EOF {
			return nil, p.errorAt(braketerr.OpenSubExpression, tk.Span.Start, nil, "unclosed sub-expression")
		}
		if tk.Kind == token.HashKey {
			if _, err := p.advance(); err != nil {
				return nil, err
			}
			if err := p.skipStatementSpace(); err != nil {
				return nil, err
			}
			val, err := p.parseParamValue()
			if err != nil {
				return nil, err
			}
			call.HashKeys = append(call.HashKeys, tk.Value)
			call.Hash[tk.Value] = val
			continue
		}
		val, err := p.parseParamValue()
		if err != nil {
			return nil, err
		}
		call.Arguments = append(call.Arguments, val)
	}

	closeTk, err := p.advance() // consume ')'
	if err != nil {
		return nil, err
	}
	call.CloseSpan = &closeTk.Span
	return call, nil
}

// isLiteralParamStart reports whether k opens a JSON-literal parameter
// value (number, boolean, null, or string) rather than a path or
// sub-expression.
func isLiteralParamStart(k token.Kind) bool {
	switch k {
	case token.Number, token.True, token.False, token.Null, token.StringStart:
		return true
	default:
		return false
	}
}

// parseParamValue parses a single argument: a JSON literal, a path, or a
// sub-expression.
func (p *Parser) parseParamValue() (ast.ParamValue, error) {
	tk, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch tk.Kind {
	case token.LeftParen:
		call, err := p.parseSubExpr()
		if err != nil {
			return nil, err
		}
		return ast.SubExpr{Call: call}, nil
	case token.Number:
		if _, err := p.advance(); err != nil {
			return nil, err
		}
		f, ferr := strconv.ParseFloat(tk.Value, 64)
		if ferr != nil {
			return nil, p.errorAt(braketerr.ExpectedIdentifier, tk.Span.Start, nil, "invalid number literal %q", tk.Value)
		}
		return ast.JSONValue{Value: f}, nil
	case token.True:
		if _, err := p.advance(); err != nil {
			return nil, err
		}
		return ast.JSONValue{Value: true}, nil
	case token.False:
		if _, err := p.advance(); err != nil {
			return nil, err
		}
		return ast.JSONValue{Value: false}, nil
	case token.Null:
		if _, err := p.advance(); err != nil {
			return nil, err
		}
		return ast.JSONValue{Value: nil}, nil
	case token.StringStart:
		s, err := p.parseStringLiteral()
		if err != nil {
			return nil, err
		}
		return ast.JSONValue{Value: s}, nil
	default:
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		return ast.PathRef{Path: path}, nil
	}
}

// parseStringLiteral parses a double- or single-quoted string, having
// peeked but not consumed its StringStart token.
func (p *Parser) parseStringLiteral() (string, error) {
	if _, err := p.advance(); err != nil { // StringStart
		return "", err
	}
	tk, err := p.advance() // StringChunk/StringEnd -- the lexer emits the decoded value on StringEnd
	if err != nil {
		return "", err
	}
	if tk.Kind != token.StringEnd {
		return "", p.errorAt(braketerr.StringLiteralNewline, tk.Span.Start, nil, "unterminated string literal")
	}
	return tk.Value, nil
}

// parsePath parses a variable path per spec.md §4.3.
func (p *Parser) parsePath() (*ast.Path, error) {
	path := &ast.Path{}

	first, err := p.peek()
	if err != nil {
		return nil, err
	}
	if first.Kind == token.PathDelimiter {
		return nil, p.errorAt(braketerr.UnexpectedPathDelimiter, first.Span.Start, nil,
			"a path cannot begin with a delimiter")
	}

	for first.Kind == token.ParentRef {
		if _, err := p.advance(); err != nil {
			return nil, err
		}
		path.Parents++
		first, err = p.peek()
		if err != nil {
			return nil, err
		}
	}

	pos := 0
	for {
		tk, err := p.peek()
		if err != nil {
			return nil, err
		}

		var comp ast.Component
		switch tk.Kind {
		case token.ExplicitThis:
			if pos != 0 {
				return nil, p.errorAt(braketerr.UnexpectedPathExplicitThis, tk.Span.Start, nil,
					"'this' is only allowed at the start of a path")
			}
			if path.Parents > 0 {
				return nil, p.errorAt(braketerr.UnexpectedPathParentWithExplicit, tk.Span.Start, nil,
					"'this' cannot combine with a parent reference")
			}
			path.ExplicitThis = true
			comp = ast.Component{Kind: ast.CompThisKeyword, Value: tk.Value}
		case token.ThisDotSlash:
			if pos != 0 {
				return nil, p.errorAt(braketerr.UnexpectedPathExplicitThis, tk.Span.Start, nil,
					"'./' is only allowed at the start of a path")
			}
			if path.Parents > 0 {
				return nil, p.errorAt(braketerr.UnexpectedPathParentWithExplicit, tk.Span.Start, nil,
					"'./' cannot combine with a parent reference")
			}
			path.ExplicitThis = true
			comp = ast.Component{Kind: ast.CompThisDotSlash}
		case token.LocalIdentifier:
			if pos != 0 {
				return nil, p.errorAt(braketerr.UnexpectedPathLocal, tk.Span.Start, nil,
					"a local identifier is only allowed at the start of a path")
			}
			if path.Parents > 0 {
				return nil, p.errorAt(braketerr.UnexpectedPathParentWithLocal, tk.Span.Start, nil,
					"a local identifier cannot combine with a parent reference")
			}
			comp = ast.Component{Kind: ast.CompLocalIdentifier, Value: tk.Value}
		case token.Identifier:
			comp = ast.Component{Kind: ast.CompIdentifier, Value: tk.Value}
			if pos == 0 && tk.Value == "@root" {
				path.IsRoot = true
			}
		case token.ParentRef:
			return nil, p.errorAt(braketerr.UnexpectedPathParent, tk.Span.Start, nil,
				"a parent reference is only allowed at the start of a path")
		default:
			if pos == 0 {
				return nil, p.errorAt(braketerr.ExpectedIdentifier, tk.Span.Start, nil,
					"expected an identifier, found %s", tk.Kind)
			}
			// no more path components; let the caller see this token.
			return path, nil
		}

		if _, err := p.advance(); err != nil {
			return nil, err
		}
		path.Components = append(path.Components, comp)
		pos++

		if comp.Kind == ast.CompThisDotSlash {
			// The lexer folds the '/' delimiter into the "./" token itself
			// (scanStatement's ThisDotSlash case), so a following component
			// starts immediately with no separate PathDelimiter to consume.
			continue
		}

		// Optional delimiter before the next component.
		next, err := p.peek()
		if err != nil {
			return nil, err
		}
		if next.Kind != token.PathDelimiter {
			return path, nil
		}
		if _, err := p.advance(); err != nil {
			return nil, err
		}
		after, err := p.peek()
		if err != nil {
			return nil, err
		}
		if after.Kind == token.PathDelimiter {
			return nil, p.errorAt(braketerr.UnexpectedPathDelimiter, after.Span.Start, nil,
				"unexpected path delimiter")
		}
	}
}

// parseEndBlockScope parses the interior of `{{/name}}`, having already
// consumed the EndBlockScope open token. It returns the closed name, the
// tag's own leading/trailing trim markers, and the span of the closing
// `}}`. The leading trim affects the trailing whitespace of whatever
// clause this tag closes; the trailing trim is external, affecting the
// block's next sibling.
func (p *Parser) parseEndBlockScope(open token.Token) (name string, trimBefore, trimAfter bool, closeSpan token.Span, err error) {
	trimBefore, err = p.consumeLeadingTrim()
	if err != nil {
		return "", false, false, token.Span{}, err
	}
	if err = p.skipStatementSpace(); err != nil {
		return "", false, false, token.Span{}, err
	}
	tk, aerr := p.advance()
	if aerr != nil {
		return "", false, false, token.Span{}, aerr
	}
	switch tk.Kind {
	case token.Identifier:
		name = tk.Value
	case token.StartPartial:
		// `{{/>name}}`: a '>' after `{{/` is lexed as StartPartial, and the
		// token immediately after it is taken as the closed name.
		idTok, ierr := p.advance()
		if ierr != nil {
			return "", false, false, token.Span{}, ierr
		}
		name = idTok.Value
	default:
		return "", false, false, token.Span{}, p.errorAt(braketerr.ExpectedSimpleIdentifier, tk.Span.Start, nil,
			"expected a block name, found %s", tk.Kind)
	}
	trimAfter, err = p.consumeTrailingTrim()
	if err != nil {
		return "", false, false, token.Span{}, err
	}
	closeSpan, err = p.expectEnd()
	if err != nil {
		return "", false, false, token.Span{}, err
	}
	return name, trimBefore, trimAfter, closeSpan, nil
}

// tryParseElse returns a non-nil *terminator (with isElse set) if the
// upcoming statement is `{{else}}` or `{{else if ...}}`, having fully
// consumed it in that case. It returns (nil, nil) if this is not an else
// tag, having consumed nothing beyond lookahead.
func (p *Parser) tryParseElse(open token.Token) (*terminator, error) {
	// Decide via non-destructive lookahead whether this is an else tag,
	// possibly preceded by its own leading `~`, before consuming anything:
	// a false match (an ordinary `{{~foo}}` statement) must leave the
	// token stream untouched for parseStatement to pick up.
	lookIdx := 0
	trimBefore := false
	tk, err := p.peekAt(lookIdx)
	if err != nil {
		return nil, err
	}
	if tk.Kind == token.Tilde {
		trimBefore = true
		lookIdx++
		tk, err = p.peekAt(lookIdx)
		if err != nil {
			return nil, err
		}
	}
	if tk.Kind != token.Identifier || tk.Value != "else" {
		return nil, nil
	}
	if trimBefore {
		if _, err := p.advance(); err != nil { // consume '~'
			return nil, err
		}
	}
	if _, err := p.advance(); err != nil { // consume 'else'
		return nil, err
	}
	if err := p.skipStatementSpace(); err != nil {
		return nil, err
	}

	ifTk, err := p.peek()
	if err != nil {
		return nil, err
	}
	if ifTk.Kind == token.Identifier && ifTk.Value == "if" {
		if _, err := p.advance(); err != nil { // consume 'if'
			return nil, err
		}
		if err := p.skipStatementSpace(); err != nil {
			return nil, err
		}
		// The condition itself is parsed as a parameter-value expression --
		// a JSON literal, a bare path, a helper invocation, or a
		// sub-expression -- and evaluated for truthiness the same way,
		// rather than being wrapped in a synthetic "if" dispatch. A bare
		// literal (`{{else if true}}`) has no call form at all, so it must
		// be parsed directly as a value instead of being forced through
		// parseCall's path-only target.
		condTk, err := p.peek()
		if err != nil {
			return nil, err
		}
		var expr ast.ParamValue
		if isLiteralParamStart(condTk.Kind) {
			expr, err = p.parseParamValue()
			if err != nil {
				return nil, err
			}
		} else {
			call, err := p.parseCall(open, true)
			if err != nil {
				return nil, err
			}
			expr = ast.SubExpr{Call: call}
		}
		trimAfter, err := p.consumeTrailingTrim()
		if err != nil {
			return nil, err
		}
		closeSpan, err := p.expectEnd()
		if err != nil {
			return nil, err
		}
		if sub, ok := expr.(ast.SubExpr); ok {
			sub.Call.CloseSpan = &closeSpan
		}
		return &terminator{isElse: true, expr: expr, trimBefore: trimBefore, trimAfter: trimAfter, span: closeSpan}, nil
	}

	// Pure {{else}}.
	trimAfter, err := p.consumeTrailingTrim()
	if err != nil {
		return nil, err
	}
	closeSpan, err := p.expectEnd()
	if err != nil {
		return nil, err
	}
	return &terminator{isElse: true, trimBefore: trimBefore, trimAfter: trimAfter, span: closeSpan}, nil
}

// parseBlock parses `{{#name args}} children {{else ...}}... {{/name}}`,
// having already consumed the StartBlockScope open token.
func (p *Parser) parseBlock(open token.Token) (*ast.Block, error) {
	trimBefore, err := p.consumeLeadingTrim()
	if err != nil {
		return nil, err
	}
	if err := p.skipStatementSpace(); err != nil {
		return nil, err
	}

	call, err := p.parseCall(open, true)
	if err != nil {
		return nil, err
	}
	name, ok := call.Name()
	if !ok {
		if _, isCall := call.Target.(*ast.Call); isCall {
			return nil, p.errorAt(braketerr.BlockIdentifier, open.Span.Start, nil,
				"a block target must be a simple identifier, not a sub-expression")
		}
		return nil, p.errorAt(braketerr.BlockIdentifier, open.Span.Start, nil,
			"a block target must be a simple identifier")
	}

	trimAfterOpen, err := p.consumeTrailingTrim()
	if err != nil {
		return nil, err
	}
	openCloseSpan, err := p.expectEnd()
	if err != nil {
		return nil, err
	}
	call.CloseSpan = &openCloseSpan

	block := ast.NewBlock(token.Span{Start: open.Span.Start}, open.Span, call)
	block.OpenTrimAfter = trimAfterOpen

	frame := &openFrame{name: name}
	children, term, err := p.parseNodes(frame)
	if err != nil {
		return nil, err
	}
	block.Children = children

	// term.isElse chains through zero or more else/else-if clauses (a pure
	// `{{else}}` opens a clause like any other) until the `{{/name}}` close
	// tag terminates the block; that close tag's span and trims become the
	// block's own.
	var final *terminator = term
	for final.isElse {
		clauseChildren, nextTerm, err := p.parseNodes(frame)
		if err != nil {
			return nil, err
		}
		cond := &ast.Condition{
			Expr:            final.expr,
			Children:        clauseChildren,
			CloseSpan:       &nextTerm.span,
			OpenTrimBefore:  final.trimBefore,
			OpenTrimAfter:   final.trimAfter,
			CloseTrimBefore: nextTerm.trimBefore,
		}
		block.Conditions = append(block.Conditions, cond)
		final = nextTerm
	}
	block.CloseSpan = &final.span
	block.CloseTrimBefore = final.trimBefore

	fullSpan := token.Span{Start: open.Span.Start, End: final.span.End}
	block.Finalize(fullSpan, trimBefore, final.trimAfter)
	return block, nil
}

// parseLink parses `[[href|label|title]]`, having already consumed the
// StartLink token.
func (p *Parser) parseLink(open token.Token) (*ast.Link, error) {
	tk, err := p.advance() // LinkSegment
	if err != nil {
		return nil, err
	}
	if tk.Kind != token.LinkSegment {
		return nil, p.errorAt(braketerr.OpenStatement, tk.Span.Start, nil, "malformed link")
	}
	parts := strings.SplitN(tk.Value, "|", 3)
	href := parts[0]
	var label, title string
	if len(parts) > 1 {
		label = parts[1]
	}
	if len(parts) > 2 {
		title = parts[2]
	}
	span := token.Span{Start: open.Span.Start, End: tk.Span.End}
	return ast.NewLink(span, href, label, title), nil
}
