// Package braketerr implements bracket's error taxonomy and the
// caret-pointing source snippet renderer described in spec.md §4.6 and §7.
//
// The snippet format and the backward/forward line-boundary scan are
// grounded on original_source/src/error/source.rs's ErrorInfo::fmt; the
// "an error optionally knows how to pretty-print itself, formatting code
// type-switches on that" dispatch is grounded on the teacher's
// parser.FormatError / internal/errors.PrettyPrinter split.
package braketerr

import (
	"fmt"
	"strings"

	"golang.org/x/xerrors"
)

// Kind enumerates the syntax and render error kinds from spec.md §7.
type Kind string

const (
	// Syntax errors (compile time).
	EmptyStatement                   Kind = "EmptyStatement"
	ExpectedIdentifier                Kind = "ExpectedIdentifier"
	ExpectedSimpleIdentifier          Kind = "ExpectedSimpleIdentifier"
	PartialIdentifier                 Kind = "PartialIdentifier"
	PartialSimpleIdentifier           Kind = "PartialSimpleIdentifier"
	BlockIdentifier                   Kind = "BlockIdentifier"
	OpenStatement                     Kind = "OpenStatement"
	OpenSubExpression                 Kind = "OpenSubExpression"
	StringLiteralNewline               Kind = "StringLiteralNewline"
	UnexpectedPathExplicitThis         Kind = "UnexpectedPathExplicitThis"
	UnexpectedPathParent               Kind = "UnexpectedPathParent"
	UnexpectedPathLocal                Kind = "UnexpectedPathLocal"
	UnexpectedPathDelimiter            Kind = "UnexpectedPathDelimiter"
	UnexpectedPathParentWithLocal       Kind = "UnexpectedPathParentWithLocal"
	UnexpectedPathParentWithExplicit    Kind = "UnexpectedPathParentWithExplicit"
	ExpectedPathDelimiter              Kind = "ExpectedPathDelimiter"
	TagNameMismatch                    Kind = "TagNameMismatch"
	BlockNotOpen                       Kind = "BlockNotOpen"

	// Render errors.
	TemplateNotFound  Kind = "TemplateNotFound"
	PartialNotFound    Kind = "PartialNotFound"
	VariableNotFound    Kind = "VariableNotFound"
	PartialCycle        Kind = "PartialCycle"
	HelperCycle         Kind = "HelperCycle"
	HelperNotFound      Kind = "HelperNotFound"
	BlockTargetSubExpr  Kind = "BlockTargetSubExpr"
	EvaluatePath        Kind = "EvaluatePath"

	// Helper errors.
	Message                Kind = "Message"
	ArityExact             Kind = "ArityExact"
	ArityRange             Kind = "ArityRange"
	ArgumentTypeString     Kind = "ArgumentTypeString"
	IterableExpected       Kind = "IterableExpected"
	LookupField            Kind = "LookupField"
	InvalidNumericalOperand Kind = "InvalidNumericalOperand"
	TypeAssert             Kind = "TypeAssert"
)

// Info is the positional context attached to every Error: the source text,
// the file name it came from, a (line, byte) position, and free-form notes
// appended as `= note: ...` lines.
type Info struct {
	Source   string
	FileName string
	Line     int
	Byte     int
	Notes    []string
}

// Error is a bracket syntax, render, or helper error. It always carries a
// Kind and an Info for snippet rendering, and may wrap an underlying cause.
type Error struct {
	Kind    Kind
	Info    Info
	Message string
	Cause   error
}

func New(kind Kind, info Info, message string) *Error {
	return &Error{Kind: kind, Info: info, Message: message}
}

func Wrap(kind Kind, info Info, message string, cause error) *Error {
	return &Error{Kind: kind, Info: info, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	sb.WriteString("\n")
	sb.WriteString(e.Snippet())
	return sb.String()
}

// Unwrap supports errors.Is/errors.As and xerrors.Is/xerrors.As chains.
func (e *Error) Unwrap() error { return e.Cause }

// is reports whether e has the given Kind; Is below is the public matcher.
func (e *Error) is(kind Kind) bool { return e.Kind == kind }

// Is reports whether the first *Error found in err's wrap chain (via
// xerrors.As) has the given Kind.
func Is(err error, kind Kind) bool {
	var be *Error
	if xerrors.As(err, &be) {
		return be.is(kind)
	}
	return false
}

// Snippet renders the `--> file:line:col` caret-pointer block described in
// spec.md §4.6.
func (e *Error) Snippet() string {
	return FormatSnippet(e.Info)
}

// FormatSnippet renders the caret-pointer snippet for an arbitrary Info,
// independent of any particular Error.
func FormatSnippet(info Info) string {
	s := info.Source
	byteOffset := clampByte(info.Byte, len(s))

	prevNL := strings.LastIndexByte(s[:byteOffset], '\n')
	lineStart := prevNL + 1 // -1 -> 0

	nextRel := strings.IndexByte(s[byteOffset:], '\n')
	var lineEnd int
	if nextRel < 0 {
		lineEnd = len(s)
	} else {
		lineEnd = byteOffset + nextRel
	}

	lineContents := s[lineStart:lineEnd]
	col := displayWidth(s[lineStart:byteOffset]) + 1

	linePrefix := fmt.Sprintf("%d | ", info.Line)
	pad := strings.Repeat(" ", len(linePrefix)-2)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s--> %s:%d:%d\n", pad, info.FileName, info.Line, col)
	fmt.Fprintf(&sb, "%s|\n", pad)
	fmt.Fprintf(&sb, "%s%s\n", linePrefix, lineContents)
	caret := "^"
	if col > 1 {
		caret = strings.Repeat("-", col-1) + "^"
	}
	fmt.Fprintf(&sb, "%s| %s", pad, caret)
	for _, n := range info.Notes {
		fmt.Fprintf(&sb, "\n%s= note: %s", pad, n)
	}
	return sb.String()
}

func clampByte(b, n int) int {
	if b < 0 {
		return 0
	}
	if b > n {
		return n
	}
	return b
}

// displayWidth approximates Unicode display width by counting runes rather
// than bytes. Full East-Asian-width handling (the original_source crate
// uses unicode-width for this) is not implemented -- see DESIGN.md.
func displayWidth(s string) int {
	return len([]rune(s))
}
