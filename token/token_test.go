package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpanLen(t *testing.T) {
	s := Span{Start: 3, End: 10}
	assert.Equal(t, 7, s.Len())
}

func TestPositionString(t *testing.T) {
	p := Position{Line: 2, Byte: 14}
	assert.Equal(t, "2:14", p.String())
}

func TestKindStringKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "identifier", Identifier.String())
	assert.Equal(t, "{{", StartStatement.String())
	assert.Contains(t, Kind(9999).String(), "Kind(9999)")
}

func TestTokenString(t *testing.T) {
	tk := Token{Kind: Identifier, Span: Span{Start: 2, End: 5}}
	assert.Equal(t, "identifier@2:5", tk.String())
}
