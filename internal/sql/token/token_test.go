package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLexKeywordsAndIdentsCaseInsensitive(t *testing.T) {
	toks := Lex("select id from users")
	wantKinds := []Kind{Keyword, Ident, Keyword, Ident}
	for i, k := range wantKinds {
		assert.Equal(t, k, toks[i].Kind)
	}
}

func TestLexQualifiedIdentifier(t *testing.T) {
	toks := Lex("users.id")
	want := []struct {
		kind Kind
		text string
	}{
		{Ident, "users"},
		{Symbol, "."},
		{Ident, "id"},
	}
	for i, w := range want {
		assert.Equal(t, w.kind, toks[i].Kind)
		assert.Equal(t, w.text, toks[i].Text)
	}
}

func TestLexLiteralsAndOperators(t *testing.T) {
	toks := Lex("WHERE age >= 21 AND name = 'bob'")
	var kinds []Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Contains(t, kinds, Int)
	assert.Contains(t, kinds, String)

	var foundGE bool
	for _, tok := range toks {
		if tok.Text == ">=" {
			foundGE = true
		}
	}
	assert.True(t, foundGE)
}

func TestLexFloatLiteral(t *testing.T) {
	toks := Lex("3.14")
	got := toks[0]
	assert.Equal(t, Float, got.Kind)
	assert.Equal(t, "3.14", got.Text)
}

func TestLexTracksOffsets(t *testing.T) {
	toks := Lex("  id")
	assert.Equal(t, 2, toks[0].Offset)
}
