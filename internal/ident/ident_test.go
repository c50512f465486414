package ident

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_Valid(t *testing.T) {
	for _, name := range []string{"npcs", "_x", "A1", "user_roles", "T_2", "_"} {
		assert.NoError(t, Check(name), name)
		assert.True(t, Valid(name), name)
	}
}

func TestCheck_Invalid(t *testing.T) {
	cases := []string{
		"",
		"1abc",
		"npcs.id",
		"a b",
		"a-b",
		`"); DROP TABLE x; --`,
		"x;",
		"name'",
		`quo"te`,
		"é",
		"tab\tle",
		"public.npcs",
	}
	for _, name := range cases {
		err := Check(name)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrInvalid), name)
	}
}

// Random strings over a hostile alphabet: whatever Check accepts must be made
// of identifier characters only, and whatever it rejects never renders.
func TestCheck_Fuzzed(t *testing.T) {
	alphabet := []rune(`abcXYZ_019 ;'"-.()*/\` + "\n\x00é")
	rng := rand.New(rand.NewSource(42))
	r := Resolver{Quote: true}

	for i := 0; i < 5000; i++ {
		n := rng.Intn(12)
		var sb strings.Builder
		for j := 0; j < n; j++ {
			sb.WriteRune(alphabet[rng.Intn(len(alphabet))])
		}
		name := sb.String()

		out, err := r.Table(name)
		if err != nil {
			assert.Empty(t, out)
			continue
		}
		assert.NotEmpty(t, name)
		first := name[0]
		assert.False(t, first >= '0' && first <= '9', "accepted leading digit: %q", name)
		for _, c := range name {
			ok := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
			assert.True(t, ok, "accepted %q", name)
		}
	}
}

func TestResolver_Quote(t *testing.T) {
	plain := Resolver{}
	quoted := Resolver{Quote: true}

	got, err := plain.Table("npcs")
	require.NoError(t, err)
	assert.Equal(t, "npcs", got)

	got, err = quoted.Column("level")
	require.NoError(t, err)
	assert.Equal(t, `"level"`, got)

	got, err = quoted.Qualified("n", "id")
	require.NoError(t, err)
	assert.Equal(t, `"n"."id"`, got)

	_, err = quoted.Qualified("n", "id; --")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSplit(t *testing.T) {
	head, col, err := Split("npcs.level")
	require.NoError(t, err)
	assert.Equal(t, "npcs", head)
	assert.Equal(t, "level", col)

	for _, bad := range []string{"level", "a.b.c", ".x", "x.", "a.1b", "a;.b"} {
		_, _, err := Split(bad)
		assert.ErrorIs(t, err, ErrInvalid, bad)
	}
}
