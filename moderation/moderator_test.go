package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestModerator(t *testing.T, words ...string) *Moderator {
	t.Helper()
	m, err := NewModerator(words, '*')
	require.NoError(t, err)
	return m
}

func TestModerator_Censor(t *testing.T) {
	t.Run("should mask a plain match and report it", func(t *testing.T) {
		req := require.New(t)
		m := newTestModerator(t, "darn", "heck")

		masked, matched := m.Censor("well darn, what the heck")

		req.Equal("well ****, what the ****", masked)
		req.Len(matched, 2)
	})

	t.Run("should leave clean text untouched", func(t *testing.T) {
		req := require.New(t)
		m := newTestModerator(t, "darn")

		masked, matched := m.Censor("a perfectly fine sentence")

		req.Equal("a perfectly fine sentence", masked)
		req.Empty(matched)
	})

	t.Run("should catch case and leet variants", func(t *testing.T) {
		req := require.New(t)
		m := newTestModerator(t, "idiot")

		for _, input := range []string{"IDIOT", "Idiot", "1d10t", "id!ot"} {
			masked, matched := m.Censor(input)
			req.NotEqual(input, masked, "input %q slipped through", input)
			req.NotEmpty(matched)
		}
	})

	t.Run("should keep surrounding text intact", func(t *testing.T) {
		req := require.New(t)
		m := newTestModerator(t, "darn")

		masked, _ := m.Censor("before darn after")

		req.Contains(masked, "before ")
		req.Contains(masked, " after")
	})
}

func TestLoadEmbeddedWords(t *testing.T) {
	req := require.New(t)

	list, err := LoadEmbeddedWords()

	req.NoError(err)
	req.Contains(list.Languages, "en")
	req.NotEmpty(list.Words)
	for _, word := range list.Words {
		req.NotEmpty(word)
		req.NotContains(word, "#")
	}
}
