package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/scour/internal/config"
	"github.com/dotcommander/scour/internal/llm"
)

func TestActionForError(t *testing.T) {
	s := New(testConfig(), &scriptedClient{replies: []llm.Reply{{}}}, nil, config.Model{API: "anthropic"})

	t.Run("loop errors are terminal", func(t *testing.T) {
		action := s.ActionForError(&LoopError{Depth: 10}, "prompt")
		require.False(t, action.Retry)
		require.Contains(t, action.Err.Reason, "10 tool calls")
	})

	t.Run("generic errors are terminal", func(t *testing.T) {
		action := s.ActionForError(errors.New("boom"), "prompt")
		require.False(t, action.Retry)
		require.Contains(t, action.Err.Reason, "anthropic")
	})
}

func TestCutPrompt(t *testing.T) {
	msg := "This model's maximum context length is 100 tokens. However, your messages resulted in 110 tokens"
	prompt := make([]byte, 200)
	for i := range prompt {
		prompt[i] = 'a'
	}

	cut := cutPrompt(msg, string(prompt))
	require.Less(t, len(cut), 200)

	require.Equal(t, "untouched", cutPrompt("some other error", "untouched"))
}
