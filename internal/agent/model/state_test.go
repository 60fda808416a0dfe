package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTurnDoesNotMutateOriginal(t *testing.T) {
	original := NewConversationState([]Turn{{Role: RoleUser, Text: "hello"}})

	updated := original.WithTurn(RoleAssistant, "hi there")

	assert.Len(t, original.Turns, 1)
	assert.Len(t, updated.Turns, 2)
	assert.Equal(t, "hi there", updated.Turns[1].Text)
}

func TestWithScratchDoesNotMutateOriginal(t *testing.T) {
	original := NewConversationState(nil)

	updated := original.WithScratch("key", 42)

	_, exists := original.Scratch["key"]
	assert.False(t, exists)
	assert.Equal(t, 42, updated.Scratch["key"])
}

func TestWithResponseAndTerminal(t *testing.T) {
	original := NewConversationState(nil)

	updated := original.WithResponse("done").WithTerminal()

	assert.Empty(t, original.Response)
	assert.False(t, original.Terminal)
	assert.Equal(t, "done", updated.Response)
	assert.True(t, updated.Terminal)
}

func TestLastUserText(t *testing.T) {
	state := NewConversationState([]Turn{
		{Role: RoleUser, Text: "first"},
		{Role: RoleAssistant, Text: "reply"},
		{Role: RoleUser, Text: "second"},
		{Role: RoleAssistant, Text: "another reply"},
	})

	assert.Equal(t, "second", state.LastUserText())
	assert.Equal(t, "", NewConversationState(nil).LastUserText())
}

func TestScratchString(t *testing.T) {
	state := NewConversationState(nil).
		WithScratch("text", "value").
		WithScratch("number", 7)

	v, ok := state.ScratchString("text")
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	_, ok = state.ScratchString("number")
	assert.False(t, ok)

	_, ok = state.ScratchString("missing")
	assert.False(t, ok)
}

func TestNewConversationStateCopiesHistory(t *testing.T) {
	history := []Turn{{Role: RoleUser, Text: "hello"}}

	state := NewConversationState(history)
	history[0].Text = "mutated"

	assert.Equal(t, "hello", state.Turns[0].Text)
}
