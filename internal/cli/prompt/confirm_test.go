package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnswer(t *testing.T) {
	assert.True(t, parseAnswer("y", false))
	assert.True(t, parseAnswer(" YES ", false))
	assert.False(t, parseAnswer("n", true))
	assert.False(t, parseAnswer("maybe", true))
	assert.True(t, parseAnswer("", true))
	assert.False(t, parseAnswer("", false))
}

func TestConfirmWithForceSkipsPrompt(t *testing.T) {
	ok, err := ConfirmWithForce("Overwrite config?", true)
	require.NoError(t, err)
	assert.True(t, ok)
}
