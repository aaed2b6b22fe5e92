package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType_KnownTypes(t *testing.T) {
	for _, s := range []string{
		"new_feedback",
		"feedback_created",
		"feedback_updated",
		"feedback_deleted",
		"feedback_acknowledged",
	} {
		parsed, err := ParseType(s)
		require.NoError(t, err)
		assert.Equal(t, s, parsed.String())
		assert.True(t, parsed.Valid())
	}
}

func TestParseType_RejectsUnknown(t *testing.T) {
	_, err := ParseType("feedback_exploded")
	assert.Error(t, err)

	_, err = ParseType("")
	assert.Error(t, err)

	assert.False(t, Type("feedback.created").Valid())
}

func TestNew_CopiesTargets(t *testing.T) {
	targets := []string{"1", "2"}
	ev := New(TypeNewFeedback, targets, json.RawMessage(`{"id":7}`))

	targets[0] = "mutated"
	assert.Equal(t, []string{"1", "2"}, ev.Targets)
}
