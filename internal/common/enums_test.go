package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_String(t *testing.T) {
	assert.Equal(t, "user", RoleUser.String())
	assert.Equal(t, "ai", RoleAI.String())
	assert.Equal(t, "moderator", RoleModerator.String())
	assert.Equal(t, "system", RoleSystem.String())
}

func TestRole_IsValid(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleAI, RoleModerator, RoleSystem} {
		assert.True(t, r.IsValid(), "role %s", r)
	}

	// Test invalid roles
	assert.False(t, Role("admin").IsValid())
	assert.False(t, Role("").IsValid())
	assert.False(t, Role("USER").IsValid())
}

func TestParsePriority(t *testing.T) {
	cases := []struct {
		input    string
		expected Priority
	}{
		{"low", PriorityLow},
		{"medium", PriorityMedium},
		{"high", PriorityHigh},
		{"HIGH", PriorityHigh}, // Case insensitive
		{" low ", PriorityLow},
		{"", PriorityMedium}, // Default
	}

	for _, tc := range cases {
		p, err := ParsePriority(tc.input)
		require.NoError(t, err, "input %q", tc.input)
		assert.Equal(t, tc.expected, p, "input %q", tc.input)
	}
}

func TestParsePriority_Invalid(t *testing.T) {
	for _, input := range []string{"urgent", "1", "med"} {
		_, err := ParsePriority(input)
		assert.Error(t, err)
		assert.True(t, IsValidation(err), "input %q", input)
	}
}

func TestViewer_UnreadRole(t *testing.T) {
	assert.Equal(t, RoleModerator, ViewerUser.UnreadRole())
	assert.Equal(t, RoleUser, ViewerModerator.UnreadRole())
	assert.Equal(t, RoleUser, Viewer("").UnreadRole())
}

func TestParseViewer(t *testing.T) {
	assert.Equal(t, ViewerUser, ParseViewer("user", ViewerModerator))
	assert.Equal(t, ViewerModerator, ParseViewer("Moderator", ViewerUser))
	assert.Equal(t, ViewerModerator, ParseViewer("", ViewerModerator))
	assert.Equal(t, ViewerUser, ParseViewer("nobody", ViewerUser))
}
