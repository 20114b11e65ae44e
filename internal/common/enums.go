package common

import "strings"

// Role identifies who authored a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAI        Role = "ai"
	RoleModerator Role = "moderator"
	RoleSystem    Role = "system"
)

// String returns the string representation
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is one of the known authors
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAI, RoleModerator, RoleSystem:
		return true
	}
	return false
}

// Priority is a per-conversation triage level
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) String() string {
	return string(p)
}

func (p Priority) IsValid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// ParsePriority normalises user input; the empty string maps to PriorityMedium.
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PriorityMedium, nil
	}
	p := Priority(s)
	if !p.IsValid() {
		return "", NewValidationError("Invalid priority level.")
	}
	return p, nil
}

// Viewer decides which author's unread rows a summary counts.
type Viewer string

const (
	// ViewerUser counts unread moderator messages (what the end user has not seen yet)
	ViewerUser Viewer = "user"
	// ViewerModerator counts unread user messages (what moderators have not seen yet)
	ViewerModerator Viewer = "moderator"
)

// UnreadRole is the role whose unread rows matter to this viewer
func (v Viewer) UnreadRole() Role {
	if v == ViewerUser {
		return RoleModerator
	}
	return RoleUser
}

// ParseViewer falls back to def for empty or unknown values
func ParseViewer(s string, def Viewer) Viewer {
	switch Viewer(strings.ToLower(strings.TrimSpace(s))) {
	case ViewerUser:
		return ViewerUser
	case ViewerModerator:
		return ViewerModerator
	}
	return def
}
