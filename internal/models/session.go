package models

import "github.com/MOHAMEDVOS/vos-tool-sub000/internal/timex"

// Session is one entry of active_sessions.json, keyed by username.
type Session struct {
	SessionID    string      `json:"session_id"`
	CreatedAt    timex.Stamp `json:"created_at"`
	LastActivity timex.Stamp `json:"last_activity"`
	Username     string      `json:"username,omitempty"`
	IPAddress    string      `json:"ip_address,omitempty"`
	UserAgent    string      `json:"user_agent,omitempty"`
}

// Sessions is the whole session document.
type Sessions map[string]Session
