// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package session holds the authentication session view consumed by the lobby.
//
// Sessions are owned by the external session-flow engine. The lobby only reads
// the current State and the User's language; it never transitions a session.
package session

import (
	"strings"

	"github.com/samber/oops"
)

// State is the flow state of an authentication session.
type State uint8

// Session flow states. The zero value is deliberately invalid.
const (
	StateUnknown State = iota
	StateLogin
	StateRegister
	StateChangePassword
	StatePremiumCheck
	StateAuthenticated
)

var stateNames = map[State]string{
	StateUnknown:        "UNKNOWN",
	StateLogin:          "LOGIN",
	StateRegister:       "REGISTER",
	StateChangePassword: "CHANGE_PASSWORD",
	StatePremiumCheck:   "PREMIUM_CHECK",
	StateAuthenticated:  "AUTHENTICATED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseState parses a state name as produced by State.String.
// Matching is case-insensitive.
func ParseState(name string) (State, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for state, stateName := range stateNames {
		if state != StateUnknown && stateName == upper {
			return state, nil
		}
	}
	return StateUnknown, oops.Code("SESSION_STATE_INVALID").
		With("state", name).
		Errorf("unknown session state %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// User is the account behind a session.
type User struct {
	Name     string `json:"name"`
	Language string `json:"language"` // locale code, e.g. "es_ES"
}

// Session is a snapshot of an authentication session at the time an event fired.
type Session struct {
	State State `json:"state"`
	User  User  `json:"user"`
}

// New creates a validated Session.
func New(state State, user User) (*Session, error) {
	if state == StateUnknown {
		return nil, oops.Code("SESSION_STATE_INVALID").Errorf("session state cannot be unknown")
	}
	if strings.TrimSpace(user.Name) == "" {
		return nil, oops.Code("SESSION_USER_INVALID").Errorf("user name cannot be empty")
	}
	return &Session{State: state, User: user}, nil
}
