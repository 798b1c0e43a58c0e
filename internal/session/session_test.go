// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authlobby/internal/session"
	"github.com/holomush/authlobby/pkg/errutil"
)

func TestParseState(t *testing.T) {
	tests := []struct {
		input    string
		expected session.State
	}{
		{"LOGIN", session.StateLogin},
		{"register", session.StateRegister},
		{" Change_Password ", session.StateChangePassword},
		{"PREMIUM_CHECK", session.StatePremiumCheck},
		{"AUTHENTICATED", session.StateAuthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := session.ParseState(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseState_Invalid(t *testing.T) {
	for _, input := range []string{"", "UNKNOWN", "LOGGING_IN"} {
		_, err := session.ParseState(input)
		require.Error(t, err, "input %q", input)
		errutil.AssertErrorCode(t, err, "SESSION_STATE_INVALID")
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "CHANGE_PASSWORD", session.StateChangePassword.String())
	assert.Equal(t, "UNKNOWN", session.State(200).String())
}

func TestSession_JSONRoundTripUsesStateNames(t *testing.T) {
	data := []byte(`{"state":"register","user":{"name":"steve","language":"es_ES"}}`)

	var sess session.Session
	require.NoError(t, json.Unmarshal(data, &sess))
	assert.Equal(t, session.StateRegister, sess.State)
	assert.Equal(t, "es_ES", sess.User.Language)

	out, err := json.Marshal(sess)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"state":"REGISTER"`)
}

func TestNew(t *testing.T) {
	t.Run("valid session", func(t *testing.T) {
		sess, err := session.New(session.StateLogin, session.User{Name: "alex", Language: "en_US"})
		require.NoError(t, err)
		assert.Equal(t, session.StateLogin, sess.State)
	})

	t.Run("unknown state", func(t *testing.T) {
		_, err := session.New(session.StateUnknown, session.User{Name: "alex"})
		errutil.AssertErrorCode(t, err, "SESSION_STATE_INVALID")
	})

	t.Run("empty user name", func(t *testing.T) {
		_, err := session.New(session.StateLogin, session.User{Name: "  "})
		errutil.AssertErrorCode(t, err, "SESSION_USER_INVALID")
	})
}
