package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusCompiling, StatusRequesting, true},
		{StatusCompiling, StatusFailed, true},
		{StatusCompiling, StatusValidating, false},
		{StatusRequesting, StatusValidating, true},
		{StatusRequesting, StatusRetrying, true},
		{StatusRequesting, StatusFailed, true},
		{StatusRequesting, StatusSucceeded, false},
		{StatusValidating, StatusSucceeded, true},
		{StatusValidating, StatusRetrying, true},
		{StatusValidating, StatusExhausted, false},
		{StatusRetrying, StatusCompiling, true},
		{StatusRetrying, StatusExhausted, true},
		{StatusRetrying, StatusFailed, true},
		{StatusRetrying, StatusRequesting, false},
		{StatusSucceeded, StatusCompiling, false},
		{StatusExhausted, StatusRetrying, false},
		{StatusFailed, StatusCompiling, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	for _, s := range []Status{StatusSucceeded, StatusExhausted, StatusFailed} {
		assert.True(t, s.Terminal(), s)
		assert.Empty(t, validTransitions[s], s)
	}
	for _, s := range []Status{StatusCompiling, StatusRequesting, StatusValidating, StatusRetrying} {
		assert.False(t, s.Terminal(), s)
	}
}

func TestErrInvalidTransition(t *testing.T) {
	err := ErrInvalidTransition{From: StatusSucceeded, To: StatusCompiling}
	assert.Equal(t, "invalid state transition: succeeded -> compiling", err.Error())
}
