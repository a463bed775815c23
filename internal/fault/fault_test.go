package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *RunError
		want string
	}{
		{
			name: "bare",
			err:  New(CodeConsistency, "squad %d has no roster", 7),
			want: "CONSISTENCY: squad 7 has no roster",
		},
		{
			name: "phase only",
			err:  New(CodeExhausted, "no more names").At("EnsureActorsExist", ""),
			want: "EXHAUSTED: no more names (phase=EnsureActorsExist)",
		},
		{
			name: "phase and actor with cause",
			err:  Wrap(CodeInvocationFailure, errors.New("signal: killed"), "backend died").At("JoinFaction", "drillaaaaaa"),
			want: "INVOCATION_FAILURE: backend died (phase=JoinFaction, actor=drillaaaaaa): signal: killed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestAt_KeepsExistingContext(t *testing.T) {
	base := New(CodeRuleRejection, "nope").At("Vote", "a")
	again := base.At("Other", "b")

	assert.Equal(t, "Vote", again.Phase)
	assert.Equal(t, "a", again.Actor)
}

func TestIsCode_Wrapped(t *testing.T) {
	err := fmt.Errorf("election: %w", New(CodeAuthorization, "missing authority"))

	assert.True(t, IsCode(err, CodeAuthorization))
	assert.False(t, IsCode(err, CodeConsistency))
	assert.Equal(t, CodeAuthorization, CodeOf(err))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
}
