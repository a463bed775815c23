package joinview

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/drill/internal/backend"
	"github.com/roach88/drill/internal/fault"
)

func records(t *testing.T, s string) []backend.Record {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var rs []backend.Record
	require.NoError(t, dec.Decode(&rs))
	return rs
}

type fakeFetcher map[string][]backend.Record

func (f fakeFetcher) Fetch(_ context.Context, _, table string) ([]backend.Record, error) {
	return f[table], nil
}

func TestJoin(t *testing.T) {
	squads := records(t, `[
		{"id":3,"faction":2,"role":1,"active":1},
		{"id":1,"faction":2,"role":2,"active":0}
	]`)
	rosters := records(t, `[
		{"id":10,"squad_id":1,"members":[]},
		{"id":11,"squad_id":3,"members":[{"key":"drillaaaaaa","value":5},{"key":"drillaaaaab","value":1}]},
		{"id":12,"squad_id":3,"members":["ignored"]}
	]`)

	v, err := Join(squads, rosters)
	require.NoError(t, err)

	want := &View{
		Order: []uint64{3, 1},
		Groups: map[uint64]Group{
			3: {RosterID: 11, Category: 2, Role: 1, Active: true, Members: []string{"drillaaaaaa", "drillaaaaab"}},
			1: {RosterID: 10, Category: 2, Role: 2, Active: false, Members: []string{}},
		},
		MemberIndex: map[string]uint64{"drillaaaaaa": 3, "drillaaaaab": 3},
	}
	if diff := cmp.Diff(want, v); diff != "" {
		t.Errorf("Join() mismatch (-want +got):\n%s", diff)
	}
}

func TestJoin_OneEntryPerSquad(t *testing.T) {
	squads := records(t, `[{"id":1,"faction":1,"role":1,"active":1},{"id":2,"faction":1,"role":1,"active":1},{"id":3,"faction":1,"role":1,"active":1}]`)
	rosters := records(t, `[{"id":7,"squad_id":2,"members":["b"]},{"id":8,"squad_id":1,"members":["a"]},{"id":9,"squad_id":3,"members":[]}]`)

	v, err := Join(squads, rosters)
	require.NoError(t, err)
	assert.Len(t, v.Groups, 3)
	assert.NotEmpty(t, v.Groups[1].Members)
	assert.NotEmpty(t, v.Groups[2].Members)
	assert.Empty(t, v.Groups[3].Members)
}

func TestJoin_LastWriteWins(t *testing.T) {
	squads := records(t, `[{"id":1,"faction":1,"role":1,"active":1},{"id":2,"faction":1,"role":2,"active":1}]`)
	rosters := records(t, `[{"id":5,"squad_id":1,"members":["dup"]},{"id":6,"squad_id":2,"members":[["dup",1]]}]`)

	v, err := Join(squads, rosters)
	require.NoError(t, err)

	id, ok := v.SquadOf("dup")
	require.True(t, ok)
	assert.Equal(t, uint64(2), id)

	_, ok = v.SquadOf("nobody")
	assert.False(t, ok)
}

func TestJoin_MissingRoster(t *testing.T) {
	squads := records(t, `[{"id":1,"faction":1,"role":1,"active":1},{"id":2,"faction":1,"role":1,"active":1}]`)
	rosters := records(t, `[{"id":5,"squad_id":1,"members":["a"]}]`)

	v, err := Join(squads, rosters)
	require.Error(t, err)
	assert.Nil(t, v)
	assert.True(t, fault.IsCode(err, fault.CodeConsistency))
	assert.Contains(t, err.Error(), "squad 2 has no roster")
}

func TestJoin_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		squads  string
		rosters string
	}{
		{"squad without id", `[{"faction":1,"role":1,"active":1}]`, `[]`},
		{"roster without squad_id", `[{"id":1,"faction":1,"role":1,"active":1}]`, `[{"id":5,"members":[]}]`},
		{"members not a list", `[{"id":1,"faction":1,"role":1,"active":1}]`, `[{"id":5,"squad_id":1,"members":"a"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Join(records(t, tt.squads), records(t, tt.rosters))
			require.Error(t, err)
			assert.True(t, fault.IsCode(err, fault.CodeInvocationFailure))
		})
	}
}

func TestJoiner_Refresh(t *testing.T) {
	f := fakeFetcher{
		SquadsTable:  records(t, `[{"id":4,"faction":3,"role":2,"active":true}]`),
		RostersTable: records(t, `[{"id":40,"squad_id":4,"members":[{"first":"x","second":"1.0"}]}]`),
	}

	v, err := Joiner{Fetcher: f, Contract: "playgame"}.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{4}, v.Order)
	assert.Equal(t, []string{"x"}, v.Groups[4].Members)
}

func TestJoin_EmptySquads(t *testing.T) {
	v, err := Join(nil, records(t, `[{"id":1,"squad_id":9,"members":["a"]}]`))
	require.NoError(t, err)
	assert.Empty(t, v.Groups)
	assert.Empty(t, v.MemberIndex)
}
