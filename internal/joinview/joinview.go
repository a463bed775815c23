// Package joinview builds the squad view by joining two independently
// fetched tables: squads (primary) and rosters (secondary, keyed back to a
// squad by squad_id).
//
// The view is rebuilt from scratch on every Refresh. A squad without a
// roster means the two snapshots disagree; Refresh then fails with a
// CONSISTENCY error and returns no partial view.
package joinview

import (
	"context"
	"fmt"

	"github.com/roach88/drill/internal/backend"
	"github.com/roach88/drill/internal/fault"
)

// Table and field names of the two joined collections.
const (
	SquadsTable  = "squads"
	RostersTable = "rosters"

	FieldID      = "id"
	FieldFaction = "faction"
	FieldRole    = "role"
	FieldActive  = "active"
	FieldSquadID = "squad_id"
	FieldMembers = "members"
)

// Fetcher returns every row of a contract table. backend.Tables implements it.
type Fetcher interface {
	Fetch(ctx context.Context, contract, table string) ([]backend.Record, error)
}

// Group is one squad merged with its roster.
type Group struct {
	RosterID uint64
	Category int
	Role     int
	Active   bool
	Members  []string
}

// View is a joined snapshot of squads and rosters.
type View struct {
	// Order lists squad ids in the squads table's order.
	Order []uint64

	Groups map[uint64]Group

	// MemberIndex maps a member to its squad. A member listed under several
	// squads maps to the last one in Order.
	MemberIndex map[string]uint64
}

// SquadOf returns the squad a member belongs to.
func (v *View) SquadOf(member string) (uint64, bool) {
	id, ok := v.MemberIndex[member]
	return id, ok
}

// Joiner refreshes views of one contract.
type Joiner struct {
	Fetcher  Fetcher
	Contract string
}

// Refresh fetches both tables and joins them.
func (j Joiner) Refresh(ctx context.Context) (*View, error) {
	squads, err := j.Fetcher.Fetch(ctx, j.Contract, SquadsTable)
	if err != nil {
		return nil, fmt.Errorf("refresh squads: %w", err)
	}
	rosters, err := j.Fetcher.Fetch(ctx, j.Contract, RostersTable)
	if err != nil {
		return nil, fmt.Errorf("refresh rosters: %w", err)
	}
	return Join(squads, rosters)
}

// Join matches every squad to the first roster whose squad_id equals the
// squad id.
func Join(squads, rosters []backend.Record) (*View, error) {
	v := &View{
		Order:       make([]uint64, 0, len(squads)),
		Groups:      make(map[uint64]Group, len(squads)),
		MemberIndex: map[string]uint64{},
	}

	for i, sq := range squads {
		id, err := sq.Uint(FieldID)
		if err != nil {
			return nil, malformed(SquadsTable, i, err)
		}

		roster, found, err := findRoster(rosters, id)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fault.New(fault.CodeConsistency, "squad %d has no roster", id)
		}

		g, err := merge(sq, roster)
		if err != nil {
			return nil, malformed(SquadsTable, i, err)
		}

		v.Order = append(v.Order, id)
		v.Groups[id] = g
		for _, m := range g.Members {
			v.MemberIndex[m] = id
		}
	}
	return v, nil
}

func findRoster(rosters []backend.Record, squadID uint64) (backend.Record, bool, error) {
	for i, r := range rosters {
		ref, err := r.Uint(FieldSquadID)
		if err != nil {
			return nil, false, malformed(RostersTable, i, err)
		}
		if ref == squadID {
			return r, true, nil
		}
	}
	return nil, false, nil
}

func merge(squad, roster backend.Record) (Group, error) {
	var (
		g   Group
		err error
	)
	if g.RosterID, err = roster.Uint(FieldID); err != nil {
		return Group{}, err
	}
	if g.Category, err = squad.Int(FieldFaction); err != nil {
		return Group{}, err
	}
	if g.Role, err = squad.Int(FieldRole); err != nil {
		return Group{}, err
	}
	if g.Active, err = squad.Bool(FieldActive); err != nil {
		return Group{}, err
	}
	if g.Members, err = roster.Members(FieldMembers); err != nil {
		return Group{}, err
	}
	return g, nil
}

func malformed(table string, row int, err error) error {
	return fault.Wrap(fault.CodeInvocationFailure, err, "%s row %d", table, row)
}
