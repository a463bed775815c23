package driver

import (
	"context"

	"github.com/roach88/drill/internal/backend"
	"github.com/roach88/drill/internal/decide"
	"github.com/roach88/drill/internal/fault"
	"github.com/roach88/drill/internal/outcome"
	"github.com/roach88/drill/internal/payload"
	"github.com/roach88/drill/internal/phase"
	"github.com/roach88/drill/internal/template"
)

// Phases shared by both protocols.
const (
	PhaseCreateAccounts = "create-accounts"
	PhaseSignup         = "signup"
	PhaseNewChar        = "newchar"
	PhaseResolveChars   = "resolve-characters"
	PhaseWork           = "work"
	PhaseJoinFaction    = "joinfaction"
	PhaseRoleBase       = "role-base"
	PhaseResolveRoles   = "resolve-roles"
)

// MaxRole is the highest role ordinal.
const MaxRole = 15

func (r *Run) ensureAccount(ctx context.Context, actor string) (outcome.Outcome, error) {
	tmpl := r.cmd.CreateAccount(r.cfg.Account, r.cfg.PublicKey)
	return r.invoke(ctx, actor, template.Render(tmpl, actor), createRules)
}

func (r *Run) signup(ctx context.Context, actor string) (outcome.Outcome, error) {
	return r.push(ctx, actor, r.net.Game, ActSignup, payload.Object{"owner": payload.String(actor)}, signupRules)
}

// characterOwners returns owner → first character id in table order.
func (r *Run) characterOwners(ctx context.Context) (map[string]backend.Record, error) {
	rows, err := r.tables.Fetch(ctx, r.net.Game, TableCharacters)
	if err != nil {
		return nil, err
	}
	owners := make(map[string]backend.Record, len(rows))
	for i, row := range rows {
		owner, err := row.Text("owner")
		if err != nil {
			return nil, fault.Wrap(fault.CodeInvocationFailure, err, "%s row %d", TableCharacters, i)
		}
		if _, seen := owners[owner]; !seen {
			owners[owner] = row
		}
	}
	return owners, nil
}

// newCharacters creates a character for every actor that has none. The
// character table is read once up front.
func (r *Run) newCharacters() phase.Action {
	var owners map[string]backend.Record
	return func(ctx context.Context, actor string) (outcome.Outcome, error) {
		if owners == nil {
			o, err := r.characterOwners(ctx)
			if err != nil {
				return outcome.Outcome{}, err
			}
			owners = o
		}
		if _, ok := owners[actor]; ok {
			return outcome.Outcome{}, phase.Skip("already has a character")
		}
		return r.push(ctx, actor, r.net.Game, ActNewChar, payload.Object{
			"owner": payload.String(actor),
		}, newCharRules)
	}
}

// resolveCharacters reads every actor's character id. A missing character
// means the backend and the run disagree.
func (r *Run) resolveCharacters(ctx context.Context) error {
	owners, err := r.characterOwners(ctx)
	if err != nil {
		return err
	}
	for _, a := range r.Actors {
		row, ok := owners[a.Name]
		if !ok {
			return fault.New(fault.CodeConsistency, "actor %s has no character", a.Name).At(r.phase, a.Name)
		}
		if a.CharID, err = row.Uint("id"); err != nil {
			return fault.Wrap(fault.CodeInvocationFailure, err, "character of %s", a.Name)
		}
	}
	r.log.Info("characters resolved", "actors", len(r.Actors))
	return nil
}

func (r *Run) work(ctx context.Context, actor string) (outcome.Outcome, error) {
	a, err := r.state(actor)
	if err != nil {
		return outcome.Outcome{}, err
	}
	return r.push(ctx, actor, r.net.Game, ActWork, charArgs(a.CharID), workRules)
}

func (r *Run) joinFaction(ctx context.Context, actor string) (outcome.Outcome, error) {
	a, err := r.state(actor)
	if err != nil {
		return outcome.Outcome{}, err
	}
	args := charArgs(a.CharID)
	args["faction"] = payload.Int(r.cfg.Faction)
	return r.push(ctx, actor, r.net.Game, ActJoinFaction, args, factionRules)
}

// setRole assigns a base role drawn by pick.
func (r *Run) setRole(pick func() int) phase.Action {
	return func(ctx context.Context, actor string) (outcome.Outcome, error) {
		a, err := r.state(actor)
		if err != nil {
			return outcome.Outcome{}, err
		}
		role := pick()
		r.decided(actor, "role", role)

		args := charArgs(a.CharID)
		args["role"] = payload.Int(role)
		return r.push(ctx, actor, r.net.Game, ActSetRole, args, roleRules)
	}
}

// baseRoleAny draws a base role in 1..5.
func (r *Run) baseRoleAny() int {
	return r.engine.Range(1, 5)
}

// baseRolePlayoff draws a role from the playoff subset.
func (r *Run) baseRolePlayoff() int {
	return decide.ChooseOne(r.engine, []int{1, 2})
}

// resolveRoles reads the role each actor ended up with after the upgrade
// phases. Actors outside 1..MaxRole hold no role and receive no votes.
func (r *Run) resolveRoles(ctx context.Context) error {
	owners, err := r.characterOwners(ctx)
	if err != nil {
		return err
	}
	for _, a := range r.Actors {
		row, ok := owners[a.Name]
		if !ok {
			return fault.New(fault.CodeConsistency, "actor %s lost its character", a.Name).At(r.phase, a.Name)
		}
		role, err := row.Int("role")
		if err != nil {
			return fault.Wrap(fault.CodeInvocationFailure, err, "role of %s", a.Name)
		}
		if role < 1 || role > MaxRole {
			r.log.Warn("actor holds no role", "actor", a.Name, "role", role)
			role = 0
		}
		a.Role = role
	}
	r.log.Info("roles resolved", "actors", len(r.Actors))
	return nil
}

// prologue is the sequence both protocols start with.
func (r *Run) prologue() []step {
	return []step{
		r.perActor(PhaseCreateAccounts, 0, r.ensureAccount),
		r.perActor(PhaseSignup, 0, r.signup),
		r.perActor(PhaseNewChar, 0, r.newCharacters()),
		r.once(PhaseResolveChars, r.resolveCharacters),
	}
}
