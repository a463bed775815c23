package driver

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/drill/internal/decide"
	"github.com/roach88/drill/internal/fault"
	"github.com/roach88/drill/internal/joinview"
	"github.com/roach88/drill/internal/outcome"
	"github.com/roach88/drill/internal/payload"
	"github.com/roach88/drill/internal/phase"
)

// Playoff phases.
const (
	PhaseCohort           = "await-cohort"
	PhaseCohortFinal      = "refresh-cohorts"
	PhasePropose          = "propose"
	PhaseRefreshProposals = "refresh-proposals"
	PhaseVoteProposal     = "voteprop"
)

// ProposeChance is the per-actor probability of submitting a ranking.
const ProposeChance = 0.5

func (r *Run) playoffSteps() []step {
	return append(r.prologue(),
		r.perActor(PhaseJoinFaction, 0, r.joinFaction),
		r.perActor(PhaseRoleBase, 0, r.setRole(r.baseRolePlayoff)),
		r.once(PhaseResolveRoles, r.resolveRoles),
		r.perActor(PhaseCohort, 0, r.awaitCohort),
		r.once(PhaseCohortFinal, r.refreshCohorts),
		r.perActor(PhasePropose, 0, r.proposeRanking),
		r.once(PhaseRefreshProposals, r.refreshProposals),
		r.perActor(PhaseVoteProposal, 0, r.voteOnProposal),
	)
}

// awaitCohort polls the joined squad view until the actor appears in some
// squad's member list. The wait is unbounded unless MaxPolls is set.
func (r *Run) awaitCohort(ctx context.Context, actor string) (outcome.Outcome, error) {
	check := func(ctx context.Context) (bool, uint64, error) {
		v, err := r.joiner.Refresh(ctx)
		if err != nil {
			return false, 0, err
		}
		r.View = v
		squad, ok := v.SquadOf(actor)
		return ok, squad, nil
	}

	squad, err := phase.Await(ctx, r.poller, fmt.Sprintf("squad of %s", actor), check, nil)
	if err != nil {
		return outcome.Outcome{}, err
	}
	r.log.Info("squad assigned", "actor", actor, "squad", squad)
	return outcome.Outcome{Kind: outcome.Success}, nil
}

// refreshCohorts rebuilds the view once every actor has been seen in a
// squad and derives player_to_squad from that single snapshot.
func (r *Run) refreshCohorts(ctx context.Context) error {
	v, err := r.joiner.Refresh(ctx)
	if err != nil {
		return err
	}
	r.View = v
	r.PlayerToSquad = make(map[string]uint64, len(r.Actors))

	for _, a := range r.Actors {
		squad, ok := v.SquadOf(a.Name)
		if !ok {
			return fault.New(fault.CodeConsistency, "actor %s left every squad", a.Name).At(r.phase, a.Name)
		}
		a.Squad, a.InSquad = squad, true
		r.PlayerToSquad[a.Name] = squad
	}
	r.log.Info("cohorts resolved", "squads", len(v.Order), "actors", len(r.PlayerToSquad))
	return nil
}

// proposeRanking flips a fair coin per actor; on heads it shuffles the
// members of the actor's squad and proposes that ranking.
func (r *Run) proposeRanking(ctx context.Context, actor string) (outcome.Outcome, error) {
	a, err := r.state(actor)
	if err != nil {
		return outcome.Outcome{}, err
	}
	heads := r.engine.Bernoulli(ProposeChance)
	r.decided(actor, "propose", heads)
	if !heads {
		return outcome.Outcome{}, phase.Skip("coin: no proposal")
	}

	group, ok := r.group(a.Squad)
	if !ok {
		return outcome.Outcome{}, fault.New(fault.CodeConsistency, "squad %d not in view", a.Squad)
	}
	ranking := slices.Clone(group.Members)
	decide.Shuffle(r.engine, ranking)
	r.decided(actor, "ranking", ranking)

	return r.push(ctx, actor, r.net.Game, ActPropose, payload.Object{
		"proposer": payload.String(actor),
		"squad_id": payload.Int(a.Squad),
		"ranking":  payload.Strings(ranking),
	}, proposeRules)
}

func (r *Run) group(squad uint64) (joinview.Group, bool) {
	if r.View == nil {
		return joinview.Group{}, false
	}
	g, ok := r.View.Groups[squad]
	return g, ok
}

// refreshProposals rebuilds the proposal set from the proposals table.
func (r *Run) refreshProposals(ctx context.Context) error {
	rows, err := r.tables.Fetch(ctx, r.net.Game, TableProposals)
	if err != nil {
		return err
	}
	set := make(ProposalSet, len(rows))
	for i, row := range rows {
		id, err := row.Uint("id")
		if err != nil {
			return fault.Wrap(fault.CodeInvocationFailure, err, "%s row %d", TableProposals, i)
		}
		set[id] = row
	}
	r.Proposals = set
	r.log.Info("proposals refreshed", "proposals", len(set))
	return nil
}

// ProposalsFor returns the ids of proposals for squad in ascending order.
func (p ProposalSet) ProposalsFor(squad uint64) ([]uint64, error) {
	var ids []uint64
	for id, row := range p {
		ref, err := row.Uint("squad_id")
		if err != nil {
			return nil, fault.Wrap(fault.CodeInvocationFailure, err, "proposal %d", id)
		}
		if ref == squad {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// voteOnProposal votes for a uniformly chosen proposal of the actor's squad.
func (r *Run) voteOnProposal(ctx context.Context, actor string) (outcome.Outcome, error) {
	a, err := r.state(actor)
	if err != nil {
		return outcome.Outcome{}, err
	}
	ids, err := r.Proposals.ProposalsFor(a.Squad)
	if err != nil {
		return outcome.Outcome{}, err
	}
	if len(ids) == 0 {
		return outcome.Outcome{}, phase.Skip("no proposals for squad %d", a.Squad)
	}

	id := decide.ChooseOne(r.engine, ids)
	r.decided(actor, "proposal", id)
	return r.push(ctx, actor, r.net.Game, ActVoteProp, payload.Object{
		"voter":       payload.String(actor),
		"proposal_id": payload.Int(id),
	}, votePropRules)
}
