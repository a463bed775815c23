package driver

import (
	"context"
	"fmt"

	"github.com/roach88/drill/internal/backend"
	"github.com/roach88/drill/internal/decide"
	"github.com/roach88/drill/internal/fault"
	"github.com/roach88/drill/internal/outcome"
	"github.com/roach88/drill/internal/payload"
	"github.com/roach88/drill/internal/phase"
)

// Election phases.
const (
	PhaseRoleMid   = "role-mid"
	PhaseRoleFinal = "role-final"
	PhaseBalance   = "await-balance"
	PhaseCandidacy = "regcand"
	PhaseVote      = "vote"
	PhaseStake     = "stake"
)

// UpgradeChance is the per-actor probability of each upgrade sub-phase.
const UpgradeChance = 0.5

// StakeDivisor sets the staked share of the observed balance.
const StakeDivisor = 10

func (r *Run) electionSteps() []step {
	steps := r.prologue()
	if r.opts.Work {
		steps = append(steps, r.perActor(PhaseWork, 0, r.work))
	}
	return append(steps,
		r.perActor(PhaseJoinFaction, 0, r.joinFaction),
		r.perActor(PhaseRoleBase, 0, r.setRole(r.baseRoleAny)),
		r.perActor(PhaseRoleMid, 0, r.upgrade(6)),
		r.perActor(PhaseRoleFinal, 0, r.upgrade(11)),
		r.once(PhaseResolveRoles, r.resolveRoles),
		r.perActor(PhaseBalance, 0, r.awaitBalance),
		r.perActor(PhaseCandidacy, r.opts.CandidacyRetries, r.registerCandidacy),
		r.perActor(PhaseVote, 0, r.distributeVotes),
		r.perActor(PhaseStake, 0, r.stake),
	)
}

// upgrade flips a fair coin per actor; on heads it draws a role in
// base..base+4 and requests the upgrade. Tails draws nothing further.
func (r *Run) upgrade(base int) phase.Action {
	return func(ctx context.Context, actor string) (outcome.Outcome, error) {
		a, err := r.state(actor)
		if err != nil {
			return outcome.Outcome{}, err
		}
		heads := r.engine.Bernoulli(UpgradeChance)
		r.decided(actor, "upgrade", heads)
		if !heads {
			return outcome.Outcome{}, phase.Skip("coin: no upgrade")
		}

		role := r.engine.Range(base, base+4)
		r.decided(actor, "role", role)
		args := charArgs(a.CharID)
		args["role"] = payload.Int(role)
		return r.push(ctx, actor, r.net.Game, ActUpgrade, args, upgradeRules)
	}
}

// awaitBalance polls the actor's token balance until it is positive,
// claiming between checks.
func (r *Run) awaitBalance(ctx context.Context, actor string) (outcome.Outcome, error) {
	a, err := r.state(actor)
	if err != nil {
		return outcome.Outcome{}, err
	}

	check := func(ctx context.Context) (bool, backend.Asset, error) {
		bal, err := r.balance(ctx, actor)
		if err != nil {
			return false, backend.Asset{}, err
		}
		return bal.Positive(), bal, nil
	}
	claim := func(ctx context.Context) (outcome.Outcome, error) {
		return r.push(ctx, actor, r.net.Game, ActClaim, charArgs(a.CharID), claimRules)
	}

	bal, err := phase.Await(ctx, r.poller, fmt.Sprintf("balance of %s", actor), check, claim)
	if err != nil {
		return outcome.Outcome{}, err
	}
	a.Balance = bal
	r.log.Info("balance observed", "actor", actor, "balance", bal.String())
	return outcome.Outcome{Kind: outcome.Success}, nil
}

// balance reads the actor's balance. Empty output means no balance row yet.
func (r *Run) balance(ctx context.Context, actor string) (backend.Asset, error) {
	cmd := fillActor(r.cmd.GetBalance(r.net.Token, r.net.Symbol), actor)
	res := r.query(ctx, actor, cmd)
	if res.Interrupted() {
		return backend.Asset{}, fault.Wrap(fault.CodeInterrupted, res.Err, "run cancelled")
	}
	if res.ExitStatus != 0 {
		o := outcome.Classify(outcome.Base, res.Output, res.ExitStatus)
		return backend.Asset{}, phase.AbortError(o)
	}
	if isBlank(res.Output) {
		return backend.Asset{Symbol: r.net.Symbol}, nil
	}
	bal, err := backend.ParseAsset(res.Output)
	if err != nil {
		return backend.Asset{}, phase.AbortError(outcome.Outcome{Kind: outcome.InvocationFailure, Message: err.Error()})
	}
	return bal, nil
}

func (r *Run) registerCandidacy(ctx context.Context, actor string) (outcome.Outcome, error) {
	a, err := r.state(actor)
	if err != nil {
		return outcome.Outcome{}, err
	}
	return r.push(ctx, actor, r.net.Gov, ActRegCand, payload.Object{
		"candidate": payload.String(actor),
		"charid":    payload.Int(a.CharID),
	}, regCandRules)
}

// holders returns, per role slot, the actors holding that role in actor order.
func (r *Run) holders() [MaxRole + 1][]*ActorState {
	var by [MaxRole + 1][]*ActorState
	for _, a := range r.Actors {
		if a.Role >= 1 && a.Role <= MaxRole {
			by[a.Role] = append(by[a.Role], a)
		}
	}
	return by
}

// distributeVotes casts one vote per occupied role slot, for a holder
// chosen uniformly.
func (r *Run) distributeVotes(ctx context.Context, actor string) (outcome.Outcome, error) {
	by := r.holders()
	result := outcome.Outcome{Kind: outcome.Success}
	voted := 0

	for slot := 1; slot <= MaxRole; slot++ {
		if len(by[slot]) == 0 {
			continue
		}
		target := decide.ChooseOne(r.engine, by[slot])
		r.decided(actor, fmt.Sprintf("vote-role-%d", slot), target.Name)

		o, err := r.push(ctx, actor, r.net.Gov, ActVote, payload.Object{
			"voter":     payload.String(actor),
			"role":      payload.Int(slot),
			"candidate": payload.Int(target.CharID),
		}, voteRules)
		if err != nil || o.Aborts() {
			return o, err
		}
		result = worse(result, o)
		voted++
	}

	if voted == 0 {
		return outcome.Outcome{}, phase.Skip("no role is held")
	}
	return result, nil
}

// stake opens the token balance row, then stakes a tenth of the observed
// balance for the configured duration.
func (r *Run) stake(ctx context.Context, actor string) (outcome.Outcome, error) {
	a, err := r.state(actor)
	if err != nil {
		return outcome.Outcome{}, err
	}
	amount := a.Balance.Fraction(StakeDivisor)
	if !amount.Positive() {
		return outcome.Outcome{}, phase.Skip("balance %s too small to stake", a.Balance)
	}

	opened, err := r.push(ctx, actor, r.net.Token, ActOpen, payload.Object{
		"owner":     payload.String(actor),
		"symbol":    payload.String(backend.SymbolCode(r.net.Symbol)),
		"ram_payer": payload.String(actor),
	}, openRules)
	if err != nil || opened.Aborts() {
		return opened, err
	}

	staked, err := r.push(ctx, actor, r.net.Gov, ActStake, payload.Object{
		"owner":    payload.String(actor),
		"quantity": payload.String(amount.String()),
		"days":     payload.Int(r.opts.Settings.StakeDays),
	}, stakeRules)
	if err != nil || staked.Aborts() {
		return staked, err
	}
	if staked.Kind == outcome.Success || staked.Kind == outcome.BenignDuplicate {
		a.Staked = amount
	}
	return worse(opened, staked), nil
}
