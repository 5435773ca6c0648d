// Package compile drives whole-universe compilation in rounds.
//
// One round loads a fresh element model, builds the binding graph of every
// root component (subcomponents resolve under their ancestors), validates the
// graphs that resolved and plans code generation for the ones that validated
// clean. Components whose graphs touch unresolved references defer to the
// next round, which starts from scratch against a freshly loaded model; no
// state survives between rounds. Deferral escalates to an
// UnresolvedReferenceError diagnostic once rounds stop making progress or the
// round limit is hit.
package compile

import (
	"context"
	"sort"
	"strings"

	"github.com/alecthomas/errors"
	"go.uber.org/zap"

	"github.com/sghaida/loom/diag"
	"github.com/sghaida/loom/graph"
	"github.com/sghaida/loom/model"
	"github.com/sghaida/loom/option"
	"github.com/sghaida/loom/plan"
	"github.com/sghaida/loom/validate"
)

// DefaultMaxRounds bounds retry rounds. Each generation round can resolve at
// most one layer of references into generated packages, so deep chains need
// several rounds; anything beyond this is a wiring mistake, not progress.
const DefaultMaxRounds = 5

// UniverseFunc produces the element model for one round. It is invoked once
// per round so generated output from earlier rounds is visible.
type UniverseFunc func(ctx context.Context, round int) (*model.Universe, error)

// Deferral records one component pushed to the next round and why.
type Deferral struct {
	Component string
	Refs      []string
}

// Result is the outcome of a compilation run.
type Result struct {
	// Rounds is the number of rounds actually executed.
	Rounds int

	// Graphs holds the resolved root graphs by component name.
	Graphs map[string]*graph.Graph

	// Plans holds generation plans for components that validated without
	// errors.
	Plans map[string]*plan.Plan

	// Deferred lists components still unresolved when the run stopped; each
	// also has an escalated diagnostic in Diags.
	Deferred []Deferral

	Diags *diag.Sink
}

// Driver runs compilation rounds with fixed options.
type Driver struct {
	opts      option.Options
	log       *zap.Logger
	maxRounds int
}

// NewDriver returns a driver; a nil logger is replaced with a no-op one.
func NewDriver(opts option.Options, log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{opts: opts, log: log, maxRounds: DefaultMaxRounds}
}

// WithMaxRounds overrides the round limit; n < 1 is clamped to 1.
func (d *Driver) WithMaxRounds(n int) *Driver {
	if n < 1 {
		n = 1
	}
	d.maxRounds = n
	return d
}

// Run executes rounds until every component resolves, a round makes no
// progress, or the round limit is reached. Whatever the stopping reason, the
// final round's graphs are validated and planned; components still deferred
// are escalated to UnresolvedReferenceError diagnostics.
func (d *Driver) Run(ctx context.Context, source UniverseFunc) (*Result, error) {
	var prev []Deferral
	for round := 1; ; round++ {
		u, err := source(ctx, round)
		if err != nil {
			return nil, errors.Wrapf(err, "round %d", round)
		}
		res := d.buildRound(u)
		res.Rounds = round

		if len(res.Deferred) == 0 {
			d.finish(res)
			return res, nil
		}
		if round == d.maxRounds || sameDeferrals(prev, res.Deferred) {
			d.escalate(res)
			d.finish(res)
			return res, nil
		}

		d.log.Info("deferring components to next round",
			zap.Int("round", round),
			zap.Int("deferred", len(res.Deferred)))
		prev = res.Deferred
	}
}

// buildRound builds every root component graph of one universe.
func (d *Driver) buildRound(u *model.Universe) *Result {
	res := &Result{
		Graphs: map[string]*graph.Graph{},
		Plans:  map[string]*plan.Plan{},
		Diags:  &diag.Sink{},
	}
	for _, comp := range u.Roots() {
		g, deferred := graph.Build(u, comp, d.opts)
		if deferred != nil {
			res.Deferred = append(res.Deferred, Deferral{
				Component: deferred.Component,
				Refs:      dedupe(deferred.Refs),
			})
			d.log.Debug("component deferred",
				zap.String("component", deferred.Component),
				zap.Strings("refs", deferred.Refs))
			continue
		}
		res.Graphs[comp.Name] = g
	}
	return res
}

// finish validates the resolved graphs and plans the clean ones.
func (d *Driver) finish(res *Result) {
	names := make([]string, 0, len(res.Graphs))
	for name := range res.Graphs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		g := res.Graphs[name]
		before := errorCount(res.Diags)
		validate.Validate(g, d.opts, res.Diags)
		if errorCount(res.Diags) > before {
			d.log.Warn("component failed validation", zap.String("component", name))
			continue
		}
		res.Plans[name] = plan.New(g, d.opts)
	}
	d.log.Info("compilation finished",
		zap.Int("rounds", res.Rounds),
		zap.Int("planned", len(res.Plans)),
		zap.Int("deferred", len(res.Deferred)),
		zap.Int("diagnostics", len(res.Diags.All())))
}

// escalate turns remaining deferrals into hard diagnostics.
func (d *Driver) escalate(res *Result) {
	for _, df := range res.Deferred {
		err := diag.UnresolvedReferenceError{Component: df.Component, Refs: df.Refs}
		if d.opts.IncludeStacktraceWithDeferredErrorMessages {
			err.Cause = errors.Errorf("component %s deferred after %d rounds", df.Component, res.Rounds)
		}
		res.Diags.Report(diag.Error, err, df.Component, model.Position{})
	}
}

func errorCount(s *diag.Sink) int {
	n := 0
	for _, d := range s.All() {
		if d.Severity == diag.Error {
			n++
		}
	}
	return n
}

func dedupe(refs []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range refs {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	sort.Strings(out)
	return out
}

// sameDeferrals reports whether two rounds deferred identically, meaning
// another round cannot make progress.
func sameDeferrals(a, b []Deferral) bool {
	if len(a) != len(b) {
		return false
	}
	return deferralKey(a) == deferralKey(b)
}

func deferralKey(ds []Deferral) string {
	parts := make([]string, 0, len(ds))
	for _, d := range ds {
		parts = append(parts, d.Component+"="+strings.Join(d.Refs, ","))
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}
