package checker

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Siddhesh-Ghadi/rumur/internal/ast"
	"github.com/Siddhesh-Ghadi/rumur/internal/config"
)

// Checker explores a resolved, validated, reindexed model.
type Checker struct {
	model *ast.Model
	cfg   config.Config

	out    io.Writer
	errOut io.Writer

	threads   int
	stateSize int

	startStates []*ast.StartState
	rules       []*ast.SimpleRule
	properties  []*ast.PropertyRule

	queues     *Queues
	seen       *SeenSet
	rendezvous *Rendezvous

	errorCount atomic.Uint64
	rulesFired []uint64 // per worker, merged on exit
	printMu    sync.Mutex

	startTime time.Time

	statesExplored uint64 // final seen-set count, recorded by report
}

// Errors returns the number of errors found by a completed Run.
func (c *Checker) Errors() uint64 {
	return c.errorCount.Load()
}

// StatesExplored returns the number of distinct states a completed Run
// visited.
func (c *Checker) StatesExplored() uint64 {
	return c.statesExplored
}

// New prepares a checker over the model. The model must have been resolved,
// validated and reindexed.
func New(m *ast.Model, cfg config.Config, out, errOut io.Writer) *Checker {
	threads := cfg.EffectiveThreads()
	rv := NewRendezvous()

	c := &Checker{
		model:      m,
		cfg:        cfg,
		out:        out,
		errOut:     errOut,
		threads:    threads,
		stateSize:  int((m.SizeBits + 7) / 8),
		queues:     NewQueues(threads),
		seen:       NewSeenSet(cfg.SetCapacity, cfg.SetExpandThreshold, rv),
		rendezvous: rv,
		rulesFired: make([]uint64, threads),
	}

	for _, r := range m.FlattenedRules() {
		switch rule := r.(type) {
		case *ast.StartState:
			c.startStates = append(c.startStates, rule)
		case *ast.SimpleRule:
			c.rules = append(c.rules, rule)
		case *ast.PropertyRule:
			c.properties = append(c.properties, rule)
		}
	}

	return c
}

// put prints model output (the put statement) under the print lock.
func (c *Checker) put(s string) {
	c.printMu.Lock()
	fmt.Fprintln(c.out, s)
	c.printMu.Unlock()
}

// ruleLabel names a rule for error messages.
func ruleLabel(kind, name string, index int) string {
	if name != "" {
		return fmt.Sprintf("%s %q", kind, name)
	}
	return fmt.Sprintf("%s %d", kind, index)
}

// reportFailure counts one failure and, while within the error budget,
// prints it with its counterexample trace.
func (c *Checker) reportFailure(s *State, f *Failure, context string) {
	prior := c.errorCount.Add(1) - 1
	if prior >= c.cfg.MaxErrors {
		return
	}

	c.printMu.Lock()
	defer c.printMu.Unlock()

	if s != nil {
		fmt.Fprintf(c.errOut, "The following is the error trace for the error:\n\n")
	} else {
		fmt.Fprintf(c.errOut, "Result:\n\n")
	}
	if context != "" {
		fmt.Fprintf(c.errOut, "\t%s: %s\n\n", context, f.Error())
	} else {
		fmt.Fprintf(c.errOut, "\t%s\n\n", f.Error())
	}
	if s != nil {
		c.printCounterexample(s)
		fmt.Fprintf(c.errOut, "End of the error trace.\n\n")
	}
}

// printCounterexample walks the back-chain and prints states oldest-first.
func (c *Checker) printCounterexample(s *State) int {
	if s == nil {
		return 0
	}
	step := c.printCounterexample(s.Previous) + 1
	c.printState(c.errOut, s, s.Previous)
	fmt.Fprintf(c.errOut, "----------\n\n")
	return step
}

// Run explores the model and returns the process exit status: 0 when no
// errors were found, 1 otherwise.
func (c *Checker) Run() int {
	c.startTime = time.Now()

	if c.cfg.Sandbox == config.On {
		if err := sandbox(); err != nil {
			fmt.Fprintf(c.errOut, "%v\n", err)
			return 1
		}
	}

	fmt.Fprintf(c.out, "Memory usage:\n\n")
	local := c.seen.ThreadInit()
	fmt.Fprintf(c.out,
		"\t* The size of each state is %d bits (rounded up to %d bytes).\n"+
			"\t* The size of the hash table is %d slots.\n\n",
		c.model.SizeBits, c.stateSize, local.Size())

	if err := c.init(local); err != nil {
		return 1
	}

	fmt.Fprintf(c.out, "Progress Report:\n\n")

	// Warmup: the initial thread explores single-threaded until queue
	// occupancy justifies starting the rest.
	queueID := 0
	multithreaded := false
	var handled uint64
	for c.errorCount.Load() < c.cfg.MaxErrors {
		if c.threads > 1 && c.queues.Count(0) > c.threads*8 {
			multithreaded = true
			break
		}
		s := c.queues.Dequeue(&queueID)
		if s == nil {
			break
		}
		if handled++; handled%progressInterval == 0 {
			c.progressReport(local, 0)
		}
		c.checkState(s, local, 0)
	}

	if multithreaded {
		c.rendezvous.SetRunning(c.threads)

		var wg sync.WaitGroup
		for i := 1; i < c.threads; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				c.workerLoop(id, c.seen.ThreadInit())
			}(i)
		}
		c.workerLoop(0, local)
		wg.Wait()
	} else {
		c.rendezvous.OptOut()
	}

	c.report(local)
	if c.errorCount.Load() > 0 {
		return 1
	}
	return 0
}

// init runs every startstate over every quantifier tuple and seeds queue 0.
func (c *Checker) init(local *Local) error {
	for i, ss := range c.startStates {
		label := ruleLabel("startstate", ss.Name, i)

		e := &env{c: c}
		s := NewState(c.stateSize)
		e.state = s
		frame := e.push()

		run := func() error {
			e.execDecls(ss.Decls, frame)
			if err := e.execStmts(ss.Body); err != nil {
				return err
			}
			if _, added := local.Insert(s); added {
				c.queues.Enqueue(s, 0)
			}
			// Prepare a fresh state for the next quantifier tuple.
			s = NewState(c.stateSize)
			e.state = s
			return nil
		}

		var err error
		if len(ss.Quantifiers) == 0 {
			err = run()
		} else {
			err = c.forTuple(e, ss.Quantifiers, run)
		}
		if err != nil {
			f, ok := err.(*Failure)
			if !ok {
				f = failf(ModelError, "%v", err)
			}
			c.reportFailure(nil, f, label)
			return err
		}
	}
	return nil
}

// forTuple iterates a quantifier list as nested loops.
func (c *Checker) forTuple(e *env, quantifiers []*ast.Quantifier, body func() error) error {
	if len(quantifiers) == 0 {
		return body()
	}
	return e.forQuantifier(quantifiers[0], func() error {
		return c.forTuple(e, quantifiers[1:], body)
	})
}

// progressInterval is how many states a worker processes between progress
// lines.
const progressInterval = 10000

// progressReport prints one periodic occupancy line. Only the initial
// worker reports; the queue counts are snapshots.
func (c *Checker) progressReport(local *Local, id int) {
	if id != 0 {
		return
	}
	queued := 0
	for i := 0; i < c.threads; i++ {
		queued += c.queues.Count(i)
	}
	fired := c.rulesFired[id]

	c.printMu.Lock()
	fmt.Fprintf(c.out,
		"\t %d states explored in %s, with %d rules fired and %d states in the queue.\n",
		local.Count(), time.Since(c.startTime).Round(time.Second), fired, queued)
	c.printMu.Unlock()
}

// workerLoop drains queues until exploration finishes or the error budget
// is exhausted.
func (c *Checker) workerLoop(id int, local *Local) {
	queueID := id
	var handled uint64
	for c.errorCount.Load() < c.cfg.MaxErrors {
		s := c.queues.Dequeue(&queueID)
		if s == nil {
			break
		}
		if handled++; handled%progressInterval == 0 {
			c.progressReport(local, id)
		}
		c.checkState(s, local, id)
	}
	c.rendezvous.OptOut()
}

// checkState verifies the state's properties and fires every enabled rule.
func (c *Checker) checkState(s *State, local *Local, workerID int) {
	e := &env{c: c, state: s}
	e.push()

	// Properties first: an invariant violation names this state, an
	// assumption failure silently discards it.
	for i, p := range c.properties {
		label := ruleLabel(p.Property.Category.String(), p.Name, i)
		ok := true
		check := func() error {
			v, err := e.eval(p.Property.Expr)
			if err != nil {
				return err
			}
			if v == 0 {
				ok = false
				return errStopIteration
			}
			return nil
		}
		err := c.forTuple(e, p.Quantifiers, check)
		if err == errStopIteration {
			// Without quantifiers forTuple returns check's result directly.
			err = nil
		}
		if err == nil && !ok {
			if p.Property.Category == ast.Assumption {
				return // discard silently
			}
			msg := fail(InvariantViolated)
			if p.Property.Category == ast.Assertion {
				msg = fail(AssertionFailed)
			}
			c.reportFailure(s, msg, label)
			return
		}
		if err != nil {
			c.handleRuleError(s, err, label)
			return
		}
	}

	// Fire every enabled rule over every quantifier tuple.
	for i, r := range c.rules {
		label := ruleLabel("rule", r.Name, i)
		rule := r
		err := c.forTuple(e, rule.Quantifiers, func() error {
			enabled := int64(1)
			if rule.Guard != nil {
				var err error
				enabled, err = e.eval(rule.Guard)
				if err != nil {
					return err
				}
			}
			if enabled == 0 {
				return nil
			}

			next := s.Dup()
			ne := &env{c: c, state: next}
			// Copy the loop-variable bindings into the successor's frame.
			nf := ne.push()
			for k, v := range e.frames[0].vals {
				nf.vals[k] = v
			}
			ne.execDecls(rule.Decls, nf)
			if err := ne.execStmts(rule.Body); err != nil {
				return err
			}

			c.rulesFired[workerID]++
			if _, added := local.Insert(next); added {
				c.queues.Enqueue(next, int(next.Hash()%uint64(c.threads)))
			}
			return nil
		})
		if err != nil {
			c.handleRuleError(s, err, label)
			return
		}
	}
}

// handleRuleError routes a failure from a rule body: assumptions discard
// the state quietly, everything else is reported against the current
// state.
func (c *Checker) handleRuleError(s *State, err error, label string) {
	f, ok := err.(*Failure)
	if !ok {
		f = failf(ModelError, "%v", err)
	}
	if f.Kind == AssumptionFailed {
		return
	}
	c.reportFailure(s, f, label)
}

// report prints the final status and state space summary.
func (c *Checker) report(local *Local) {
	var fired uint64
	for _, n := range c.rulesFired {
		fired += n
	}

	fmt.Fprintf(c.out, "\n"+
		"==========================================================================\n"+
		"\n"+
		"Status:\n\n")
	if n := c.errorCount.Load(); n == 0 {
		fmt.Fprintf(c.out, "\tNo error found.\n\n")
	} else {
		fmt.Fprintf(c.out, "\t%d error(s) found.\n\n", n)
	}

	c.statesExplored = local.Count()

	elapsed := time.Since(c.startTime).Round(time.Second)
	fmt.Fprintf(c.out, "State Space Explored:\n\n"+
		"\t%d states, %d rules fired in %s.\n",
		c.statesExplored, fired, elapsed)
}
