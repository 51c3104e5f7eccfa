package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"planforge/internal/catalog"
	"planforge/internal/graph"
	"planforge/internal/logging"
)

// LaneExecutor runs a DAG concurrently while honoring each operation's
// mutability class and affinity tags:
//
//   - READ_ONLY steps run as soon as their dependencies finish.
//   - CREATE steps sharing an affinity tag never run at the same time.
//   - MUTATE steps sharing an affinity tag run strictly in topological
//     order relative to each other.
//
// A step failure cancels everything still pending; steps that never ran are
// reported as NOT_RUN, same as the sequential executor.
type LaneExecutor struct {
	// MaxWorkers bounds concurrently running steps. Zero means unbounded.
	MaxWorkers int
}

// NewLaneExecutor returns a concurrent executor with the given worker bound.
func NewLaneExecutor(maxWorkers int) *LaneExecutor {
	return &LaneExecutor{MaxWorkers: maxWorkers}
}

// Run executes the DAG's nodes concurrently over a fresh context. Dependency
// edges are enforced by waiting on each prerequisite's completion; affinity
// rules are enforced with per-tag locks and per-tag ordering chains.
func (e *LaneExecutor) Run(ctx context.Context, planID string, d *graph.DAG) (*Result, error) {
	return e.RunWith(ctx, planID, d, nil)
}

// RunWith executes the DAG over a caller-supplied context; nil runs fresh.
// The caller receives the same object back, mutated, and owns freezing it;
// only contexts the executor created itself are frozen on return.
func (e *LaneExecutor) RunWith(ctx context.Context, planID string, d *graph.DAG, actx *ActionContext) (*Result, error) {
	owned := actx == nil
	if owned {
		actx = NewActionContext()
	}
	res := &Result{
		RunID:   "run-" + uuid.New().String()[:8],
		Context: actx,
	}
	n := len(d.Nodes)
	logging.Exec("Run %s: starting concurrent plan %s (%d steps)", res.RunID, planID, n)
	timer := logging.StartTimer(logging.CategoryExec, "concurrent plan execution")
	defer timer.Stop()

	byID := make(map[string]int, n)
	done := make([]chan struct{}, n)
	for i, node := range d.Nodes {
		byID[node.ID] = i
		done[i] = make(chan struct{})
	}

	// CREATE steps contending on a tag exclude each other; MUTATE steps on
	// a tag additionally wait for the previous MUTATE holder of that tag.
	createLocks := make(map[string]*sync.Mutex)
	mutatePrev := make(map[string]chan struct{})
	waitFor := make([][]chan struct{}, n)
	locksFor := make([][]*sync.Mutex, n)
	for i, node := range d.Nodes {
		for _, edge := range node.Edges {
			waitFor[i] = append(waitFor[i], done[byID[edge.DependsOn]])
		}
		switch node.Step.Descriptor.Mutability {
		case catalog.Create:
			// Locks are always taken in sorted tag order so two steps
			// sharing several tags cannot deadlock.
			tags := append([]string(nil), node.Step.Descriptor.Affinity...)
			sort.Strings(tags)
			for _, tag := range tags {
				lock, ok := createLocks[tag]
				if !ok {
					lock = &sync.Mutex{}
					createLocks[tag] = lock
				}
				locksFor[i] = append(locksFor[i], lock)
			}
		case catalog.Mutate:
			for _, tag := range node.Step.Descriptor.Affinity {
				if prev, ok := mutatePrev[tag]; ok {
					waitFor[i] = append(waitFor[i], prev)
				}
				mutatePrev[tag] = done[i]
			}
		}
	}

	outcomes := make([]StepOutcome, n)
	seq := New()
	g, gctx := errgroup.WithContext(ctx)
	if e.MaxWorkers > 0 {
		g.SetLimit(e.MaxWorkers)
	}
	for i, node := range d.Nodes {
		g.Go(func() error {
			for _, ch := range waitFor[i] {
				select {
				case <-ch:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			for _, lock := range locksFor[i] {
				lock.Lock()
				defer lock.Unlock()
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome := seq.runStep(gctx, node.Step, res.Context)
			outcomes[i] = outcome
			if outcome.Status == StepFailed {
				logging.ExecError("Run %s: step %s failed: %v", res.RunID, node.ID, outcome.Err)
				return fmt.Errorf("step %s: %w", node.ID, outcome.Err)
			}
			close(done[i])
			return nil
		})
	}
	runErr := g.Wait()

	for i, node := range d.Nodes {
		if outcomes[i].StepID == "" {
			outcomes[i] = StepOutcome{
				StepID:   node.ID,
				ActionID: node.Step.Descriptor.ID,
				Status:   StepNotRun,
			}
		}
		if outcomes[i].Status == StepFailed && res.FailedStep == "" {
			res.FailedStep = outcomes[i].StepID
		}
	}
	res.Outcomes = outcomes
	res.Success = runErr == nil
	if owned {
		res.Context.Freeze()
	}
	logging.Exec("Run %s: finished success=%t keys=%v", res.RunID, res.Success, res.Context.Keys())
	return res, nil
}
