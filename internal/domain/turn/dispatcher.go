package turn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jaykumar-cb/buster/internal/domain/tool"
)

// Dispatcher runs tool-call batches against a sealed registry. It holds no
// per-turn state: every Run is independent, so one dispatcher serves all
// conversations.
type Dispatcher struct {
	registry       *tool.Registry
	maxConcurrency int
	callTimeout    time.Duration
	log            *logrus.Entry
}

// NewDispatcher builds a dispatcher. maxConcurrency is clamped to at least 1;
// callTimeout <= 0 disables the per-call deadline. The registry must be
// sealed before the first Run.
func NewDispatcher(registry *tool.Registry, maxConcurrency int, callTimeout time.Duration, log *logrus.Entry) *Dispatcher {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{
		registry:       registry,
		maxConcurrency: maxConcurrency,
		callTimeout:    callTimeout,
		log:            log,
	}
}

// Run executes one turn. Every request yields exactly one result, in request
// order. Unknown names and schema-invalid arguments short-circuit to failure
// results without executing; the rest fan out concurrently under the bound.
// Run never returns an error: per-call problems live in the results, and
// parent ctx cancellation marks unfinished calls cancelled rather than
// abandoning the turn.
func (d *Dispatcher) Run(ctx context.Context, ec *tool.ExecContext, requests []Request) Turn {
	if len(requests) == 0 {
		return Turn{Requests: requests, Results: []Result{}}
	}

	results := make([]Result, len(requests))

	type job struct {
		idx int
		cap tool.Capability
	}
	jobs := make([]job, 0, len(requests))

	for i, req := range requests {
		c, err := d.registry.Lookup(req.Name)
		if err != nil {
			results[i] = failureResult(req, FailureUnknownCapability, fmt.Sprintf("no capability named %q", req.Name))
			d.log.WithFields(logrus.Fields{"call_id": req.CallID, "capability": req.Name}).Warn("unknown capability")
			continue
		}
		if err := d.registry.ValidateArgs(req.Name, req.Arguments); err != nil {
			results[i] = failureResult(req, FailureValidation, err.Error())
			d.log.WithFields(logrus.Fields{"call_id": req.CallID, "capability": req.Name}).WithError(err).Warn("argument validation failed")
			continue
		}
		jobs = append(jobs, job{idx: i, cap: c})
	}

	sem := make(chan struct{}, d.maxConcurrency)
	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			req := requests[j.idx]

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[j.idx] = failureResult(req, FailureCancelled, "turn cancelled before execution")
				return
			}
			defer func() { <-sem }()

			results[j.idx] = d.execute(ctx, j.cap, req, ec)
		}(j)
	}
	wg.Wait()

	return Turn{Requests: requests, Results: results}
}

// execute runs a single validated call with panic recovery and the
// per-call deadline. The named return lets the recover path replace the
// result in flight.
func (d *Dispatcher) execute(ctx context.Context, c tool.Capability, req Request, ec *tool.ExecContext) (res Result) {
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			res = failureResult(req, FailureExecution, "capability panicked")
			res.Elapsed = time.Since(start)
			d.log.WithFields(logrus.Fields{
				"call_id":    req.CallID,
				"capability": req.Name,
				"panic":      fmt.Sprint(p),
			}).Error("capability panicked")
		}
	}()

	callCtx := ctx
	if d.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.callTimeout)
		defer cancel()
	}

	payload, err := c.Execute(callCtx, req.Arguments, ec)
	elapsed := time.Since(start)

	if err != nil {
		kind := FailureExecution
		message := err.Error()
		switch {
		case ctx.Err() != nil:
			kind = FailureCancelled
			message = "turn cancelled during execution"
		case errors.Is(err, context.DeadlineExceeded):
			message = fmt.Sprintf("timed out after %s", d.callTimeout)
		}
		res = failureResult(req, kind, message)
		res.Elapsed = elapsed
		d.log.WithFields(logrus.Fields{
			"call_id":    req.CallID,
			"capability": req.Name,
			"kind":       kind,
			"elapsed":    elapsed,
		}).WithError(err).Warn("capability failed")
		return res
	}

	d.log.WithFields(logrus.Fields{
		"call_id":    req.CallID,
		"capability": req.Name,
		"elapsed":    elapsed,
	}).Debug("capability completed")

	return Result{
		CallID:  req.CallID,
		Name:    req.Name,
		Status:  StatusOK,
		Payload: payload,
		Elapsed: elapsed,
	}
}

func failureResult(req Request, kind FailureKind, message string) Result {
	return Result{
		CallID:  req.CallID,
		Name:    req.Name,
		Status:  StatusError,
		Failure: &Failure{Kind: kind, Message: message},
	}
}
