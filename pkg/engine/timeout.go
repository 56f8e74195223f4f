package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chazu/boxfit/pkg/scene"
)

// EvalTimeout is the default hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

var (
	// ErrTimeout is returned when an evaluation exceeds its time limit.
	ErrTimeout = errors.New("evaluation timed out")
	// ErrSuperseded is returned when a newer evaluation started before this
	// one finished.
	ErrSuperseded = errors.New("evaluation superseded by newer request")

	// errHalted unwinds an interpreter whose caller stopped waiting.
	errHalted = errors.New("evaluation halted")
)

// evalResult is the internal type used to pass evaluation results through channels.
type evalResult struct {
	scene  *scene.Scene
	errors []EvalError
	err    error
}

// waitWithTimeout waits for a result from ch, but returns ErrTimeout if the
// evaluation exceeds timeout and ctx.Err() if ctx ends first. It uses a
// generation counter to discard stale results from previous evaluations.
//
// On timeout the caller cancels the evaluation, which halts at its next
// function call; the generation check discards anything it still sends.
func waitWithTimeout(
	ctx context.Context,
	ch <-chan evalResult,
	gen uint64,
	timeout time.Duration,
	mu *sync.Mutex,
	currentGen *uint64,
) (*scene.Scene, []EvalError, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()

		if gen != current {
			return nil, nil, ErrSuperseded
		}
		return res.scene, res.errors, res.err

	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)

	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}
