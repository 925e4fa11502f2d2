package stats

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	outcomeSuccess = "success"
	outcomeTimeout = "timeout"
	outcomeError   = "error"
)

// fetchOp is one bounded read. run executes the query against its own
// deadline and returns an apply closure that folds the result into the
// snapshot; apply is only invoked for results that arrive in time, so a
// query that outlives its deadline can never touch shared state.
type fetchOp struct {
	name    string
	timeout time.Duration
	run     func(ctx context.Context) (apply func(), err error)
}

// settleAll runs every op concurrently and waits for each to finish or
// time out, whichever comes first. No op can fail the batch: the caller
// gets a per-op outcome and whatever subset of applies succeeded.
func settleAll(ctx context.Context, ops []fetchOp) map[string]string {
	type settled struct {
		apply func()
		err   error
	}

	outcomes := make(map[string]string, len(ops))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, op := range ops {
		wg.Add(1)
		go func(op fetchOp) {
			defer wg.Done()
			opCtx, cancel := context.WithTimeout(ctx, op.timeout)
			defer cancel()

			done := make(chan settled, 1)
			go func() {
				apply, err := op.run(opCtx)
				done <- settled{apply: apply, err: err}
			}()

			select {
			case res := <-done:
				mu.Lock()
				switch {
				case errors.Is(res.err, context.DeadlineExceeded):
					outcomes[op.name] = outcomeTimeout
				case res.err != nil:
					outcomes[op.name] = outcomeError
				default:
					res.apply()
					outcomes[op.name] = outcomeSuccess
				}
				mu.Unlock()
			case <-opCtx.Done():
				mu.Lock()
				outcomes[op.name] = outcomeTimeout
				mu.Unlock()
			}
		}(op)
	}

	wg.Wait()
	return outcomes
}
