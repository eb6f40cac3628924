package execution

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/polyneko/types"
)

var errPoolClosed = errors.New("executor closed")

type orderJob struct {
	ctx     context.Context
	tokenID string
	quote   decimal.Decimal
	shares  decimal.Decimal
	result  chan orderOutcome
}

type orderOutcome struct {
	res *types.OrderResult
	err error
}

// pool runs blocking gateway calls on a fixed set of workers
type pool struct {
	gateway Gateway
	jobs    chan orderJob
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func newPool(workers int, gateway Gateway) *pool {
	p := &pool{
		gateway: gateway,
		jobs:    make(chan orderJob),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		res, err := p.gateway.BuyGTC(job.ctx, job.tokenID, job.quote, job.shares)
		job.result <- orderOutcome{res: res, err: err}
	}
}

// submit blocks until a worker has the order and returns its outcome.
// Once accepted, the call runs to completion even if ctx is cancelled so the
// ledger never misses a fill.
func (p *pool) submit(ctx context.Context, tokenID string, quote, shares decimal.Decimal) (*types.OrderResult, error) {
	job := orderJob{
		ctx:     context.WithoutCancel(ctx),
		tokenID: tokenID,
		quote:   quote,
		shares:  shares,
		result:  make(chan orderOutcome, 1),
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, errPoolClosed
	}
	select {
	case p.jobs <- job:
	case <-ctx.Done():
		p.mu.RUnlock()
		return nil, ctx.Err()
	}
	p.mu.RUnlock()

	out := <-job.result
	return out.res, out.err
}

// close stops accepting orders and waits for workers to drain
func (p *pool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
