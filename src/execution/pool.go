package execution

import (
	"context"
	"sync"

	logger "github.com/sirupsen/logrus"

	"tradingcore/src/traderr"
)

// Pool fans pending order IDs out to a fixed set of workers, each driving
// the engine. Orders for the same portfolio may land on different workers;
// the ledger's portfolio lock keeps their application serialized.
type Pool struct {
	engine  *Engine
	queue   chan uint
	workers int

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewPool creates a pool sized from cfg.
func NewPool(engine *Engine, cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	return &Pool{
		engine:  engine,
		queue:   make(chan uint, queueSize),
		workers: workers,
	}
}

// Start launches the workers. They drain the queue until Stop is called
// or the context is cancelled.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(ctx, i)
		}

		logger.WithField("workers", p.workers).Info("Execution pool started")
	})
}

// Submit queues an order for execution. Returns an error instead of
// blocking when the queue is full.
func (p *Pool) Submit(orderID uint) error {
	select {
	case p.queue <- orderID:
		return nil
	default:
		return traderr.ExecutionFailed(nil, "execution queue is full")
	}
}

// Stop closes the queue and waits for in-flight executions to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case orderID, ok := <-p.queue:
			if !ok {
				return
			}

			if _, err := p.engine.ExecuteOrder(ctx, orderID); err != nil {
				logger.WithFields(map[string]interface{}{
					"pool":     "execution",
					"worker":   id,
					"order_id": orderID,
				}).WithError(err).Error("Order execution failed")
			}
		}
	}
}
