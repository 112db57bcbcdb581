package worker

import (
	"sync"
)

type task func()

// Pool is a fixed-size worker pool. The reconciler spins one up per cycle
// and calls Stop to wait for the batch to drain.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan task
}

func NewPool(n int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{jobs: make(chan task, 64)}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}
	return p
}

func (p *Pool) Submit(f task) { p.jobs <- f }

// Stop closes the queue and blocks until every submitted task has run.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
