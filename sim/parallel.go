package sim

import (
	"runtime"
	"sync"
)

// parallelThreshold is the minimum particle count to use parallel stepping.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// workChunk represents a range of particle snapshots for a worker to step.
type workChunk struct {
	start, end int
}

// parallelState holds resources for parallel particle stepping. Snapshots are
// built single-threaded, chunks are stepped in parallel into results, and the
// driver applies results in emission-ID order so no worker scheduling leaks
// into the outcome.
type parallelState struct {
	engine     *Engine
	snapshots  []particleSnapshot
	results    []stepResult
	numWorkers int

	workChan chan workChunk
	doneChan chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

func newParallelState(engine *Engine) *parallelState {
	return &parallelState{
		engine:     engine,
		numWorkers: runtime.GOMAXPROCS(0),
		snapshots:  make([]particleSnapshot, 0, 512),
		results:    make([]stepResult, 0, 512),
	}
}

// startWorkers launches persistent worker goroutines.
func (p *parallelState) startWorkers() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (p *parallelState) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, stepping chunks until stopped.
func (p *parallelState) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			p.computeChunk(chunk.start, chunk.end)
			p.doneChan <- struct{}{}
		}
	}
}

// computeChunk steps a range of particles. Each particle's rng belongs to
// exactly one snapshot, so chunks never share mutable state.
func (p *parallelState) computeChunk(i0, i1 int) {
	for i := i0; i < i1; i++ {
		p.engine.Step(&p.snapshots[i], &p.results[i])
	}
}

// run steps all captured snapshots, choosing single or parallel execution by
// particle count. Results are left in p.results aligned with p.snapshots.
func (p *parallelState) run() {
	n := len(p.snapshots)
	if n == 0 {
		return
	}

	if cap(p.results) < n {
		results := make([]stepResult, n)
		copy(results, p.results[:cap(p.results)])
		p.results = results
	}
	p.results = p.results[:n]

	if n < parallelThreshold {
		p.computeChunk(0, n)
		return
	}

	if !p.running {
		p.startWorkers()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers
	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end}
		dispatched++
	}
	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
}
