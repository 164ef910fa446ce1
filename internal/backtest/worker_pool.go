package backtest

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/ducminhle1904/tick-backtester/internal/monitoring"
	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

// WorkerPool replays instruments in parallel. Each instrument stays on one
// worker for its whole replay; cancellation is checked between instruments.
type WorkerPool struct {
	workerCount int
	engine      *Engine
	jobQueue    chan InstrumentJob
	resultQueue chan InstrumentResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	onResult    func(InstrumentResult)
}

// InstrumentJob represents a single instrument replay
type InstrumentJob struct {
	Index  int
	Series *types.TickSeries
}

// NewWorkerPool creates a new worker pool. jobBufferSize bounds both queues.
func NewWorkerPool(ctx context.Context, workerCount, jobBufferSize int, engine *Engine) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		workerCount: workerCount,
		engine:      engine,
		jobQueue:    make(chan InstrumentJob, jobBufferSize),
		resultQueue: make(chan InstrumentResult, jobBufferSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// OnResult registers a callback run by the worker after each instrument.
// It must be safe for concurrent use.
func (wp *WorkerPool) OnResult(fn func(InstrumentResult)) {
	wp.onResult = fn
}

// Start starts the worker pool
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the job queue and waits for in-flight replays to finish
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
}

// SubmitJob submits an instrument to the pool
func (wp *WorkerPool) SubmitJob(job InstrumentJob) error {
	if err := wp.ctx.Err(); err != nil {
		return err
	}
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// Process replays every series and returns the results in input order.
// Instruments not started before cancellation come back Skipped.
func (wp *WorkerPool) Process(series []*types.TickSeries) []InstrumentResult {
	wp.Start()

	collected := make(chan []InstrumentResult, 1)
	go func() {
		results := make([]InstrumentResult, 0, len(series))
		for res := range wp.resultQueue {
			results = append(results, res)
		}
		collected <- results
	}()

	submitted := 0
	for i, s := range series {
		if err := wp.SubmitJob(InstrumentJob{Index: i, Series: s}); err != nil {
			break
		}
		submitted++
	}
	wp.Stop()

	results := <-collected
	for i := submitted; i < len(series); i++ {
		results = append(results, InstrumentResult{Index: i, Code: codeOf(series[i]), Skipped: true, Diagnostics: newDiagnostics()})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	return results
}

// worker processes instrument jobs until the queue is closed
func (wp *WorkerPool) worker(workerID int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		result := wp.processJob(workerID, job)
		if wp.onResult != nil {
			wp.onResult(result)
		}
		wp.resultQueue <- result
	}
}

// processJob replays a single instrument unless the run was aborted
func (wp *WorkerPool) processJob(workerID int, job InstrumentJob) InstrumentResult {
	if wp.ctx.Err() != nil {
		return InstrumentResult{Index: job.Index, Code: codeOf(job.Series), Skipped: true, Diagnostics: newDiagnostics()}
	}

	monitoring.InstrumentStarted()
	defer monitoring.InstrumentFinished()

	result := wp.engine.Replay(job.Series, workerID)
	result.Index = job.Index
	return result
}

func codeOf(s *types.TickSeries) string {
	if s == nil {
		return ""
	}
	return s.Code
}

// ProgressTracker tracks the progress of a run across instruments
type ProgressTracker struct {
	total     int
	completed int
	startTime time.Time
	mutex     sync.RWMutex
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{
		total:     total,
		startTime: time.Now(),
	}
}

// Increment increments the completion count
func (pt *ProgressTracker) Increment() {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()
	pt.completed++
}

// GetProgress returns the current progress
func (pt *ProgressTracker) GetProgress() (int, int, float64, time.Duration) {
	pt.mutex.RLock()
	defer pt.mutex.RUnlock()

	elapsed := time.Since(pt.startTime)
	progress := 0.0
	if pt.total > 0 {
		progress = float64(pt.completed) / float64(pt.total) * 100
	}

	return pt.completed, pt.total, progress, elapsed
}

// EstimateTimeRemaining estimates the remaining time based on current progress
func (pt *ProgressTracker) EstimateTimeRemaining() time.Duration {
	pt.mutex.RLock()
	defer pt.mutex.RUnlock()

	if pt.completed == 0 {
		return 0
	}

	elapsed := time.Since(pt.startTime)
	avgTimePerItem := elapsed / time.Duration(pt.completed)
	remaining := pt.total - pt.completed

	return avgTimePerItem * time.Duration(remaining)
}
