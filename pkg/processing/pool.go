package processing

import (
	"context"
	"errors"
	"sync"
	"time"

	customlog "github.com/open-teleop/scenebridge/pkg/log"
	"github.com/open-teleop/scenebridge/pkg/scene"
)

// Pool errors
var (
	ErrPoolStopped = errors.New("processing pool is not running")
	ErrQueueFull   = errors.New("processing pool queue is full")
)

// Command kinds
const (
	CommandAdd    = "add"
	CommandAppend = "append"
	CommandRemove = "remove"
)

// Command is a scene mutation waiting to be applied
type Command struct {
	Kind      string
	ID        string
	Mesh      *scene.CollisionMesh
	Source    string
	Timestamp int64

	ctx  context.Context
	done chan *ProcessResult
}

// expired reports whether the caller waiting on the command has given up.
func (c *Command) expired() bool {
	return c.ctx != nil && c.ctx.Err() != nil
}

// Topic returns the event topic results of this command are published on
func (c *Command) Topic() string {
	return "scene." + c.Kind
}

// ProcessResult is the result of processing a command
type ProcessResult struct {
	Topic     string
	Command   *Command
	Data      map[string]interface{}
	Timestamp int64
	Error     error
}

// ResultHandler is a function that handles processed results
type ResultHandler func(result *ProcessResult)

// CommandProcessor applies a command
type CommandProcessor func(cmd *Command) (map[string]interface{}, error)

// ProcessingPool is a bounded worker pool for scene commands. With a single
// worker, commands are applied in submission order.
type ProcessingPool struct {
	name          string
	workerCount   int
	logger        customlog.Logger
	commandQueue  chan *Command
	running       bool
	wg            sync.WaitGroup
	mu            sync.Mutex
	processor     CommandProcessor
	resultHandler ResultHandler
	queueSize     int
	metrics       *PoolMetrics
}

// PoolMetrics tracks metrics for a processing pool
type PoolMetrics struct {
	ProcessedCount    int64
	ErrorCount        int64
	QueuedCount       int64
	DroppedCount      int64
	LastProcessedTime int64
	ProcessingTimeAvg int64 // in microseconds
	ProcessingTimeMax int64 // in microseconds
	mu                sync.Mutex
}

// NewProcessingPool creates a new processing pool
func NewProcessingPool(
	name string,
	workerCount int,
	queueSize int,
	logger customlog.Logger,
) *ProcessingPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &ProcessingPool{
		name:         name,
		workerCount:  workerCount,
		queueSize:    queueSize,
		logger:       logger,
		commandQueue: make(chan *Command, queueSize),
		metrics:      &PoolMetrics{},
	}
}

// SetProcessor sets the command processor function
func (p *ProcessingPool) SetProcessor(processor CommandProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processor = processor
}

// SetResultHandler sets the result handler function
func (p *ProcessingPool) SetResultHandler(handler ResultHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resultHandler = handler
}

// Submit queues a command without blocking
func (p *ProcessingPool) Submit(cmd *Command) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		p.logger.Warnf("%s pool not running, discarding %s command for '%s'", p.name, cmd.Kind, cmd.ID)
		return ErrPoolStopped
	}
	if cmd.Timestamp == 0 {
		cmd.Timestamp = time.Now().UnixNano()
	}

	select {
	case p.commandQueue <- cmd:
		p.metrics.mu.Lock()
		p.metrics.QueuedCount++
		p.metrics.mu.Unlock()
		return nil
	default:
		p.metrics.mu.Lock()
		p.metrics.DroppedCount++
		p.metrics.mu.Unlock()
		p.logger.Warnf("%s pool queue is full, discarding %s command for '%s'", p.name, cmd.Kind, cmd.ID)
		return ErrQueueFull
	}
}

// SubmitAndWait queues a command and waits until it has been applied.
// When ctx ends first the command is dropped if no worker has picked it up
// yet; a command already being applied still completes.
func (p *ProcessingPool) SubmitAndWait(ctx context.Context, cmd *Command) (*ProcessResult, error) {
	cmd.ctx = ctx
	cmd.done = make(chan *ProcessResult, 1)
	if err := p.Submit(cmd); err != nil {
		return nil, err
	}
	select {
	case result := <-cmd.done:
		return result, result.Error
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Start starts the processing pool workers
func (p *ProcessingPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.running = true
	p.logger.Infof("Starting %s pool with %d workers", p.name, p.workerCount)

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop stops accepting commands and waits for the queue to drain
func (p *ProcessingPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.commandQueue)
	p.mu.Unlock()

	p.logger.Infof("Stopping %s pool", p.name)

	p.wg.Wait()
	p.logger.Infof("%s pool stopped", p.name)

	p.logMetrics()
}

// worker applies commands from the queue
func (p *ProcessingPool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debugf("%s pool worker %d started", p.name, id)

	for cmd := range p.commandQueue {
		if cmd.expired() {
			p.metrics.mu.Lock()
			p.metrics.DroppedCount++
			p.metrics.mu.Unlock()
			p.logger.Warnf("%s pool dropping %s command for '%s': %v", p.name, cmd.Kind, cmd.ID, cmd.ctx.Err())
			continue
		}

		p.logger.Debugf("%s pool worker %d processing %s for '%s'", p.name, id, cmd.Kind, cmd.ID)

		p.mu.Lock()
		processor := p.processor
		resultHandler := p.resultHandler
		p.mu.Unlock()

		var (
			result map[string]interface{}
			err    error
		)
		startTime := time.Now()
		if processor == nil {
			err = errors.New("no command processor set")
		} else {
			result, err = processor(cmd)
		}
		processingTime := time.Since(startTime).Microseconds()

		p.metrics.mu.Lock()
		p.metrics.ProcessedCount++
		p.metrics.LastProcessedTime = time.Now().UnixNano()
		if p.metrics.ProcessingTimeAvg == 0 {
			p.metrics.ProcessingTimeAvg = processingTime
		} else {
			// Simple moving average
			p.metrics.ProcessingTimeAvg = (p.metrics.ProcessingTimeAvg + processingTime) / 2
		}
		if processingTime > p.metrics.ProcessingTimeMax {
			p.metrics.ProcessingTimeMax = processingTime
		}
		if err != nil {
			p.metrics.ErrorCount++
		}
		p.metrics.mu.Unlock()

		processResult := &ProcessResult{
			Topic:     cmd.Topic(),
			Command:   cmd,
			Data:      result,
			Timestamp: cmd.Timestamp,
			Error:     err,
		}

		if err != nil {
			p.logger.Errorf("Error processing %s command for '%s' in %s pool: %v", cmd.Kind, cmd.ID, p.name, err)
		}

		if resultHandler != nil {
			resultHandler(processResult)
		}
		if cmd.done != nil {
			cmd.done <- processResult
		}
	}

	p.logger.Debugf("%s pool worker %d stopped", p.name, id)
}

// GetMetrics returns a copy of the current metrics
func (p *ProcessingPool) GetMetrics() PoolMetrics {
	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()

	return PoolMetrics{
		ProcessedCount:    p.metrics.ProcessedCount,
		ErrorCount:        p.metrics.ErrorCount,
		QueuedCount:       p.metrics.QueuedCount,
		DroppedCount:      p.metrics.DroppedCount,
		LastProcessedTime: p.metrics.LastProcessedTime,
		ProcessingTimeAvg: p.metrics.ProcessingTimeAvg,
		ProcessingTimeMax: p.metrics.ProcessingTimeMax,
	}
}

func (p *ProcessingPool) logMetrics() {
	metrics := p.GetMetrics()

	p.logger.Infof("%s pool metrics: processed=%d, errors=%d, dropped=%d, avg_time=%dµs, max_time=%dµs",
		p.name, metrics.ProcessedCount, metrics.ErrorCount, metrics.DroppedCount,
		metrics.ProcessingTimeAvg, metrics.ProcessingTimeMax)
}

// GetName returns the pool name
func (p *ProcessingPool) GetName() string {
	return p.name
}

// GetQueueLength returns the current length of the command queue
func (p *ProcessingPool) GetQueueLength() int {
	return len(p.commandQueue)
}

// GetQueueCapacity returns the capacity of the command queue
func (p *ProcessingPool) GetQueueCapacity() int {
	return p.queueSize
}
