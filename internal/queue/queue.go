// Package queue implements the Queue Processor (§4.7): a bounded worker
// pool that drives (dealership, mode, template_type, options) jobs through
// the Order Resolver and Artifact Emitter. It is the second generalization
// of the teacher's bidengine.Engine/Worker pair — lighter-weight than the
// Scraper Orchestrator since jobs are one-shot, with no per-key worker
// that needs to persist between submissions.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/silverfox/cao-engine/internal/domain"
	"github.com/silverfox/cao-engine/internal/emit"
	"github.com/silverfox/cao-engine/internal/metrics"
	"github.com/silverfox/cao-engine/internal/resolver"
	"github.com/silverfox/cao-engine/internal/store"
	"github.com/silverfox/cao-engine/internal/tracing"
)

// Processor runs queued jobs against a bounded pool of goroutines.
type Processor struct {
	store    *store.Store
	resolver *resolver.Resolver
	emitter  *emit.Emitter
	logger   *slog.Logger

	queue    chan queuedJob
	queueCap int
	workers  int

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type queuedJob struct {
	job    domain.Job
	result chan domain.JobResult
}

// Option configures a Processor.
type Option func(*Processor)

// WithWorkers sets how many jobs can run concurrently. Default 4.
func WithWorkers(n int) Option {
	return func(p *Processor) { p.workers = n }
}

// WithQueueSize sets the pending-job buffer size. Default 256.
func WithQueueSize(n int) Option {
	return func(p *Processor) { p.queueCap = n }
}

func New(s *store.Store, r *resolver.Resolver, e *emit.Emitter, logger *slog.Logger, opts ...Option) *Processor {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Processor{
		store:    s,
		resolver: r,
		emitter:  e,
		logger:   logger,
		workers:  4,
		queueCap: 256,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.queue = make(chan queuedJob, p.queueCap)
	return p
}

// Start launches the fixed pool of worker goroutines.
func (p *Processor) Start() {
	for i := 0; i < p.workers; i++ {
		go p.work()
	}
	p.logger.Info("queue_processor_started", slog.Int("workers", p.workers), slog.Int("queue_size", p.queueCap))
}

// Stop cancels the processor's context: idle workers exit, and a job in
// progress has its context cancelled, so its Resolver/Emitter work is
// cancelled rather than run to completion.
func (p *Processor) Stop() {
	p.cancel()
	p.logger.Info("queue_processor_stopped")
}

// ErrQueueFull is returned when Submit can't enqueue without blocking.
var ErrQueueFull = fmt.Errorf("queue: processor is at capacity")

// Submit enqueues a job and returns a channel that receives its result
// once a worker completes it.
func (p *Processor) Submit(job domain.Job) (<-chan domain.JobResult, error) {
	result := make(chan domain.JobResult, 1)
	select {
	case p.queue <- queuedJob{job: job, result: result}:
		metrics.QueueDepth.Set(float64(len(p.queue)))
		return result, nil
	default:
		return nil, ErrQueueFull
	}
}

// SubmitAndWait enqueues a job and blocks until it completes or ctx ends.
func (p *Processor) SubmitAndWait(ctx context.Context, job domain.Job) (domain.JobResult, error) {
	ch, err := p.Submit(job)
	if err != nil {
		return domain.JobResult{}, err
	}
	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		return domain.JobResult{}, ctx.Err()
	}
}

func (p *Processor) work() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case qj := <-p.queue:
			metrics.QueueDepth.Set(float64(len(p.queue)))
			res := p.runJob(p.ctx, qj.job)
			select {
			case qj.result <- res:
			default:
			}
		}
	}
}

// runJob drives one job through PENDING -> IN_PROGRESS -> COMPLETED|FAILED,
// grounded on the teacher's implicit BidResult.Status state machine made
// explicit here as domain.JobStatus.
func (p *Processor) runJob(ctx context.Context, job domain.Job) domain.JobResult {
	ctx, span := tracing.StartSpan(ctx, "queue.run_job")
	defer span.End()
	start := time.Now()

	res := domain.JobResult{Dealership: job.Dealership, Status: domain.JobInProgress}
	p.logger.Info("queue_job_started", slog.String("dealership", job.Dealership), slog.String("mode", string(job.Mode)))

	resolution, err := p.resolve(ctx, job)
	if err != nil {
		return p.fail(res, "resolve: "+err.Error(), start)
	}

	cfg, err := p.store.DealershipConfig(ctx, job.Dealership)
	if err != nil {
		return p.fail(res, "load dealership config: "+err.Error(), start)
	}

	run, err := p.emitter.Emit(ctx, resolution, emit.Options{
		Dealership:   job.Dealership,
		Mode:         job.Mode,
		TemplateType: job.TemplateType,
		Rules:        cfg.OutputRules,
		DryRun:       job.SkipVINLogging,
		Quantity:     job.Quantity,
	})
	if err != nil {
		return p.fail(res, "emit: "+err.Error(), start)
	}

	res.Status = domain.JobCompleted
	res.Success = true
	res.VehicleCount = run.VehicleCount
	res.CSVPath = run.CSVPath
	res.RunID = run.RunID

	metrics.QueueJobsTotal.WithLabelValues(string(res.Status)).Inc()
	p.logger.Info("queue_job_completed",
		slog.String("dealership", job.Dealership),
		slog.String("run_id", run.RunID),
		slog.Int("vehicle_count", run.VehicleCount),
		slog.Duration("duration", time.Since(start)),
	)
	return res
}

func (p *Processor) resolve(ctx context.Context, job domain.Job) (domain.Resolution, error) {
	if job.Mode == domain.ModeList {
		return p.resolver.ResolveLIST(ctx, job.Dealership, job.VINs)
	}
	return p.resolver.ResolveCAO(ctx, job.Dealership)
}

func (p *Processor) fail(res domain.JobResult, reason string, start time.Time) domain.JobResult {
	res.Status = domain.JobFailed
	res.Success = false
	res.Error = reason
	metrics.QueueJobsTotal.WithLabelValues(string(res.Status)).Inc()
	p.logger.Error("queue_job_failed", slog.String("dealership", res.Dealership), slog.String("error", reason), slog.Duration("duration", time.Since(start)))
	return res
}

// Stats reports the processor's current queue depth for debug endpoints.
type Stats struct {
	QueueDepth int `json:"queue_depth"`
	Workers    int `json:"workers"`
}

func (p *Processor) Stats() Stats {
	return Stats{QueueDepth: len(p.queue), Workers: p.workers}
}
