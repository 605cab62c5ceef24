package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// budgetSlack is added to every derived scan budget.
const budgetSlack = 2 * time.Second

// Scheduler fans the ports of a ScanTarget out to a Prober with bounded concurrency.
type Scheduler struct {
	prober         Prober
	probeOverhead  time.Duration
	maxBudget      time.Duration
	admissionDelay time.Duration
	logger         *zap.Logger
}

// SchedulerOption customises a Scheduler.
type SchedulerOption func(*Scheduler)

// WithProbeOverhead declares how long a probe may run past its connect timeout (banner
// grabbing, process start-up). It feeds the scan budget.
func WithProbeOverhead(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.probeOverhead = d }
}

// WithMaxBudget caps the wall-clock budget of a whole scan.
func WithMaxBudget(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.maxBudget = d }
}

// WithAdmissionDelay pauses between two probe admissions to avoid flooding the target.
func WithAdmissionDelay(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.admissionDelay = d }
}

// WithLogger sets the scheduler logger.
func WithLogger(logger *zap.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = logger }
}

// NewScheduler creates a Scheduler driving prober.
func NewScheduler(prober Prober, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{prober: prober, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.String("component", "scheduler"))
	return s
}

// Budget returns the wall-clock budget for target: one full timeout plus overhead for every
// wave of MaxConcurrency probes, plus slack, capped by the configured maximum.
func (s *Scheduler) Budget(target ScanTarget) time.Duration {
	conc := target.MaxConcurrency
	if conc < 1 {
		conc = 1
	}
	waves := (len(target.Ports) + conc - 1) / conc
	budget := time.Duration(waves)*(target.Timeout+s.probeOverhead+s.admissionDelay) + budgetSlack
	if s.maxBudget > 0 && budget > s.maxBudget {
		budget = s.maxBudget
	}
	return budget
}

// Scan probes every port of target and returns the settled outcomes in completion order.
// When the scan budget expires, probes still in flight are abandoned and left out of the
// result; Aggregate reports them as Filtered. Only a broken invariant or a panicking prober
// yields a *ScanInternalError; a canceled ctx yields ctx.Err().
func (s *Scheduler) Scan(ctx context.Context, target ScanTarget) ([]PortOutcome, error) {
	if err := checkTarget(target); err != nil {
		return nil, &ScanInternalError{Err: err}
	}

	budget := s.Budget(target)
	scanCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	sem := semaphore.NewWeighted(int64(target.MaxConcurrency))
	// Buffered for every port so abandoned probes never block on send.
	results := make(chan PortOutcome, len(target.Ports))

	var (
		wg        sync.WaitGroup
		panicOnce sync.Once
		panicErr  error
	)
	fail := make(chan struct{})

	// Admission runs beside the collector so outcomes are taken in while the
	// semaphore is still contended.
	done := make(chan struct{})
	go func() {
		defer close(done)
	admit:
		for i, port := range target.Ports {
			if i > 0 && s.admissionDelay > 0 {
				select {
				case <-time.After(s.admissionDelay):
				case <-scanCtx.Done():
					break admit
				}
			}
			if err := sem.Acquire(scanCtx, 1); err != nil {
				break
			}
			wg.Add(1)
			go func(port int) {
				defer wg.Done()
				defer sem.Release(1)
				defer func() {
					if r := recover(); r != nil {
						panicOnce.Do(func() {
							panicErr = fmt.Errorf("prober panicked on port %d: %v", port, r)
							close(fail)
						})
					}
				}()
				results <- s.prober.Probe(scanCtx, target.Host, port, target.Timeout)
			}(port)
		}
		wg.Wait()
	}()

	outcomes := make([]PortOutcome, 0, len(target.Ports))
	// drain takes every outcome already sent without waiting for more.
	drain := func() {
		for {
			select {
			case outcome := <-results:
				outcomes = append(outcomes, outcome)
			default:
				return
			}
		}
	}
collect:
	for {
		select {
		case outcome := <-results:
			outcomes = append(outcomes, outcome)
		case <-fail:
			cancel()
			return nil, &ScanInternalError{Err: panicErr}
		case <-done:
			drain()
			break collect
		case <-scanCtx.Done():
			// settled outcomes are kept, only probes still in flight are abandoned
			drain()
			break collect
		}
	}

	select {
	case <-fail:
		return nil, &ScanInternalError{Err: panicErr}
	default:
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return nil, ctx.Err()
	}

	if abandoned := len(target.Ports) - len(outcomes); abandoned > 0 {
		s.logger.Warn("scan budget expired",
			zap.String("host", target.Host),
			zap.Duration("budget", budget),
			zap.Int("settled", len(outcomes)),
			zap.Int("abandoned", abandoned),
		)
	}
	return outcomes, nil
}

func checkTarget(target ScanTarget) error {
	switch {
	case target.Host == "":
		return errors.New("target has no host")
	case target.MaxConcurrency < 1:
		return fmt.Errorf("max concurrency %d is below 1", target.MaxConcurrency)
	case target.Timeout <= 0:
		return fmt.Errorf("probe timeout %s is not positive", target.Timeout)
	}
	return nil
}
