// Package scheduler owns the recurring department-calculation triggers. It
// is deliberately library-free: each job sleeps on a timer until its next
// calendar fire time, runs the injected driver, and reschedules. There is no
// cross-run exclusion; a manual trigger and a scheduled tick for the same
// period may run concurrently and the later write wins.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/civicworks/pulse/internal/domain"
	"github.com/civicworks/pulse/internal/logger"
)

// Driver is the calculation entry point a job invokes on every tick.
type Driver func(ctx context.Context, period domain.PeriodType) error

// Clock abstracts the process clock for testability.
type Clock func() time.Time

// JobSpec describes one recurring job: which period it calculates and when
// it fires. Daily jobs fire every day at Hour:Minute; weekly jobs on Monday;
// monthly jobs on the 1st; quarterly jobs on the first day of each quarter.
type JobSpec struct {
	Name   string
	Period domain.PeriodType
	Hour   int
	Minute int
}

// JobNames of the four built-in recurring jobs.
const (
	JobDaily     = "department-metrics-daily"
	JobWeekly    = "department-metrics-weekly"
	JobMonthly   = "department-metrics-monthly"
	JobQuarterly = "department-metrics-quarterly"
)

type job struct {
	spec    JobSpec
	running bool
	stop    chan struct{}
}

// Scheduler keeps the in-memory job registry and runs each registered job on
// its own goroutine. The registry, clock and driver are injected; nothing is
// process-global.
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]*job
	order  []string
	driver Driver
	clock  Clock
	loc    *time.Location
	logger *logger.Logger
}

// New creates a Scheduler.
// Parameters:
//   - driver: calculation driver invoked by every job and manual trigger.
//   - clock: process clock; nil uses time.Now.
//   - loc: timezone for fire-time resolution; nil uses UTC.
//   - log: base logger.
// Returns:
//   - *Scheduler: initialized scheduler with an empty registry.
func New(driver Driver, clock Clock, loc *time.Location, log *logger.Logger) *Scheduler {
	if clock == nil {
		clock = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		jobs:   make(map[string]*job),
		driver: driver,
		clock:  clock,
		loc:    loc,
		logger: log,
	}
}

// ParseFireTime parses a "HH:MM" clock time.
func ParseFireTime(s string) (int, int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid fire time %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid fire time %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid fire time %q", s)
	}
	return hour, minute, nil
}

// Initialize registers the given jobs and starts each one. Re-registering an
// existing name restarts it with the new spec.
func (s *Scheduler) Initialize(specs []JobSpec) {
	for _, spec := range specs {
		s.register(spec)
	}
	s.logger.WithFields(logger.Fields{
		logger.FieldComponent: "scheduler",
		logger.FieldCount:     len(specs),
	}).Infof("Scheduler initialized")
}

func (s *Scheduler) register(spec JobSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[spec.Name]; ok {
		if existing.running {
			close(existing.stop)
		}
	} else {
		s.order = append(s.order, spec.Name)
	}

	j := &job{spec: spec, running: true, stop: make(chan struct{})}
	s.jobs[spec.Name] = j
	go s.run(j.spec, j.stop)
}

// run is one job's loop: sleep until the next fire time, execute, repeat.
// A stuck execution delays only this job's next tick; it never cancels it.
func (s *Scheduler) run(spec JobSpec, stop chan struct{}) {
	for {
		now := s.clock()
		next := NextRun(spec, now, s.loc)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
			s.execute(spec)
		}
	}
}

// execute runs the driver with failure isolation: errors and panics are
// logged, the job stays running, and the next tick is unaffected. There is
// no retry and no backoff.
func (s *Scheduler) execute(spec JobSpec) {
	log := s.logger.WithFields(logger.Fields{
		logger.FieldComponent: "scheduler",
		logger.FieldJob:       spec.Name,
		logger.FieldPeriod:    string(spec.Period),
	})

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Scheduled run panicked: %v", r)
		}
	}()

	started := s.clock()
	log.Infof("Scheduled run starting")

	ctx := log.WithContext(context.Background())
	if err := s.driver(ctx, spec.Period); err != nil {
		log.WithError(err).Errorf("Scheduled run failed")
		return
	}

	log.WithField(logger.FieldDurationMs, s.clock().Sub(started).Milliseconds()).
		Infof("Scheduled run complete")
}

// TriggerImmediateCalculation runs the driver for one period outside the
// schedule and propagates its error to the caller. Used for operational and
// manual runs; it takes no lock, so it may overlap a scheduled run.
func (s *Scheduler) TriggerImmediateCalculation(ctx context.Context, period domain.PeriodType) error {
	if !period.ValidForDepartments() {
		return fmt.Errorf("period %q: %w", period, domain.ErrUnknownPeriodType)
	}
	return s.driver(ctx, period)
}

// GetJobStatus returns a name-to-running map of the registry.
func (s *Scheduler) GetJobStatus() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := make(map[string]bool, len(s.jobs))
	for name, j := range s.jobs {
		status[name] = j.running
	}
	return status
}

// StopJob stops one job's loop. No-op on unknown or already-stopped names.
func (s *Scheduler) StopJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(name)
}

func (s *Scheduler) stopLocked(name string) {
	j, ok := s.jobs[name]
	if !ok || !j.running {
		return
	}
	close(j.stop)
	j.running = false
}

// StartJob restarts one stopped job. No-op on unknown or running names.
func (s *Scheduler) StartJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLocked(name)
}

func (s *Scheduler) startLocked(name string) {
	j, ok := s.jobs[name]
	if !ok || j.running {
		return
	}
	j.stop = make(chan struct{})
	j.running = true
	go s.run(j.spec, j.stop)
}

// StopAllJobs stops every registered job.
func (s *Scheduler) StopAllJobs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range s.order {
		s.stopLocked(name)
	}
}

// RestartAllJobs starts every stopped job.
func (s *Scheduler) RestartAllJobs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range s.order {
		s.startLocked(name)
	}
}

// NextRun computes a job's next fire time strictly after now.
// Parameters:
//   - spec: job spec carrying period and fire time.
//   - now: reference instant.
//   - loc: timezone for calendar arithmetic.
// Returns:
//   - time.Time: next fire instant in loc.
func NextRun(spec JobSpec, now time.Time, loc *time.Location) time.Time {
	now = now.In(loc)

	switch spec.Period {
	case domain.PeriodWeekly:
		// Next Monday at the fire time.
		daysAhead := (int(time.Monday) - int(now.Weekday()) + 7) % 7
		candidate := time.Date(now.Year(), now.Month(), now.Day()+daysAhead, spec.Hour, spec.Minute, 0, 0, loc)
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 7)
		}
		return candidate
	case domain.PeriodMonthly:
		candidate := time.Date(now.Year(), now.Month(), 1, spec.Hour, spec.Minute, 0, 0, loc)
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 1, 0)
		}
		return candidate
	case domain.PeriodQuarterly:
		quarterStart := time.Month(((int(now.Month())-1)/3)*3 + 1)
		candidate := time.Date(now.Year(), quarterStart, 1, spec.Hour, spec.Minute, 0, 0, loc)
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 3, 0)
		}
		return candidate
	default:
		// Daily and anything unrecognized: next occurrence of the fire time.
		candidate := time.Date(now.Year(), now.Month(), now.Day(), spec.Hour, spec.Minute, 0, 0, loc)
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate
	}
}
