// Package scheduler runs configured plugins on cron schedules,
// bypassing the model loop. Jobs invoke plugins directly with a fixed
// input payload.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/libreassistant/libreassistant/internal/plugin"
)

// DirectRunner executes one plugin outside the model loop.
type DirectRunner interface {
	RunDirect(ctx context.Context, pluginID string, input map[string]any) plugin.Result
}

// Job is one scheduled plugin invocation.
type Job struct {
	Name     string
	Schedule string
	Plugin   string
	Input    map[string]any
}

// jobState tracks the last run of a registered job.
type jobState struct {
	job     Job
	entryID cron.EntryID

	mu         sync.Mutex
	lastRun    time.Time
	lastResult *plugin.Result
}

// JobStatus is the externally visible state of one job.
type JobStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	Plugin    string    `json:"plugin"`
	LastRun   time.Time `json:"last_run,omitzero"`
	NextRun   time.Time `json:"next_run,omitzero"`
	LastOK    bool      `json:"last_ok"`
	LastError string    `json:"last_error,omitempty"`
	EverRan   bool      `json:"ever_ran"`
}

// Scheduler owns the cron runner and the registered jobs.
type Scheduler struct {
	runner DirectRunner
	cron   *cron.Cron

	mu   sync.RWMutex
	jobs map[string]*jobState
}

// New builds a scheduler dispatching through runner. Schedules use the
// standard five-field cron syntax.
func New(runner DirectRunner) *Scheduler {
	return &Scheduler{
		runner: runner,
		cron:   cron.New(),
		jobs:   make(map[string]*jobState),
	}
}

// Add registers a job. Duplicate names and invalid schedules are
// configuration errors.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Plugin == "" || job.Schedule == "" {
		return fmt.Errorf("scheduler: job needs name, schedule and plugin")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("scheduler: job %q already registered", job.Name)
	}
	st := &jobState{job: job}
	entryID, err := s.cron.AddFunc(job.Schedule, func() { s.run(st) })
	if err != nil {
		return fmt.Errorf("scheduler: job %q: %w", job.Name, err)
	}
	st.entryID = entryID
	s.jobs[job.Name] = st
	return nil
}

// Remove deregisters a job by name.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("scheduler: job %q not found", name)
	}
	s.cron.Remove(st.entryID)
	delete(s.jobs, name)
	return nil
}

// Start begins firing schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunNow fires a job immediately, outside its schedule.
func (s *Scheduler) RunNow(name string) (plugin.Result, error) {
	s.mu.RLock()
	st, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return plugin.Result{}, fmt.Errorf("scheduler: job %q not found", name)
	}
	s.run(st)
	st.mu.Lock()
	defer st.mu.Unlock()
	return *st.lastResult, nil
}

func (s *Scheduler) run(st *jobState) {
	result := s.runner.RunDirect(context.Background(), st.job.Plugin, st.job.Input)
	if !result.Success {
		log.Printf("scheduler: job %q plugin %q failed: %s", st.job.Name, st.job.Plugin, result.Error)
	}
	st.mu.Lock()
	st.lastRun = time.Now()
	st.lastResult = &result
	st.mu.Unlock()
}

// Status reports every registered job in no particular order.
func (s *Scheduler) Status() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]JobStatus, 0, len(s.jobs))
	for _, st := range s.jobs {
		st.mu.Lock()
		js := JobStatus{
			Name:     st.job.Name,
			Schedule: st.job.Schedule,
			Plugin:   st.job.Plugin,
			LastRun:  st.lastRun,
			EverRan:  st.lastResult != nil,
		}
		if st.lastResult != nil {
			js.LastOK = st.lastResult.Success
			js.LastError = st.lastResult.Error
		}
		st.mu.Unlock()
		js.NextRun = s.cron.Entry(st.entryID).Next
		out = append(out, js)
	}
	return out
}
