package cron

import "context"

// Job is one unit of scheduled work. Name doubles as the -run-once selector.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs in run order. Weekly rewards should be registered before
// jobs that read what it writes.
type Registry struct {
	jobs   []Job
	byName map[string]Job
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{byName: map[string]Job{}}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

// Register appends job. A nil job is ignored and a second job with the same
// name replaces the first in place.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	if r.byName == nil {
		r.byName = map[string]Job{}
	}
	if _, exists := r.byName[job.Name()]; exists {
		for i, existing := range r.jobs {
			if existing.Name() == job.Name() {
				r.jobs[i] = job
			}
		}
	} else {
		r.jobs = append(r.jobs, job)
	}
	r.byName[job.Name()] = job
}

func (r *Registry) Lookup(name string) (Job, bool) {
	job, ok := r.byName[name]
	return job, ok
}

func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}
