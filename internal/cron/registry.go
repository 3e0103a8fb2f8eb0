package cron

import "context"

// Job is one maintenance task the worker runs each cycle.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs a worker instance executes, in registration order.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry preloaded with the provided jobs. Nil entries
// are dropped.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	registry.Register(jobs...)
	return registry
}

// Register appends jobs to the registry, skipping nils.
func (r *Registry) Register(jobs ...Job) {
	for _, job := range jobs {
		if job == nil {
			continue
		}
		r.jobs = append(r.jobs, job)
	}
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
