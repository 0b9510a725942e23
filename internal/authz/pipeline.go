package authz

import "context"

// Stage consumes the prior authorization context and returns an enriched one,
// or a taxonomy error that terminates the pipeline. Stages must not mutate
// the input value.
type Stage func(ctx context.Context, ac Context) (Context, error)

// Pipeline is an ordered list of stages composed with fail-fast semantics:
// the first error short-circuits everything after it, so business logic is
// unreachable for a rejected request.
type Pipeline struct {
	stages []Stage
}

func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Run executes the stages in order. On failure the partial context is
// discarded; callers only ever see a fully authorized context or an error.
func (p *Pipeline) Run(ctx context.Context, ac Context) (Context, error) {
	for _, stage := range p.stages {
		next, err := stage(ctx, ac)
		if err != nil {
			return Context{}, err
		}
		ac = next
	}
	return ac, nil
}
