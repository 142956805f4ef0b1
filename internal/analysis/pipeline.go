package analysis

import (
	"context"
	"log"
)

// Progress is emitted once when the pipeline starts and after every
// completed step.
type Progress struct {
	Step      StepKind `json:"step,omitempty"`
	Result    Result   `json:"result"`
	Status    Status   `json:"status"`
	Completed int      `json:"completed"`
	Total     int      `json:"total"`
}

type ProgressFunc func(Progress)

// Pipeline drives a Runner until every step is complete or one fails.
type Pipeline struct {
	runner *Runner
	logger *log.Logger
}

func NewPipeline(r *Runner, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{runner: r, logger: logger}
}

// Run executes the steps strictly in order. It returns the last known state
// along with the first error; no step is retried.
func (p *Pipeline) Run(ctx context.Context, in Input, onProgress ProgressFunc) (State, error) {
	state, err := Start(in)
	if err != nil {
		return State{}, err
	}
	total := len(Kinds())
	emit := func(step StepKind) {
		if onProgress == nil {
			return
		}
		onProgress(Progress{
			Step:      step,
			Result:    state.Result.clone(),
			Status:    state.Status.clone(),
			Completed: state.Status.Completed(),
			Total:     total,
		})
	}
	emit("")

	for !state.Status.Terminal() {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		step, _ := state.Status.Loading()
		res, st, err := p.runner.RunNextStep(ctx, state.Input, state.Result, state.Status)
		if err != nil {
			p.logger.Printf("analysis: %v", err)
			return state, err
		}
		state.Result, state.Status = res, st
		p.logger.Printf("analysis: %s complete (%d/%d)", step, st.Completed(), total)
		emit(step)
	}
	return state, nil
}
