package spoke

// Step is one operation inside a batch.
type Step func(*Engine) error

// Batch applies a sequence of engine operations as one atomic unit. Callers
// register a rollback per snapshot-capable state backend; when a step fails,
// the rollbacks run in reverse registration order and the error is returned.
// Used for multi-step flows such as supply-then-collateralize.
type Batch struct {
	engine    *Engine
	steps     []Step
	rollbacks []func()
}

// NewBatch starts an empty batch against the engine.
func NewBatch(engine *Engine) *Batch {
	return &Batch{engine: engine}
}

// OnRollback registers a function restoring one state backend to its
// pre-batch snapshot.
func (b *Batch) OnRollback(fn func()) {
	b.rollbacks = append(b.rollbacks, fn)
}

// Add appends a step.
func (b *Batch) Add(step Step) {
	b.steps = append(b.steps, step)
}

// Run executes the steps in order. The first failure rolls everything back.
func (b *Batch) Run() error {
	for _, step := range b.steps {
		if err := step(b.engine); err != nil {
			for i := len(b.rollbacks) - 1; i >= 0; i-- {
				b.rollbacks[i]()
			}
			return err
		}
	}
	return nil
}
