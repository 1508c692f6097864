package flamegraph

type options struct {
	fileLines bool
}

type Option func(*options)

// WithFileLines makes file-named frames include their line number, so that
// closures defined at different lines are kept apart.
func WithFileLines(enabled bool) Option {
	return func(o *options) { o.fileLines = enabled }
}

// Builder folds samples into a tree. It is not safe for concurrent use.
type Builder struct {
	opts options
	root *Node
	// names is reused between samples.
	names []string
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{root: NewRoot()}
	for _, o := range opts {
		o(&b.opts)
	}
	return b
}

// Add folds a sample into the tree.
func (b *Builder) Add(s Sample) {
	b.names = b.names[:0]
	for _, f := range s.Frames {
		b.names = append(b.names, FrameName(f, b.opts.fileLines))
	}
	b.AddStack(b.names, s.weight())
}

// AddStack folds an already named stack, ordered from the outermost frame.
// Weights below 1 count as 1.
func (b *Builder) AddStack(stack []string, weight int64) {
	if weight < 1 {
		weight = 1
	}
	n := b.root
	n.Value += weight
	for _, name := range stack {
		n = n.insertChild(name)
		n.Value += weight
	}
}

// Root returns the tree built so far. The builder keeps ownership of it:
// samples added later are reflected in the returned tree.
func (b *Builder) Root() *Node { return b.root }

// Build folds samples into a new tree. Empty input yields a root-only tree.
func Build(samples []Sample, opts ...Option) *Node {
	b := NewBuilder(opts...)
	for _, s := range samples {
		b.Add(s)
	}
	return b.Root()
}
