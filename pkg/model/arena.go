package model

// Solver is a solver package.
type Solver struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	BuildStatus BuildStatus `json:"build_status,omitempty"`
}

// BuildStatus tracks on-cluster builds of a solver.
type BuildStatus string

const (
	BuildStatusBuilt    BuildStatus = "built"
	BuildStatusBuilding BuildStatus = "building"
	BuildStatusFailed   BuildStatus = "failed"
)

// Configuration is one run configuration of a solver.
type Configuration struct {
	ID       int64  `json:"id"`
	SolverID int64  `json:"solver_id"`
	Name     string `json:"name"`
}

// Benchmark is a problem instance.
type Benchmark struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// WorkerNode is an execution host reported by the backend.
type WorkerNode struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Arena interns shared records for the lifetime of one query so that every
// stage referencing solver 7 points at the same *Solver.
type Arena struct {
	solvers    map[int64]*Solver
	configs    map[int64]*Configuration
	benchmarks map[int64]*Benchmark
	nodes      map[int64]*WorkerNode
}

func NewArena() *Arena {
	return &Arena{
		solvers:    make(map[int64]*Solver),
		configs:    make(map[int64]*Configuration),
		benchmarks: make(map[int64]*Benchmark),
		nodes:      make(map[int64]*WorkerNode),
	}
}

// Solver interns s and returns the shared record. The first record seen for
// an id wins.
func (a *Arena) Solver(s Solver) *Solver {
	if got, ok := a.solvers[s.ID]; ok {
		return got
	}
	rec := s
	a.solvers[s.ID] = &rec
	return &rec
}

func (a *Arena) Configuration(c Configuration) *Configuration {
	if got, ok := a.configs[c.ID]; ok {
		return got
	}
	rec := c
	a.configs[c.ID] = &rec
	return &rec
}

func (a *Arena) Benchmark(b Benchmark) *Benchmark {
	if got, ok := a.benchmarks[b.ID]; ok {
		return got
	}
	rec := b
	a.benchmarks[b.ID] = &rec
	return &rec
}

func (a *Arena) Node(n WorkerNode) *WorkerNode {
	if got, ok := a.nodes[n.ID]; ok {
		return got
	}
	rec := n
	a.nodes[n.ID] = &rec
	return &rec
}

// LookupSolver returns an interned solver by id.
func (a *Arena) LookupSolver(id int64) (*Solver, bool) {
	s, ok := a.solvers[id]
	return s, ok
}

// LookupConfiguration returns an interned configuration by id.
func (a *Arena) LookupConfiguration(id int64) (*Configuration, bool) {
	c, ok := a.configs[id]
	return c, ok
}

// Len returns the number of interned records of every kind.
func (a *Arena) Len() int {
	return len(a.solvers) + len(a.configs) + len(a.benchmarks) + len(a.nodes)
}
