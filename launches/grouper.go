package launches

import "github.com/tfkr-ae/liftoff/domain"

// Grouper memoizes Group for a working set identified by a generation number.
// The cached rows are reused until the generation or the direction changes.
// A Grouper is not safe for concurrent use, callers guard it with their own lock.
type Grouper struct {
	valid      bool
	generation uint64
	dir        Direction
	groups     [][]domain.Launch
}

// Groups returns the rows for set, recomputing them only when generation or dir differ from the cached call.
func (g *Grouper) Groups(set []domain.Launch, generation uint64, dir Direction) [][]domain.Launch {
	if g.valid && g.generation == generation && g.dir == dir {
		return g.groups
	}
	g.groups = Group(set, dir)
	g.generation = generation
	g.dir = dir
	g.valid = true
	return g.groups
}

// Reset drops the cached rows.
func (g *Grouper) Reset() {
	*g = Grouper{}
}
