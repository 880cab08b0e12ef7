package sqlite

import "github.com/felixgeelhaar/pylab/internal/progress"

// Ensure SQLite stores implement the progress interfaces.
var (
	_ progress.Store      = (*ProgressStore)(nil)
	_ progress.AttemptLog = (*AttemptStore)(nil)
)
