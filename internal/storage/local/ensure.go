package local

import "github.com/felixgeelhaar/pylab/internal/progress"

// Ensure the JSON progress store implements the progress interface.
var _ progress.Store = (*ProgressStore)(nil)
