package store

import "time"

// Run is one classification pass over an appliance root.
type Run struct {
	ID        string
	Root      string
	StartedAt time.Time
}

// Item is a persisted classify.Item. RelPath and AbsPath are set for files,
// PlanStack for packages.
type Item struct {
	ID        int64
	RunID     string
	Kind      string
	Value     string
	RelPath   string
	AbsPath   string
	PlanStack []string
	// Tags maps classifier names to the tags each asserted.
	Tags map[string][]string
}
