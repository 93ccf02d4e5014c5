package detective

import (
	"github.com/jward/detective/internal/classify"
	"github.com/jward/detective/internal/lint"
	"github.com/jward/detective/internal/store"
)

// Public type aliases for the internal types used in the Engine API.
// These are Go type aliases (=), identical to the internal types at compile
// time. External consumers use these names; no conversion is needed.

type Item = classify.Item
type FileItem = classify.FileItem
type PackageItem = classify.PackageItem
type Classifier = classify.Classifier
type Registry = classify.Registry
type Report = lint.Report
type Level = lint.Level
type Store = store.Store
type Run = store.Run
