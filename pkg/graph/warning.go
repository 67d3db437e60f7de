package graph

import "fmt"

// WarningKind classifies a ConditionResolutionWarning.
type WarningKind string

const (
	WarningUnknownReference WarningKind = "unknown_reference"
	WarningCycle            WarningKind = "cycle"
	WarningConflict         WarningKind = "conflicting_rules"
)

// Warning is a non-fatal problem found while resolving conditions. Warnings
// are logged and exposed for tooling; they never fail a schema load.
type Warning struct {
	Kind    WarningKind
	Field   string
	Ref     string
	Cycle   []string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Kind, w.Message)
}
