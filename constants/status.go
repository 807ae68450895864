package constants

// RunStatus is the state of a single pipeline run.
type RunStatus string

// Statuses in the order a successful run walks through them.
const (
	RunStatusIdle             RunStatus = "idle"
	RunStatusInitializing     RunStatus = "initializing"
	RunStatusExtractingText   RunStatus = "extractingText"
	RunStatusProcessingWithAI RunStatus = "processingWithAI"
	RunStatusMappingData      RunStatus = "mappingData"
	RunStatusCompleted        RunStatus = "completed"
	RunStatusFailed           RunStatus = "failed" // absorbing, carries a reason
)

// IsTerminal reports whether no further transition is allowed.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// Next returns the status that follows s on the success path.
func (s RunStatus) Next() (RunStatus, bool) {
	switch s {
	case RunStatusIdle:
		return RunStatusInitializing, true
	case RunStatusInitializing:
		return RunStatusExtractingText, true
	case RunStatusExtractingText:
		return RunStatusProcessingWithAI, true
	case RunStatusProcessingWithAI:
		return RunStatusMappingData, true
	case RunStatusMappingData:
		return RunStatusCompleted, true
	default:
		return "", false
	}
}
