package orchestrator

// State is the phase a scrape run is in
type State int32

const (
	StateIdle State = iota
	StateLocatingSearchTab
	StateWaitingForStability
	StateExtractingSearch
	StateIteratingDetails
	StateExtractingDetail
	StatePersisting
	StateDispatching
)

var stateNames = [...]string{
	StateIdle:                "idle",
	StateLocatingSearchTab:   "locating_search_tab",
	StateWaitingForStability: "waiting_for_stability",
	StateExtractingSearch:    "extracting_search",
	StateIteratingDetails:    "iterating_details",
	StateExtractingDetail:    "extracting_detail",
	StatePersisting:          "persisting",
	StateDispatching:         "dispatching",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON responses
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is how a run ended
type Status string

const (
	StatusCompleted Status = "completed"
	// StatusSkipped means another run was already in progress
	StatusSkipped Status = "skipped"
	// StatusAbandoned means the run stopped early without persisting anything
	StatusAbandoned Status = "abandoned"
	StatusFailed    Status = "failed"
)
