package poster

import "fmt"

// State is a step of a single publishing run
type State int

const (
	StateFetchingMetadata State = iota
	StateDownloading
	StateAcquiringEndpoint
	StateUploading
	StateSaving
	StatePublishing
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateFetchingMetadata:  "fetching_metadata",
	StateDownloading:       "downloading",
	StateAcquiringEndpoint: "acquiring_endpoint",
	StateUploading:         "uploading",
	StateSaving:            "saving",
	StatePublishing:        "publishing",
	StateDone:              "done",
	StateFailed:            "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StepError records the state a run was in when it failed
type StepError struct {
	State State
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.State, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
