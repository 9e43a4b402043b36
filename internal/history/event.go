package history

import (
	"encoding/json"
	"time"

	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
)

// Event types.
const (
	TypeRunStarted         = "RunStarted"
	TypeStepFinished       = "StepFinished"
	TypeSubmissionFinished = "SubmissionFinished"
	TypeReleaseTransition  = "ReleaseTransition"
	TypeRunCompleted       = "RunCompleted"
)

// Event is a single recorded fact about a run.
type Event struct {
	ID        int64
	RunID     string
	Type      string
	Timestamp time.Time
	Payload   []byte
	Metadata  map[string]string
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryHistory, "failed to unmarshal event payload").
			WithContext("run_id", e.RunID).
			WithContext("type", e.Type).
			Build()
	}
	return nil
}

func newEvent(runID, typ string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "failed to marshal "+typ+" payload").
			WithContext("run_id", runID).
			Build()
	}
	return &Event{
		RunID:     runID,
		Type:      typ,
		Timestamp: time.Now(),
		Payload:   data,
	}, nil
}
