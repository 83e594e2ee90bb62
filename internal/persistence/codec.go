package persistence

import (
	"bytes"
	"encoding/gob"

	"github.com/petrijr/toolflow/pkg/api"
)

func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register([]string{})
	gob.Register(map[string]string{})
}

// contextPayload is the gob shape of a FlowContext.
type contextPayload struct {
	Data        map[string]any
	StepResults map[string]api.StepResult
	LastStepID  string
	LastResult  any
	Trace       []string
}

// EncodeContext serializes fctx with encoding/gob. Tool results of custom
// types must be registered with gob.Register by the caller.
func EncodeContext(fctx *api.FlowContext) ([]byte, error) {
	if fctx == nil {
		return nil, nil
	}
	payload := contextPayload{
		Data:        fctx.Data,
		StepResults: fctx.StepResults,
		LastStepID:  fctx.LastStepID,
		LastResult:  fctx.LastResult,
		Trace:       fctx.Trace,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeContext is the inverse of EncodeContext. Empty input decodes to nil.
func DecodeContext(data []byte) (*api.FlowContext, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var payload contextPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return nil, err
	}
	fctx := api.NewFlowContext(payload.Data)
	for id, r := range payload.StepResults {
		fctx.StepResults[id] = r
	}
	fctx.LastStepID = payload.LastStepID
	fctx.LastResult = payload.LastResult
	fctx.Trace = payload.Trace
	return fctx, nil
}
