// internal/detect/multistep.go
package detect

// StepSignals are the structural signals the field probe collects for
// multi-step detection. They come out of the extraction pass's DOM snapshot;
// deriving the flag costs no additional round trip.
type StepSignals struct {
	ProgressMarkers int `json:"progressMarkers"`
	NextControls    int `json:"nextControls"`
	FieldGroups     int `json:"fieldGroups"`
}

// IsMultiStep flags a form as multi-step when the page carries an explicit
// next/continue control, a progress indicator, or more than one distinct
// field group in a single load.
func IsMultiStep(sig StepSignals) bool {
	return sig.NextControls > 0 || sig.ProgressMarkers > 0 || sig.FieldGroups > 1
}
