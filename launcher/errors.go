package launcher

import "fmt"

// Launch steps, in execution order.
const (
	StepDataDir  = "data-dir"
	StepIdentity = "identity"
	StepConfig   = "config"
	StepManifest = "manifest"
	StepStartup  = "startup"
)

// StepError names the launch step that failed and the path it worked on.
type StepError struct {
	Step string
	Path string
	Err  error
}

func (e *StepError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Step, e.Path, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
