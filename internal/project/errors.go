package project

import "fmt"

// DiscoveryError reports an unreadable or inconsistent project layout.
// It aborts the run: without a module list nothing else can be planned.
type DiscoveryError struct {
	Path string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery failed at %s: %v", e.Path, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }
