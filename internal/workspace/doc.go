// Package workspace manages scratch directories for a run. The documentation
// generator writes into per-step subdirectories before the output is zipped
// into an artifact; everything is removed when the run ends.
package workspace
