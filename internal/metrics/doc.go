// Package metrics provides step, submission and run metrics for shipwright.
//
// Components receive a Recorder; NoopRecorder is the default so callers never
// nil-check. PrometheusRecorder registers its collectors on a caller-supplied
// registry, and WriteTextfile dumps that registry for node_exporter's textfile
// collector after a CLI run.
package metrics
