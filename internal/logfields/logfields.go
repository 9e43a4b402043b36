package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyStage      = "stage"
	KeyStep       = "step"
	KeyModule     = "module"
	KeyKind       = "kind"
	KeyProfile    = "profile"
	KeyArtifact   = "artifact"
	KeyDigest     = "digest"
	KeyTarget     = "target"
	KeyURL        = "url"
	KeyBranch     = "branch"
	KeyTag        = "tag"
	KeyRemote     = "remote"
	KeyVersion    = "version"
	KeyStatus     = "status"
	KeyState      = "state"
	KeyPath       = "path"
	KeyCount      = "count"
	KeyAttempt    = "attempt"
	KeyJob        = "job"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

func RunID(id string) slog.Attr      { return slog.String(KeyRunID, id) }
func Stage(name string) slog.Attr    { return slog.String(KeyStage, name) }
func Step(id string) slog.Attr       { return slog.String(KeyStep, id) }
func Module(name string) slog.Attr   { return slog.String(KeyModule, name) }
func Kind(k string) slog.Attr        { return slog.String(KeyKind, k) }
func Profile(p string) slog.Attr     { return slog.String(KeyProfile, p) }
func Artifact(name string) slog.Attr { return slog.String(KeyArtifact, name) }
func Digest(d string) slog.Attr      { return slog.String(KeyDigest, d) }
func Target(name string) slog.Attr   { return slog.String(KeyTarget, name) }
func URL(u string) slog.Attr         { return slog.String(KeyURL, u) }
func Branch(b string) slog.Attr      { return slog.String(KeyBranch, b) }
func Tag(t string) slog.Attr         { return slog.String(KeyTag, t) }
func Remote(r string) slog.Attr      { return slog.String(KeyRemote, r) }
func Version(v string) slog.Attr     { return slog.String(KeyVersion, v) }
func Status(s string) slog.Attr      { return slog.String(KeyStatus, s) }
func State(s string) slog.Attr       { return slog.String(KeyState, s) }
func Path(p string) slog.Attr        { return slog.String(KeyPath, p) }
func Count(n int) slog.Attr          { return slog.Int(KeyCount, n) }
func Attempt(n int) slog.Attr        { return slog.Int(KeyAttempt, n) }
func Job(name string) slog.Attr      { return slog.String(KeyJob, name) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Milliseconds()))
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
