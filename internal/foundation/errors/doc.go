// Package errors provides the classified error primitives used across shipwright.
//
// A ClassifiedError carries a category (discovery, profile, packaging,
// publication, release, ...), a severity, a retry strategy and a small
// context map. Errors are created with the fluent ErrorBuilder:
//
//	err := errors.WrapError(cause, errors.CategoryPackaging, "sources jar failed").
//		WithContext("module", "acra-core").
//		Build()
//
// CLIErrorAdapter turns classified errors into exit codes and log records.
package errors
