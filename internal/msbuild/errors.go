package msbuild

import "fmt"

// CorruptMetadataError reports a metadata document that is not
// well-formed markup. It is fatal to the pipeline: a corrupt document
// is never partially patched.
type CorruptMetadataError struct {
	Path string
	Err  error
}

func (e *CorruptMetadataError) Error() string {
	return fmt.Sprintf("metadata document %s is not well-formed: %v", e.Path, e.Err)
}

func (e *CorruptMetadataError) Unwrap() error { return e.Err }
