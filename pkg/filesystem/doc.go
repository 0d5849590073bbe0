// Package filesystem provides filesystem implementations for kitman.
//
// This package contains implementations of the types.FS interface: the OS
// filesystem, with atomic writes and retries on files held open by another
// process, and afero-backed filesystems for tests and previews.
package filesystem
