// Package registry provides a generic, type-safe registry used for the
// named install routines of custom tools.
package registry
