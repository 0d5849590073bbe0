// pkg/errors/errors_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: None
// PURPOSE: Test error creation, wrapping, classification and utility functions

package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    errors.ErrorCode
		message string
		wantStr string
	}{
		{
			name:    "not_found_error",
			code:    errors.ErrNotFound,
			message: "file not found",
			wantStr: "[NOT_FOUND] file not found",
		},
		{
			name:    "cycle_error",
			code:    errors.ErrCycle,
			message: "a -> b -> a",
			wantStr: "[CYCLE] a -> b -> a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := errors.New(tt.code, tt.message)

			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.NotNil(t, err.Details)
			assert.Equal(t, tt.wantStr, err.Error())
		})
	}
}

func TestWrap(t *testing.T) {
	base := stderrors.New("disk full")

	err := errors.Wrapf(base, errors.ErrFileWrite, "writing %s", "fingerprint.toml")
	require.NotNil(t, err)
	assert.Equal(t, "[FILE_WRITE] writing fingerprint.toml: disk full", err.Error())
	assert.True(t, stderrors.Is(err, base))

	assert.Nil(t, errors.Wrap(nil, errors.ErrFileWrite, "ignored"))
	assert.Nil(t, errors.Wrapf(nil, errors.ErrFileWrite, "ignored %d", 1))
}

func TestWithDetail(t *testing.T) {
	err := errors.New(errors.ErrConflict, "conflict").
		WithDetail("left", "a").
		WithDetail("right", "b")

	details := errors.GetErrorDetails(err)
	assert.Equal(t, "a", details["left"])
	assert.Equal(t, "b", details["right"])
	assert.Nil(t, errors.GetErrorDetails(stderrors.New("plain")))
}

func TestIsComparesCodes(t *testing.T) {
	err := errors.Newf(errors.ErrStateLocked, "locked by %d", 42)

	assert.True(t, stderrors.Is(err, errors.New(errors.ErrStateLocked, "")))
	assert.False(t, stderrors.Is(err, errors.New(errors.ErrStateCorrupt, "")))
}

func TestIsErrorCodeThroughChain(t *testing.T) {
	inner := errors.New(errors.ErrNetwork, "timeout")
	outer := fmt.Errorf("fetching rustup-init: %w", inner)

	assert.True(t, errors.IsErrorCode(outer, errors.ErrNetwork))
	assert.False(t, errors.IsErrorCode(outer, errors.ErrChecksum))
	assert.Equal(t, errors.ErrNetwork, errors.GetErrorCode(outer))
	assert.Equal(t, errors.ErrUnknown, errors.GetErrorCode(stderrors.New("plain")))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.Kind
	}{
		{"conflict", errors.New(errors.ErrConflict, "x"), errors.KindConfiguration},
		{"cycle", errors.New(errors.ErrCycle, "x"), errors.KindConfiguration},
		{"partial_download", errors.New(errors.ErrPartialDownload, "x"), errors.KindNetwork},
		{"in_use", errors.New(errors.ErrFileInUse, "x"), errors.KindFileSystem},
		{"toolchain", errors.New(errors.ErrToolchain, "x"), errors.KindExternalTool},
		{"locked", errors.New(errors.ErrStateLocked, "x"), errors.KindStateInconsistency},
		{"wrapped", fmt.Errorf("ctx: %w", errors.New(errors.ErrExternalTool, "x")), errors.KindExternalTool},
		{"plain", stderrors.New("x"), errors.KindUnknown},
		{"internal", errors.New(errors.ErrInternal, "x"), errors.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.KindOf(tt.err))
		})
	}
}
