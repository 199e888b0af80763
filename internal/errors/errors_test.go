package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/atomikpanda/mintyforge/internal/errors"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"plain", errors.New(errors.ErrBatchBusy, "batch apt-install is running"), "[BATCH_BUSY] batch apt-install is running"},
		{"formatted", errors.Newf(errors.ErrConfigInvalid, "item %d has no name", 3), "[CONFIG_INVALID] item 3 has no name"},
		{"wrapped", errors.Wrap(stderrors.New("disk full"), errors.ErrLogWrite, "append ledger"), "[LOG_WRITE] append ledger: disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapNil(t *testing.T) {
	if err := errors.Wrap(nil, errors.ErrLogWrite, "x"); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
	if err := errors.Wrapf(nil, errors.ErrLogWrite, "x %d", 1); err != nil {
		t.Errorf("Wrapf(nil) = %v, want nil", err)
	}
}

func TestIsErrorCodeThroughWrapping(t *testing.T) {
	base := errors.Wrap(stderrors.New("permission denied"), errors.ErrLogWrite, "append")
	outer := fmt.Errorf("reconcile apt-install: %w", base)

	if !errors.IsErrorCode(outer, errors.ErrLogWrite) {
		t.Error("IsErrorCode should see LOG_WRITE through fmt wrapping")
	}
	if errors.IsErrorCode(outer, errors.ErrBatchBusy) {
		t.Error("IsErrorCode matched the wrong code")
	}
	if got := errors.GetErrorCode(outer); got != errors.ErrLogWrite {
		t.Errorf("GetErrorCode = %s", got)
	}
	if got := errors.GetErrorCode(stderrors.New("plain")); got != errors.ErrUnknown {
		t.Errorf("GetErrorCode(plain) = %s, want UNKNOWN", got)
	}
}

func TestIsComparesCodes(t *testing.T) {
	err := errors.New(errors.ErrBatchBusy, "one")
	if !stderrors.Is(err, errors.New(errors.ErrBatchBusy, "other message")) {
		t.Error("errors.Is should match on code")
	}
	if stderrors.Is(err, errors.New(errors.ErrCancelled, "one")) {
		t.Error("errors.Is matched a different code")
	}
}
