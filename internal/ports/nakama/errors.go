package nakama

import (
	"errors"

	"ito/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

var kindCodes = map[error]int{
	domain.ErrUnauthenticated:    codeUnauthenticated,
	domain.ErrInvalidArgument:    codeInvalidArgument,
	domain.ErrFailedPrecondition: codeFailedPrecondition,
	domain.ErrPermissionDenied:   codePermissionDenied,
	domain.ErrNotFound:           codeNotFound,
	domain.ErrResourceExhausted:  codeResourceExhausted,
	domain.ErrAlreadyExists:      codeAlreadyExists,
	domain.ErrDeadlineExceeded:   codeDeadlineExceeded,
}

// toRuntimeError maps an engine error onto a Nakama error with a gRPC code.
// Internal failures keep their details out of the client message.
func toRuntimeError(err error) *runtime.Error {
	var rtErr *runtime.Error
	if errors.As(err, &rtErr) {
		return rtErr
	}
	if code, ok := kindCodes[domain.KindOf(err)]; ok {
		return runtime.NewError(err.Error(), code)
	}
	return runtime.NewError("Internal error", codeInternal)
}
