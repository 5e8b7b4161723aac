package request

import dErrors "rcaflow/pkg/domain-errors"

var errPanic = dErrors.New(dErrors.CodeInternal, "unexpected server error")
