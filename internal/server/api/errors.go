package api

import (
	"errors"

	"github.com/Alia5/ghostkey/apitypes"
	"github.com/Alia5/ghostkey/engine"
)

// Factory helpers returning *apitypes.ApiError (single canonical error type).
func ErrBadRequest(detail string) *apitypes.ApiError {
	return &apitypes.ApiError{Status: 400, Title: "Bad Request", Detail: detail}
}
func ErrUnauthorized(detail string) *apitypes.ApiError {
	return &apitypes.ApiError{Status: 401, Title: "Unauthorized", Detail: detail}
}
func ErrForbidden(detail string) *apitypes.ApiError {
	return &apitypes.ApiError{Status: 403, Title: "Forbidden", Detail: detail}
}
func ErrNotFound(detail string) *apitypes.ApiError {
	return &apitypes.ApiError{Status: 404, Title: "Not Found", Detail: detail}
}
func ErrConflict(detail string) *apitypes.ApiError {
	return &apitypes.ApiError{Status: 409, Title: "Conflict", Detail: detail}
}
func ErrInternal(detail string) *apitypes.ApiError {
	return &apitypes.ApiError{Status: 500, Title: "Internal Server Error", Detail: detail}
}
func ErrNotImplemented(detail string) *apitypes.ApiError {
	return &apitypes.ApiError{Status: 501, Title: "Not Implemented", Detail: detail}
}

// WrapError normalizes any error into *apitypes.ApiError. Engine errors map to
// a status by kind and carry the kind along.
func WrapError(err error) *apitypes.ApiError {
	if err == nil {
		return nil
	}
	var ae *apitypes.ApiError
	if errors.As(err, &ae) {
		return ae
	}
	var out *apitypes.ApiError
	kind := engine.KindOf(err)
	switch kind {
	case engine.KindNoSolutionText:
		out = ErrBadRequest(err.Error())
	case engine.KindSessionActive:
		out = ErrConflict(err.Error())
	case engine.KindTapCreation:
		out = ErrForbidden(err.Error())
	case engine.KindUnsupported:
		out = ErrNotImplemented(err.Error())
	default:
		// Default wrap as internal error
		out = ErrInternal(err.Error())
	}
	if kind != engine.KindUnknown {
		out.Kind = string(kind)
	}
	return out
}
