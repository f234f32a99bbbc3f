package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Action layer.
	ErrBadRequest         = "E_BAD_REQUEST"
	ErrInvalidTransition  = "E_INVALID_TRANSITION"
	ErrNotFound           = "E_NOT_FOUND"
	ErrConflict           = "E_CONFLICT"
	ErrBackendUnavailable = "E_BACKEND_UNAVAILABLE"
	ErrInternal           = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:    {},
	ErrBadRequest:         {},
	ErrInvalidTransition:  {},
	ErrNotFound:           {},
	ErrConflict:           {},
	ErrBackendUnavailable: {},
	ErrInternal:           {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
