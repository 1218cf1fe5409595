package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Input layer.
	ErrBadRequest        = "E_BAD_REQUEST"
	ErrUnknownDefinition = "E_UNKNOWN_DEFINITION"
	ErrUnavailable       = "E_UNAVAILABLE"
	ErrNoSession         = "E_NO_SESSION"
	ErrBlocked           = "E_BLOCKED"
	ErrInvalidTarget     = "E_INVALID_TARGET"
	ErrInternal          = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:   {},
	ErrBadRequest:        {},
	ErrUnknownDefinition: {},
	ErrUnavailable:       {},
	ErrNoSession:         {},
	ErrBlocked:           {},
	ErrInvalidTarget:     {},
	ErrInternal:          {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
