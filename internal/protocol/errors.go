package protocol

import (
	"errors"

	"github.com/danmuck/edgelink/internal/protocol/wire"
)

var (
	ErrTruncated      = wire.ErrShortRead
	ErrStringTooLarge = wire.ErrStringTooLarge
	ErrBodyTooLarge   = wire.ErrBodyTooLarge
	ErrInvalidUTF8    = wire.ErrInvalidUTF8
	ErrFieldTooLong   = wire.ErrFieldTooLong
	ErrListTooLong    = wire.ErrListTooLong

	ErrUnknownTag      = errors.New("protocol: unknown tag")
	ErrInvalidStatus   = errors.New("protocol: invalid status byte")
	ErrInvalidBool     = errors.New("protocol: invalid bool byte")
	ErrInvalidRequest  = errors.New("protocol: invalid request")
	ErrInvalidResponse = errors.New("protocol: invalid response")
)

var decodeErrors = []error{
	ErrTruncated,
	ErrStringTooLarge,
	ErrBodyTooLarge,
	ErrInvalidUTF8,
	ErrUnknownTag,
	ErrInvalidStatus,
	ErrInvalidBool,
}

// IsDecodeError reports whether err means the frame itself was malformed, as
// opposed to the transport failing underneath the decoder.
func IsDecodeError(err error) bool {
	for _, target := range decodeErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// NeedsResync reports whether a decode failure stopped inside a frame whose
// remaining bytes cannot be located: the frame timed out, or a declared length
// exceeded its limit and the payload was left unread. Other failures consume
// exactly the bytes read up to the bad field, so whatever is buffered after
// them is the next frame and must be kept.
func NeedsResync(err error) bool {
	return errors.Is(err, ErrTruncated) || errors.Is(err, ErrStringTooLarge) || errors.Is(err, ErrBodyTooLarge)
}

// DecodeReason returns a short metric label for a decode error.
func DecodeReason(err error) string {
	switch {
	case errors.Is(err, ErrTruncated):
		return "truncated"
	case errors.Is(err, ErrUnknownTag):
		return "unknown_tag"
	case errors.Is(err, ErrStringTooLarge), errors.Is(err, ErrBodyTooLarge):
		return "too_large"
	case errors.Is(err, ErrInvalidUTF8):
		return "invalid_utf8"
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidBool):
		return "invalid_value"
	default:
		return "other"
	}
}
