package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

const (
	// LenPrefixSize is the width of every string/body length prefix.
	LenPrefixSize = 4
	// MaxListLen bounds every 1-byte-counted list.
	MaxListLen = 255
)

var (
	ErrShortRead      = errors.New("wire: short read")
	ErrStringTooLarge = errors.New("wire: string too large")
	ErrBodyTooLarge   = errors.New("wire: body too large")
	ErrInvalidUTF8    = errors.New("wire: invalid utf-8")
	ErrFieldTooLong   = errors.New("wire: value exceeds fixed field width")
	ErrListTooLong    = errors.New("wire: list exceeds 255 items")
)

// Source is the read side of a transport as the codec sees it. ReadExact
// returns exactly n bytes or an error; it never returns a partial buffer.
type Source interface {
	ReadExact(n int) ([]byte, error)
}

// Limits constrains decode memory use.
type Limits struct {
	MaxStringBytes uint32
	MaxBodyBytes   uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxStringBytes: 64 * 1024,
		MaxBodyBytes:   4 * 1024 * 1024,
	}
}

// readerSource adapts an io.Reader. Each ReadExact is one io.ReadFull call.
type readerSource struct {
	r io.Reader
}

func NewReaderSource(r io.Reader) Source {
	return readerSource{r: r}
}

func (s readerSource) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	got, err := io.ReadFull(s.r, buf)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || (errors.Is(err, io.EOF) && got == 0) {
			return nil, fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, got, n)
		}
		return nil, err
	}
	return buf, nil
}

func ReadU8(src Source) (uint8, error) {
	b, err := src.ReadExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func ReadU32(src Source) (uint32, error) {
	b, err := src.ReadExact(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func ReadI32(src Source) (int32, error) {
	v, err := ReadU32(src)
	return int32(v), err
}

// ReadString reads a 4-byte big-endian length followed by UTF-8 bytes.
func ReadString(src Source, max uint32) (string, error) {
	n, err := ReadU32(src)
	if err != nil {
		return "", err
	}
	if n > max {
		return "", fmt.Errorf("%w: %d > %d", ErrStringTooLarge, n, max)
	}
	b, err := src.ReadExact(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

// ReadBytes reads a 4-byte big-endian length followed by raw bytes. A zero
// length yields nil.
func ReadBytes(src Source, max uint32) ([]byte, error) {
	n, err := ReadU32(src)
	if err != nil {
		return nil, err
	}
	if n > max {
		return nil, fmt.Errorf("%w: %d > %d", ErrBodyTooLarge, n, max)
	}
	if n == 0 {
		return nil, nil
	}
	return src.ReadExact(int(n))
}

// ReadFixedString reads a zero-padded field of width bytes. ok is false when
// the trimmed content is not valid UTF-8.
func ReadFixedString(src Source, width int) (s string, ok bool, err error) {
	b, err := src.ReadExact(width)
	if err != nil {
		return "", false, err
	}
	b = TrimPadding(b)
	if !utf8.Valid(b) {
		return "", false, nil
	}
	return string(b), true, nil
}

// TrimPadding strips trailing zero bytes.
func TrimPadding(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return b[:end]
}

func AppendU32(dst []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(dst, v)
}

func AppendI32(dst []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(dst, uint32(v))
}

func AppendString(dst []byte, s string) []byte {
	dst = AppendU32(dst, uint32(len(s)))
	return append(dst, s...)
}

func AppendBytes(dst []byte, b []byte) []byte {
	dst = AppendU32(dst, uint32(len(b)))
	return append(dst, b...)
}

// AppendFixed writes b zero-padded to width bytes.
func AppendFixed(dst []byte, b []byte, width int) ([]byte, error) {
	if len(b) > width {
		return nil, fmt.Errorf("%w: %d > %d", ErrFieldTooLong, len(b), width)
	}
	dst = append(dst, b...)
	for i := len(b); i < width; i++ {
		dst = append(dst, 0)
	}
	return dst, nil
}

// AppendCount writes the 1-byte list count.
func AppendCount(dst []byte, n int) ([]byte, error) {
	if n > MaxListLen {
		return nil, fmt.Errorf("%w: %d", ErrListTooLong, n)
	}
	return append(dst, byte(n)), nil
}
