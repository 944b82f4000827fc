package resp

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the RESP2 reply type.
type Kind uint8

const (
	KindSimpleString Kind = iota
	KindError
	KindInteger
	KindBulk
	KindArray
	KindNull
)

func (k Kind) String() string {
	switch k {
	case KindSimpleString:
		return "simple-string"
	case KindError:
		return "error"
	case KindInteger:
		return "integer"
	case KindBulk:
		return "bulk"
	case KindArray:
		return "array"
	case KindNull:
		return "null"
	default:
		return "unknown"
	}
}

// Value is a decoded reply from the store.
type Value struct {
	Kind  Kind
	Str   string // simple string, error text or bulk payload
	Int   int64
	Array []Value
}

// IsNull reports whether the reply is a null bulk or null array.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Err returns the reply as a Go error when it is an error reply.
func (v Value) Err() error {
	if v.Kind != KindError {
		return nil
	}
	return ReplyError(v.Str)
}

// ReplyError is an error reply sent by the store ("-ERR ...").
type ReplyError string

func (e ReplyError) Error() string { return string(e) }

// WriteCommand encodes args as a RESP array of bulk strings.
func WriteCommand(w *bufio.Writer, args ...string) error {
	if err := WriteArrayHeader(w, len(args)); err != nil {
		return err
	}
	for _, a := range args {
		if err := WriteBulkString(w, a); err != nil {
			return err
		}
	}
	return nil
}

// ReadValue reads one complete reply.
func ReadValue(r *bufio.Reader) (Value, error) {
	return readValue(r, 0)
}

func readValue(r *bufio.Reader, depth int) (Value, error) {
	if depth > 8 {
		return Value{}, fmt.Errorf("%w: nesting too deep", ErrLimitExceeded)
	}
	line, err := readLine(r, MaxInlineLen)
	if err != nil {
		return Value{}, err
	}
	if line == "" {
		return Value{}, fmt.Errorf("%w: empty reply line", ErrProtocol)
	}

	switch line[0] {
	case '+':
		return Value{Kind: KindSimpleString, Str: line[1:]}, nil
	case '-':
		return Value{Kind: KindError, Str: line[1:]}, nil
	case ':':
		n, err := strconv.ParseInt(strings.TrimSpace(line[1:]), 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: invalid integer reply", ErrProtocol)
		}
		return Value{Kind: KindInteger, Int: n}, nil
	case '$':
		body, err := readBulkBody(r, line)
		if err != nil {
			return Value{}, err
		}
		if body == nil {
			return Value{Kind: KindNull}, nil
		}
		return Value{Kind: KindBulk, Str: string(body)}, nil
	case '*':
		n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
		if err != nil {
			return Value{}, fmt.Errorf("%w: invalid array length", ErrProtocol)
		}
		if n < 0 {
			return Value{Kind: KindNull}, nil
		}
		if n > MaxArrayLen {
			return Value{}, fmt.Errorf("%w: array length %d exceeds limit %d", ErrLimitExceeded, n, MaxArrayLen)
		}
		items := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			item, err := readValue(r, depth+1)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return Value{Kind: KindArray, Array: items}, nil
	default:
		return Value{}, fmt.Errorf("%w: unexpected reply prefix %q", ErrProtocol, line[0])
	}
}
