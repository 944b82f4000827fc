package resp

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestReadCommand_Array(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "PING", input: "*1\r\n$4\r\nPING\r\n", want: []string{"PING"}},
		{name: "GET", input: "*2\r\n$3\r\nGET\r\n$6\r\nmykey1\r\n", want: []string{"GET", "mykey1"}},
		{name: "SETEX", input: "*4\r\n$5\r\nSETEX\r\n$1\r\nk\r\n$2\r\n60\r\n$1\r\nv\r\n", want: []string{"SETEX", "k", "60", "v"}},
		{name: "empty array", input: "*0\r\n", want: nil},
		{name: "null array", input: "*-1\r\n", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadCommand(bufio.NewReader(strings.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, want := range tt.want {
				if string(got[i]) != want {
					t.Errorf("arg[%d] = %q, want %q", i, got[i], want)
				}
			}
		})
	}
}

func TestReadCommand_Inline(t *testing.T) {
	got, err := ReadCommand(bufio.NewReader(strings.NewReader("get  foo\r\n")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || string(got[0]) != "get" || string(got[1]) != "foo" {
		t.Errorf("got %q", got)
	}
}

func TestReadCommand_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{name: "bad array length", input: "*x\r\n", want: ErrProtocol},
		{name: "missing bulk prefix", input: "*1\r\n+PING\r\n", want: ErrProtocol},
		{name: "array too long", input: "*2000\r\n", want: ErrLimitExceeded},
		{name: "bad terminator", input: "*1\r\n$4\r\nPINGxx", want: ErrProtocol},
		{name: "missing CRLF", input: "PING\n", want: ErrProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCommand(bufio.NewReader(strings.NewReader(tt.input)))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestWriteCommand(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := WriteCommand(w, "SET", "k", "hello world"); err != nil {
		t.Fatalf("WriteCommand: %v", err)
	}
	_ = w.Flush()

	want := "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$11\r\nhello world\r\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}

	args, err := ReadCommand(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadCommand: %v", err)
	}
	if string(args[2]) != "hello world" {
		t.Errorf("arg[2] = %q", args[2])
	}
}

func TestReadValue(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, v Value)
	}{
		{
			name:  "simple string",
			input: "+OK\r\n",
			check: func(t *testing.T, v Value) {
				if v.Kind != KindSimpleString || v.Str != "OK" {
					t.Errorf("got %+v", v)
				}
			},
		},
		{
			name:  "error",
			input: "-ERR wrong\r\n",
			check: func(t *testing.T, v Value) {
				if v.Err() == nil || v.Err().Error() != "ERR wrong" {
					t.Errorf("Err() = %v", v.Err())
				}
			},
		},
		{
			name:  "integer",
			input: ":-2\r\n",
			check: func(t *testing.T, v Value) {
				if v.Kind != KindInteger || v.Int != -2 {
					t.Errorf("got %+v", v)
				}
			},
		},
		{
			name:  "bulk",
			input: "$5\r\nhe\r\no\r\n",
			check: func(t *testing.T, v Value) {
				if v.Kind != KindBulk || v.Str != "he\r\no" {
					t.Errorf("got %+v", v)
				}
			},
		},
		{
			name:  "empty bulk",
			input: "$0\r\n\r\n",
			check: func(t *testing.T, v Value) {
				if v.Kind != KindBulk || v.Str != "" {
					t.Errorf("got %+v", v)
				}
			},
		},
		{
			name:  "null bulk",
			input: "$-1\r\n",
			check: func(t *testing.T, v Value) {
				if !v.IsNull() {
					t.Errorf("got %+v", v)
				}
			},
		},
		{
			name:  "pubsub message",
			input: "*3\r\n$7\r\nmessage\r\n$2\r\nch\r\n$2\r\nhi\r\n",
			check: func(t *testing.T, v Value) {
				if v.Kind != KindArray || len(v.Array) != 3 {
					t.Fatalf("got %+v", v)
				}
				if v.Array[0].Str != "message" || v.Array[1].Str != "ch" || v.Array[2].Str != "hi" {
					t.Errorf("got %+v", v.Array)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ReadValue(bufio.NewReader(strings.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, v)
		})
	}
}

func TestReadValue_UnknownPrefix(t *testing.T) {
	_, err := ReadValue(bufio.NewReader(strings.NewReader("?what\r\n")))
	if !errors.Is(err, ErrProtocol) {
		t.Errorf("err = %v, want ErrProtocol", err)
	}
}

func TestWriters(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	_ = WriteSimpleString(w, "PONG")
	_ = WriteError(w, "ERR nope")
	_ = WriteInteger(w, 42)
	_ = WriteBulk(w, nil)
	_ = WriteArrayHeader(w, 1)
	_ = WriteBulkString(w, "x")
	_ = w.Flush()

	want := "+PONG\r\n-ERR nope\r\n:42\r\n$-1\r\n*1\r\n$1\r\nx\r\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestNormalizeCommandName(t *testing.T) {
	if got := NormalizeCommandName([]byte("setex")); got != "SETEX" {
		t.Errorf("got %q", got)
	}
	if got := NormalizeCommandName(nil); got != "" {
		t.Errorf("got %q", got)
	}
}
