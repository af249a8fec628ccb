package cli

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reader(s string) *bufio.Reader { return bufio.NewReader(strings.NewReader(s)) }

func TestGetSimpleText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"newline terminated", "  u1  \n", "u1"},
		{"windows line ending", "yes\r\n", "yes"},
		{"no trailing newline", "eyJhbGciOi", "eyJhbGciOi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := GetSimpleText(reader(tt.input), "Paste access token", &out)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "Paste access token\n> ", out.String())
		})
	}

	_, err := GetSimpleText(reader(""), "x", io.Discard)
	assert.ErrorIs(t, err, io.EOF)
}

func TestGetMultiline(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"single line object stops at once", "{\"theme\":\"light\"}\nignored\n", `{"theme":"light"}`},
		{"object spread over lines", "{\n  \"a\": 1\n}\nignored\n", "{\n  \"a\": 1\n}"},
		{"empty line ends free text", "a\nb\n\nc\n", "a\nb"},
		{"eof without blank line", "{\"a\":\n1}", "{\"a\":\n1}"},
		{"nothing entered", "\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GetMultiline(reader(tt.input), "Enter JSON patch", io.Discard)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetPassword(t *testing.T) {
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })

	readPassword = func(int) ([]byte, error) { return []byte("s3cret"), nil }
	var out bytes.Buffer
	pw, err := GetPassword(&out, "Device passphrase")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", string(pw))
	assert.Equal(t, "Device passphrase: \n", out.String())

	readPassword = func(int) ([]byte, error) { return nil, errors.New("not a terminal") }
	_, err = GetPassword(io.Discard, "Device passphrase")
	assert.ErrorContains(t, err, "read device passphrase")
}
