package blobhash

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("read failed")
}

func TestSum_MatchesGitBlobIDs(t *testing.T) {
	// Expected values produced by `git hash-object`.
	tests := []struct {
		name    string
		content []byte
		want    string
	}{
		{"Empty", []byte{}, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391"},
		{"HelloNewline", []byte("hello\n"), "ce013625030ba8dba906f756967f9e9ca394464a"},
		{"TestContent", []byte("test content\n"), "d670460b4b4aece5915caf5c68d12f560a9fe3e4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sum(tt.content))
		})
	}
}

func TestSum_Deterministic(t *testing.T) {
	content := []byte("M550 P\"printer\"\r\nM552 S1\r\n")
	assert.Equal(t, Sum(content), Sum(content))
	assert.NotEqual(t, Sum(content), Sum(append(content, '\n')))
}

func TestSum_RawBytes(t *testing.T) {
	// Invalid UTF-8 must hash as-is, without re-encoding.
	a := []byte{0xff, 0xfe, 0x00, 0x41}
	b := []byte{0xff, 0xfe, 0x00, 0x42}
	assert.NotEqual(t, Sum(a), Sum(b))
	assert.Len(t, Sum(a), 40)
}

func TestSumReader(t *testing.T) {
	content := []byte("hello\n")

	t.Run("KnownSize", func(t *testing.T) {
		got := SumReader(bytes.NewReader(content), int64(len(content)))
		assert.Equal(t, Sum(content), got)
	})

	t.Run("UnknownSize", func(t *testing.T) {
		assert.Equal(t, Unavailable, SumReader(bytes.NewReader(content), -1))
	})

	t.Run("ShortRead", func(t *testing.T) {
		assert.Equal(t, Unavailable, SumReader(bytes.NewReader(content), int64(len(content)+3)))
	})

	t.Run("ReadError", func(t *testing.T) {
		assert.Equal(t, Unavailable, SumReader(failingReader{}, 4))
	})

	t.Run("NilReader", func(t *testing.T) {
		assert.Equal(t, Unavailable, SumReader(nil, 0))
	})
}

func TestDiffers(t *testing.T) {
	h := Sum([]byte("x"))
	assert.False(t, Differs(h, h))
	assert.True(t, Differs(h, Sum([]byte("y"))))
	assert.True(t, Differs(Unavailable, h))
	assert.True(t, Differs(h, Unavailable))
	assert.True(t, Differs(Unavailable, Unavailable))
}
