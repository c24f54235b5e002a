package keygen

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rsa-key-service/internal/domain"
)

func TestSampler_Sample_BitLengthAndOdd(t *testing.T) {
	s := NewSampler(nil)

	for _, bits := range []int{8, 64, 256, 1024} {
		for i := 0; i < 50; i++ {
			n, err := s.Sample(bits)
			require.NoError(t, err)
			assert.Equal(t, bits, n.BitLen(), "bits=%d", bits)
			assert.Equal(t, uint(1), n.Bit(0), "bits=%d: want odd", bits)
		}
	}
}

func TestSampler_Sample_MasksDeterministicInput(t *testing.T) {
	// 全ビット0の入力は 2^(bits-1) + 1 になる
	s := NewSampler(bytes.NewReader(make([]byte, 16)))
	n, err := s.Sample(128)
	require.NoError(t, err)

	want := new(big.Int).Lsh(big.NewInt(1), 127)
	want.Add(want, big.NewInt(1))
	assert.Equal(t, 0, want.Cmp(n), "got %s", n)

	// 全ビット1の入力はそのまま 2^bits - 1
	s = NewSampler(bytes.NewReader(bytes.Repeat([]byte{0xff}, 16)))
	n, err = s.Sample(128)
	require.NoError(t, err)
	want = new(big.Int).Lsh(big.NewInt(1), 128)
	want.Sub(want, big.NewInt(1))
	assert.Equal(t, 0, want.Cmp(n), "got %s", n)
}

func TestSampler_Sample_InvalidBits(t *testing.T) {
	r := &countingReader{}
	s := NewSampler(r)

	for _, bits := range []int{0, -8, 7, 12, 1001} {
		_, err := s.Sample(bits)
		assert.True(t, errors.Is(err, domain.ErrInvalidBitLength), "bits=%d: got %v", bits, err)
	}
	assert.Zero(t, r.n, "no entropy may be consumed on precondition failure")
}

func TestSampler_Sample_ShortRead(t *testing.T) {
	s := NewSampler(bytes.NewReader([]byte{0x01, 0x02}))
	_, err := s.Sample(64)
	require.Error(t, err)
}

// countingReader は読み出されたバイト数を数える。
type countingReader struct {
	n int
}

func (r *countingReader) Read(p []byte) (int, error) {
	r.n += len(p)
	return len(p), nil
}
