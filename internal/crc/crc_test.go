package crc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSumMatchesSplit(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog")

	whole := Sum(payload)
	split := SumSplit(payload[:17], payload[17:])
	assert.EqualValues(t, whole, split)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	v := Sum([]byte{1, 2, 3, 4, 5})
	buf := Encode(v)
	assert.EqualValues(t, v, Decode(buf[:]))
}

func TestEmptyPayload(t *testing.T) {
	assert.EqualValues(t, uint32(Seed), Sum(nil))
}
