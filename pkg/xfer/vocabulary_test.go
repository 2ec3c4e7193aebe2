package xfer

import (
	"testing"

	"github.com/gouuxi/uuxi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRequestRoundTrip(t *testing.T) {
	req := SendRequest{From: "x.txt", To: "~/x.txt", User: "alice", Opts: "C", Temp: "D.siteXfoo", Mode: 0644}
	parsed, err := ParseSendRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, req, parsed)
}

func TestSendRequestWithSizeRoundTrip(t *testing.T) {
	req := SendRequest{From: "x", To: "y", User: "u", Opts: "", Temp: "D.0", Mode: 0600, Notify: "", Size: 1000, HasSize: true}
	parsed, err := ParseSendRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, req, parsed)
}

func TestSendResponseRoundTrip(t *testing.T) {
	ok, err := ParseSendResponse(SendResponse{OK: true}.Encode())
	require.NoError(t, err)
	assert.True(t, ok.OK)

	denied, err := ParseSendResponse(SendResponse{OK: false, Reason: uuxi.FailPermission}.Encode())
	require.NoError(t, err)
	assert.False(t, denied.OK)
	assert.Equal(t, uuxi.FailPermission, denied.Reason)
}

func TestReceiveRequestRoundTrip(t *testing.T) {
	req := ReceiveRequest{From: "a", To: "b", User: "u", Opts: "C", MaxSize: 4096, HasMaxSize: true}
	parsed, err := ParseReceiveRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, req, parsed)
}

func TestReceiveResponseDefaultModeIsZero(t *testing.T) {
	resp, err := ParseReceiveResponse(terminate([]string{"RY", "00"}))
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.EqualValues(t, 0, resp.Mode)
}

func TestReceiveResponseDenied(t *testing.T) {
	resp, err := ParseReceiveResponse(ReceiveResponse{OK: false, Reason: uuxi.FailOpen}.Encode())
	require.NoError(t, err)
	assert.False(t, resp.OK)
	assert.Equal(t, uuxi.FailOpen, resp.Reason)
}

func TestXferRoundTrip(t *testing.T) {
	req := XferRequest{From: "a", To: "b", User: "u", Opts: "C"}
	parsed, err := ParseXferRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, req, parsed)

	resp, err := ParseXferResponse(XferResponse{OK: true}.Encode())
	require.NoError(t, err)
	assert.True(t, resp.OK)
}

func TestConfirmRoundTrip(t *testing.T) {
	ok, err := ParseConfirmResponse(ConfirmResponse{OK: true}.Encode())
	require.NoError(t, err)
	assert.True(t, ok.OK)

	fail, err := ParseConfirmResponse(ConfirmResponse{OK: false}.Encode())
	require.NoError(t, err)
	assert.False(t, fail.OK)
}

func TestHangupLiterals(t *testing.T) {
	assert.Equal(t, "H", Token(EncodeHangup()))
	assert.Equal(t, "HY", Token(EncodeHangupYes()))
	assert.Equal(t, "HN", Token(EncodeHangupNo()))
}

func TestTokenHandlesNulTermination(t *testing.T) {
	assert.Equal(t, "SY", Token(append([]byte("SY"), 0)))
}
