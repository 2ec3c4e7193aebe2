// Package xfer implements the ASCII request/response vocabulary and
// command reassembly of §4.C: the S/R/X/H commands and their responses,
// all NUL-terminated strings carried as DATA packet payloads by the
// underlying 'i' protocol engine (uuxi.Engine).
package xfer

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/gouuxi/uuxi"
)

// Token returns the first whitespace-separated field of a (possibly
// NUL-terminated) command line, the part that identifies its kind ("S",
// "SY", "SN2", "H", "HY", ...).
func Token(line []byte) string {
	fields := split(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func split(line []byte) []string {
	s := string(bytes.TrimRight(line, "\x00"))
	return strings.Fields(s)
}

func terminate(fields []string) []byte {
	return append([]byte(strings.Join(fields, " ")), 0)
}

func unquote(s string) string {
	if s == `""` {
		return ""
	}
	return s
}

func quoteIfEmpty(s string) string {
	if s == "" {
		return `""`
	}
	return s
}

func parseOctalMode(field string) (uint32, error) {
	mode, err := strconv.ParseUint(strings.TrimPrefix(field, "0"), 8, 32)
	if err != nil {
		return 0, fmt.Errorf("xfer: bad mode field %q: %w", field, err)
	}
	return uint32(mode), nil
}

// reasonSuffix and suffixReason implement the fixed PERM/OPEN/SIZE/OTHER
// <-> 2/4/6/<none> mapping named in §6; the request kind determines how
// each numeric code is worded when logged (e.g. S's "2" is "permission
// denied", R's "2" is "no such file"), not which code is used.
func reasonSuffix(f uuxi.TransferFailure) string {
	switch f {
	case uuxi.FailPermission:
		return "2"
	case uuxi.FailOpen:
		return "4"
	case uuxi.FailSize:
		return "6"
	default:
		return ""
	}
}

func suffixReason(suffix string) uuxi.TransferFailure {
	switch suffix {
	case "2":
		return uuxi.FailPermission
	case "4":
		return uuxi.FailOpen
	case "6":
		return uuxi.FailSize
	default:
		return uuxi.FailOther
	}
}

// SendRequest is the master's "S from to user -opts temp 0mode notify
// [size]" request: master asks to send a file.
type SendRequest struct {
	From, To, User, Opts, Temp string
	Mode                       uint32
	Notify                     string
	Size                       int64
	HasSize                    bool // extended form, carries a trailing byte count
}

func (r SendRequest) Encode() []byte {
	fields := []string{"S", r.From, r.To, r.User, "-" + r.Opts, r.Temp, fmt.Sprintf("0%o", r.Mode)}
	if r.HasSize {
		fields = append(fields, quoteIfEmpty(r.Notify), strconv.FormatInt(r.Size, 10))
	} else if r.Notify != "" {
		fields = append(fields, r.Notify)
	}
	return terminate(fields)
}

func ParseSendRequest(line []byte) (SendRequest, error) {
	fields := split(line)
	if len(fields) < 7 || fields[0] != "S" {
		return SendRequest{}, fmt.Errorf("xfer: malformed S request: %q: %w", line, uuxi.ErrIllegalArgument)
	}
	mode, err := parseOctalMode(fields[6])
	if err != nil {
		return SendRequest{}, err
	}
	r := SendRequest{
		From: fields[1],
		To:   fields[2],
		User: fields[3],
		Opts: strings.TrimPrefix(fields[4], "-"),
		Temp: fields[5],
		Mode: mode,
	}
	switch len(fields) {
	case 8:
		r.Notify = fields[7]
	case 9:
		r.Notify = unquote(fields[7])
		size, err := strconv.ParseInt(fields[8], 10, 64)
		if err != nil {
			return SendRequest{}, fmt.Errorf("xfer: bad size in S request: %q", line)
		}
		r.Size = size
		r.HasSize = true
	}
	return r, nil
}

// SendResponse is the slave's response to an S request: SY, or SN2/4/6.
type SendResponse struct {
	OK     bool
	Reason uuxi.TransferFailure
}

func (r SendResponse) Encode() []byte {
	if r.OK {
		return terminate([]string{"SY"})
	}
	return terminate([]string{"SN" + reasonSuffix(r.Reason)})
}

func ParseSendResponse(line []byte) (SendResponse, error) {
	s := strings.Fields(string(bytes.TrimRight(line, "\x00")))
	if len(s) == 0 {
		return SendResponse{}, fmt.Errorf("xfer: empty response to S request: %w", uuxi.ErrIllegalArgument)
	}
	tok := s[0]
	switch {
	case tok == "SY":
		return SendResponse{OK: true}, nil
	case strings.HasPrefix(tok, "SN"):
		return SendResponse{OK: false, Reason: suffixReason(tok[2:])}, nil
	default:
		return SendResponse{}, fmt.Errorf("xfer: bad response to send request: %q: %w", line, uuxi.ErrIllegalArgument)
	}
}

// ReceiveRequest is the master's "R from to user -opts [maxsize]"
// request: master asks to receive a file.
type ReceiveRequest struct {
	From, To, User, Opts string
	MaxSize              int64
	HasMaxSize           bool
}

func (r ReceiveRequest) Encode() []byte {
	fields := []string{"R", r.From, r.To, r.User, "-" + r.Opts}
	if r.HasMaxSize {
		fields = append(fields, strconv.FormatInt(r.MaxSize, 10))
	}
	return terminate(fields)
}

func ParseReceiveRequest(line []byte) (ReceiveRequest, error) {
	fields := split(line)
	if len(fields) < 5 || fields[0] != "R" {
		return ReceiveRequest{}, fmt.Errorf("xfer: malformed R request: %q: %w", line, uuxi.ErrIllegalArgument)
	}
	r := ReceiveRequest{
		From: fields[1],
		To:   fields[2],
		User: fields[3],
		Opts: strings.TrimPrefix(fields[4], "-"),
	}
	if len(fields) >= 6 {
		size, err := strconv.ParseInt(fields[5], 10, 64)
		if err != nil {
			return ReceiveRequest{}, fmt.Errorf("xfer: bad maxsize in R request: %q", line)
		}
		r.MaxSize = size
		r.HasMaxSize = true
	}
	return r, nil
}

// ReceiveResponse is the slave's response to an R request: "RY 0mode", or
// RN2/6. A zero Mode on a successful response means the master should
// default to 0666, per §4.C's receive-file procedure.
type ReceiveResponse struct {
	OK     bool
	Mode   uint32
	Reason uuxi.TransferFailure
}

func (r ReceiveResponse) Encode() []byte {
	if r.OK {
		return terminate([]string{"RY", fmt.Sprintf("0%o", r.Mode)})
	}
	return terminate([]string{"RN" + reasonSuffix(r.Reason)})
}

func ParseReceiveResponse(line []byte) (ReceiveResponse, error) {
	fields := split(line)
	if len(fields) == 0 {
		return ReceiveResponse{}, fmt.Errorf("xfer: empty response to R request: %w", uuxi.ErrIllegalArgument)
	}
	switch {
	case fields[0] == "RY":
		var mode uint32
		if len(fields) >= 2 {
			m, err := parseOctalMode(fields[1])
			if err == nil {
				mode = m
			}
		}
		return ReceiveResponse{OK: true, Mode: mode}, nil
	case strings.HasPrefix(fields[0], "RN"):
		return ReceiveResponse{OK: false, Reason: suffixReason(fields[0][2:])}, nil
	default:
		return ReceiveResponse{}, fmt.Errorf("xfer: bad response to receive request: %q: %w", line, uuxi.ErrIllegalArgument)
	}
}

// XferRequest is the master's "X from to user -opts" wildcard/transfer
// request.
type XferRequest struct {
	From, To, User, Opts string
}

func (r XferRequest) Encode() []byte {
	return terminate([]string{"X", r.From, r.To, r.User, "-" + r.Opts})
}

func ParseXferRequest(line []byte) (XferRequest, error) {
	fields := split(line)
	if len(fields) < 5 || fields[0] != "X" {
		return XferRequest{}, fmt.Errorf("xfer: malformed X request: %q: %w", line, uuxi.ErrIllegalArgument)
	}
	return XferRequest{
		From: fields[1],
		To:   fields[2],
		User: fields[3],
		Opts: strings.TrimPrefix(fields[4], "-"),
	}, nil
}

// XferResponse is the slave's response to an X request: XY or XN.
type XferResponse struct {
	OK bool
}

func (r XferResponse) Encode() []byte {
	if r.OK {
		return terminate([]string{"XY"})
	}
	return terminate([]string{"XN"})
}

func ParseXferResponse(line []byte) (XferResponse, error) {
	switch Token(line) {
	case "XY":
		return XferResponse{OK: true}, nil
	case "XN":
		return XferResponse{OK: false}, nil
	default:
		return XferResponse{}, fmt.Errorf("xfer: bad response to transfer request: %q: %w", line, uuxi.ErrIllegalArgument)
	}
}

// ConfirmResponse is the post-transfer placement status: CY or CN5, sent
// by whichever side received and placed the file.
type ConfirmResponse struct {
	OK bool
}

func (r ConfirmResponse) Encode() []byte {
	if r.OK {
		return terminate([]string{"CY"})
	}
	return terminate([]string{"CN5"})
}

func ParseConfirmResponse(line []byte) (ConfirmResponse, error) {
	switch Token(line) {
	case "CY":
		return ConfirmResponse{OK: true}, nil
	case "CN5":
		return ConfirmResponse{OK: false}, nil
	default:
		return ConfirmResponse{}, fmt.Errorf("xfer: bad confirmation: %q: %w", line, uuxi.ErrIllegalArgument)
	}
}

// EncodeHangup, EncodeHangupYes, and EncodeHangupNo build the three
// literal hangup-handshake commands: H, HY, HN.
func EncodeHangup() []byte    { return terminate([]string{"H"}) }
func EncodeHangupYes() []byte { return terminate([]string{"HY"}) }
func EncodeHangupNo() []byte  { return terminate([]string{"HN"}) }
