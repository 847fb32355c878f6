package sails

import (
	"errors"
	"fmt"
)

// Fault codes, one per failure class of an RPC over the socket.
const (
	CodeEncode      = "encode_fault"
	CodeDecode      = "decode_fault"
	CodeTimeout     = "timeout_fault"
	CodeApplication = "application_fault"
	CodeTransport   = "transport_fault"
)

var (
	ErrEncode      = errors.New("envelope could not be encoded")
	ErrDecode      = errors.New("acknowledgement could not be decoded")
	ErrTimeout     = errors.New("no acknowledgement before timeout")
	ErrApplication = errors.New("server reported failure")
	ErrTransport   = errors.New("transport failure")
)

var sentinels = map[string]error{
	CodeEncode:      ErrEncode,
	CodeDecode:      ErrDecode,
	CodeTimeout:     ErrTimeout,
	CodeApplication: ErrApplication,
	CodeTransport:   ErrTransport,
}

// Fault wraps a code, the operation that failed and the underlying cause.
// Status is the response status code for application faults.
type Fault struct {
	Code   string
	Op     string
	Status int
	Err    error
}

func (f *Fault) Error() string {
	msg := f.Code
	if f.Op != "" {
		msg = f.Op + ": " + msg
	}
	if f.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", f.Status)
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Is matches the sentinel error of the fault's code.
func (f *Fault) Is(target error) bool {
	return sentinels[f.Code] == target
}

func fault(code, op string, err error) *Fault {
	return &Fault{Code: code, Op: op, Err: err}
}

// ApplicationFault reports a decoded response the server marked as failed.
func ApplicationFault(op string, status int, err error) *Fault {
	return &Fault{Code: CodeApplication, Op: op, Status: status, Err: err}
}

// TransportFault reports a connection-level error surfaced by the transport.
func TransportFault(op string, err error) *Fault {
	return fault(CodeTransport, op, err)
}

// CodeOf returns the fault code carried by err, or "" if err is not a Fault.
func CodeOf(err error) string {
	var f *Fault
	if errors.As(err, &f) {
		return f.Code
	}
	return ""
}
