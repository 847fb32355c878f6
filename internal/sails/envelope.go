// Package sails implements the Sails.js "virtual request" convention used by
// Floatplane over Socket.IO: a request envelope is emitted on the "get" or
// "post" event and the acknowledgement carries a response envelope with a
// status code.
package sails

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vovakirdan/floatchat/internal/sio"
)

// Method selects the socket event a request is emitted on.
type Method string

const (
	MethodGet  Method = "get"
	MethodPost Method = "post"
)

// Event returns the socket event name for the method.
func (m Method) Event() string {
	if m == MethodPost {
		return "post"
	}
	return "get"
}

// Request is the outbound envelope.
type Request[T any] struct {
	Data    T                 `json:"data"`
	Headers map[string]string `json:"headers"`
	Method  Method            `json:"method"`
	URL     string            `json:"url"`
}

// Response is the decoded acknowledgement envelope.
type Response[U any] struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       U                 `json:"body"`
}

// OK reports whether the server answered with status 200.
func (r *Response[U]) OK() bool {
	return r != nil && r.StatusCode == http.StatusOK
}

// Emitter is the part of a socket transport the codec needs.
type Emitter interface {
	EmitWithAck(event string, payload json.RawMessage, timeout time.Duration, ack sio.AckFunc)
}

var null = []byte("null")

// Encode serializes the envelope into the transport payload.
func Encode[T any](req Request[T]) (json.RawMessage, error) {
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}
	if req.Method == "" {
		req.Method = MethodGet
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fault(CodeEncode, req.URL, err)
	}
	if len(data) == 0 || bytes.Equal(data, null) {
		return nil, fault(CodeEncode, req.URL, errors.New("empty payload"))
	}
	return data, nil
}

// Decode turns the ack argument list into a response envelope. The no-ack
// marker is checked before anything is parsed.
func Decode[U any](args []json.RawMessage) (*Response[U], error) {
	if len(args) == 0 {
		return nil, fault(CodeDecode, "", errors.New("empty acknowledgement"))
	}
	if isNoAck(args[0]) {
		return nil, fault(CodeTimeout, "", nil)
	}
	var env Response[json.RawMessage]
	if err := json.Unmarshal(args[0], &env); err != nil {
		return nil, fault(CodeDecode, "", err)
	}
	resp := &Response[U]{StatusCode: env.StatusCode, Headers: env.Headers}
	// Error bodies are free-form; only a 200 body has to fit U.
	if !resp.OK() || len(env.Body) == 0 || bytes.Equal(env.Body, null) {
		return resp, nil
	}
	if err := json.Unmarshal(env.Body, &resp.Body); err != nil {
		return nil, fault(CodeDecode, "", err)
	}
	return resp, nil
}

func isNoAck(raw json.RawMessage) bool {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	return s == sio.NoAck
}

// Call encodes req, emits it with an acknowledgement and hands exactly one
// result to done: a response, or an encode, decode or timeout fault.
func Call[T, U any](e Emitter, req Request[T], timeout time.Duration, done func(*Response[U], error)) {
	payload, err := Encode(req)
	if err != nil {
		done(nil, err)
		return
	}
	e.EmitWithAck(req.Method.Event(), payload, timeout, func(args []json.RawMessage) {
		resp, err := Decode[U](args)
		if err != nil {
			var f *Fault
			if errors.As(err, &f) {
				f.Op = req.URL
			}
			done(nil, err)
			return
		}
		done(resp, nil)
	})
}

// Do is the blocking form of Call. ctx only bounds the wait; the transport
// timeout still decides whether the request timed out.
func Do[T, U any](ctx context.Context, e Emitter, req Request[T], timeout time.Duration) (*Response[U], error) {
	type result struct {
		resp *Response[U]
		err  error
	}
	ch := make(chan result, 1)
	Call(e, req, timeout, func(resp *Response[U], err error) {
		ch <- result{resp: resp, err: err}
	})
	select {
	case r := <-ch:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", req.URL, ctx.Err())
	}
}
