package sio

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Engine.IO packet types, first byte of every websocket frame.
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'
	engineUpgrade = '5'
	engineNoop    = '6'
)

// Socket.IO packet types, second byte of an Engine.IO message frame.
const (
	packetConnect     = '0'
	packetDisconnect  = '1'
	packetEvent       = '2'
	packetAck         = '3'
	packetError       = '4'
	packetBinaryEvent = '5'
	packetBinaryAck   = '6'
)

var errEmptyPacket = errors.New("empty packet")

// packet is a decoded Socket.IO packet. ID is -1 when the packet carries no ack id.
type packet struct {
	Type      byte
	Namespace string
	ID        int
	Data      json.RawMessage
}

// handshake is the payload of the Engine.IO open packet.
type handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload,omitempty"`
}

// encodePacket renders p as an Engine.IO message frame.
func encodePacket(p packet) string {
	var b strings.Builder
	b.WriteByte(engineMessage)
	b.WriteByte(p.Type)
	if p.Namespace != "" && p.Namespace != "/" {
		b.WriteString(p.Namespace)
		b.WriteByte(',')
	}
	if p.ID >= 0 {
		b.WriteString(strconv.Itoa(p.ID))
	}
	b.Write(p.Data)
	return b.String()
}

// decodePacket parses the Socket.IO part of a message frame (without the leading '4').
func decodePacket(s string) (packet, error) {
	if s == "" {
		return packet{}, errEmptyPacket
	}
	p := packet{Type: s[0], ID: -1}
	if p.Type < packetConnect || p.Type > packetBinaryAck {
		return packet{}, fmt.Errorf("unknown packet type %q", p.Type)
	}
	rest := s[1:]

	if p.Type == packetBinaryEvent || p.Type == packetBinaryAck {
		// attachment count prefix, e.g. "51-"
		if i := strings.IndexByte(rest, '-'); i >= 0 {
			rest = rest[i+1:]
		}
	}

	if strings.HasPrefix(rest, "/") {
		i := strings.IndexByte(rest, ',')
		if i < 0 {
			p.Namespace = rest
			return p, nil
		}
		p.Namespace = rest[:i]
		rest = rest[i+1:]
	}

	n := 0
	for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
		n++
	}
	if n > 0 {
		id, err := strconv.Atoi(rest[:n])
		if err != nil {
			return packet{}, fmt.Errorf("parse ack id: %w", err)
		}
		p.ID = id
		rest = rest[n:]
	}

	if rest != "" {
		p.Data = json.RawMessage(rest)
	}
	return p, nil
}

// eventPacket builds an event packet carrying [name, payload].
func eventPacket(name string, payload json.RawMessage, id int) (packet, error) {
	nameJSON, err := json.Marshal(name)
	if err != nil {
		return packet{}, err
	}
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	data, err := json.Marshal([]json.RawMessage{nameJSON, payload})
	if err != nil {
		return packet{}, fmt.Errorf("marshal event %s: %w", name, err)
	}
	return packet{Type: packetEvent, ID: id, Data: data}, nil
}

// splitEvent splits the data of an event packet into the event name and its arguments.
func splitEvent(data json.RawMessage) (string, []json.RawMessage, error) {
	var args []json.RawMessage
	if err := json.Unmarshal(data, &args); err != nil {
		return "", nil, fmt.Errorf("unmarshal event: %w", err)
	}
	if len(args) == 0 {
		return "", nil, errors.New("event without name")
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, fmt.Errorf("unmarshal event name: %w", err)
	}
	return name, args[1:], nil
}

// ackArgs decodes the argument list of an ack packet.
func ackArgs(data json.RawMessage) ([]json.RawMessage, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var args []json.RawMessage
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, fmt.Errorf("unmarshal ack: %w", err)
	}
	return args, nil
}
