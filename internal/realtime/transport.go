package realtime

import (
	"encoding/json"
	stdhttp "net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/floatchat/internal/proto"
	"github.com/vovakirdan/floatchat/internal/sio"
)

// Transport is the persistent socket a session runs on. *sio.Conn implements it.
// Handlers registered with On must be delivered in wire order.
type Transport interface {
	Connect()
	Disconnect()
	EmitWithAck(event string, payload json.RawMessage, timeout time.Duration, ack sio.AckFunc)
	On(event string, h sio.Handler)
}

// Endpoint describes a Floatplane socket endpoint.
type Endpoint struct {
	URL             string
	Path            string
	EngineIOVersion int
	Origin          string
	UserAgent       string
	Cookie          string // value of the sails.sid session cookie
	HTTPClient      *stdhttp.Client
	Logger          *zerolog.Logger
}

// NewTransport builds a Socket.IO transport for ep with the query parameters
// and headers the Sails socket server expects.
func NewTransport(ep Endpoint) *sio.Conn {
	query := url.Values{}
	query.Set("__sails_io_sdk_version", proto.SailsSDKVersion)
	query.Set("__sails_io_sdk_platform", proto.SailsSDKPlatform)
	query.Set("__sails_io_sdk_language", proto.SailsSDKLanguage)

	header := stdhttp.Header{}
	if ep.Origin != "" {
		header.Set("Origin", ep.Origin)
	}
	if ep.UserAgent != "" {
		header.Set("User-Agent", ep.UserAgent)
	}
	if ep.Cookie != "" {
		header.Set("Cookie", (&stdhttp.Cookie{Name: proto.SessionCookieName, Value: ep.Cookie}).String())
	}

	path := ep.Path
	if path == "" {
		path = proto.DefaultSocketPath
	}
	version := ep.EngineIOVersion
	if version == 0 {
		version = proto.DefaultSocketVersion
	}

	logger := ep.Logger
	if logger != nil {
		l := logger.With().Str("endpoint", ep.URL).Str("eio", strconv.Itoa(version)).Logger()
		logger = &l
	}

	return sio.New(sio.Options{
		URL:             ep.URL,
		Path:            path,
		Query:           query,
		Header:          header,
		EngineIOVersion: version,
		HTTPClient:      ep.HTTPClient,
		Logger:          logger,
	})
}

func firstString(args []json.RawMessage) string {
	if len(args) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(args[0], &s); err != nil {
		return string(args[0])
	}
	return s
}
