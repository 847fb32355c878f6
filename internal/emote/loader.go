package emote

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/floatchat/internal/proto"
)

const (
	// DefaultSize is the edge length of emote thumbnails in pixels.
	DefaultSize = 28

	defaultConcurrency = 4
	maxImageBytes      = 2 << 20
)

// Loader fetches, decodes and shrinks emotes into a Cache.
type Loader struct {
	HTTP        *http.Client
	Cache       *Cache
	Size        int
	BaseURL     string // resolves relative image paths
	Concurrency int
	Log         *zerolog.Logger
}

// NewLoader returns a loader writing into cache.
func NewLoader(cache *Cache, size int, logger *zerolog.Logger) *Loader {
	if size <= 0 {
		size = DefaultSize
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Loader{
		HTTP:        &http.Client{Timeout: 15 * time.Second},
		Cache:       cache,
		Size:        size,
		BaseURL:     "https://www.floatplane.com",
		Concurrency: defaultConcurrency,
		Log:         logger,
	}
}

// Prefetch loads every ref whose code is not cached yet and returns how many
// were added. Individual failures are logged and skipped.
func (l *Loader) Prefetch(ctx context.Context, refs []proto.EmoteRef) int {
	seen := make(map[string]struct{}, len(refs))
	var loaded atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	limit := l.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	g.SetLimit(limit)

	for _, ref := range refs {
		if ref.Code == "" || ref.Image == "" {
			continue
		}
		if _, dup := seen[ref.Code]; dup || l.Cache.Has(ref.Code) {
			continue
		}
		seen[ref.Code] = struct{}{}

		g.Go(func() error {
			e, err := l.Load(gctx, ref)
			if err != nil {
				l.Log.Warn().Err(err).Str("emote", ref.Code).Msg("failed to load emote")
				return nil
			}
			l.Cache.Put(e)
			loaded.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	n := int(loaded.Load())
	if n > 0 {
		l.Log.Debug().Int("loaded", n).Int("cached", l.Cache.Len()).Msg("emotes prefetched")
	}
	return n
}

// Load fetches one emote and turns it into a square thumbnail.
func (l *Loader) Load(ctx context.Context, ref proto.EmoteRef) (Emote, error) {
	src, err := l.resolve(ref.Image)
	if err != nil {
		return Emote{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return Emote{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := l.HTTP.Do(req)
	if err != nil {
		return Emote{}, fmt.Errorf("fetch %s: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Emote{}, fmt.Errorf("fetch %s: status %s", src, resp.Status)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return Emote{}, fmt.Errorf("read %s: %w", src, err)
	}
	return FromBytes(ref.Code, raw, l.Size)
}

func (l *Loader) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse image url: %w", err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	base, err := url.Parse(l.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	return base.ResolveReference(u).String(), nil
}

// FromBytes decodes an image and builds the thumbnail emote.
func FromBytes(code string, raw []byte, size int) (Emote, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Emote{}, fmt.Errorf("decode emote %s: %w", code, err)
	}
	thumb := Thumbnail(img, size)

	var buf bytes.Buffer
	if err := png.Encode(&buf, thumb); err != nil {
		return Emote{}, fmt.Errorf("encode emote %s from %s: %w", code, format, err)
	}
	return Emote{Code: code, Data: buf.Bytes(), Image: thumb}, nil
}

// Thumbnail scales src into a size×size square, keeping the aspect ratio and
// centering the result on a transparent background.
func Thumbnail(src image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return dst
	}

	tw, th := size, size
	if w > h {
		th = max(1, h*size/w)
	} else if h > w {
		tw = max(1, w*size/h)
	}
	x0 := (size - tw) / 2
	y0 := (size - th) / 2
	draw.CatmullRom.Scale(dst, image.Rect(x0, y0, x0+tw, y0+th), src, b, draw.Over, nil)
	return dst
}
