package passkit

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // decoder registration
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/spec-kit/wallet-pass-service/internal/config"
)

// maxLogoPixels bounds the decoded size of a logo.
const maxLogoPixels = 4096 * 4096

// ErrLogoTooLarge is returned for logos whose dimensions exceed maxLogoPixels.
var ErrLogoTooLarge = errors.New("logo dimensions exceed limit")

// ImageCache stores raw logo downloads between requests.
type ImageCache interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	SetBytes(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// LogoSource yields the raw bytes of a logo image.
type LogoSource interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// LogoFetcher downloads logos over HTTP with a bounded timeout and size,
// caching successful downloads.
type LogoFetcher struct {
	client   *http.Client
	cache    ImageCache
	ttl      time.Duration
	maxBytes int64
	logger   *zap.Logger
}

// NewLogoFetcher builds a fetcher. cache may be nil.
func NewLogoFetcher(cfg config.LogoConfig, cache ImageCache, ttl time.Duration, logger *zap.Logger) *LogoFetcher {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 2 << 20
	}
	return &LogoFetcher{
		client:   &http.Client{Timeout: timeout},
		cache:    cache,
		ttl:      ttl,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Fetch returns the logo bytes, consulting the cache first.
func (f *LogoFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	key := cacheKey(url)
	if f.cache != nil {
		if data, ok, err := f.cache.GetBytes(ctx, key); err != nil {
			f.logger.Debug("logo cache read failed", zap.Error(err))
		} else if ok {
			return data, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build logo request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch logo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch logo: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read logo: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, errors.New("logo exceeds size limit")
	}
	if _, err := checkDimensions(data); err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.SetBytes(ctx, key, data, f.ttl); err != nil {
			f.logger.Debug("logo cache write failed", zap.Error(err))
		}
	}
	return data, nil
}

func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "passkit:logo:" + hex.EncodeToString(sum[:])
}

type assetBox struct {
	name          string
	width, height int
}

// Pass image slots at 1x, 2x and 3x.
var assetBoxes = []assetBox{
	{"logo.png", 160, 50},
	{"logo@2x.png", 320, 100},
	{"logo@3x.png", 480, 150},
	{"icon.png", 29, 29},
	{"icon@2x.png", 58, 58},
	{"icon@3x.png", 87, 87},
}

// RenderAssets decodes a logo and scales it into every image slot, keeping
// the aspect ratio.
func RenderAssets(raw []byte) (map[string][]byte, error) {
	if _, err := checkDimensions(raw); err != nil {
		return nil, err
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode logo: %w", err)
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New("logo has no pixels")
	}

	out := make(map[string][]byte, len(assetBoxes))
	for _, box := range assetBoxes {
		w, h := fit(b.Dx(), b.Dy(), box.width, box.height)
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

		var buf bytes.Buffer
		if err := png.Encode(&buf, dst); err != nil {
			return nil, fmt.Errorf("encode %s: %w", box.name, err)
		}
		out[box.name] = buf.Bytes()
	}
	return out, nil
}

// checkDimensions reads only the image header.
func checkDimensions(raw []byte) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return cfg, fmt.Errorf("decode logo: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return cfg, errors.New("logo has no pixels")
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxLogoPixels {
		return cfg, fmt.Errorf("%w: %dx%d", ErrLogoTooLarge, cfg.Width, cfg.Height)
	}
	return cfg, nil
}

func fit(w, h, maxW, maxH int) (int, int) {
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	fw, fh := int(float64(w)*scale), int(float64(h)*scale)
	return max(fw, 1), max(fh, 1)
}
