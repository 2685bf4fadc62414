// Package uploads stores item photos on disk.
package uploads

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register the webp decoder

	"github.com/poshstock/poshstock/config"
)

var (
	// ErrExtensionNotAllowed is returned for files outside the allow-list.
	ErrExtensionNotAllowed = errors.New("file type not allowed")
	// ErrTooLarge is returned when an upload exceeds the size cap.
	ErrTooLarge = errors.New("file too large")
)

// Store saves photos under a directory and hands back paths relative to
// the directory's parent, e.g. "uploads/3f2a....jpg".
type Store struct {
	dir      string
	prefix   string
	allowed  map[string]bool
	maxEdge  int
	maxBytes int64
}

func NewStore(cfg config.UploadsConfig) *Store {
	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return &Store{
		dir:      cfg.Dir,
		prefix:   filepath.Base(cfg.Dir),
		allowed:  allowed,
		maxEdge:  cfg.MaxEdge,
		maxBytes: cfg.MaxBytes,
	}
}

// Dir is where files are written.
func (s *Store) Dir() string { return s.dir }

// Prefix is the first element of every path Save returns.
func (s *Store) Prefix() string { return s.prefix }

func extension(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "jpeg" {
		return "jpg"
	}
	return ext
}

// Allowed reports whether filename has an allowed extension.
func (s *Store) Allowed(filename string) bool {
	raw := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	return raw != "" && s.allowed[raw]
}

// Save writes the upload under a random name. Decodable images are
// downscaled to the longest-edge limit and re-encoded; webp is stored as
// jpg. Bytes that do not decode are stored as sent.
func (s *Store) Save(filename string, r io.Reader) (string, error) {
	if !s.Allowed(filename) {
		return "", fmt.Errorf("%w: %q", ErrExtensionNotAllowed, filename)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.maxBytes)
	}

	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	ext := extension(filename)
	out := data
	if img, _, decodeErr := image.Decode(bytes.NewReader(data)); decodeErr == nil {
		img = s.thumbnail(img)
		if ext != "png" {
			ext = "jpg"
		}
		if out, err = encode(img, ext); err != nil {
			return "", err
		}
	} else {
		slog.Warn("storing upload without re-encoding", "filename", filename, "error", decodeErr)
	}

	name := strings.ReplaceAll(uuid.NewString(), "-", "") + "." + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), out, 0640); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return path.Join(s.prefix, name), nil
}

// thumbnail shrinks img so its longest edge is at most maxEdge, keeping
// the aspect ratio.
func (s *Store) thumbnail(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := max(w, h)
	if s.maxEdge <= 0 || longest <= s.maxEdge {
		return img
	}
	nw := max(1, w*s.maxEdge/longest)
	nh := max(1, h*s.maxEdge/longest)
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func encode(img image.Image, ext string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch ext {
	case "png":
		err = (&png.Encoder{CompressionLevel: png.BestCompression}).Encode(&buf, img)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ext, err)
	}
	return buf.Bytes(), nil
}
