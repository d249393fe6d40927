package sylvan

import (
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// Screenshots queues labeled captures of the rendered frame. Queued labels
// are written as PNG files into Dir at the end of the next Draw.
type Screenshots struct {
	Dir    string
	Logger *slog.Logger

	queue []string
}

// Queue requests a capture of the current frame under label.
func (s *Screenshots) Queue(label string) {
	s.queue = append(s.queue, label)
}

// Pending returns the number of queued captures.
func (s *Screenshots) Pending() int { return len(s.queue) }

func (s *Screenshots) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// flush captures screen once and writes it for every queued label.
func (s *Screenshots) flush(screen *ebiten.Image) {
	if len(s.queue) == 0 {
		return
	}
	defer func() { s.queue = s.queue[:0] }()

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		s.logger().Error("screenshot dir", slog.String("dir", s.Dir), slog.Any("err", err))
		return
	}
	b := screen.Bounds()
	pixels := make([]byte, 4*b.Dx()*b.Dy())
	screen.ReadPixels(pixels)
	img := unpremultiply(pixels, b.Dx(), b.Dy())

	paths := s.paths(time.Now())
	for _, path := range paths {
		if err := writePNG(path, img); err != nil {
			s.logger().Error("screenshot", slog.Any("err", err))
			continue
		}
		s.logger().Info("screenshot saved", slog.String("path", path))
	}
}

// paths returns the output file for each queued label.
func (s *Screenshots) paths(now time.Time) []string {
	stamp := now.Format("20060102_150405")
	out := make([]string, 0, len(s.queue))
	for _, label := range s.queue {
		out = append(out, filepath.Join(s.Dir, stamp+"_"+sanitizeLabel(label)+".png"))
	}
	return out
}

// unpremultiply converts ebiten's premultiplied RGBA pixels to straight alpha.
func unpremultiply(pixels []byte, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	copy(img.Pix, pixels)
	for i := 0; i+3 < len(img.Pix); i += 4 {
		a := int(img.Pix[i+3])
		if a == 0 || a == 255 {
			continue
		}
		for c := 0; c < 3; c++ {
			img.Pix[i+c] = uint8(min(int(img.Pix[i+c])*255/a, 255))
		}
	}
	return img
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// sanitizeLabel keeps letters, digits, '-' and '.', replacing everything else
// with '_'. Empty labels become "unlabeled".
func sanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "unlabeled"
	}
	var b strings.Builder
	b.Grow(len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
