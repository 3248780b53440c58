// Package certrender рисует бланк сертификата в PNG.
// Render: чистая функция от имени и данных программы, к хранилищу доступа не имеет.
package certrender

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/Spok95/course-tracker/internal/models"
)

const (
	width  = 1600
	height = 1131
)

var (
	background = color.RGBA{R: 0xfb, G: 0xf8, B: 0xf1, A: 0xff}
	accent     = color.RGBA{R: 0x1f, G: 0x3a, B: 0x5f, A: 0xff}
	muted      = color.RGBA{R: 0x55, G: 0x5b, B: 0x66, A: 0xff}
)

type Renderer struct {
	font *truetype.Font
}

// New загружает TTF из fontPath; пустой путь: встроенный Go Regular.
func New(fontPath string) (*Renderer, error) {
	raw := goregular.TTF
	if strings.TrimSpace(fontPath) != "" {
		b, err := os.ReadFile(fontPath)
		if err != nil {
			return nil, fmt.Errorf("read certificate font: %w", err)
		}
		raw = b
	}
	f, err := truetype.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse certificate font: %w", err)
	}
	return &Renderer{font: f}, nil
}

func (r *Renderer) face(size float64) font.Face {
	return truetype.NewFace(r.font, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingNone})
}

func (r *Renderer) Render(fullName string, meta models.ProgramMeta) ([]byte, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, fmt.Errorf("certificate: empty name")
	}

	dc := gg.NewContext(width, height)
	dc.SetColor(background)
	dc.Clear()

	// рамка
	dc.SetColor(accent)
	dc.SetLineWidth(12)
	dc.DrawRectangle(40, 40, width-80, height-80)
	dc.Stroke()
	dc.SetLineWidth(2)
	dc.DrawRectangle(70, 70, width-140, height-140)
	dc.Stroke()

	cx := float64(width) / 2

	dc.SetFontFace(r.face(72))
	dc.DrawStringAnchored("Certificate of Completion", cx, 250, 0.5, 0.5)

	dc.SetColor(muted)
	dc.SetFontFace(r.face(32))
	dc.DrawStringAnchored("This certifies that", cx, 380, 0.5, 0.5)

	dc.SetColor(accent)
	dc.SetFontFace(r.face(r.fitSize(dc, fullName, 84, width-300)))
	dc.DrawStringAnchored(fullName, cx, 490, 0.5, 0.5)
	dc.SetLineWidth(2)
	dc.DrawLine(cx-450, 545, cx+450, 545)
	dc.Stroke()

	dc.SetColor(muted)
	dc.SetFontFace(r.face(32))
	dc.DrawStringAnchored("has successfully completed", cx, 620, 0.5, 0.5)
	dc.SetColor(accent)
	dc.SetFontFace(r.face(r.fitSize(dc, meta.Title, 44, width-300)))
	dc.DrawStringAnchored(meta.Title, cx, 690, 0.5, 0.5)

	dc.SetColor(muted)
	dc.SetFontFace(r.face(26))
	if meta.TotalWeeks > 0 {
		dc.DrawStringAnchored(fmt.Sprintf("%d-week programme", meta.TotalWeeks), cx, 750, 0.5, 0.5)
	}
	dc.DrawStringAnchored("Issued by "+meta.Issuer, cx, 880, 0.5, 0.5)
	if !meta.IssuedAt.IsZero() {
		dc.DrawStringAnchored(meta.IssuedAt.Format("2 January 2006"), cx, 925, 0.5, 0.5)
	}
	if meta.Serial != "" {
		dc.SetFontFace(r.face(20))
		dc.DrawStringAnchored("Serial: "+meta.Serial, width-120, height-110, 1, 0.5)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// fitSize уменьшает кегль, пока строка не влезет в maxWidth.
func (r *Renderer) fitSize(dc *gg.Context, s string, size, maxWidth float64) float64 {
	for size > 16 {
		dc.SetFontFace(r.face(size))
		if w, _ := dc.MeasureString(s); w <= maxWidth {
			return size
		}
		size -= 4
	}
	return size
}
