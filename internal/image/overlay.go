package image

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// BurnInFields is the identifying text burnt into a pixel buffer.
type BurnInFields struct {
	PatientName     string
	PatientID       string
	StudyUID        string
	SeriesUID       string
	Modality        string
	StudyDate       string
	AccessionNumber string
}

// ApplyTextOverlay burns the identifying fields into the top-left corner
// of buf, white text on a black box with a gray border.
//
// Modifies buf.Pix in place. The buffer is normalized to 8 bits for
// drawing and scaled back to its original intensity range afterwards,
// which costs some precision across the whole image. A buffer with a
// single intensity comes back unchanged since there is no range to map
// the text into.
func ApplyTextOverlay(buf *Buffer, fields BurnInFields) error {
	if buf.Width <= 0 || buf.Height <= 0 {
		return fmt.Errorf("invalid dimensions: %dx%d", buf.Width, buf.Height)
	}
	if len(buf.Pix) != buf.Width*buf.Height {
		return fmt.Errorf("pixel slice length %d does not match dimensions %dx%d", len(buf.Pix), buf.Width, buf.Height)
	}

	lo, hi := buf.Pix[0], buf.Pix[0]
	for _, v := range buf.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := float64(hi) - float64(lo)

	// Normalize to 8-bit for drawing.
	img := image.NewGray(image.Rect(0, 0, buf.Width, buf.Height))
	if span > 0 {
		for i, v := range buf.Pix {
			img.Pix[i] = uint8(float64(v-lo) / span * 255)
		}
	}

	lines := []string{
		"Patient: " + fields.PatientName,
		"ID: " + fields.PatientID,
		fmt.Sprintf("Study: %.20s...", fields.StudyUID),
		fmt.Sprintf("Series: %.20s...", fields.SeriesUID),
		"Modality: " + fields.Modality,
		"Date: " + formatOverlayDate(fields.StudyDate),
		"Accession: " + fields.AccessionNumber,
	}

	face := basicfont.Face7x13
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil() + 2
	ascent := metrics.Ascent.Ceil()

	textWidth := 0
	for _, line := range lines {
		if w := font.MeasureString(face, line).Ceil(); w > textWidth {
			textWidth = w
		}
	}
	textHeight := len(lines) * lineHeight

	// Black background box with a gray border.
	const margin = 10
	box := image.Rect(margin, margin, margin+textWidth+10, margin+textHeight+5)
	draw.Draw(img, box.Intersect(img.Bounds()), image.NewUniform(color.Gray{Y: 0}), image.Point{}, draw.Src)
	for x := box.Min.X; x < box.Max.X; x++ {
		img.SetGray(x, box.Min.Y, color.Gray{Y: 128})
		img.SetGray(x, box.Max.Y-1, color.Gray{Y: 128})
	}
	for y := box.Min.Y; y < box.Max.Y; y++ {
		img.SetGray(box.Min.X, y, color.Gray{Y: 128})
		img.SetGray(box.Max.X-1, y, color.Gray{Y: 128})
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Gray{Y: 255}),
		Face: face,
	}
	for i, line := range lines {
		top := margin + 5 + i*lineHeight
		drawer.Dot = fixed.P(margin+5, top+ascent)
		drawer.DrawString(line)
	}

	// Scale back to the original intensity range.
	for i, g := range img.Pix {
		buf.Pix[i] = uint16(float64(g)/255*span + float64(lo))
	}
	return nil
}

// formatOverlayDate renders a DICOM DA value as YYYY-MM-DD, passing
// anything else through untouched.
func formatOverlayDate(date string) string {
	if len(date) != 8 {
		return date
	}
	for i := 0; i < len(date); i++ {
		if date[i] < '0' || date[i] > '9' {
			return date
		}
	}
	return date[:4] + "-" + date[4:6] + "-" + date[6:8]
}
