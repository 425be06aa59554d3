package report

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"carboncore/internal/driver"
)

var (
	observedColor = color.RGBA{R: 0, G: 102, B: 204, A: 255}
	imputedColor  = color.RGBA{R: 204, G: 102, B: 0, A: 255}
)

// RenderSeriesPNG plots a gap-filled daily series as one bar per day:
// observed days in blue, imputed days in orange. Both series must share
// the same daily index; observed marks which days carried measurements.
func RenderSeriesPNG(observed, filled driver.Series) ([]byte, error) {
	days := filled.Index.Len()
	if observed.Index.Len() != days {
		return nil, fmt.Errorf("report: series span %d days, observations span %d", days, observed.Index.Len())
	}

	const (
		width   = 640
		height  = 240
		marginX = 10
		marginY = 12
	)
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	lo, hi, found := valueRange(filled)
	if !found {
		return encodePNG(img)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	plotWidth := width - 2*marginX
	plotHeight := height - 2*marginY
	barWidth := plotWidth / days
	if barWidth < 1 {
		barWidth = 1
	}
	for i := 0; i < days; i++ {
		v := filled.Values[i]
		if !v.Valid {
			continue
		}
		x0 := marginX + i*barWidth
		x1 := x0 + barWidth - 1
		if x1 <= x0 {
			x1 = x0 + 1
		}
		h := int(float64(plotHeight) * (v.Value - lo) / span)
		if h < 1 {
			h = 1
		}
		y1 := height - marginY
		y0 := y1 - h
		bar := observedColor
		if !observed.Values[i].Valid {
			bar = imputedColor
		}
		draw.Draw(img, image.Rect(x0, y0, x1, y1), &image.Uniform{C: bar}, image.Point{}, draw.Src)
	}
	return encodePNG(img)
}

func valueRange(s driver.Series) (lo, hi float64, found bool) {
	for _, v := range s.Values {
		if !v.Valid {
			continue
		}
		if !found || v.Value < lo {
			lo = v.Value
		}
		if !found || v.Value > hi {
			hi = v.Value
		}
		found = true
	}
	return lo, hi, found
}

func encodePNG(img image.Image) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
