package report

import (
	"bytes"
	"context"
	"image/color"
	"image/png"
	"testing"
	"time"

	"carboncore/internal/archive"
	"carboncore/internal/driver"
	"carboncore/internal/units"
)

func pngDay(d int) time.Time {
	return time.Date(2018, 6, d, 0, 0, 0, 0, time.UTC)
}

func pngSeries(t *testing.T, values []units.Number) driver.Series {
	t.Helper()
	ix, err := driver.NewIndex(pngDay(1), pngDay(len(values)))
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	return driver.Series{Index: ix, Values: values}
}

func countColors(t *testing.T, payload []byte) (observed, imputed int) {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 640 || bounds.Dy() != 240 {
		t.Fatalf("bounds = %v", bounds)
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			switch c {
			case observedColor:
				observed++
			case imputedColor:
				imputed++
			}
		}
	}
	return observed, imputed
}

func TestRenderSeriesPNGMarksImputedDays(t *testing.T) {
	observed := pngSeries(t, []units.Number{units.Some(10), units.None(), units.None(), units.Some(16)})
	filled := pngSeries(t, []units.Number{units.Some(10), units.Some(12), units.Some(14), units.Some(16)})

	payload, err := RenderSeriesPNG(observed, filled)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	observedPixels, imputedPixels := countColors(t, payload)
	if observedPixels == 0 {
		t.Fatal("no observed bars drawn")
	}
	if imputedPixels == 0 {
		t.Fatal("no imputed bars drawn")
	}
}

func TestRenderSeriesPNGEmptySeriesIsBlankFrame(t *testing.T) {
	observed := pngSeries(t, []units.Number{units.None(), units.None()})
	filled := pngSeries(t, []units.Number{units.None(), units.None()})

	payload, err := RenderSeriesPNG(observed, filled)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	observedPixels, imputedPixels := countColors(t, payload)
	if observedPixels != 0 || imputedPixels != 0 {
		t.Fatalf("blank frame has bars: observed=%d imputed=%d", observedPixels, imputedPixels)
	}
}

func TestRenderSeriesPNGIndexMismatch(t *testing.T) {
	observed := pngSeries(t, []units.Number{units.Some(1)})
	filled := pngSeries(t, []units.Number{units.Some(1), units.Some(2)})
	if _, err := RenderSeriesPNG(observed, filled); err == nil {
		t.Fatal("expected span mismatch error")
	}
}

func TestPublishSeriesPNG(t *testing.T) {
	store := archive.NewMemory()
	publisher := NewPublisher(store)
	observed := pngSeries(t, []units.Number{units.Some(10), units.None(), units.Some(16)})
	filled := pngSeries(t, []units.Number{units.Some(10), units.Some(13), units.Some(16)})

	artifact, err := publisher.PublishSeriesPNG(context.Background(), reportRun(), observed, filled)
	if err != nil {
		t.Fatalf("publish png: %v", err)
	}
	if artifact.Key != "reports/OSBS/run01/drivers.png" {
		t.Fatalf("key = %q", artifact.Key)
	}
	if artifact.Format != FormatPNG || artifact.ContentType != "image/png" {
		t.Fatalf("artifact = %+v", artifact)
	}
	info, body, err := store.Get(context.Background(), artifact.Key)
	if err != nil {
		t.Fatalf("stored object: %v", err)
	}
	_ = body.Close()
	if info.ContentType != "image/png" {
		t.Fatalf("stored content type = %q", info.ContentType)
	}
}
