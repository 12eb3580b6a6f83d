package export

import (
	"bytes"

	"github.com/go-pdf/fpdf"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/cricksy/video-analysis/internal/models"
)

// trendSparkline renders a finding's per-frame evidence trend (if present)
// as a small line chart, for the evidence appendix. Returns nil, false when
// the finding carries no usable trend series.
func trendSparkline(f models.Finding) ([]byte, bool) {
	raw, ok := f.Evidence["trend"]
	if !ok {
		return nil, false
	}
	series, ok := raw.([]float64)
	if !ok || len(series) < 2 {
		return nil, false
	}

	xs := make([]float64, len(series))
	for i := range series {
		xs[i] = float64(i)
	}

	c := chart.Chart{
		Width:  480,
		Height: 120,
		Background: chart.Style{
			Padding: chart.Box{Top: 5, Left: 5, Right: 5, Bottom: 5},
		},
		XAxis: chart.XAxis{Style: chart.Style{Hidden: true}},
		YAxis: chart.YAxis{Style: chart.Style{Hidden: true}},
		Series: []chart.Series{
			chart.ContinuousSeries{
				XValues: xs,
				YValues: series,
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex("2563eb"),
					StrokeWidth: 1.5,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := c.Render(chart.PNG, &buf); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

// writeTrendImage embeds a finding's sparkline into the PDF immediately
// below its evidence line, if one was rendered.
func writeTrendImage(pdf *fpdf.Fpdf, imageName string, png []byte) {
	reader := bytes.NewReader(png)
	opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader(imageName, opts, reader)
	width, height := 80.0, 20.0
	x := pdf.GetX()
	y := pdf.GetY()
	pdf.ImageOptions(imageName, x, y, width, height, false, opts, 0, "")
	pdf.SetXY(x, y+height+1)
}
