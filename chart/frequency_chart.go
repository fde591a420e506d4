package chart

import (
	"bytes"
	"fmt"
	"time"

	"powerball/models"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
)

// Style defines the look of a frequency chart
type Style struct {
	Width        int
	Height       int
	Padding      float64
	PanelGap     float64
	Background   [3]float64
	MainBar      [3]float64
	PowerballBar [3]float64
	HotBar       [3]float64 // bars at the panel maximum
	Text         [3]float64
}

// FrequencyChartGenerator renders frequency tables as PNG bar charts
type FrequencyChartGenerator struct {
	style Style
}

// NewFrequencyChartGenerator creates a generator with the default style
func NewFrequencyChartGenerator() *FrequencyChartGenerator {
	return &FrequencyChartGenerator{
		style: Style{
			Width:        900,
			Height:       520,
			Padding:      24,
			PanelGap:     36,
			Background:   [3]float64{0.06, 0.07, 0.11},
			MainBar:      [3]float64{0.35, 0.6, 0.95},
			PowerballBar: [3]float64{0.95, 0.45, 0.35},
			HotBar:       [3]float64{1, 0.84, 0},
			Text:         [3]float64{0.9, 0.9, 0.92},
		},
	}
}

// Size returns the image dimensions in pixels
func (g *FrequencyChartGenerator) Size() (int, int) {
	return g.style.Width, g.style.Height
}

type panel struct {
	title  string
	counts map[int]int
	min    int
	max    int
	color  [3]float64
}

// Generate draws the main and powerball tables one above the other
func (g *FrequencyChartGenerator) Generate(freq *models.Frequencies) ([]byte, error) {
	start := time.Now()
	defer func() {
		log.WithFields(log.Fields{
			"duration_ms": time.Since(start).Milliseconds(),
			"sample_size": freq.SampleSize,
		}).Debug("Frequency chart generation completed")
	}()

	titleFace, err := loadFont(gobold.TTF, 15)
	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	labelFace, err := loadFont(gomono.TTF, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}

	s := g.style
	dc := gg.NewContext(s.Width, s.Height)
	dc.SetRGB(s.Background[0], s.Background[1], s.Background[2])
	dc.Clear()

	window := "all draws"
	if freq.Window > 0 {
		window = fmt.Sprintf("last %d draws", freq.Window)
	}

	panels := []panel{
		{title: fmt.Sprintf("Main numbers, %s (%d sampled)", window, freq.SampleSize), counts: freq.Main, min: models.MainNumberMin, max: models.MainNumberMax, color: s.MainBar},
		{title: "Powerball", counts: freq.Powerball, min: models.PowerballMin, max: models.PowerballMax, color: s.PowerballBar},
	}

	panelHeight := (float64(s.Height) - 2*s.Padding - s.PanelGap) / 2
	for i, p := range panels {
		top := s.Padding + float64(i)*(panelHeight+s.PanelGap)
		g.drawPanel(dc, p, top, panelHeight, titleFace, labelFace)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *FrequencyChartGenerator) drawPanel(dc *gg.Context, p panel, top, height float64, titleFace, labelFace font.Face) {
	s := g.style
	left := s.Padding
	width := float64(s.Width) - 2*s.Padding

	dc.SetFontFace(titleFace)
	dc.SetRGB(s.Text[0], s.Text[1], s.Text[2])
	dc.DrawString(p.title, left, top+14)

	highest := 0
	for n := p.min; n <= p.max; n++ {
		highest = max(highest, p.counts[n])
	}

	chartTop := top + 26
	chartBottom := top + height - 16
	chartHeight := chartBottom - chartTop
	slots := p.max - p.min + 1
	slot := width / float64(slots)
	barWidth := slot * 0.7

	dc.SetFontFace(labelFace)
	for n := p.min; n <= p.max; n++ {
		count := p.counts[n]
		x := left + float64(n-p.min)*slot + (slot-barWidth)/2

		barHeight := 0.0
		if highest > 0 {
			barHeight = chartHeight * float64(count) / float64(highest)
		}

		color := p.color
		if count == highest && highest > 0 {
			color = s.HotBar
		}
		dc.SetRGB(color[0], color[1], color[2])
		dc.DrawRectangle(x, chartBottom-barHeight, barWidth, barHeight)
		dc.Fill()

		dc.SetRGB(s.Text[0], s.Text[1], s.Text[2])
		dc.DrawStringAnchored(fmt.Sprintf("%d", n), x+barWidth/2, chartBottom+10, 0.5, 0.5)
		if count > 0 {
			dc.DrawStringAnchored(fmt.Sprintf("%d", count), x+barWidth/2, chartBottom-barHeight-6, 0.5, 0.5)
		}
	}

	dc.SetRGBA(1, 1, 1, 0.25)
	dc.SetLineWidth(1)
	dc.DrawLine(left, chartBottom, left+width, chartBottom)
	dc.Stroke()
}

// loadFont loads a font from byte data
func loadFont(fontData []byte, size float64) (font.Face, error) {
	f, err := truetype.Parse(fontData)
	if err != nil {
		return nil, err
	}
	face := truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	return face, nil
}
