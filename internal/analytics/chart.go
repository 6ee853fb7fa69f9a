package analytics

import (
	"fmt"
	"math"
	"strings"
)

// ChartWidth is the fixed view-box width shared by all charts.
const ChartWidth = 600.0

// tickFractions are the y-axis gridline positions.
var tickFractions = []float64{0, 0.25, 0.5, 0.75, 1}

// Margin is the padding between the view box and the plotting area.
type Margin struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

var (
	barMargin  = Margin{Top: 20, Right: 30, Bottom: 60, Left: 60}
	lineMargin = Margin{Top: 20, Right: 30, Bottom: 40, Left: 60}
)

// Bar is a positioned rectangle in view-box coordinates.
type Bar struct {
	Label  string  `json:"label"`
	Value  float64 `json:"value"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	LabelX float64 `json:"labelX"`
}

// Tick is a y-axis gridline.
type Tick struct {
	Y     float64 `json:"y"`
	Value float64 `json:"value"`
}

// XY is a numeric sample for line charts.
type XY struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Layout holds computed chart geometry. Empty means there was nothing to plot.
type Layout struct {
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Margin      Margin  `json:"margin"`
	PlotWidth   float64 `json:"plotWidth"`
	PlotHeight  float64 `json:"plotHeight"`
	Bars        []Bar   `json:"bars,omitempty"`
	Points      []XY    `json:"points,omitempty"`
	Path        string  `json:"path,omitempty"`
	Ticks       []Tick  `json:"ticks,omitempty"`
	Empty       bool    `json:"empty"`
	Placeholder string  `json:"placeholder,omitempty"`
}

func newLayout(height float64, m Margin) Layout {
	return Layout{
		Width:      ChartWidth,
		Height:     height,
		Margin:     m,
		PlotWidth:  ChartWidth - m.Left - m.Right,
		PlotHeight: height - m.Top - m.Bottom,
	}
}

func emptyLayout(l Layout) Layout {
	l.Empty = true
	l.Placeholder = "No data available"
	return l
}

// BarLayout positions one bar per point. Bars share the plot width evenly and
// their heights are proportional to the largest value.
func BarLayout(points []Point, height float64) Layout {
	l := newLayout(height, barMargin)
	if len(points) == 0 {
		return emptyLayout(l)
	}

	yMax := math.Inf(-1)
	for _, p := range points {
		yMax = math.Max(yMax, p.Value)
	}

	barWidth := l.PlotWidth / float64(len(points)) / 1.5
	spacing := barWidth / 2
	baseline := l.Margin.Top + l.PlotHeight

	l.Bars = make([]Bar, len(points))
	for i, p := range points {
		var h float64
		if yMax > 0 {
			h = p.Value / yMax * l.PlotHeight
		}
		x := l.Margin.Left + float64(i)*(barWidth+spacing) + spacing
		l.Bars[i] = Bar{
			Label:  p.Label,
			Value:  p.Value,
			X:      x,
			Y:      baseline - h,
			Width:  barWidth,
			Height: h,
			LabelX: x + barWidth/2,
		}
	}

	for _, f := range tickFractions {
		l.Ticks = append(l.Ticks, Tick{
			Y:     baseline - l.PlotHeight*f,
			Value: math.Max(yMax, 0) * f,
		})
	}
	return l
}

// LineLayout projects samples onto the plot area with the y axis pointing up.
func LineLayout(samples []XY, height float64) Layout {
	l := newLayout(height, lineMargin)
	if len(samples) == 0 {
		return emptyLayout(l)
	}

	xMin, xMax := math.Inf(1), math.Inf(-1)
	yMin, yMax := math.Inf(1), math.Inf(-1)
	for _, s := range samples {
		xMin, xMax = math.Min(xMin, s.X), math.Max(xMax, s.X)
		yMin, yMax = math.Min(yMin, s.Y), math.Max(yMax, s.Y)
	}

	xScale := NewScale(xMin, xMax, l.Margin.Left, l.Margin.Left+l.PlotWidth)
	yScale := NewScale(yMin, yMax, l.Margin.Top+l.PlotHeight, l.Margin.Top)

	var path strings.Builder
	l.Points = make([]XY, len(samples))
	for i, s := range samples {
		p := XY{X: xScale.Map(s.X), Y: yScale.Map(s.Y)}
		l.Points[i] = p

		cmd := "L"
		if i == 0 {
			cmd = "M"
		} else {
			path.WriteByte(' ')
		}
		fmt.Fprintf(&path, "%s %.2f %.2f", cmd, p.X, p.Y)
	}
	l.Path = path.String()

	for _, f := range tickFractions {
		v := yMin + (yMax-yMin)*f
		l.Ticks = append(l.Ticks, Tick{Y: yScale.Map(v), Value: v})
	}
	return l
}
