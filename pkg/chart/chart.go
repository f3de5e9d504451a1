// Package chart renders per-device trend charts. Rendering is a pure
// function: time series in, SVG bytes out. Series are drawn oldest to
// newest on a shared axis, matching the dashboard's original layout.
package chart

import (
	"fmt"
	"strings"
)

// Series is one named line on the chart.
type Series struct {
	Label  string
	Values []float64
}

var palette = []string{"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728"}

const (
	marginLeft   = 50
	marginRight  = 16
	marginTop    = 36
	marginBottom = 28
	gridLines    = 4
)

// RenderTrend renders the series into an SVG image of the given size.
// Series with fewer than one point are skipped; an all-empty input
// still yields a valid (empty) chart.
func RenderTrend(title string, series []Series, width, height int) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, width, height, width, height)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="#ffffff"/>`, width, height)
	fmt.Fprintf(&b, `<text x="%d" y="20" font-family="sans-serif" font-size="14" fill="#333">%s</text>`, marginLeft, escape(title))

	plotW := width - marginLeft - marginRight
	plotH := height - marginTop - marginBottom

	min, max, points := bounds(series)
	if max == min {
		max = min + 1
	}

	// horizontal grid + axis labels
	for i := 0; i <= gridLines; i++ {
		y := marginTop + plotH*i/gridLines
		value := max - (max-min)*float64(i)/gridLines
		fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#ddd" stroke-width="1"/>`, marginLeft, y, width-marginRight, y)
		fmt.Fprintf(&b, `<text x="%d" y="%d" font-family="sans-serif" font-size="10" fill="#666" text-anchor="end">%.1f</text>`, marginLeft-6, y+4, value)
	}

	for si, s := range series {
		if len(s.Values) == 0 {
			continue
		}
		color := palette[si%len(palette)]

		var path strings.Builder
		for i, v := range s.Values {
			x := marginLeft
			if points > 1 {
				x = marginLeft + plotW*i/(points-1)
			}
			y := marginTop + int(float64(plotH)*(max-v)/(max-min))
			if i == 0 {
				fmt.Fprintf(&path, "M %d %d", x, y)
			} else {
				fmt.Fprintf(&path, " L %d %d", x, y)
			}
			fmt.Fprintf(&b, `<circle cx="%d" cy="%d" r="2.5" fill="%s"/>`, x, y, color)
		}
		fmt.Fprintf(&b, `<path d="%s" fill="none" stroke="%s" stroke-width="1.5"/>`, path.String(), color)

		// legend entry
		lx := marginLeft + si*140
		ly := height - 8
		fmt.Fprintf(&b, `<rect x="%d" y="%d" width="10" height="10" fill="%s"/>`, lx, ly-9, color)
		fmt.Fprintf(&b, `<text x="%d" y="%d" font-family="sans-serif" font-size="11" fill="#333">%s</text>`, lx+14, ly, escape(s.Label))
	}

	b.WriteString(`</svg>`)
	return []byte(b.String())
}

// bounds returns the value range and the longest series length.
func bounds(series []Series) (min, max float64, points int) {
	first := true
	for _, s := range series {
		if len(s.Values) > points {
			points = len(s.Values)
		}
		for _, v := range s.Values {
			if first {
				min, max = v, v
				first = false
				continue
			}
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}
	return min, max, points
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
