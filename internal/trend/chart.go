package trend

import (
	"fmt"
	"image/color"
	"path/filepath"
	"sort"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/issuelens/issuelens/internal/oputil"
)

// maxLabeledDates is the densest x axis that still labels every date.
const maxLabeledDates = 30

// priorityColors fix the three priority series colors.
var priorityColors = map[string]color.RGBA{
	"high":   {R: 0xd6, G: 0x2c, B: 0x2c, A: 0xff},
	"medium": {R: 0xe8, G: 0xa3, B: 0x3d, A: 0xff},
	"low":    {R: 0x3d, G: 0x8b, B: 0x4f, A: 0xff},
}

// RenderChart draws the series as a PNG under dir and returns the file path
// and a file:// URL for it. A series with no dated days renders nothing and
// returns empty paths: zero counts are a valid answer, not a failure.
func RenderChart(s *Series, chart Chart, dir string) (path, url string, err error) {
	if len(s.Days) == 0 {
		return "", "", nil
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s %s trend", s.Kind, chart)
	p.X.Label.Text = "date"
	p.Y.Label.Text = "count"
	p.X.Tick.Marker = dateTicks(s.Days)
	p.X.Tick.Label.Rotation = 0.9
	p.X.Tick.Label.XAlign = -1
	p.Legend.Top = true

	switch chart {
	case ChartCount:
		err = addLine(p, "total", seriesOf(s.Days, func(d Day) int { return d.Total }), color.RGBA{R: 0x2b, G: 0x6c, B: 0xb0, A: 0xff})
	case ChartPriority:
		for _, bucket := range []string{"high", "medium", "low"} {
			b := bucket
			if err = addLine(p, b, seriesOf(s.Days, func(d Day) int { return d.Priority[b] }), priorityColors[b]); err != nil {
				break
			}
		}
	case ChartStatus:
		statuses := statusNames(s.Days)
		for i, status := range statuses {
			st := status
			if err = addLine(p, st, seriesOf(s.Days, func(d Day) int { return d.Statuses[st] }), plotutil.Color(i)); err != nil {
				break
			}
		}
	default:
		return "", "", oputil.New(oputil.KindInputMalformed,
			"unsupported chart %q (want count, priority, or status)", chart)
	}
	if err != nil {
		return "", "", fmt.Errorf("build chart: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s.png", s.Kind, chart, time.Now().Format("20060102_150405"))
	path = filepath.Join(dir, name)
	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return "", "", fmt.Errorf("save chart: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return path, "file://" + filepath.ToSlash(abs), nil
}

func seriesOf(days []Day, value func(Day) int) plotter.XYs {
	xys := make(plotter.XYs, len(days))
	for i, d := range days {
		xys[i] = plotter.XY{X: float64(i), Y: float64(value(d))}
	}
	return xys
}

func addLine(p *plot.Plot, name string, xys plotter.XYs, c color.Color) error {
	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return err
	}
	line.Color = c
	points.Color = c
	p.Add(line, points)
	p.Legend.Add(name, line, points)
	return nil
}

// dateTicks labels every date up to maxLabeledDates, then thins to keep
// roughly that many labels.
func dateTicks(days []Day) plot.ConstantTicks {
	step := 1
	if len(days) > maxLabeledDates {
		step = (len(days) + maxLabeledDates - 1) / maxLabeledDates
	}
	ticks := make([]plot.Tick, 0, len(days))
	for i, d := range days {
		t := plot.Tick{Value: float64(i)}
		if i%step == 0 {
			t.Label = d.Date
		}
		ticks = append(ticks, t)
	}
	return plot.ConstantTicks(ticks)
}

func statusNames(days []Day) []string {
	seen := make(map[string]bool)
	var names []string
	for _, d := range days {
		for status := range d.Statuses {
			if !seen[status] {
				seen[status] = true
				names = append(names, status)
			}
		}
	}
	// Stable palette assignment across runs.
	sort.Strings(names)
	return names
}
