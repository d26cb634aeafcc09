package display

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"
)

var statusTmpl = template.Must(template.New("status").Funcs(template.FuncMap{
	"cm": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
	"cms": func(vs []float64) string {
		if len(vs) == 0 {
			return "(none)"
		}
		parts := make([]string, len(vs))
		for i, v := range vs {
			parts[i] = fmt.Sprintf("%.1f", v)
		}
		return strings.Join(parts, ", ") + " cm"
	},
	"countdown": func(d time.Duration) string {
		if d < 0 {
			d = 0
		}
		return d.Truncate(time.Second).String()
	},
}).Parse(statusText))

const statusText = `tank-sensor
  fill:       {{cm .Fill.Centimeters}}cm ({{cm .Percent}}%)
  band:       +/-{{cm .BandCm}}cm
  history:    {{cms .History}}
  sensor:     {{if .SensorOK}}ok{{else}}FAULT{{end}}
  last cycle: {{.Outcome}}
  next wake:  {{countdown .Countdown}}
`

// templateData widens Snapshot with derived fields the template needs.
type templateData struct {
	Snapshot
	BandCm float64
}

// Terminal renders snapshots as text, standing in for the device's panel
// during desk runs.
type Terminal struct {
	w io.Writer
}

// NewTerminal renders to the given writer, usually os.Stdout.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

// Render draws one snapshot.
func (t *Terminal) Render(snap Snapshot) error {
	data := templateData{Snapshot: snap, BandCm: float64(snap.Band) / 10}
	if err := statusTmpl.Execute(t.w, data); err != nil {
		return fmt.Errorf("render status: %w", err)
	}
	return nil
}

// Blank marks the display as off.
func (t *Terminal) Blank() error {
	_, err := fmt.Fprintln(t.w, "tank-sensor\n  (display off)")
	return err
}

// Close is a no-op for terminals.
func (t *Terminal) Close() error {
	return nil
}
