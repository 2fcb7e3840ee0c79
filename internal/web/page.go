package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/shwetayenaji/Super-OTP-Predictor/internal/classify"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/features"
)

//go:embed templates/*.html templates/*.css
var templateFS embed.FS

// OptionView is one <option> of a select.
type OptionView struct {
	Value    string
	Label    string
	Selected bool
}

// ChoiceView is a categorical field as rendered.
type ChoiceView struct {
	Name    string
	Title   string
	Options []OptionView
}

// RangeView is a slider as rendered.
type RangeView struct {
	Name  string
	Title string
	Min   int
	Max   int
	Step  int
	Value int
}

// Page is everything the form template needs.
type Page struct {
	Device  []ChoiceView
	Usage   []RangeView
	Metrics []Metric
	Outcome *Outcome
	Error   string
	CSS     template.CSS
}

// Renderer executes the embedded page template.
type Renderer struct {
	tmpl *template.Template
	css  template.CSS
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	css, err := templateFS.ReadFile("templates/style.css")
	if err != nil {
		return nil, fmt.Errorf("read stylesheet: %w", err)
	}
	return &Renderer{tmpl: tmpl, css: template.CSS(css)}, nil
}

// NewPage builds the view of a selection, with an optional decision.
func NewPage(s features.Selection, d *classify.Decision) Page {
	schema := features.FormSchema()

	values := map[string]string{
		features.DeviceType.Name:    s.DeviceType,
		features.OSVersion.Name:     s.OSVersion,
		features.NetworkType.Name:   s.NetworkType,
		features.LocationMatch.Name: s.LocationMatch,
		features.PastFraudFlag.Name: s.PastFraudFlag,
	}
	p := Page{Metrics: Metrics(s)}
	for _, c := range schema.Device {
		cv := ChoiceView{Name: c.Name, Title: c.Title}
		for _, o := range c.Options {
			cv.Options = append(cv.Options, OptionView{
				Value:    o.Value,
				Label:    o.Label,
				Selected: o.Value == values[c.Name],
			})
		}
		p.Device = append(p.Device, cv)
	}

	nums := map[string]int{
		features.AppLoginDuration.Name: s.AppLoginDuration,
		features.AppUsageToday.Name:    s.AppUsageToday,
		features.BatteryLevel.Name:     s.BatteryLevel,
		features.PaymentAmount.Name:    s.PaymentAmount,
		features.TransactionHour.Name:  s.TransactionHour,
	}
	for _, r := range schema.Usage {
		p.Usage = append(p.Usage, RangeView{
			Name:  r.Name,
			Title: r.Title,
			Min:   r.Min,
			Max:   r.Max,
			Step:  r.Step,
			Value: nums[r.Name],
		})
	}

	if d != nil {
		o := RenderOutcome(*d)
		p.Outcome = &o
	}
	return p
}

// Render writes the page. The template is executed into a buffer first so a
// template error never leaves a half-written response.
func (r *Renderer) Render(w io.Writer, p Page) error {
	p.CSS = r.css
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "page.html", p); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}
