package web

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/shwetayenaji/Super-OTP-Predictor/internal/classify"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/features"
)

var printer = message.NewPrinter(language.English)

// Metric is one card of the quick overview row.
type Metric struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Label string `json:"label"`
}

// Metrics summarizes a selection for the overview row.
func Metrics(s features.Selection) []Metric {
	return []Metric{
		{Key: "payment_amount", Value: FormatRupees(s.PaymentAmount), Label: "Transaction Amount"},
		{Key: "battery_level", Value: fmt.Sprintf("%d%%", s.BatteryLevel), Label: "Battery Level"},
		{Key: "app_login_duration", Value: fmt.Sprintf("%d min", s.AppLoginDuration), Label: "Session Time"},
		{Key: "transaction_hour", Value: fmt.Sprintf("%d:00", s.TransactionHour), Label: "Transaction Hour"},
	}
}

// FormatRupees renders an amount with thousands separators, e.g. ₹25,000.
func FormatRupees(amount int) string {
	return printer.Sprintf("₹%d", amount)
}

// FormatConfidence renders a 0-100 confidence with one decimal place.
func FormatConfidence(c float64) string {
	return fmt.Sprintf("%.1f%%", c)
}

// Outcome is the rendered result card.
type Outcome struct {
	Approved   bool   `json:"approved"`
	Icon       string `json:"icon"`
	Heading    string `json:"heading"`
	Subtext    string `json:"subtext"`
	Confidence string `json:"confidence"`
}

// RenderOutcome turns a decision into its result card.
func RenderOutcome(d classify.Decision) Outcome {
	conf := FormatConfidence(d.Confidence)
	if d.Approved() {
		return Outcome{
			Approved:   true,
			Icon:       "✅",
			Heading:    "Super OTP Approved!",
			Subtext:    "User meets all criteria for enhanced authentication • Confidence: " + conf,
			Confidence: conf,
		}
	}
	return Outcome{
		Icon:       "🔒",
		Heading:    "Standard OTP Required",
		Subtext:    "User profile suggests standard authentication • Confidence: " + conf,
		Confidence: conf,
	}
}
