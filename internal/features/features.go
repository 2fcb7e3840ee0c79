package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
)

// Len is the number of columns in a FeatureVector.
const Len = 10

// Names are the column names of a FeatureVector, in the order the classifier
// was trained on. Reordering silently corrupts predictions.
var Names = [Len]string{
	"device_type",
	"location_match",
	"app_login_duration",
	"app_usage_today",
	"payment_amount",
	"transaction_hour",
	"past_fraud_flag",
	"network_type",
	"os_version",
	"battery_level",
}

// FeatureVector is the fixed-order numeric encoding consumed by a classifier.
type FeatureVector [Len]int

// Floats returns the vector as float64 columns.
func (v FeatureVector) Floats() []float64 {
	out := make([]float64, Len)
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// Map returns the vector keyed by column name.
func (v FeatureVector) Map() map[string]int {
	out := make(map[string]int, Len)
	for i, name := range Names {
		out[name] = v[i]
	}
	return out
}

// Selection holds the raw attribute values a user picked on the form.
type Selection struct {
	DeviceType       string `json:"device_type"`
	LocationMatch    string `json:"location_match"`
	AppLoginDuration int    `json:"app_login_duration"`
	AppUsageToday    int    `json:"app_usage_today"`
	PaymentAmount    int    `json:"payment_amount"`
	TransactionHour  int    `json:"transaction_hour"`
	PastFraudFlag    string `json:"past_fraud_flag"`
	NetworkType      string `json:"network_type"`
	OSVersion        string `json:"os_version"`
	BatteryLevel     int    `json:"battery_level"`
}

// DefaultSelection is the initial state of the form.
func DefaultSelection() Selection {
	return Selection{
		DeviceType:       DeviceType.Default,
		LocationMatch:    LocationMatch.Default,
		AppLoginDuration: AppLoginDuration.Default,
		AppUsageToday:    AppUsageToday.Default,
		PaymentAmount:    PaymentAmount.Default,
		TransactionHour:  TransactionHour.Default,
		PastFraudFlag:    PastFraudFlag.Default,
		NetworkType:      NetworkType.Default,
		OSVersion:        OSVersion.Default,
		BatteryLevel:     BatteryLevel.Default,
	}
}

// Encode converts a validated selection into its FeatureVector. Every
// enumerated option has exactly one code, so Encode has no failure mode for
// selections accepted by Validate.
func Encode(s Selection) FeatureVector {
	return FeatureVector{
		DeviceType.code(s.DeviceType),
		LocationMatch.code(s.LocationMatch),
		s.AppLoginDuration,
		s.AppUsageToday,
		s.PaymentAmount,
		s.TransactionHour,
		PastFraudFlag.code(s.PastFraudFlag),
		NetworkType.code(s.NetworkType),
		OSVersion.code(s.OSVersion),
		s.BatteryLevel,
	}
}

// ValidationError reports a raw input outside its field's domain.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks every field against its enumerated options or range.
func (s Selection) Validate() error {
	var errs []error
	for _, c := range []struct {
		choice Choice
		value  string
	}{
		{DeviceType, s.DeviceType},
		{LocationMatch, s.LocationMatch},
		{PastFraudFlag, s.PastFraudFlag},
		{NetworkType, s.NetworkType},
		{OSVersion, s.OSVersion},
	} {
		if _, ok := c.choice.Lookup(c.value); !ok {
			errs = append(errs, &ValidationError{
				Field:  c.choice.Name,
				Reason: fmt.Sprintf("%q is not one of %s", c.value, strings.Join(c.choice.Values(), ", ")),
			})
		}
	}
	for _, r := range []struct {
		rng   Range
		value int
	}{
		{AppLoginDuration, s.AppLoginDuration},
		{AppUsageToday, s.AppUsageToday},
		{PaymentAmount, s.PaymentAmount},
		{TransactionHour, s.TransactionHour},
		{BatteryLevel, s.BatteryLevel},
	} {
		if !r.rng.Contains(r.value) {
			errs = append(errs, &ValidationError{
				Field:  r.rng.Name,
				Reason: fmt.Sprintf("%d is outside %d-%d", r.value, r.rng.Min, r.rng.Max),
			})
		}
	}
	return errors.Join(errs...)
}

// ParseSelection reads a submitted form. Missing fields keep their defaults.
func ParseSelection(form url.Values) (Selection, error) {
	s := DefaultSelection()

	strs := map[string]*string{
		DeviceType.Name:    &s.DeviceType,
		LocationMatch.Name: &s.LocationMatch,
		PastFraudFlag.Name: &s.PastFraudFlag,
		NetworkType.Name:   &s.NetworkType,
		OSVersion.Name:     &s.OSVersion,
	}
	for name, dst := range strs {
		if form.Has(name) {
			*dst = strings.TrimSpace(form.Get(name))
		}
	}

	ints := map[string]*int{
		AppLoginDuration.Name: &s.AppLoginDuration,
		AppUsageToday.Name:    &s.AppUsageToday,
		PaymentAmount.Name:    &s.PaymentAmount,
		TransactionHour.Name:  &s.TransactionHour,
		BatteryLevel.Name:     &s.BatteryLevel,
	}
	var errs []error
	for name, dst := range ints {
		if !form.Has(name) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(form.Get(name)))
		if err != nil {
			errs = append(errs, &ValidationError{Field: name, Reason: "not an integer"})
			continue
		}
		*dst = n
	}
	if len(errs) > 0 {
		return s, errors.Join(errs...)
	}
	return s, s.Validate()
}

// DecodeSelection reads a JSON selection. Absent fields keep their defaults.
func DecodeSelection(r io.Reader) (Selection, error) {
	s := DefaultSelection()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return s, fmt.Errorf("decode selection: %w", err)
	}
	return s, s.Validate()
}
