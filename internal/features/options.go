package features

// Option is one enumerated choice of a categorical field.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Code  int    `json:"code"`
}

// Choice is a categorical field with its fixed lookup table.
type Choice struct {
	Name    string   `json:"name"`
	Title   string   `json:"title"`
	Options []Option `json:"options"`
	Default string   `json:"default"`
}

// Lookup returns the code of value.
func (c Choice) Lookup(value string) (int, bool) {
	for _, o := range c.Options {
		if o.Value == value {
			return o.Code, true
		}
	}
	return 0, false
}

// Values lists the accepted raw values in display order.
func (c Choice) Values() []string {
	out := make([]string, len(c.Options))
	for i, o := range c.Options {
		out[i] = o.Value
	}
	return out
}

func (c Choice) code(value string) int {
	code, _ := c.Lookup(value)
	return code
}

// Range is a bounded integer field encoded as identity.
type Range struct {
	Name    string `json:"name"`
	Title   string `json:"title"`
	Min     int    `json:"min"`
	Max     int    `json:"max"`
	Step    int    `json:"step"`
	Default int    `json:"default"`
}

// Contains reports whether n lies inside the closed range.
func (r Range) Contains(n int) bool { return n >= r.Min && n <= r.Max }

var (
	DeviceType = Choice{
		Name:  "device_type",
		Title: "Device Type",
		Options: []Option{
			{Value: "Mobile", Label: "Mobile", Code: 1},
			{Value: "Desktop", Label: "Desktop", Code: 0},
		},
		Default: "Mobile",
	}
	OSVersion = Choice{
		Name:  "os_version",
		Title: "Operating System Version",
		Options: []Option{
			{Value: "Android12", Label: "Android 12", Code: 0},
			{Value: "Android13", Label: "Android 13", Code: 1},
			{Value: "iOS15", Label: "iOS 15", Code: 2},
			{Value: "iOS16", Label: "iOS 16", Code: 3},
		},
		Default: "Android13",
	}
	NetworkType = Choice{
		Name:  "network_type",
		Title: "Network Connection Type",
		Options: []Option{
			{Value: "WiFi", Label: "WiFi", Code: 2},
			{Value: "4G", Label: "4G", Code: 1},
			{Value: "None", Label: "None", Code: 0},
		},
		Default: "WiFi",
	}
	LocationMatch = Choice{
		Name:  "location_match",
		Title: "Location Verification",
		Options: []Option{
			{Value: "match", Label: "GPS matches billing address", Code: 1},
			{Value: "mismatch", Label: "Location mismatch", Code: 0},
		},
		Default: "match",
	}
	PastFraudFlag = Choice{
		Name:  "past_fraud_flag",
		Title: "Historical Security Status",
		Options: []Option{
			{Value: "clean", Label: "Clean record", Code: 0},
			{Value: "flagged", Label: "Previous fraud detected", Code: 1},
		},
		Default: "clean",
	}
)

var (
	AppLoginDuration = Range{Name: "app_login_duration", Title: "Current Session Duration (minutes)", Min: 0, Max: 60, Step: 1, Default: 5}
	AppUsageToday    = Range{Name: "app_usage_today", Title: "Total App Usage Today (minutes)", Min: 0, Max: 300, Step: 5, Default: 30}
	BatteryLevel     = Range{Name: "battery_level", Title: "Device Battery Level (%)", Min: 0, Max: 100, Step: 5, Default: 75}
	PaymentAmount    = Range{Name: "payment_amount", Title: "Transaction Amount (₹)", Min: 50, Max: 25000, Step: 50, Default: 1000}
	TransactionHour  = Range{Name: "transaction_hour", Title: "Transaction Time (24-hour format)", Min: 0, Max: 23, Step: 1, Default: 14}
)

// Schema describes every form field, grouped the way the page lays them out.
type Schema struct {
	Device      []Choice `json:"device"`
	Usage       []Range  `json:"usage"`
	FeatureCols []string `json:"feature_columns"`
}

// FormSchema returns the option tables and ranges.
func FormSchema() Schema {
	return Schema{
		Device:      []Choice{DeviceType, OSVersion, NetworkType, LocationMatch, PastFraudFlag},
		Usage:       []Range{AppLoginDuration, AppUsageToday, BatteryLevel, PaymentAmount, TransactionHour},
		FeatureCols: append([]string(nil), Names[:]...),
	}
}
