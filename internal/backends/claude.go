package backends

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/shwetayenaji/Super-OTP-Predictor/internal/classify"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/features"
)

// ClaudeConfig configures the Bedrock-hosted classifier.
type ClaudeConfig struct {
	Model string
}

// Claude asks Claude on AWS Bedrock for an OTP eligibility verdict. Credentials
// and region come from the default AWS configuration chain.
type Claude struct {
	client anthropic.Client
	model  string
}

// NewClaude builds the client once; it is reused for every prediction.
func NewClaude(ctx context.Context, cfg ClaudeConfig, opts ...option.RequestOption) *Claude {
	model := cfg.Model
	if model == "" {
		model = "global.anthropic.claude-sonnet-4-5-20250929-v1:0"
	}
	opts = append([]option.RequestOption{bedrock.WithLoadDefaultConfig(ctx)}, opts...)
	return &Claude{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

type verdict struct {
	Label         *int      `json:"label"`
	Probabilities []float64 `json:"probabilities"`
}

func (c *Claude) ask(ctx context.Context, v features.FeatureVector) (*verdict, error) {
	input, err := json.Marshal(v.Map())
	if err != nil {
		return nil, err
	}

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 200,
		System: []anthropic.TextBlockParam{
			{Text: claudePrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(string(input))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("claude api error: %w", err)
	}
	if len(message.Content) == 0 {
		return nil, fmt.Errorf("empty claude response")
	}

	return parseVerdict(strings.TrimSpace(message.Content[0].Text))
}

func (c *Claude) Predict(ctx context.Context, v features.FeatureVector) (classify.Label, error) {
	label, _, err := c.Score(ctx, v)
	return label, err
}

// Score takes the label and the distribution from one verdict. A
// distribution whose larger class is not the label is dropped, since it
// would report certainty in the other outcome.
func (c *Claude) Score(ctx context.Context, v features.FeatureVector) (classify.Label, []float64, error) {
	out, err := c.ask(ctx, v)
	if err != nil {
		return 0, nil, err
	}
	if out.Label == nil {
		return 0, nil, fmt.Errorf("claude verdict has no label")
	}
	label := classify.Label(*out.Label)
	if !agrees(label, out.Probabilities) {
		return label, nil, nil
	}
	return label, out.Probabilities, nil
}

func agrees(label classify.Label, dist []float64) bool {
	if len(dist) != 2 || (label != classify.LabelStandard && label != classify.LabelApproved) {
		return false
	}
	return dist[label] >= dist[1-label]
}

// parseVerdict extracts the JSON object from model output that may contain
// extra text around it.
func parseVerdict(content string) (*verdict, error) {
	var out verdict
	if err := json.Unmarshal([]byte(content), &out); err == nil {
		return &out, nil
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(content[start:end+1]), &out); err == nil {
			return &out, nil
		}
	}
	return nil, fmt.Errorf("failed to parse classifier response")
}

const claudePrompt = `You decide whether a payment session is eligible for a streamlined "Super OTP" authentication flow.
The user message is a JSON object with these integer fields:
device_type (1 mobile, 0 desktop), location_match (1 GPS matches billing address, 0 mismatch),
app_login_duration (minutes, 0-60), app_usage_today (minutes, 0-300), payment_amount (INR, 50-25000),
transaction_hour (0-23), past_fraud_flag (1 previous fraud, 0 clean), network_type (2 WiFi, 1 4G, 0 none),
os_version (0 Android 12, 1 Android 13, 2 iOS 15, 3 iOS 16), battery_level (percent).

Respond with a JSON object only:
{"label": 1 | 0, "probabilities": [p_standard, p_super_otp]}
where label 1 approves Super OTP and 0 requires standard OTP, and the probabilities sum to 1.`
