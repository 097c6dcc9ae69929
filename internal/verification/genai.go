package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// geminiAuthenticity is the model-backed authenticity analyzer. The model
// internals stay external: this adapter only sends the image with a fixed
// prompt and consumes the normalized score it returns.
type geminiAuthenticity struct {
	model  *genai.GenerativeModel
	logger *zap.Logger
}

const authenticityPrompt = `You are screening a photo attached to a civic issue report.
Judge whether it is a genuine photograph rather than AI-generated, heavily edited, or a screenshot.
Reply with exactly one JSON object: {"authentic": bool, "confidence": number between 0 and 1, "reason": short string}`

// newGeminiAuthenticity builds the model-backed analyzer.
func newGeminiAuthenticity(ctx context.Context, apiKey, modelName string, logger *zap.Logger) (*geminiAuthenticity, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"

	return &geminiAuthenticity{model: model, logger: logger}, nil
}

type authenticityVerdict struct {
	Authentic  bool    `json:"authentic"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

func (g *geminiAuthenticity) Analyze(ctx context.Context, asset *ImageAsset) CheckResult {
	resp, err := g.model.GenerateContent(ctx,
		genai.ImageData(imageFormat(asset.Data), asset.Data),
		genai.Text(authenticityPrompt),
	)
	if err != nil {
		// A misbehaving model degrades this check, never the whole pass.
		return CheckResult{
			Status:     CheckFailed,
			Confidence: 0,
			Details:    fmt.Sprintf("Model inference failed: %v", err),
		}
	}

	verdict, err := parseAuthenticityVerdict(resp)
	if err != nil {
		g.logger.Warn("Unparseable model response", zap.Error(err))
		return CheckResult{
			Status:     CheckFailed,
			Confidence: 0,
			Details:    fmt.Sprintf("Model inference failed: %v", err),
		}
	}

	confidence := verdict.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	if !verdict.Authentic {
		return CheckResult{
			Status:     CheckFailed,
			Confidence: confidence,
			Details:    fmt.Sprintf("Image flagged as non-authentic: %s", verdict.Reason),
			Metadata:   map[string]any{"model_reason": verdict.Reason},
		}
	}

	status := CheckPassed
	if confidence < 0.7 {
		status = CheckWarning
	}
	return CheckResult{
		Status:     status,
		Confidence: confidence,
		Details:    "Image appears to be authentic",
		Metadata:   map[string]any{"model_reason": verdict.Reason},
	}
}

func parseAuthenticityVerdict(resp *genai.GenerateContentResponse) (authenticityVerdict, error) {
	var verdict authenticityVerdict

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return verdict, fmt.Errorf("empty model response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	if err := json.Unmarshal([]byte(sb.String()), &verdict); err != nil {
		return verdict, fmt.Errorf("invalid verdict payload: %w", err)
	}
	return verdict, nil
}

// imageFormat guesses the payload format from magic bytes; the model API
// wants a format label, not a full MIME type.
func imageFormat(data []byte) string {
	switch {
	case len(data) > 8 && string(data[1:4]) == "PNG":
		return "png"
	case len(data) > 3 && data[0] == 0xFF && data[1] == 0xD8:
		return "jpeg"
	case len(data) > 6 && string(data[:4]) == "GIF8":
		return "gif"
	default:
		return "jpeg"
	}
}
