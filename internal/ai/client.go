// Package ai wraps the Gemini generative models used for specimen
// identification, narration, lab illustrations and the daily bounty.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/isdelr/rockhound-be/internal/config"
	"github.com/isdelr/rockhound-be/internal/gamification"
	"github.com/isdelr/rockhound-be/internal/models"
	"google.golang.org/genai"
)

var (
	// ErrUnavailable is returned by every call when no API key is configured.
	ErrUnavailable = errors.New("ai service is not configured")
	// ErrEmptyResponse means the model answered without usable content.
	ErrEmptyResponse = errors.New("ai returned no usable content")
)

// contentGenerator is the subset of *genai.Models the client needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Options selects models and retry behaviour.
type Options struct {
	VisionModel string
	TTSModel    string
	ImageModel  string
	Voice       string
	Retry       RetryPolicy
}

// Client calls the Gemini API. A Client without a generator is valid and
// fails every call with ErrUnavailable.
type Client struct {
	gen  contentGenerator
	opts Options
}

// FusionText is the generated name and lore of a lab specimen.
type FusionText struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// New creates a Client from configuration. An empty API key yields a
// disabled client rather than an error.
func New(ctx context.Context, cfg config.AIConfig) (*Client, error) {
	opts := Options{
		VisionModel: cfg.VisionModel,
		TTSModel:    cfg.TTSModel,
		ImageModel:  cfg.ImageModel,
		Voice:       cfg.Voice,
		Retry:       DefaultRetryPolicy(),
	}
	opts.Retry.MaxRetries = cfg.MaxRetries
	opts.Retry.BaseDelay = cfg.RetryDelay

	if cfg.APIKey == "" {
		return &Client{opts: opts}, nil
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Client{gen: gc.Models, opts: opts}, nil
}

// Enabled reports whether calls reach the AI service.
func (c *Client) Enabled() bool {
	return c != nil && c.gen != nil
}

func (c *Client) generate(ctx context.Context, op, model string, parts []*genai.Part, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if !c.Enabled() {
		return nil, ErrUnavailable
	}

	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
	var resp *genai.GenerateContentResponse
	err := c.opts.Retry.Do(ctx, op, func(ctx context.Context) error {
		var err error
		resp, err = c.gen.GenerateContent(ctx, model, contents, cfg)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return resp, nil
}

func firstParts(resp *genai.GenerateContentResponse) []*genai.Part {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	return resp.Candidates[0].Content.Parts
}

func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, p := range firstParts(resp) {
		if p != nil && !p.Thought {
			sb.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

func responseBlob(resp *genai.GenerateContentResponse) *genai.Blob {
	for _, p := range firstParts(resp) {
		if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
			return p.InlineData
		}
	}
	return nil
}

// decodeJSON parses a JSON-mode answer, tolerating a markdown code fence.
func decodeJSON(resp *genai.GenerateContentResponse, v any) error {
	text := responseText(resp)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyResponse
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("%w: %v", ErrEmptyResponse, err)
	}
	return nil
}

func str(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: desc}
}

func num(desc string, lo, hi float64) *genai.Schema {
	return &genai.Schema{Type: genai.TypeNumber, Description: desc, Minimum: &lo, Maximum: &hi}
}

var identificationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"name":        str("Common name of the rock or mineral"),
		"type":        {Type: genai.TypeString, Enum: []string{"igneous", "sedimentary", "metamorphic", "mineral", "fossil", "meteorite", "unknown"}},
		"description": str("Two sentence field-guide description"),
		"rarityScore": {Type: genai.TypeInteger, Description: "How rare the specimen is, 1 (common) to 100 (legendary)"},
		"composition": {Type: genai.TypeArray, Items: str("Chemical formula or constituent mineral")},
		"hardness":    num("Mohs hardness", 0, 10),
		"confidence":  num("Classification confidence", 0, 1),
		"funFact":     str("One surprising fact"),
	},
	Required: []string{"name", "type", "description", "rarityScore", "composition", "hardness", "confidence"},
}

// IdentifySpecimen classifies a photo of a rock or mineral.
func (c *Client) IdentifySpecimen(ctx context.Context, image []byte, mimeType string) (models.Identification, error) {
	if len(image) == 0 {
		return models.Identification{}, fmt.Errorf("identify: empty image")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	parts := []*genai.Part{
		{InlineData: &genai.Blob{Data: image, MIMEType: mimeType}},
		{Text: "Identify the rock or mineral in this photo for a collector's field journal."},
	}
	resp, err := c.generate(ctx, "identify", c.opts.VisionModel, parts, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   identificationSchema,
	})
	if err != nil {
		return models.Identification{}, err
	}

	var id models.Identification
	if err := decodeJSON(resp, &id); err != nil {
		return models.Identification{}, fmt.Errorf("identify: %w", err)
	}
	id.RarityScore = gamification.ClampRarity(id.RarityScore)
	id.Rarity = gamification.RarityTier(id.RarityScore)
	if id.Composition == nil {
		id.Composition = []string{}
	}
	return id, nil
}

// Speak synthesizes text into raw 16-bit PCM at SpeechSampleRate.
func (c *Client) Speak(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("speak: empty text")
	}

	resp, err := c.generate(ctx, "speak", c.opts.TTSModel, []*genai.Part{{Text: text}}, &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: c.opts.Voice},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	blob := responseBlob(resp)
	if blob == nil {
		return nil, fmt.Errorf("speak: %w", ErrEmptyResponse)
	}
	return blob.Data, nil
}

// Illustrate renders an image for prompt and returns its bytes and MIME type.
func (c *Client) Illustrate(ctx context.Context, prompt string) ([]byte, string, error) {
	resp, err := c.generate(ctx, "illustrate", c.opts.ImageModel, []*genai.Part{{Text: prompt}}, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return nil, "", err
	}

	blob := responseBlob(resp)
	if blob == nil {
		return nil, "", fmt.Errorf("illustrate: %w", ErrEmptyResponse)
	}
	mime := blob.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return blob.Data, mime, nil
}

var fusionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"name":        str("Invented name of the fused specimen"),
		"description": str("Short lore entry describing it"),
	},
	Required: []string{"name", "description"},
}

// DescribeFusion invents a name and description for a lab specimen made from a and b.
func (c *Client) DescribeFusion(ctx context.Context, a, b models.Rock, composition []string) (FusionText, error) {
	prompt := fmt.Sprintf(
		"Two specimens were fused in a geology lab: %s (%s) and %s (%s). The result contains %s. Name the new synthetic specimen.",
		a.Name, a.Type, b.Name, b.Type, strings.Join(composition, ", "),
	)
	resp, err := c.generate(ctx, "fuse", c.opts.VisionModel, []*genai.Part{{Text: prompt}}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   fusionSchema,
	})
	if err != nil {
		return FusionText{}, err
	}

	var out FusionText
	if err := decodeJSON(resp, &out); err != nil {
		return FusionText{}, fmt.Errorf("fuse: %w", err)
	}
	if strings.TrimSpace(out.Name) == "" {
		return FusionText{}, fmt.Errorf("fuse: %w", ErrEmptyResponse)
	}
	return out, nil
}

var bountySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"mineral": str("A mineral a hobbyist could plausibly find"),
		"hint":    str("One sentence on where to look"),
	},
	Required: []string{"mineral", "hint"},
}

// SuggestBounty asks for the target mineral of the given day (YYYY-MM-DD).
func (c *Client) SuggestBounty(ctx context.Context, date string) (models.Bounty, error) {
	prompt := fmt.Sprintf("Pick today's (%s) bounty mineral for a rock collecting game.", date)
	resp, err := c.generate(ctx, "bounty", c.opts.VisionModel, []*genai.Part{{Text: prompt}}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   bountySchema,
	})
	if err != nil {
		return models.Bounty{}, err
	}

	var b models.Bounty
	if err := decodeJSON(resp, &b); err != nil {
		return models.Bounty{}, fmt.Errorf("bounty: %w", err)
	}
	if strings.TrimSpace(b.Mineral) == "" {
		return models.Bounty{}, fmt.Errorf("bounty: %w", ErrEmptyResponse)
	}
	b.Date = date
	b.Source = "ai"
	return b, nil
}
