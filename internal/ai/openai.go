// Package ai talks to the language models behind the wardrobe planet.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"glxy/internal/domain"
	"glxy/internal/logger"

	"github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"
)

// ErrAdapter wraps every failure coming out of a model call
var ErrAdapter = errors.New("ai adapter failure")

const (
	maxTokens = 500

	stylistPrompt = "You are a professional fashion stylist AI that creates outfit suggestions based on available clothing items."

	analyzePrompt = "Analyze this clothing item and provide the following details in JSON format:\n" +
		"1. tags: array of descriptive tags\n" +
		"2. colors: array of colors present\n" +
		"3. seasons: array of suitable seasons\n" +
		"4. styles: array of fashion styles this fits into\n" +
		"5. occasions: array of suitable occasions\n" +
		"6. confidence: number between 0 and 1 indicating confidence in analysis"
)

type Config struct {
	APIKey      string
	BaseURL     string
	VisionModel string
	TextModel   string
	Timeout     time.Duration
}

// OpenAIAdapter runs clothing analysis and outfit suggestions. Calls are not
// retried or cached.
type OpenAIAdapter struct {
	client *openai.Client
	cfg    Config
	log    *slog.Logger
}

func NewOpenAIAdapter(cfg Config, log *slog.Logger) *OpenAIAdapter {
	if log == nil {
		log = logger.Get()
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = openai.GPT4o
	}
	if cfg.TextModel == "" {
		cfg.TextModel = openai.GPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAIAdapter{client: openai.NewClientWithConfig(oc), cfg: cfg, log: log.With("component", "ai")}
}

func (a *OpenAIAdapter) AnalyzeClothing(ctx context.Context, imageURL string) (*domain.ClothingAnalysis, error) {
	content, err := a.complete(ctx, openai.ChatCompletionRequest{
		Model:     a.cfg.VisionModel,
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: analyzePrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, err
	}
	return parseAnalysis(content)
}

func (a *OpenAIAdapter) SuggestOutfit(ctx context.Context, req domain.SuggestRequest) (*domain.OutfitProposal, error) {
	if len(req.Wardrobe) == 0 {
		return nil, fmt.Errorf("%w: empty wardrobe", ErrAdapter)
	}
	content, err := a.complete(ctx, openai.ChatCompletionRequest{
		Model:     a.cfg.TextModel,
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: stylistPrompt},
			{Role: openai.ChatMessageRoleUser, Content: suggestPrompt(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, err
	}
	return parseProposal(content, req.Wardrobe)
}

func (a *OpenAIAdapter) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		a.log.Error("model call failed", "model", req.Model, "error", err, "elapsed", time.Since(start))
		return "", fmt.Errorf("%w: %w", ErrAdapter, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrAdapter)
	}
	a.log.Debug("model call", "model", req.Model, "tokens", resp.Usage.TotalTokens, "elapsed", time.Since(start))
	return resp.Choices[0].Message.Content, nil
}

func suggestPrompt(req domain.SuggestRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create an outfit suggestion for the following occasion: %q", req.Occasion)
	if req.Style != "" {
		fmt.Fprintf(&b, " in this style: %q", req.Style)
	}
	b.WriteString(".\n\nAvailable items:")
	for _, it := range req.Wardrobe {
		fmt.Fprintf(&b, "\n- %s: %s (%s) [%s] (ID: %s)",
			it.Category,
			strings.Join(it.Colors, ", "),
			strings.Join(it.Styles, ", "),
			strings.Join(it.Tags, ", "),
			it.ID,
		)
	}
	b.WriteString("\n\nProvide the response in JSON format with:\n" +
		"1. items: array of item IDs to use\n" +
		"2. explanation: detailed explanation of why these items work together\n" +
		"3. style: the overall style of the outfit\n" +
		"4. season: recommended season\n" +
		"5. metadata: including confidence score")
	return b.String()
}

// extractJSON strips code fences and prose around the first JSON object
func extractJSON(content string) (string, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", false
	}
	doc := content[start : end+1]
	return doc, gjson.Valid(doc)
}

func parseAnalysis(content string) (*domain.ClothingAnalysis, error) {
	doc, ok := extractJSON(content)
	if !ok {
		return nil, fmt.Errorf("%w: analysis is not JSON", ErrAdapter)
	}
	res := gjson.Parse(doc)
	out := &domain.ClothingAnalysis{
		Tags:       stringList(res, "tags"),
		Colors:     stringList(res, "colors", "color"),
		Seasons:    stringList(res, "seasons", "season"),
		Styles:     stringList(res, "styles", "style"),
		Occasions:  stringList(res, "occasions", "occasion"),
		Confidence: confidence(res, "confidence"),
	}
	if len(out.Tags)+len(out.Colors)+len(out.Styles) == 0 {
		return nil, fmt.Errorf("%w: empty analysis", ErrAdapter)
	}
	return out, nil
}

func parseProposal(content string, wardrobe []domain.ClothingItem) (*domain.OutfitProposal, error) {
	doc, ok := extractJSON(content)
	if !ok {
		return nil, fmt.Errorf("%w: suggestion is not JSON", ErrAdapter)
	}
	res := gjson.Parse(doc)

	known := make(map[string]bool, len(wardrobe))
	for _, it := range wardrobe {
		known[it.ID] = true
	}
	var ids []string
	seen := make(map[string]bool)
	for _, v := range res.Get("items").Array() {
		// items come back as ids or as {id: ...} objects
		id := v.String()
		if v.IsObject() {
			id = v.Get("id").String()
		}
		if known[id] && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no usable items in suggestion", ErrAdapter)
	}

	out := &domain.OutfitProposal{
		ItemIDs:     ids,
		Explanation: res.Get("explanation").String(),
		Style:       res.Get("style").String(),
		Season:      res.Get("season").String(),
		Confidence:  confidence(res, "metadata.confidence", "confidence"),
	}
	if m, ok := res.Get("metadata").Value().(map[string]any); ok {
		out.Metadata = m
	}
	return out, nil
}

// stringList reads the first present path as a list; a bare string becomes
// a one-element list.
func stringList(res gjson.Result, paths ...string) []string {
	for _, p := range paths {
		v := res.Get(p)
		if !v.Exists() {
			continue
		}
		if !v.IsArray() {
			if s := strings.TrimSpace(v.String()); s != "" {
				return []string{s}
			}
			continue
		}
		out := make([]string, 0, len(v.Array()))
		for _, e := range v.Array() {
			if s := strings.TrimSpace(e.String()); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}

// confidence reads a score in [0,1]; percentages are scaled down
func confidence(res gjson.Result, paths ...string) float64 {
	for _, p := range paths {
		v := res.Get(p)
		if !v.Exists() {
			continue
		}
		c := v.Float()
		if c > 1 && c <= 100 {
			c /= 100
		}
		if c < 0 {
			c = 0
		}
		if c > 1 {
			c = 1
		}
		return c
	}
	return 0
}
