// Package gemini generates replies to bot mentions with Google's Gemini API.
// Replies are logged by the pipeline like any other bot response.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/chatlogger/internal/config"
)

// ReplyRequest is the mention a reply is generated for.
type ReplyRequest struct {
	Text         string
	SenderName   string
	BotUsername  string
	BotFirstName string
}

// Client generates mention replies.
type Client interface {
	GenerateReply(ctx context.Context, req ReplyRequest) (string, error)
}

// contentGenerator is the slice of the genai SDK the client calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type sdkClient struct {
	models        contentGenerator
	log           *slog.Logger
	contentConfig *genai.GenerateContentConfig
	modelName     string
	maxRetries    int
	retryDelay    time.Duration
}

// NewClient creates a Gemini client from cfg. An empty API key is an error;
// callers check for it to disable replies.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.Model)
	return newClient(gi.Models, cfg, logger), nil
}

func newClient(models contentGenerator, cfg config.GeminiConfig, log *slog.Logger) *sdkClient {
	temperature := cfg.Temperature
	baseCfg := &genai.GenerateContentConfig{
		Temperature: &temperature,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
		},
	}
	if cfg.SystemInstruction != "" {
		baseCfg.SystemInstruction = genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser)
	}

	return &sdkClient{
		models:        models,
		log:           log,
		contentConfig: baseCfg,
		modelName:     cfg.Model,
		maxRetries:    cfg.MaxRetries,
		retryDelay:    cfg.RetryDelay,
	}
}

func (c *sdkClient) withBotHeader(botUsername, botFirstName string) *genai.GenerateContentConfig {
	copyCfg := *c.contentConfig
	header := fmt.Sprintf(MentionSystemInstructionHeader, botFirstName, botUsername)

	var existingText string
	if cfg := c.contentConfig; cfg.SystemInstruction != nil && len(cfg.SystemInstruction.Parts) > 0 {
		existingText = cfg.SystemInstruction.Parts[0].Text
	}
	copyCfg.SystemInstruction = genai.NewContentFromText(header+existingText, genai.RoleUser)
	return &copyCfg
}

// GenerateReply answers a single mention.
func (c *sdkClient) GenerateReply(ctx context.Context, req ReplyRequest) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", errors.New("empty mention text")
	}
	c.log.DebugContext(ctx, "Generating reply", "sender", req.SenderName)

	prompt := req.Text
	if req.SenderName != "" {
		prompt = req.SenderName + ": " + req.Text
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := c.generateContentWithRetries(ctx, contents, c.withBotHeader(req.BotUsername, req.BotFirstName))
	if err != nil {
		return "", err
	}
	return c.extractText(ctx, resp)
}

func (c *sdkClient) generateContentWithRetries(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.models.GenerateContent(ctx, c.modelName, contents, cfg)
		if err == nil {
			return resp, nil
		}

		code, isAPIErr := apiErrorCode(err)
		retriable := isAPIErr &&
			(code == http.StatusInternalServerError || code == http.StatusServiceUnavailable || code == http.StatusTooManyRequests)
		if !retriable {
			c.log.ErrorContext(ctx, "Gemini API call failed with non-retriable error", "error", err)
			return nil, fmt.Errorf("gemini API call failed: %w", err)
		}
		if attempt >= c.maxRetries {
			c.log.ErrorContext(ctx, "Gemini API call failed after max retries", "error", err, "code", code)
			return nil, fmt.Errorf("gemini API call failed after %d retries (code %d): %w", c.maxRetries, code, err)
		}

		c.log.WarnContext(ctx, "Retrying Gemini API call", "attempt", attempt+1, "delay", c.retryDelay, "code", code)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
}

func apiErrorCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, true
	}
	return 0, false
}

func (c *sdkClient) extractText(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini returned no response")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified && resp.PromptFeedback.BlockReason != "" {
		reason := string(resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.WarnContext(ctx, "Gemini request blocked", "reason", reason)
		return "", fmt.Errorf("reply blocked by safety filter: %s", reason)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = string(resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response has no text", "finish_reason", finishReason)
		return "", fmt.Errorf("gemini returned empty content, finish reason: %s", finishReason)
	}
	return text, nil
}
