package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"hikari-bot/internal/config"
)

const (
	openRouterChatURL   = "https://openrouter.ai/api/v1/chat/completions"
	openRouterImagesURL = "https://openrouter.ai/api/v1/images/generations"
)

type OpenRouterProvider struct {
	apiKey   string
	settings *config.Settings
	client   *http.Client
	limiter  *rate.Limiter
}

func NewOpenRouterProvider(apiKey string, settings *config.Settings) *OpenRouterProvider {
	return &OpenRouterProvider{
		apiKey:   apiKey,
		settings: settings,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		// Global gate across all generative calls. One deployment, one user,
		// no reason to burst past the upstream limits.
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
	}
}

func (p *OpenRouterProvider) Generate(ctx context.Context, messages []Message, task string, temperature float64) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	payload := map[string]any{
		"model":       p.settings.Model(task),
		"messages":    messages,
		"temperature": temperature,
	}

	body, err := p.post(ctx, openRouterChatURL, payload)
	if err != nil {
		return "", err
	}
	reply, err := parseChatResponse(body)
	if err != nil {
		return "", err
	}
	log.Printf("[INFO] ai: %s (%s) replied: %s", task, p.settings.Model(task), preview(reply))
	return reply, nil
}

func (p *OpenRouterProvider) GenerateVision(ctx context.Context, prompt, imageURL string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	payload := map[string]any{
		"model": p.settings.Model("vision"),
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": prompt},
					{"type": "image_url", "image_url": map[string]string{"url": imageURL}},
				},
			},
		},
		"temperature": 0.85,
	}

	body, err := p.post(ctx, openRouterChatURL, payload)
	if err != nil {
		return "", err
	}
	return parseChatResponse(body)
}

// GenerateImage asks the images endpoint for a single picture. The response
// carries either inline base64 or a URL to fetch.
func (p *OpenRouterProvider) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"model":  p.settings.Photo.Model,
		"prompt": prompt,
		"n":      1,
	}

	body, err := p.post(ctx, openRouterImagesURL, payload)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
			URL     string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("openrouter images: empty data")
	}
	item := parsed.Data[0]
	if item.B64JSON != "" {
		return base64.StdEncoding.DecodeString(item.B64JSON)
	}
	if item.URL != "" {
		return p.fetch(ctx, item.URL)
	}
	return nil, fmt.Errorf("openrouter images: no payload in response")
}

func (p *OpenRouterProvider) post(ctx context.Context, url string, payload map[string]any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", "https://github.com/hikari-bot")
	req.Header.Set("X-Title", "Hikari Tsukino Bot")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openrouter http %d: %s", resp.StatusCode, truncate(body))
	}
	return body, nil
}

func (p *OpenRouterProvider) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openrouter fetch http %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func parseChatResponse(body []byte) (string, error) {
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openrouter empty choices")
	}

	reply := cleanReply(parsed.Choices[0].Message.Content)
	if isGarbageResponse(reply) {
		return "", fmt.Errorf("openrouter returned garbage")
	}
	return reply, nil
}
