package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const veniceImagesURL = "https://api.venice.ai/api/v1/images/generate"

// VeniceProvider generates images without upstream content filtering. Only
// used above the configured NSFW trust stage.
type VeniceProvider struct {
	apiKey string
	model  string
	client *http.Client
}

func NewVeniceProvider(apiKey, model string) *VeniceProvider {
	return &VeniceProvider{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (p *VeniceProvider) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("venice: no api key configured")
	}

	payload := map[string]any{
		"model":  p.model,
		"prompt": prompt,
		"n":      1,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, veniceImagesURL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

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
		return nil, fmt.Errorf("venice http %d: %s", resp.StatusCode, truncate(body))
	}

	// Venice has shipped two response shapes; try both before giving up.
	var parsed struct {
		Images []json.RawMessage `json:"images"`
		Data   []struct {
			B64JSON string `json:"b64_json"`
			URL     string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}

	if len(parsed.Images) > 0 {
		return p.decodeImage(ctx, parsed.Images[0])
	}
	if len(parsed.Data) > 0 {
		item := parsed.Data[0]
		if item.B64JSON != "" {
			return base64.StdEncoding.DecodeString(item.B64JSON)
		}
		if item.URL != "" {
			return p.fetch(ctx, item.URL)
		}
	}
	return nil, fmt.Errorf("venice: no image in response")
}

func (p *VeniceProvider) decodeImage(ctx context.Context, raw json.RawMessage) ([]byte, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.HasPrefix(s, "http") {
			return p.fetch(ctx, s)
		}
		return base64.StdEncoding.DecodeString(s)
	}

	var obj struct {
		B64 string `json:"b64"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	if obj.B64 != "" {
		return base64.StdEncoding.DecodeString(obj.B64)
	}
	if obj.URL != "" {
		return p.fetch(ctx, obj.URL)
	}
	return nil, fmt.Errorf("venice: unrecognized image entry")
}

func (p *VeniceProvider) fetch(ctx context.Context, url string) ([]byte, error) {
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
		return nil, fmt.Errorf("venice fetch http %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
