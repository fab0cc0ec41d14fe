package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io/v1/text-to-speech"
	elevenLabsDefaultModel = "eleven_flash_v2_5"
	elevenLabsDefaultVoice = "JBFqnCBsd6RMkjVDRZzb" // George
	elevenLabsOutputFormat = "mp3_44100_128"
)

type elevenLabsRequest struct {
	Text          string                 `json:"text"`
	ModelID       string                 `json:"model_id"`
	VoiceSettings *elevenLabsVoiceParams `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceParams struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
	Speed           float64 `json:"speed"`
}

// ElevenLabsSpeech implements SpeechSynthesizer over the ElevenLabs HTTP
// API. Reports no token usage; character counts are the usage unit.
type ElevenLabsSpeech struct {
	apiKey       string
	httpClient   *http.Client
	defaultModel string
	defaultVoice string
}

func NewElevenLabsSpeech(defaultModel, defaultVoice string) *ElevenLabsSpeech {
	if defaultModel == "" {
		defaultModel = elevenLabsDefaultModel
	}
	if defaultVoice == "" {
		defaultVoice = elevenLabsDefaultVoice
	}
	return &ElevenLabsSpeech{
		apiKey:       os.Getenv("ELEVENLABS_API_KEY"),
		httpClient:   &http.Client{Timeout: 120 * time.Second},
		defaultModel: defaultModel,
		defaultVoice: defaultVoice,
	}
}

func (p *ElevenLabsSpeech) Name() string { return "elevenlabs" }

func (p *ElevenLabsSpeech) Synthesize(ctx context.Context, text string, opts SpeakOptions) (*SpeechResult, error) {
	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}
	voice := opts.Voice
	if voice == "" {
		voice = p.defaultVoice
	}

	reqBody := elevenLabsRequest{
		Text:    text,
		ModelID: model,
		VoiceSettings: &elevenLabsVoiceParams{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			UseSpeakerBoost: true,
			Speed:           1.0,
		},
	}
	if v, ok := opts.Extras["speed"].(float64); ok && v > 0 {
		reqBody.VoiceSettings.Speed = v
	}
	if v, ok := opts.Extras["stability"].(float64); ok && v > 0 {
		reqBody.VoiceSettings.Stability = v
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s?output_format=%s", elevenLabsBaseURL, voice, elevenLabsOutputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(res.Body)
		apiErr := fmt.Errorf("ElevenLabs API error (status %d): %s", res.StatusCode, string(errBody))
		if res.StatusCode == http.StatusNotFound && IsModelNotFoundMessage(string(errBody)) {
			return nil, &ModelNotFoundError{Model: model, Err: apiErr}
		}
		return nil, apiErr
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &SpeechResult{
		Audio:    data,
		Provider: p.Name(),
		Model:    model,
		Voice:    voice,
	}, nil
}

var _ SpeechSynthesizer = (*ElevenLabsSpeech)(nil)
