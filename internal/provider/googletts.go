package provider

import (
	"context"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
)

const googleDefaultVoice = "en-US-Chirp3-HD-Charon"

// GoogleSpeech implements SpeechSynthesizer using Google Cloud TTS.
// Output is MP3. The API reports no token usage.
type GoogleSpeech struct {
	client       *texttospeech.Client
	languageCode string
	defaultVoice string
	speed        float64
	pitch        float64
}

// NewGoogleSpeech creates the client eagerly so credential problems
// surface before the pipeline starts. language is an ISO 639-1 code.
func NewGoogleSpeech(ctx context.Context, language, defaultVoice string, speed, pitch float64) (*GoogleSpeech, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create Google TTS client: %w", err)
	}
	if defaultVoice == "" {
		defaultVoice = googleDefaultVoice
	}
	languageCode := "en-US"
	if language != "" && language != "en" {
		languageCode = language
	}
	return &GoogleSpeech{
		client:       client,
		languageCode: languageCode,
		defaultVoice: defaultVoice,
		speed:        speed,
		pitch:        pitch,
	}, nil
}

func (p *GoogleSpeech) Name() string { return "google" }

func (p *GoogleSpeech) Synthesize(ctx context.Context, text string, opts SpeakOptions) (*SpeechResult, error) {
	voice := opts.Voice
	if voice == "" {
		voice = p.defaultVoice
	}

	cfg := &texttospeechpb.AudioConfig{AudioEncoding: texttospeechpb.AudioEncoding_MP3}
	if p.speed != 0 {
		cfg.SpeakingRate = p.speed
	}
	if p.pitch != 0 {
		cfg.Pitch = p.pitch
	}

	resp, err := p.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: p.languageCode,
			Name:         voice,
		},
		AudioConfig: cfg,
	})
	if err != nil {
		if IsModelNotFoundMessage(err.Error()) {
			return nil, &ModelNotFoundError{Model: voice, Err: err}
		}
		return nil, fmt.Errorf("Google TTS synthesize: %w", err)
	}

	return &SpeechResult{
		Audio:    resp.AudioContent,
		Provider: p.Name(),
		Voice:    voice,
	}, nil
}

// Close releases the underlying gRPC connection.
func (p *GoogleSpeech) Close() error { return p.client.Close() }

var _ SpeechSynthesizer = (*GoogleSpeech)(nil)
