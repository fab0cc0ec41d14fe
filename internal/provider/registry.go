package provider

import (
	"context"
	"fmt"
)

// NewTextGenerator creates a text generator by provider name.
func NewTextGenerator(name, defaultModel string) (TextGenerator, error) {
	switch name {
	case "anthropic":
		return NewClaudeGenerator(defaultModel), nil
	case "openai":
		return NewOpenAIGenerator(defaultModel), nil
	default:
		return nil, fmt.Errorf("unknown text provider %q: choose anthropic or openai", name)
	}
}

// NewSpeechSynthesizer creates a synthesizer by provider name. speed
// and pitch apply to Google TTS only; zero values mean provider default.
func NewSpeechSynthesizer(ctx context.Context, name, model, voice, language string, speed, pitch float64) (SpeechSynthesizer, error) {
	switch name {
	case "elevenlabs":
		return NewElevenLabsSpeech(model, voice), nil
	case "google":
		return NewGoogleSpeech(ctx, language, voice, speed, pitch)
	case "polly":
		return NewPollySpeech(ctx, voice)
	default:
		return nil, fmt.Errorf("unknown TTS provider %q: choose elevenlabs, google, or polly", name)
	}
}

// OutputExtension returns the audio file extension a provider emits.
func OutputExtension(name string) string {
	// All three supported providers return MP3 frames.
	return "mp3"
}

// VoiceInfo describes an available voice for the list-voices command.
type VoiceInfo struct {
	ID          string
	Name        string
	Description string
	Default     bool
}

// AvailableVoices returns the narration voice catalog for a provider.
func AvailableVoices(name string) ([]VoiceInfo, error) {
	switch name {
	case "elevenlabs":
		return []VoiceInfo{
			{ID: "JBFqnCBsd6RMkjVDRZzb", Name: "George", Description: "Warm British male, clear and authoritative", Default: true},
			{ID: "EXAVITQu4vr4xnSDxMaL", Name: "Sarah", Description: "Soft American female, friendly and engaging"},
			{ID: "pNInz6obpgDQGcFmaJgB", Name: "Adam", Description: "Deep American male, confident narrator"},
			{ID: "onwK4e9ZLuTAKqWW03F9", Name: "Daniel", Description: "British male, authoritative news anchor"},
			{ID: "pFZP5JQG7iQjIQuC4Bku", Name: "Lily", Description: "British female, warm storyteller"},
		}, nil
	case "google":
		return []VoiceInfo{
			{ID: "en-US-Chirp3-HD-Charon", Name: "Charon", Description: "Deep male narrator", Default: true},
			{ID: "en-US-Chirp3-HD-Leda", Name: "Leda", Description: "Bright female narrator"},
			{ID: "en-US-Chirp3-HD-Fenrir", Name: "Fenrir", Description: "Gravelly male narrator"},
		}, nil
	case "polly":
		return []VoiceInfo{
			{ID: "Matthew", Name: "Matthew", Description: "US English male, generative engine", Default: true},
			{ID: "Ruth", Name: "Ruth", Description: "US English female, generative engine"},
			{ID: "Amy", Name: "Amy", Description: "British English female, generative engine"},
		}, nil
	default:
		return nil, fmt.Errorf("unknown TTS provider %q", name)
	}
}
