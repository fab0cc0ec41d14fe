package provider

import (
	"context"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
)

const pollyDefaultVoice = "Matthew"

// PollySpeech implements SpeechSynthesizer using AWS Polly's generative
// engine. Output is MP3; no token usage is reported.
type PollySpeech struct {
	client       *polly.Client
	defaultVoice string
}

func NewPollySpeech(ctx context.Context, defaultVoice string) (*PollySpeech, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config for Polly: %w", err)
	}
	if defaultVoice == "" {
		defaultVoice = pollyDefaultVoice
	}
	return &PollySpeech{client: polly.NewFromConfig(awsCfg), defaultVoice: defaultVoice}, nil
}

func (p *PollySpeech) Name() string { return "polly" }

func (p *PollySpeech) Synthesize(ctx context.Context, text string, opts SpeakOptions) (*SpeechResult, error) {
	voice := opts.Voice
	if voice == "" {
		voice = p.defaultVoice
	}

	out, err := p.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       pollytypes.EngineGenerative,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         &text,
		VoiceId:      pollytypes.VoiceId(voice),
	})
	if err != nil {
		if IsModelNotFoundMessage(err.Error()) {
			return nil, &ModelNotFoundError{Model: voice, Err: err}
		}
		return nil, fmt.Errorf("Polly synthesize: %w", err)
	}
	defer out.AudioStream.Close()

	data, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("read Polly audio stream: %w", err)
	}

	return &SpeechResult{
		Audio:    data,
		Provider: p.Name(),
		Voice:    voice,
	}, nil
}

var _ SpeechSynthesizer = (*PollySpeech)(nil)
