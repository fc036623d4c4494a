package channel

import (
	"context"
	"fmt"
	"io"
	"strings"

	"travel_agent/src/logger"
)

type Recorder interface {
	Record(ctx context.Context) ([]byte, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Speaker plays text aloud and returns once playback is done or queued
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Speech is a voice Channel. Every message is also mirrored to Echo when set,
// so a transcript stays visible.
type Speech struct {
	Recorder    Recorder
	Transcriber Transcriber
	Speaker     Speaker
	Echo        io.Writer
}

func (s *Speech) Read(ctx context.Context) (string, error) {
	audio, err := s.Recorder.Record(ctx)
	if err != nil {
		return "", err
	}
	if len(audio) == 0 {
		return "", nil
	}
	text, err := s.Transcriber.Transcribe(ctx, audio)
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	text = strings.TrimSpace(text)
	if s.Echo != nil {
		fmt.Fprintf(s.Echo, "You: %s\n", text)
	}
	return text, nil
}

// Write mirrors the text first; a playback failure is logged, not returned,
// since the text is already visible.
func (s *Speech) Write(ctx context.Context, text string) error {
	if s.Echo != nil {
		if _, err := fmt.Fprintf(s.Echo, "Assistant: %s\n\n", text); err != nil {
			return err
		}
	}
	if err := s.Speaker.Speak(ctx, text); err != nil {
		if s.Echo == nil {
			return err
		}
		logger.Warn().Err(err).Msg("speech playback failed")
	}
	return nil
}
