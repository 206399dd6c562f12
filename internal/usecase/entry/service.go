// Package entry creates journal entries from voice recordings: transcribe,
// derive a title, store the audio, persist through the backend.
package entry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/keepsakehq/keepsake/internal/domain"
	dom "github.com/keepsakehq/keepsake/internal/domain/entry"
	domupload "github.com/keepsakehq/keepsake/internal/domain/upload"
)

// DefaultMaxAudioSize bounds the recording size in bytes.
const DefaultMaxAudioSize = 25 << 20

// fallbackTitleLen is how much transcript becomes the title when
// summarization is unavailable.
const fallbackTitleLen = 60

// VoiceRequest carries one recording and its entry attributes.
type VoiceRequest struct {
	Audio   domupload.File
	Title   string
	Tags    []string
	People  []string
	Privacy string
}

// Service builds voice entries.
type Service struct {
	transcribe Transcriber
	summarize  Summarizer
	audio      AudioStore
	writer     Writer

	maxAudioSize int64
	newID        func() string
}

// New creates a voice entry service.
func New(t Transcriber, s Summarizer, a AudioStore, w Writer) *Service {
	return &Service{
		transcribe:   t,
		summarize:    s,
		audio:        a,
		writer:       w,
		maxAudioSize: DefaultMaxAudioSize,
		newID:        uuid.NewString,
	}
}

// WithMaxAudioSize configures the recording size ceiling.
func (s *Service) WithMaxAudioSize(n int64) *Service {
	if n > 0 {
		s.maxAudioSize = n
	}
	return s
}

// CreateVoice transcribes a recording, derives a title when the caller
// gave none, stores the audio, and persists the entry. Summarization is
// best-effort: when it fails, the title falls back to the transcript head.
func (s *Service) CreateVoice(ctx context.Context, req VoiceRequest) (dom.Entry, error) {
	if req.Audio.Size > s.maxAudioSize {
		return dom.Entry{}, fmt.Errorf("recording exceeds %d bytes: %w", s.maxAudioSize, domain.ErrFileTooLarge)
	}

	// Аудио нужно и транскрипции, и хранилищу, поэтому читаем один раз.
	data, err := io.ReadAll(io.LimitReader(req.Audio.Content, s.maxAudioSize+1))
	if err != nil {
		return dom.Entry{}, fmt.Errorf("read recording: %w", err)
	}
	if int64(len(data)) > s.maxAudioSize {
		return dom.Entry{}, fmt.Errorf("recording exceeds %d bytes: %w", s.maxAudioSize, domain.ErrFileTooLarge)
	}

	transcript, err := s.transcribe.Transcribe(ctx, req.Audio.Name, bytes.NewReader(data))
	if err != nil {
		return dom.Entry{}, fmt.Errorf("%w: %w", domain.ErrTranscription, err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return dom.Entry{}, fmt.Errorf("%w: empty transcript", domain.ErrTranscription)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = s.deriveTitle(ctx, transcript)
	}

	stored := req.Audio
	stored.Content = bytes.NewReader(data)
	audioPath, err := s.audio.StoreAudio(ctx, stored)
	if err != nil {
		return dom.Entry{}, fmt.Errorf("store recording: %w", err)
	}

	privacy, err := dom.ParsePrivacy(req.Privacy)
	if err != nil {
		return dom.Entry{}, fmt.Errorf("%w: %w", domain.ErrInvalidEntry, err)
	}
	e, err := dom.New(s.newID(), title, transcript, req.Tags, req.People, privacy)
	if err != nil {
		return dom.Entry{}, fmt.Errorf("%w: %w", domain.ErrInvalidEntry, err)
	}
	e = e.WithVoice(transcript, audioPath)

	persisted, err := s.writer.CreateEntry(ctx, e)
	if err != nil {
		return dom.Entry{}, fmt.Errorf("persist entry: %w", err)
	}
	return persisted, nil
}

func (s *Service) deriveTitle(ctx context.Context, transcript string) string {
	if s.summarize != nil {
		if title, err := s.summarize.Summarize(ctx, transcript); err == nil {
			if title = strings.TrimSpace(title); title != "" {
				return title
			}
		}
	}
	return truncate(transcript, fallbackTitleLen)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}
