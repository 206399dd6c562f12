// Package entry holds the journal entry aggregate.
package entry

import "fmt"

// Privacy is the sharing level of a journal entry.
type Privacy string

const (
	// Private entries are visible to the author only.
	Private Privacy = "private"
	// Shared entries are visible to tagged people.
	Shared Privacy = "shared"
	// Public entries appear in the public feed.
	Public Privacy = "public"
)

// ParsePrivacy validates a privacy level. Empty defaults to Private.
func ParsePrivacy(s string) (Privacy, error) {
	switch Privacy(s) {
	case "":
		return Private, nil
	case Private, Shared, Public:
		return Privacy(s), nil
	default:
		return "", fmt.Errorf("unknown privacy level %q", s)
	}
}

// MaxContentSize is the maximum entry content size in bytes.
const MaxContentSize = 65536

// Entry is a journal entry (immutable value object).
type Entry struct {
	id         string
	title      string
	content    string
	transcript string
	audioPath  string
	mediaPaths []string
	tags       []string
	people     []string
	privacy    Privacy
	createdAt  int64
}

// New validates and creates an Entry.
func New(
	id, title, content string, tags, people []string, privacy Privacy,
) (Entry, error) {
	if id == "" {
		return Entry{}, fmt.Errorf("entry ID is required")
	}
	if content == "" && title == "" {
		return Entry{}, fmt.Errorf("entry needs a title or content")
	}
	if len(content) > MaxContentSize {
		return Entry{}, fmt.Errorf("content too large (max %d bytes)", MaxContentSize)
	}
	switch privacy {
	case Private, Shared, Public:
	default:
		return Entry{}, fmt.Errorf("unknown privacy level %q", privacy)
	}

	return Entry{
		id:      id,
		title:   title,
		content: content,
		tags:    cloneStrings(tags),
		people:  cloneStrings(people),
		privacy: privacy,
	}, nil
}

// Reconstruct creates an Entry without validation (backend hydration).
func Reconstruct(
	id, title, content, transcript, audioPath string,
	mediaPaths, tags, people []string, privacy Privacy, createdAt int64,
) Entry {
	return Entry{
		id: id, title: title, content: content, transcript: transcript,
		audioPath: audioPath, mediaPaths: mediaPaths, tags: tags,
		people: people, privacy: privacy, createdAt: createdAt,
	}
}

// ID returns the entry identifier.
func (e *Entry) ID() string { return e.id }

// Title returns the entry title.
func (e *Entry) Title() string { return e.title }

// Content returns the entry body text.
func (e *Entry) Content() string { return e.content }

// Transcript returns the voice transcript, if the entry was recorded.
func (e *Entry) Transcript() string { return e.transcript }

// AudioPath returns the stored audio object path, if any.
func (e *Entry) AudioPath() string { return e.audioPath }

// MediaPaths returns the attached media object paths.
func (e *Entry) MediaPaths() []string { return e.mediaPaths }

// Tags returns the entry tags.
func (e *Entry) Tags() []string { return e.tags }

// People returns the tagged people.
func (e *Entry) People() []string { return e.people }

// Privacy returns the sharing level.
func (e *Entry) Privacy() Privacy { return e.privacy }

// CreatedAt returns the creation time in unix milliseconds.
func (e *Entry) CreatedAt() int64 { return e.createdAt }

// WithVoice returns a copy with transcript and audio path set.
func (e *Entry) WithVoice(transcript, audioPath string) Entry {
	c := *e
	c.transcript = transcript
	c.audioPath = audioPath
	return c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}
