// Package groupchat implements multi-agent conversations with
// turn-taking policies and threshold-based agreement detection.
package groupchat

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/calref/maestro/pkg/models"
)

var (
	// ErrInvalidInput indicates a missing or malformed required field.
	ErrInvalidInput = errors.New("invalid input")
)

// defaultThreshold is the agreement ratio required for consensus when
// the caller does not set one.
const defaultThreshold = 0.7

// AgreementDetector reports whether a message text signals agreement.
type AgreementDetector func(text string) bool

// Summarizer condenses a finished conversation. Optional; chats
// without one simply have no summary.
type Summarizer func(messages []models.Message) (string, error)

// Chat is one group conversation: a fixed participant roster, an
// append-only message log, and a turn policy. Safe for concurrent use.
type Chat struct {
	mu           sync.RWMutex
	participants []string
	mode         models.ChatMode
	messages     []models.Message
	// turn counts completed round-robin turns, independent of how
	// many messages each speaker posted.
	turn      int
	threshold float64
	detector  AgreementDetector
	summarize Summarizer
}

// ChatOption configures a Chat.
type ChatOption func(*Chat)

// WithThreshold sets the consensus agreement threshold (0, 1].
func WithThreshold(t float64) ChatOption {
	return func(c *Chat) {
		if t > 0 && t <= 1 {
			c.threshold = t
		}
	}
}

// WithAgreementDetector replaces the keyword-based agreement check.
func WithAgreementDetector(fn AgreementDetector) ChatOption {
	return func(c *Chat) {
		if fn != nil {
			c.detector = fn
		}
	}
}

// WithSummarizer enables Summary for this chat.
func WithSummarizer(fn Summarizer) ChatOption {
	return func(c *Chat) { c.summarize = fn }
}

// New creates a chat with a fixed participant roster. The roster is
// set at creation and never changes; at least one participant is
// required and duplicates are rejected.
func New(participants []string, mode models.ChatMode, opts ...ChatOption) (*Chat, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("%w: at least one participant is required", ErrInvalidInput)
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: unknown chat mode %q", ErrInvalidInput, mode)
	}

	seen := make(map[string]bool, len(participants))
	roster := make([]string, 0, len(participants))
	for _, p := range participants {
		if p == "" {
			return nil, fmt.Errorf("%w: participant name is required", ErrInvalidInput)
		}
		if seen[p] {
			return nil, fmt.Errorf("%w: duplicate participant %q", ErrInvalidInput, p)
		}
		seen[p] = true
		roster = append(roster, p)
	}

	c := &Chat{
		participants: roster,
		mode:         mode,
		threshold:    defaultThreshold,
		detector:     KeywordAgreement,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Mode returns the chat's turn policy.
func (c *Chat) Mode() models.ChatMode {
	return c.mode
}

// Participants returns the roster in registration order.
func (c *Chat) Participants() []string {
	out := make([]string, len(c.participants))
	copy(out, c.participants)
	return out
}

// AddMessage appends a message to the log. Speakers outside the roster
// are accepted; moderators and users may interject without being
// counted toward turn-taking or consensus.
func (c *Chat) AddMessage(speaker, text string) error {
	if speaker == "" {
		return fmt.Errorf("%w: speaker is required", ErrInvalidInput)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, models.Message{
		Speaker:   speaker,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// Messages returns a copy of the full log in append order.
func (c *Chat) Messages() []models.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of logged messages.
func (c *Chat) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// NextSpeaker returns whose turn it is and advances the turn. In
// round-robin mode speakers cycle in roster order regardless of who
// actually posted; in consensus mode the participant with the fewest
// logged messages speaks next, roster order breaking ties.
func (c *Chat) NextSpeaker() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.mode {
	case models.ChatConsensus:
		counts := make(map[string]int, len(c.participants))
		for _, m := range c.messages {
			counts[m.Speaker]++
		}
		next := c.participants[0]
		for _, p := range c.participants[1:] {
			if counts[p] < counts[next] {
				next = p
			}
		}
		return next

	default:
		next := c.participants[c.turn%len(c.participants)]
		c.turn++
		return next
	}
}

// CheckConsensus reports whether the conversation has reached
// agreement: each participant's latest message is classified by the
// agreement detector, and consensus holds when the agreeing fraction
// of the full roster meets the threshold. Participants who have not
// spoken count as not agreeing.
func (c *Chat) CheckConsensus() bool {
	return c.AgreementRatio() >= c.threshold
}

// AgreementRatio returns the fraction of the roster whose latest
// message signals agreement.
func (c *Chat) AgreementRatio() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	latest := make(map[string]string, len(c.participants))
	for _, m := range c.messages {
		latest[m.Speaker] = m.Text
	}

	agreeing := 0
	for _, p := range c.participants {
		text, ok := latest[p]
		if ok && c.detector(text) {
			agreeing++
		}
	}
	return float64(agreeing) / float64(len(c.participants))
}

// Vote records an explicit position as a message, so votes flow
// through the same log and detector as free-form discussion.
func (c *Chat) Vote(speaker string, approve bool) error {
	text := "I disagree with the proposal."
	if approve {
		text = "I agree with the proposal."
	}
	return c.AddMessage(speaker, text)
}

// Summary condenses the conversation. Returns ok=false when no
// summarizer is configured.
func (c *Chat) Summary() (string, bool, error) {
	if c.summarize == nil {
		return "", false, nil
	}
	summary, err := c.summarize(c.Messages())
	if err != nil {
		return "", true, fmt.Errorf("summarizing chat: %w", err)
	}
	return summary, true, nil
}

// agreementKeywords are matched case-insensitively as whole words.
var agreementKeywords = []string{"agree", "yes", "approve", "consensus"}

// KeywordAgreement is the default agreement detector: a message
// signals agreement when it contains any agreement keyword as a whole
// word, and no negation of it ("disagree" does not count as "agree").
func KeywordAgreement(text string) bool {
	for _, word := range splitWords(text) {
		for _, kw := range agreementKeywords {
			if word == kw {
				return true
			}
		}
	}
	return false
}

// splitWords lowercases and splits on non-letter characters, so
// punctuation-adjacent keywords still match and "disagree" stays one
// word distinct from "agree".
func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}
