package groupchat

import (
	"errors"
	"testing"

	"github.com/calref/maestro/pkg/models"
)

// newTestChat builds a chat or fails the test.
func newTestChat(t *testing.T, participants []string, mode models.ChatMode, opts ...ChatOption) *Chat {
	t.Helper()
	c, err := New(participants, mode, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, models.ChatRoundRobin); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty roster error = %v, want ErrInvalidInput", err)
	}
	if _, err := New([]string{"a", "a"}, models.ChatRoundRobin); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("duplicate roster error = %v, want ErrInvalidInput", err)
	}
	if _, err := New([]string{"a", ""}, models.ChatRoundRobin); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank participant error = %v, want ErrInvalidInput", err)
	}
	if _, err := New([]string{"a"}, models.ChatMode("freeform")); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad mode error = %v, want ErrInvalidInput", err)
	}
}

func TestAddMessage_AppendOnlyLog(t *testing.T) {
	c := newTestChat(t, []string{"alice", "bob"}, models.ChatRoundRobin)

	if err := c.AddMessage("alice", "first"); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}
	// Outside speakers are allowed in the log.
	if err := c.AddMessage("moderator", "keep it on topic"); err != nil {
		t.Fatalf("AddMessage for outside speaker failed: %v", err)
	}
	if err := c.AddMessage("", "anon"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank speaker error = %v, want ErrInvalidInput", err)
	}

	msgs := c.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Speaker != "alice" || msgs[1].Speaker != "moderator" {
		t.Errorf("messages out of order: %v", msgs)
	}
	if msgs[0].Timestamp.IsZero() {
		t.Error("message timestamp not set")
	}
}

func TestNextSpeaker_RoundRobin(t *testing.T) {
	c := newTestChat(t, []string{"a", "b", "c"}, models.ChatRoundRobin)

	want := []string{"a", "b", "c", "a", "b"}
	for i, w := range want {
		if got := c.NextSpeaker(); got != w {
			t.Errorf("turn %d = %q, want %q", i, got, w)
		}
	}
}

func TestNextSpeaker_RoundRobinIgnoresMessageCounts(t *testing.T) {
	c := newTestChat(t, []string{"a", "b"}, models.ChatRoundRobin)

	if got := c.NextSpeaker(); got != "a" {
		t.Fatalf("first turn = %q", got)
	}
	// a posts several times; the rotation still moves to b.
	for i := 0; i < 3; i++ {
		if err := c.AddMessage("a", "more"); err != nil {
			t.Fatalf("AddMessage failed: %v", err)
		}
	}
	if got := c.NextSpeaker(); got != "b" {
		t.Errorf("second turn = %q, want b", got)
	}
}

func TestNextSpeaker_ConsensusPicksLeastActive(t *testing.T) {
	c := newTestChat(t, []string{"a", "b", "c"}, models.ChatConsensus)

	// Nobody has spoken: roster order breaks the tie.
	if got := c.NextSpeaker(); got != "a" {
		t.Errorf("first speaker = %q, want a", got)
	}

	c.AddMessage("a", "x")
	c.AddMessage("b", "y")
	if got := c.NextSpeaker(); got != "c" {
		t.Errorf("least active = %q, want c", got)
	}

	c.AddMessage("c", "z")
	c.AddMessage("c", "zz")
	if got := c.NextSpeaker(); got != "a" {
		t.Errorf("least active = %q, want a", got)
	}
}

func TestCheckConsensus_ThresholdMet(t *testing.T) {
	c := newTestChat(t, []string{"a", "b", "c"}, models.ChatConsensus)

	c.AddMessage("a", "I agree with this direction")
	c.AddMessage("b", "Yes, let's do it")
	c.AddMessage("c", "Approve")

	if ratio := c.AgreementRatio(); ratio != 1.0 {
		t.Errorf("AgreementRatio = %v, want 1.0", ratio)
	}
	if !c.CheckConsensus() {
		t.Error("unanimous chat did not reach consensus")
	}
}

func TestCheckConsensus_DissentBlocks(t *testing.T) {
	c := newTestChat(t, []string{"a", "b", "c"}, models.ChatConsensus)

	c.AddMessage("a", "I agree")
	c.AddMessage("b", "agree")
	c.AddMessage("c", "I strongly disagree, this is wrong")

	ratio := c.AgreementRatio()
	if ratio < 0.65 || ratio > 0.67 {
		t.Errorf("AgreementRatio = %v, want 2/3", ratio)
	}
	// 2/3 is below the default 0.7 threshold.
	if c.CheckConsensus() {
		t.Error("consensus reported despite dissent")
	}
}

func TestCheckConsensus_LatestMessageWins(t *testing.T) {
	c := newTestChat(t, []string{"a", "b"}, models.ChatConsensus)

	c.AddMessage("a", "agree")
	c.AddMessage("b", "agree")
	// b changes their mind; only the latest message counts.
	c.AddMessage("b", "actually no, I object")

	if c.CheckConsensus() {
		t.Error("consensus reported after retraction")
	}
}

func TestCheckConsensus_SilentParticipantsDoNotAgree(t *testing.T) {
	c := newTestChat(t, []string{"a", "b", "c"}, models.ChatConsensus)

	c.AddMessage("a", "agree")

	if got := c.AgreementRatio(); got > 0.34 {
		t.Errorf("AgreementRatio = %v, want 1/3", got)
	}
	if c.CheckConsensus() {
		t.Error("consensus with two silent participants")
	}
}

func TestCheckConsensus_SingleParticipant(t *testing.T) {
	c := newTestChat(t, []string{"solo"}, models.ChatConsensus)

	if c.CheckConsensus() {
		t.Error("consensus before the sole participant spoke")
	}
	c.AddMessage("solo", "I agree with myself")
	if !c.CheckConsensus() {
		t.Error("sole agreeing participant is full consensus")
	}
}

func TestCheckConsensus_CustomThreshold(t *testing.T) {
	c := newTestChat(t, []string{"a", "b"}, models.ChatConsensus, WithThreshold(0.5))

	c.AddMessage("a", "agree")
	if !c.CheckConsensus() {
		t.Error("half agreement should satisfy a 0.5 threshold")
	}
}

func TestVote(t *testing.T) {
	c := newTestChat(t, []string{"a", "b"}, models.ChatConsensus, WithThreshold(1.0))

	if err := c.Vote("a", true); err != nil {
		t.Fatalf("Vote failed: %v", err)
	}
	if err := c.Vote("b", false); err != nil {
		t.Fatalf("Vote failed: %v", err)
	}
	if c.CheckConsensus() {
		t.Error("consensus despite a rejection vote")
	}

	if err := c.Vote("b", true); err != nil {
		t.Fatalf("Vote failed: %v", err)
	}
	if !c.CheckConsensus() {
		t.Error("unanimous votes should reach consensus")
	}
}

func TestKeywordAgreement(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"I agree completely", true},
		{"Yes", true},
		{"yes.", true},
		{"We have consensus here", true},
		{"I approve this plan", true},
		{"AGREE", true},
		{"I disagree", false},
		{"eyes on the prize", false},
		{"this needs more work", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := KeywordAgreement(tt.text); got != tt.want {
			t.Errorf("KeywordAgreement(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestSummary(t *testing.T) {
	c := newTestChat(t, []string{"a"}, models.ChatRoundRobin)
	if _, ok, _ := c.Summary(); ok {
		t.Error("Summary reported available without a summarizer")
	}

	c = newTestChat(t, []string{"a"}, models.ChatRoundRobin,
		WithSummarizer(func(msgs []models.Message) (string, error) {
			return "short version", nil
		}))
	c.AddMessage("a", "long version")

	summary, ok, err := c.Summary()
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if !ok || summary != "short version" {
		t.Errorf("Summary = %q, %v", summary, ok)
	}
}
