package discord

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/realtalk/pkg/types"
)

type fakeAPI struct {
	mu     sync.Mutex
	err    error
	posted []*discordgo.MessageEmbed
	chans  []string
}

func (f *fakeAPI) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chans = append(f.chans, channelID)
	f.posted = append(f.posted, embed)
	if f.err != nil {
		return nil, f.err
	}
	return &discordgo.Message{ID: "m1", ChannelID: channelID}, nil
}

func TestSink_FinalPostsEmbed(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	s := &Sink{api: api, channelID: "chan-1"}

	tr := types.Translation{
		SessionID: "abc",
		Source:    types.Hindi,
		Target:    types.English,
		Original:  "नमस्ते",
		Text:      "Hello",
		At:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := s.Final(context.Background(), tr); err != nil {
		t.Fatalf("Final: %v", err)
	}
	if len(api.posted) != 1 || api.chans[0] != "chan-1" {
		t.Fatalf("posted %d embeds to %v", len(api.posted), api.chans)
	}
	e := api.posted[0]
	if e.Title != "Hindi → English" {
		t.Errorf("Title = %q", e.Title)
	}
	if e.Color != embedColorOK {
		t.Errorf("Color = %x", e.Color)
	}
	if e.Fields[0].Name != "HI" || e.Fields[0].Value != "नमस्ते" {
		t.Errorf("source field = %+v", e.Fields[0])
	}
	if e.Fields[1].Name != "EN" || e.Fields[1].Value != "Hello" {
		t.Errorf("target field = %+v", e.Fields[1])
	}
	if e.Footer.Text != "session abc" || e.Timestamp != "2026-03-01T12:00:00Z" {
		t.Errorf("footer %q timestamp %q", e.Footer.Text, e.Timestamp)
	}
}

func TestSink_DegradedAndTruncated(t *testing.T) {
	t.Parallel()

	e := buildEmbed(types.Translation{
		Source: types.English, Target: types.Hindi,
		Original: "x", Text: "[translation error: timeout]",
		Degraded: true, Truncated: true,
	})
	if e.Color != embedColorDegraded {
		t.Errorf("Color = %x, want degraded", e.Color)
	}
	if !strings.Contains(e.Fields[1].Value, "input truncated") {
		t.Errorf("truncation not shown: %q", e.Fields[1].Value)
	}
}

func TestSink_ErrorsWrapped(t *testing.T) {
	t.Parallel()

	boom := errors.New("429 too many requests")
	s := &Sink{api: &fakeAPI{err: boom}, channelID: "c"}
	if err := s.Final(context.Background(), types.Translation{}); !errors.Is(err, boom) {
		t.Errorf("Final err = %v", err)
	}
}

func TestSink_PartialsIgnored(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	s := &Sink{api: api, channelID: "c"}
	if err := s.Partial(context.Background(), "s", types.TranscriptEvent{Text: "x"}); err != nil {
		t.Fatal(err)
	}
	if len(api.posted) != 0 {
		t.Error("partial posted to discord")
	}
}

func TestClip(t *testing.T) {
	t.Parallel()

	if clip("") != "-" {
		t.Error("empty value must be replaced")
	}
	long := strings.Repeat("क", maxFieldLen+10)
	got := clip(long)
	if n := utf8.RuneCountInString(got); n != maxFieldLen {
		t.Errorf("clipped to %d runes, want %d", n, maxFieldLen)
	}
	if !utf8.ValidString(got) {
		t.Error("clip split a rune")
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{ChannelID: "c"}); !errors.Is(err, types.ErrConfig) {
		t.Errorf("missing token: %v", err)
	}
	s, err := New(Config{Token: "t", ChannelID: "c"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Name() != "discord" || s.Close() != nil {
		t.Error("unexpected Name/Close")
	}
}
