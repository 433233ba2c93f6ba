// Package discord posts translations to a Discord text channel as embeds.
//
// Only the REST API is used; no gateway connection is opened, so the bot
// needs nothing beyond Send Messages and Embed Links on the channel.
package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/realtalk/internal/sink"
	"github.com/MrWong99/realtalk/pkg/types"
)

const (
	embedColorOK       = 0x2ECC71
	embedColorDegraded = 0xE74C3C

	// maxFieldLen is Discord's limit for an embed field value.
	maxFieldLen = 1024
)

// Config holds the Discord sink settings.
type Config struct {
	// Token is the bot token without the "Bot " prefix.
	Token string `yaml:"token"`

	// ChannelID is the text channel translations are posted to.
	ChannelID string `yaml:"channel_id"`
}

// messenger is the subset of *discordgo.Session the sink uses.
type messenger interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Sink posts one embed per final translation. Partials are ignored.
type Sink struct {
	api       messenger
	channelID string
}

var _ sink.Sink = (*Sink)(nil)

// New creates a REST-only Discord session for cfg.
func New(cfg Config) (*Sink, error) {
	if cfg.Token == "" || cfg.ChannelID == "" {
		return nil, fmt.Errorf("discord: token and channel_id are required: %w", types.ErrConfig)
	}
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	return &Sink{api: s, channelID: cfg.ChannelID}, nil
}

// Partial implements [sink.Sink]. Discord only receives finals.
func (s *Sink) Partial(context.Context, string, types.TranscriptEvent) error { return nil }

// Final implements [sink.Sink].
func (s *Sink) Final(ctx context.Context, tr types.Translation) error {
	if _, err := s.api.ChannelMessageSendEmbed(s.channelID, buildEmbed(tr), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: post translation: %w", err)
	}
	return nil
}

// Name implements [sink.Sink].
func (s *Sink) Name() string { return "discord" }

// Close implements [sink.Sink]. The REST session holds no connection.
func (s *Sink) Close() error { return nil }

func buildEmbed(tr types.Translation) *discordgo.MessageEmbed {
	color := embedColorOK
	if tr.Degraded {
		color = embedColorDegraded
	}
	translation := tr.Text
	if tr.Truncated {
		translation += "\n*(input truncated)*"
	}
	at := tr.At
	if at.IsZero() {
		at = time.Now()
	}
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s → %s", tr.Source.Name(), tr.Target.Name()),
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: strings.ToUpper(string(tr.Source)), Value: clip(tr.Original)},
			{Name: strings.ToUpper(string(tr.Target)), Value: clip(translation)},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "session " + tr.SessionID},
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}

// clip keeps a field within Discord's limit without splitting a rune.
func clip(s string) string {
	if s == "" {
		return "-"
	}
	r := []rune(s)
	if len(r) <= maxFieldLen {
		return s
	}
	return string(r[:maxFieldLen-1]) + "…"
}
