// Package senses adapts external channels into reasoning.Event values.
// Grounded on vthunder-bud2/internal/senses/discord.go's DiscordSense —
// same discordgo wiring and intensity/tag heuristics — generalized away
// from that file's deleted internal/types.Percept model to emit
// reasoning.Event directly, since this package's Reasoning Loop has no
// separate percept-inbox stage between sensing and reasoning.
package senses

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/vthunder/mneme/internal/logging"
	"github.com/vthunder/mneme/internal/reasoning"
)

// DiscordSense listens to Discord and turns incoming messages into
// reasoning.Event values via onEvent.
type DiscordSense struct {
	session   *discordgo.Session
	channelID string
	ownerID   string
	botID     string
	onEvent   func(reasoning.Event)
}

// DiscordConfig holds Discord connection settings.
type DiscordConfig struct {
	Token     string
	ChannelID string
	OwnerID   string
}

// NewDiscordSense creates a new Discord sense. onEvent is called from the
// discordgo event-handler goroutine for every non-self message on
// cfg.ChannelID (or any channel, if unset).
func NewDiscordSense(cfg DiscordConfig, onEvent func(reasoning.Event)) (*DiscordSense, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	sense := &DiscordSense{
		session:   session,
		channelID: cfg.ChannelID,
		ownerID:   cfg.OwnerID,
		onEvent:   onEvent,
	}

	session.AddHandler(sense.handleMessage)
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	return sense, nil
}

// Start connects to Discord and begins listening.
func (d *DiscordSense) Start() error {
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	d.botID = d.session.State.User.ID
	logging.Info("senses", "discord connected as %s", d.session.State.User.Username)
	return nil
}

// Stop disconnects from Discord.
func (d *DiscordSense) Stop() error {
	return d.session.Close()
}

// Session returns the underlying Discord session, for sharing with
// internal/effectors's DiscordEffector.
func (d *DiscordSense) Session() *discordgo.Session {
	return d.session
}

func (d *DiscordSense) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == d.botID {
		return
	}
	if d.channelID != "" && m.ChannelID != d.channelID {
		return
	}

	ev := d.messageToEvent(m)
	logging.Debug("senses", "discord event channel=%s intensity=%.2f content=%s", m.ChannelID, ev.Intensity, logging.Truncate(m.Content, 80))

	if d.onEvent != nil {
		d.onEvent(ev)
	}
}

func (d *DiscordSense) messageToEvent(m *discordgo.MessageCreate) reasoning.Event {
	return reasoning.Event{
		Kind:      reasoning.EventUserMessage,
		Speaker:   m.Author.Username,
		Content:   m.Content,
		ChannelID: m.ChannelID,
		Casual:    true,
		Intensity: d.computeIntensity(m),
	}
}

// computeIntensity determines signal strength (0.0-1.0): owner messages,
// DMs, bot mentions and urgent keywords all push it up independently,
// matching the teacher's own heuristic set.
func (d *DiscordSense) computeIntensity(m *discordgo.MessageCreate) float64 {
	intensity := 0.5

	if m.Author.ID == d.ownerID {
		intensity = 0.9
	}
	if m.GuildID == "" {
		intensity = maxFloat(intensity, 0.8)
	}
	if d.mentionsBot(m) {
		intensity = maxFloat(intensity, 0.85)
	}

	content := strings.ToLower(m.Content)
	for _, kw := range []string{"urgent", "asap", "help", "error", "broken", "emergency"} {
		if strings.Contains(content, kw) {
			intensity = maxFloat(intensity, 0.8)
			break
		}
	}

	return intensity
}

func (d *DiscordSense) mentionsBot(m *discordgo.MessageCreate) bool {
	for _, mention := range m.Mentions {
		if mention.ID == d.botID {
			return true
		}
	}
	return false
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
