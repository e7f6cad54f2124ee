package senses

import (
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/vthunder/mneme/internal/reasoning"
)

func newTestSense() *DiscordSense {
	return &DiscordSense{
		ownerID: "owner-1",
		botID:   "bot-1",
	}
}

func TestComputeIntensityOwnerMessage(t *testing.T) {
	d := newTestSense()
	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		Author:  &discordgo.User{ID: "owner-1"},
		Content: "hey, just checking in",
		GuildID: "guild-1",
	}}
	if got := d.computeIntensity(m); got != 0.9 {
		t.Errorf("expected owner messages to score 0.9, got %.2f", got)
	}
}

func TestComputeIntensityDM(t *testing.T) {
	d := newTestSense()
	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		Author:  &discordgo.User{ID: "someone-else"},
		Content: "hello there",
		GuildID: "",
	}}
	if got := d.computeIntensity(m); got != 0.8 {
		t.Errorf("expected a DM to score 0.8, got %.2f", got)
	}
}

func TestComputeIntensityUrgentKeyword(t *testing.T) {
	d := newTestSense()
	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		Author:  &discordgo.User{ID: "someone-else"},
		Content: "this is urgent, please help",
		GuildID: "guild-1",
	}}
	if got := d.computeIntensity(m); got != 0.8 {
		t.Errorf("expected an urgent keyword to score 0.8, got %.2f", got)
	}
}

func TestComputeIntensityBaseline(t *testing.T) {
	d := newTestSense()
	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		Author:  &discordgo.User{ID: "someone-else"},
		Content: "what's up",
		GuildID: "guild-1",
	}}
	if got := d.computeIntensity(m); got != 0.5 {
		t.Errorf("expected a plain guild message to score the 0.5 baseline, got %.2f", got)
	}
}

func TestComputeIntensityMention(t *testing.T) {
	d := newTestSense()
	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		Author:   &discordgo.User{ID: "someone-else"},
		Content:  "hey there",
		GuildID:  "guild-1",
		Mentions: []*discordgo.User{{ID: "bot-1"}},
	}}
	if got := d.computeIntensity(m); got != 0.85 {
		t.Errorf("expected a bot mention to score 0.85, got %.2f", got)
	}
}

func TestMessageToEventCarriesChannelAndIntensity(t *testing.T) {
	d := newTestSense()
	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		Author:    &discordgo.User{ID: "owner-1", Username: "sam"},
		Content:   "morning!",
		ChannelID: "chan-1",
		GuildID:   "guild-1",
	}}
	ev := d.messageToEvent(m)
	if ev.Kind != reasoning.EventUserMessage {
		t.Errorf("expected EventUserMessage, got %v", ev.Kind)
	}
	if ev.ChannelID != "chan-1" || ev.Speaker != "sam" || !ev.Casual {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.Intensity != 0.9 {
		t.Errorf("expected owner intensity 0.9, got %.2f", ev.Intensity)
	}
}
