package effectors

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/vthunder/mneme/internal/logging"
	"github.com/vthunder/mneme/internal/state"
)

// Effector is the direct-call interface the Reasoning Loop's Act step
// drives a reply through, replacing the outbox-polling types.Action model
// the teacher's DiscordEffector used. Grounded on
// vthunder-bud2/internal/effectors/discord.go's sendMessage/addReaction,
// generalized away from its polling loop: Engine.Handle returns an Output
// and its caller sends it through an effector (via SendPaced) rather than
// writing to a shared outbox.
type Effector interface {
	Send(ctx context.Context, channelID, content string) error
	Typing(ctx context.Context, channelID string) error
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
}

// DiscordEffector sends text, typing indicators and reactions to Discord.
// Its own methods do not pace; multi-chunk pacing is done by SendPaced.
type DiscordEffector struct {
	session *discordgo.Session
	pacer   *Pacer
}

// NewDiscordEffector wraps session (shared with senses.DiscordSense, since
// both the listening and speaking halves of a Discord presence need the
// same connection) with pacing driven by pacer.
func NewDiscordEffector(session *discordgo.Session, pacer *Pacer) *DiscordEffector {
	return &DiscordEffector{session: session, pacer: pacer}
}

// Send posts content verbatim to channelID.
func (e *DiscordEffector) Send(ctx context.Context, channelID, content string) error {
	_, err := e.session.ChannelMessageSend(channelID, content)
	return err
}

// Typing shows a "typing..." indicator in channelID for the few seconds
// Discord holds it.
func (e *DiscordEffector) Typing(ctx context.Context, channelID string) error {
	return e.session.ChannelTyping(channelID)
}

// AddReaction attaches emoji to messageID in channelID.
func (e *DiscordEffector) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	return e.session.MessageReactionAdd(channelID, messageID, emoji)
}

// SendPaced splits text into IM-sized chunks and sends each with a typing
// indicator and a human-scale delay ahead of it, modulated by affect.
// Grounded on mneme_cli::main's print_response loop
// (humanizer.split_response then per-chunk humanizer.typing_delay).
func SendPaced(ctx context.Context, eff Effector, pacer *Pacer, channelID, text string, affect state.Affect) error {
	chunks := pacer.Split(text)
	if len(chunks) == 0 {
		return nil
	}
	for _, chunk := range chunks {
		delay := pacer.TypingDelay(chunk, affect)
		if err := eff.Typing(ctx, channelID); err != nil {
			logging.Warn("effectors", "typing indicator failed: %v", err)
		}
		if err := sleepCtx(ctx, time.Duration(delay*float64(time.Second))); err != nil {
			return err
		}
		if err := eff.Send(ctx, channelID, chunk); err != nil {
			return err
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
