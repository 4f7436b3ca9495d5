package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// replySender is the part of *discordgo.Session used to answer a command.
type replySender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// MessageCreate handles commands addressed to the bot by mention, e.g.
// "@bot add Europe/Berlin". DMs and messages from bots are ignored.
func MessageCreate(h *Handler, timeout time.Duration, logger *zap.Logger) func(s *discordgo.Session, m *discordgo.MessageCreate) {
	return messageCreate(h, timeout, logger, func(s *discordgo.Session) replySender { return s })
}

func messageCreate(h *Handler, timeout time.Duration, logger *zap.Logger, sender func(*discordgo.Session) replySender) func(s *discordgo.Session, m *discordgo.MessageCreate) {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot || m.GuildID == "" {
			return
		}
		if s.State == nil || s.State.User == nil {
			return
		}

		text, ok := stripMention(m.Content, s.State.User.ID)
		if !ok {
			return
		}

		guildID, err := strconv.ParseInt(m.GuildID, 10, 64)
		if err != nil {
			logger.Warn("unexpected guild id", zap.String("guild_id", m.GuildID), zap.Error(err))
			return
		}

		cmd := ParseCommand(text)
		logger.Debug("command received",
			zap.Int64("guild_id", guildID),
			zap.String("user_id", m.Author.ID),
			zap.Stringer("command", cmd.Kind))

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		reply := h.Dispatch(ctx, guildID, cmd)
		if _, err := sender(s).ChannelMessageSend(m.ChannelID, reply); err != nil {
			logger.Warn("sending reply failed", zap.String("channel_id", m.ChannelID), zap.Error(err))
		}
	}
}

// Ready refreshes the bot status once the gateway session is up.
func Ready(refresh func(), logger *zap.Logger) func(s *discordgo.Session, r *discordgo.Ready) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(s *discordgo.Session, r *discordgo.Ready) {
		if r.User != nil {
			logger.Info("connected to discord",
				zap.String("user", r.User.Username),
				zap.Int("guilds", len(r.Guilds)))
		}
		refresh()
	}
}

// stripMention removes a leading mention of botID ("<@id>" or "<@!id>").
func stripMention(content, botID string) (string, bool) {
	content = strings.TrimSpace(content)
	for _, prefix := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
		if rest, ok := strings.CutPrefix(content, prefix); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}
