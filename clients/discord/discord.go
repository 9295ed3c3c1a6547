package discord

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/wooyoung7703/pro11-sub001/clients/notifier"
	"github.com/wooyoung7703/pro11-sub001/config"
)

// DiscordClient sends ops alerts to a Discord channel.
// Implements notifier.Notifier interface.
type DiscordClient struct {
	logger    *zap.Logger
	session   *discordgo.Session
	channelID string
	isProd    bool
}

func NewDiscordClient(logger *zap.Logger, cfg *config.Config) *DiscordClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	channelID := cfg.Discord.BetaChannelID
	if cfg.IsProd {
		channelID = cfg.Discord.ProdChannelID
	}

	token := cfg.Discord.BotToken
	if token == "" {
		logger.Warn("DISCORD_BOT_TOKEN not set, Discord alerts disabled")
		return &DiscordClient{
			logger:    logger,
			channelID: channelID,
			isProd:    cfg.IsProd,
		}
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		logger.Error("failed to create discord session", zap.Error(err))
		return &DiscordClient{
			logger:    logger,
			channelID: channelID,
			isProd:    cfg.IsProd,
		}
	}

	logger.Info("discord bot initialized",
		zap.Bool("isProd", cfg.IsProd),
		zap.String("channelID", channelID),
	)

	return &DiscordClient{
		logger:    logger,
		session:   session,
		channelID: channelID,
		isProd:    cfg.IsProd,
	}
}

// SendAlert sends a rich embedded ops alert.
// Implements notifier.Notifier interface.
func (dc *DiscordClient) SendAlert(alert notifier.OpsAlert) {
	if dc.session == nil {
		dc.logger.Warn("discord session not initialized, skipping alert")
		return
	}

	embed := dc.buildEmbed(alert)

	_, err := dc.session.ChannelMessageSendEmbed(dc.channelID, embed)
	if err != nil {
		dc.logger.Error("failed to send discord embed", zap.Error(err))
		return
	}

	dc.logger.Info("sent discord ops alert",
		zap.String("kind", string(alert.Kind)),
		zap.String("title", alert.Title),
	)
}

func (dc *DiscordClient) buildEmbed(alert notifier.OpsAlert) *discordgo.MessageEmbed {
	color := severityColor(alert.Severity)
	emoji := kindEmoji(alert.Kind)

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s %s", emoji, alert.Title),
		Description: alert.Summary,
		Color:       color,
	}

	for _, f := range alert.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: true,
		})
	}

	ts := alert.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	embed.Footer = &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("%s · %s", alert.Kind, severityLabel(alert.Severity)),
	}
	embed.Timestamp = ts.UTC().Format(time.RFC3339)

	return embed
}

func severityColor(s notifier.Severity) int {
	switch s {
	case notifier.SeverityCritical:
		return 0xE74C3C // red
	case notifier.SeverityWarning:
		return 0xF39C12 // orange
	default:
		return 0x3498DB // blue
	}
}

func severityLabel(s notifier.Severity) string {
	if s == "" {
		return string(notifier.SeverityInfo)
	}
	return string(s)
}

func kindEmoji(k notifier.AlertKind) string {
	switch k {
	case notifier.AlertKindDrift:
		return "📈"
	case notifier.AlertKindBackfillFailed:
		return "🛑"
	case notifier.AlertKindStreamStale:
		return "🔌"
	case notifier.AlertKindPromotion:
		return "🏷️"
	case notifier.AlertKindIngestionStale:
		return "⏳"
	default:
		return "ℹ️"
	}
}

// Close cleans up the Discord session.
func (dc *DiscordClient) Close() error {
	if dc.session == nil {
		return nil
	}
	return dc.session.Close()
}
