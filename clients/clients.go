package clients

import (
	"go.uber.org/zap"

	"github.com/wooyoung7703/pro11-sub001/clients/adminapi"
	"github.com/wooyoung7703/pro11-sub001/clients/discord"
	"github.com/wooyoung7703/pro11-sub001/clients/notifier"
	"github.com/wooyoung7703/pro11-sub001/clients/runstream"
	"github.com/wooyoung7703/pro11-sub001/clients/telegram"
	"github.com/wooyoung7703/pro11-sub001/config"
)

// Clients bundles every external client used by the monitors.
type Clients struct {
	Logger   *zap.Logger
	API      *adminapi.Client
	Stream   *runstream.Client
	Discord  *discord.DiscordClient
	Telegram *telegram.TelegramClient
	Notifier notifier.Notifier
}

// NewClients builds all external clients from configuration. Alert
// channels without credentials come up in a disabled state rather than
// failing construction.
func NewClients(logger *zap.Logger, cfg *config.Config) *Clients {
	if logger == nil {
		logger = zap.NewNop()
	}

	discordClient := discord.NewDiscordClient(logger, cfg)
	telegramClient := telegram.NewTelegramClient(logger, cfg)

	return &Clients{
		Logger:   logger,
		API:      adminapi.NewClient(logger, cfg),
		Stream:   runstream.NewClient(logger, cfg),
		Discord:  discordClient,
		Telegram: telegramClient,
		Notifier: notifier.NewMultiNotifier(discordClient, telegramClient),
	}
}

// Close shuts down every client that holds resources.
func (c *Clients) Close() error {
	var lastErr error
	if c.Stream != nil {
		if err := c.Stream.Close(); err != nil {
			lastErr = err
		}
	}
	if c.Notifier != nil {
		if err := c.Notifier.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
