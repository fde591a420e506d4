package bot

import (
	"context"
	"fmt"

	"powerball/events"
	"powerball/models"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Config holds bot configuration
type Config struct {
	Token     string
	ChannelID string
	GuildID   string // empty registers commands globally
}

// DrawReader is the read side the slash commands need
type DrawReader interface {
	LatestDraw(ctx context.Context) (*models.Draw, error)
	RecentDraws(ctx context.Context, limit int) ([]*models.Draw, error)
	Frequencies(ctx context.Context, window int) (*models.Frequencies, error)
}

// Session is the subset of *discordgo.Session the bot uses
type Session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Bot struct {
	config  Config
	session Session
	dg      *discordgo.Session
	reader  DrawReader
}

// New opens a Discord session, registers commands and subscribes to the bus
func New(config Config, reader DrawReader, eventBus *events.Bus) (*Bot, error) {
	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds

	bot := &Bot{
		config:  config,
		session: dg,
		dg:      dg,
		reader:  reader,
	}

	dg.AddHandler(bot.handleCommands)

	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	if err := bot.registerCommands(); err != nil {
		dg.Close()
		return nil, fmt.Errorf("error registering commands: %w", err)
	}

	bot.Subscribe(eventBus)
	return bot, nil
}

// NewWithSession builds a bot around an existing session without connecting
func NewWithSession(config Config, session Session, reader DrawReader) *Bot {
	return &Bot{config: config, session: session, reader: reader}
}

// Subscribe posts new draws and failed syncs to the configured channel.
// Draws loaded by a backfill are history, not results, and stay quiet.
func (b *Bot) Subscribe(eventBus *events.Bus) {
	eventBus.Subscribe(events.EventTypeDrawRecorded, func(ctx context.Context, event events.Event) {
		recorded, ok := event.(events.DrawRecordedEvent)
		if !ok || !recorded.Created || recorded.Backfill {
			return
		}
		b.send(DrawEmbed(&recorded.Draw, "New Powerball result"))
	})

	eventBus.Subscribe(events.EventTypeSyncCompleted, func(ctx context.Context, event events.Event) {
		completed, ok := event.(events.SyncCompletedEvent)
		if !ok || completed.Result.Status != models.SyncStatusFailed {
			return
		}
		b.send(SyncFailureEmbed(&completed.Result))
	})

	log.WithField("channelID", b.config.ChannelID).Info("Discord notifications enabled")
}

func (b *Bot) send(embed *discordgo.MessageEmbed) {
	if _, err := b.session.ChannelMessageSendEmbed(b.config.ChannelID, embed); err != nil {
		log.WithFields(log.Fields{
			"channelID": b.config.ChannelID,
			"title":     embed.Title,
			"error":     err,
		}).Error("Failed to send Discord notification")
	}
}

func (b *Bot) Close() error {
	if b.dg == nil {
		return nil
	}
	return b.dg.Close()
}
