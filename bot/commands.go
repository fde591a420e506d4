package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const (
	defaultRecent = 5
	maxRecent     = 10
	hotCount      = 5
)

// registerCommands registers the /powerball command with Discord
func (b *Bot) registerCommands() error {
	minCount := 1.0
	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "powerball",
			Description: "AU Powerball results",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "latest",
					Description: "Show the most recent draw",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "recent",
					Description: "List recent draws",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "count",
							Description: "How many draws to show",
							MinValue:    &minCount,
							MaxValue:    maxRecent,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "hot",
					Description: "Show the most and least drawn numbers",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "window",
							Description: "Only count the last N draws",
							MinValue:    &minCount,
						},
					},
				},
			},
		},
	}

	for _, cmd := range commands {
		if _, err := b.dg.ApplicationCommandCreate(b.dg.State.User.ID, b.config.GuildID, cmd); err != nil {
			return err
		}
	}
	return nil
}

// handleCommands routes slash command interactions
func (b *Bot) handleCommands(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != "powerball" || len(data.Options) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sub := data.Options[0]
	embed := b.CommandEmbed(ctx, sub.Name, optionInt(sub.Options))

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}},
	})
	if err != nil {
		log.WithFields(log.Fields{
			"subcommand": sub.Name,
			"error":      err,
		}).Error("Failed to respond to interaction")
	}
}

// CommandEmbed builds the response for a /powerball subcommand
func (b *Bot) CommandEmbed(ctx context.Context, subcommand string, arg int) *discordgo.MessageEmbed {
	switch subcommand {
	case "latest":
		draw, err := b.reader.LatestDraw(ctx)
		if err != nil {
			return errorEmbed("Could not load the latest draw.")
		}
		if draw == nil {
			return errorEmbed("No draws stored yet.")
		}
		return DrawEmbed(draw, "Latest Powerball result")
	case "recent":
		limit := arg
		if limit <= 0 {
			limit = defaultRecent
		}
		draws, err := b.reader.RecentDraws(ctx, min(limit, maxRecent))
		if err != nil {
			return errorEmbed("Could not load recent draws.")
		}
		return RecentEmbed(draws)
	case "hot":
		freq, err := b.reader.Frequencies(ctx, arg)
		if err != nil {
			return errorEmbed("Could not compute frequencies.")
		}
		return FrequencyEmbed(freq, hotCount)
	default:
		return errorEmbed("Unknown subcommand.")
	}
}

func optionInt(options []*discordgo.ApplicationCommandInteractionDataOption) int {
	for _, opt := range options {
		if opt.Type == discordgo.ApplicationCommandOptionInteger {
			return int(opt.IntValue())
		}
	}
	return 0
}

func errorEmbed(message string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Powerball",
		Description: "❌ " + message,
		Color:       colorFailure,
	}
}
