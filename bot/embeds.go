package bot

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"powerball/models"

	"github.com/bwmarrin/discordgo"
)

const (
	colorResult  = 0x5865F2
	colorFailure = 0xED4245
	colorStats   = 0xFEE75C
)

// DrawEmbed renders one draw
func DrawEmbed(d *models.Draw, title string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: fmt.Sprintf("Draw **%d** on **%s**", d.DrawNumber, d.DrawDate.Format("Mon 2 Jan 2006")),
		Color:       colorResult,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Numbers", Value: FormatNumbers(d.MainNumbers), Inline: true},
			{Name: "Powerball", Value: fmt.Sprintf("`%02d`", d.Powerball), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Source: " + string(d.Source)},
	}
}

// RecentEmbed lists draws newest first
func RecentEmbed(draws []*models.Draw) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "Recent Powerball draws",
		Color: colorResult,
	}
	if len(draws) == 0 {
		embed.Description = "No draws stored yet."
		return embed
	}
	for _, d := range draws {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("Draw %d (%s)", d.DrawNumber, d.DrawDate.Format(models.DateLayout)),
			Value: fmt.Sprintf("%s  PB `%02d`", FormatNumbers(d.MainNumbers), d.Powerball),
		})
	}
	return embed
}

// FrequencyEmbed shows the most and least drawn numbers
func FrequencyEmbed(freq *models.Frequencies, top int) *discordgo.MessageEmbed {
	window := "all stored draws"
	if freq.Window > 0 {
		window = fmt.Sprintf("the last %d draws", freq.Window)
	}
	return &discordgo.MessageEmbed{
		Title:       "Powerball number frequencies",
		Description: fmt.Sprintf("Counted over %s (%d sampled).", window, freq.SampleSize),
		Color:       colorStats,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Hot main numbers", Value: formatCounts(ranked(freq.Main, top, true))},
			{Name: "Cold main numbers", Value: formatCounts(ranked(freq.Main, top, false))},
			{Name: "Hot powerballs", Value: formatCounts(ranked(freq.Powerball, top, true))},
		},
	}
}

// SyncFailureEmbed reports a failed sync run
func SyncFailureEmbed(r *models.SyncResult) *discordgo.MessageEmbed {
	desc := r.Error
	if desc == "" {
		desc = "unknown error"
	}
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Powerball %s sync failed", r.Mode),
		Description: desc,
		Color:       colorFailure,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Upserted", Value: fmt.Sprintf("%d", r.Upserted), Inline: true},
			{Name: "Problems", Value: fmt.Sprintf("%d", r.ProblemCount), Inline: true},
		},
	}
	if r.RunID != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Run " + r.RunID}
	}
	return embed
}

// FormatNumbers renders numbers as zero-padded code spans
func FormatNumbers(numbers []int) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = fmt.Sprintf("`%02d`", n)
	}
	return strings.Join(parts, " ")
}

type numberCount struct {
	number int
	count  int
}

// ranked orders by count then by number ascending, keeping top entries
func ranked(counts map[int]int, top int, hottest bool) []numberCount {
	list := make([]numberCount, 0, len(counts))
	for n, c := range counts {
		list = append(list, numberCount{n, c})
	}
	slices.SortFunc(list, func(a, b numberCount) int {
		byCount := cmp.Compare(a.count, b.count)
		if hottest {
			byCount = -byCount
		}
		if byCount != 0 {
			return byCount
		}
		return cmp.Compare(a.number, b.number)
	})
	if top > 0 && len(list) > top {
		list = list[:top]
	}
	return list
}

func formatCounts(list []numberCount) string {
	if len(list) == 0 {
		return "none"
	}
	parts := make([]string, len(list))
	for i, nc := range list {
		parts[i] = fmt.Sprintf("`%02d` x%d", nc.number, nc.count)
	}
	return strings.Join(parts, ", ")
}
