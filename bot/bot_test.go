package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"powerball/events"
	"powerball/models"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu     sync.Mutex
	sent   []*discordgo.MessageEmbed
	failed bool
}

func (f *fakeSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed {
		return nil, errors.New("discord down")
	}
	f.sent = append(f.sent, embed)
	return &discordgo.Message{ChannelID: channelID}, nil
}

func (f *fakeSession) embeds() []*discordgo.MessageEmbed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*discordgo.MessageEmbed{}, f.sent...)
}

type fakeReader struct {
	latest *models.Draw
	recent []*models.Draw
	freq   *models.Frequencies
	err    error
	limit  int
}

func (f *fakeReader) LatestDraw(ctx context.Context) (*models.Draw, error) {
	return f.latest, f.err
}

func (f *fakeReader) RecentDraws(ctx context.Context, limit int) ([]*models.Draw, error) {
	f.limit = limit
	return f.recent, f.err
}

func (f *fakeReader) Frequencies(ctx context.Context, window int) (*models.Frequencies, error) {
	return f.freq, f.err
}

func sampleDraw(t *testing.T, number int) *models.Draw {
	t.Helper()
	d, err := models.NewDraw(number, time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC), []int{35, 2, 14, 9, 20, 27, 31}, 4, models.SourceAPI, "")
	require.NoError(t, err)
	return d
}

func TestSubscribe_PostsOnlyNewDraws(t *testing.T) {
	bus := events.NewBus()
	session := &fakeSession{}
	b := NewWithSession(Config{ChannelID: "chan"}, session, &fakeReader{})
	b.Subscribe(bus)

	bus.Publish(events.DrawRecordedEvent{Draw: *sampleDraw(t, 1450), Created: true})
	bus.Publish(events.DrawRecordedEvent{Draw: *sampleDraw(t, 1449), Created: false})
	bus.Wait()

	sent := session.embeds()
	require.Len(t, sent, 1)
	assert.Equal(t, "New Powerball result", sent[0].Title)
	assert.Contains(t, sent[0].Description, "1450")
}

func TestSubscribe_BackfillStaysQuiet(t *testing.T) {
	bus := events.NewBus()
	session := &fakeSession{}
	b := NewWithSession(Config{ChannelID: "chan"}, session, &fakeReader{})
	b.Subscribe(bus)

	start := time.Date(2018, 1, 4, 0, 0, 0, 0, time.UTC)
	for i := range 50 {
		d, err := models.NewDraw(1130+i, start.AddDate(0, 0, 7*i), []int{1, 2, 3, 4, 5, 6, 7}, 10, models.SourceHTML, "")
		require.NoError(t, err)
		bus.Publish(events.DrawRecordedEvent{Draw: *d, Created: true, Backfill: true})
	}
	bus.Wait()
	assert.Empty(t, session.embeds())

	bus.Publish(events.DrawRecordedEvent{Draw: *sampleDraw(t, 1450), Created: true})
	bus.Wait()
	require.Len(t, session.embeds(), 1)
}

func TestSubscribe_PostsFailedSyncs(t *testing.T) {
	bus := events.NewBus()
	session := &fakeSession{}
	b := NewWithSession(Config{ChannelID: "chan"}, session, &fakeReader{})
	b.Subscribe(bus)

	bus.Publish(events.SyncCompletedEvent{Result: models.SyncResult{Mode: models.SyncModeFull, Status: models.SyncStatusCompleted}})
	bus.Publish(events.SyncCompletedEvent{Result: models.SyncResult{Mode: models.SyncModeIncremental, Status: models.SyncStatusFailed, Error: "store unavailable", RunID: "abc"}})
	bus.Wait()

	sent := session.embeds()
	require.Len(t, sent, 1)
	assert.Equal(t, "Powerball incremental sync failed", sent[0].Title)
	assert.Equal(t, "store unavailable", sent[0].Description)
	assert.Equal(t, "Run abc", sent[0].Footer.Text)
}

func TestSubscribe_SendFailureIsSwallowed(t *testing.T) {
	bus := events.NewBus()
	session := &fakeSession{failed: true}
	b := NewWithSession(Config{ChannelID: "chan"}, session, &fakeReader{})
	b.Subscribe(bus)

	bus.Publish(events.DrawRecordedEvent{Draw: *sampleDraw(t, 1), Created: true})
	bus.Wait()
	assert.Empty(t, session.embeds())
}

func TestDrawEmbed(t *testing.T) {
	embed := DrawEmbed(sampleDraw(t, 1450), "Latest")
	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "`02` `09` `14` `20` `27` `31` `35`", embed.Fields[0].Value)
	assert.Equal(t, "`04`", embed.Fields[1].Value)
	assert.Equal(t, "Draw **1450** on **Thu 7 Mar 2024**", embed.Description)
}

func TestCommandEmbed(t *testing.T) {
	freq := models.NewFrequencies()
	freq.Add(sampleDraw(t, 1))
	freq.Add(&models.Draw{MainNumbers: []int{2, 3, 4, 5, 6, 7, 8}, Powerball: 4})

	reader := &fakeReader{latest: sampleDraw(t, 1450), recent: []*models.Draw{sampleDraw(t, 1450)}, freq: freq}
	b := NewWithSession(Config{}, &fakeSession{}, reader)
	ctx := context.Background()

	t.Run("latest", func(t *testing.T) {
		assert.Equal(t, "Latest Powerball result", b.CommandEmbed(ctx, "latest", 0).Title)
	})

	t.Run("recent clamps the count", func(t *testing.T) {
		embed := b.CommandEmbed(ctx, "recent", 50)
		assert.Equal(t, maxRecent, reader.limit)
		assert.Len(t, embed.Fields, 1)

		b.CommandEmbed(ctx, "recent", 0)
		assert.Equal(t, defaultRecent, reader.limit)
	})

	t.Run("hot", func(t *testing.T) {
		embed := b.CommandEmbed(ctx, "hot", 0)
		require.Len(t, embed.Fields, 3)
		assert.Equal(t, "`02` x2, `03` x1, `04` x1, `05` x1, `06` x1", embed.Fields[0].Value)
		assert.Equal(t, "`04` x2, `01` x0, `02` x0, `03` x0, `05` x0", embed.Fields[2].Value)
	})

	t.Run("empty store", func(t *testing.T) {
		empty := NewWithSession(Config{}, &fakeSession{}, &fakeReader{})
		assert.Contains(t, empty.CommandEmbed(ctx, "latest", 0).Description, "No draws stored yet")
	})

	t.Run("reader error", func(t *testing.T) {
		failing := NewWithSession(Config{}, &fakeSession{}, &fakeReader{err: errors.New("db down")})
		assert.Equal(t, colorFailure, failing.CommandEmbed(ctx, "hot", 0).Color)
	})
}
