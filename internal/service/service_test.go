package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guildmem/internal/config"
	"guildmem/internal/domain"
	"guildmem/internal/embedding"
	"guildmem/internal/vectorstore"
	"guildmem/internal/vectorstore/memory"
)

func testConfig() *config.AppConfig {
	overlap := 120
	return &config.AppConfig{
		Enabled:     true,
		Embedder:    config.EmbedderConfig{Type: "hash"},
		Chunker:     config.ChunkerConfig{MaxChars: 1200, Overlap: &overlap},
		VectorStore: config.VectorStoreConfig{Type: "memory", Collection: "test"},
		Retrieval:   config.RetrievalConfig{TopK: 5, MinScore: 0, MaxContextChars: 4000},
	}
}

func newTestPipeline(t *testing.T, cfg *config.AppConfig) (*Pipeline, *memory.Store) {
	t.Helper()
	store := memory.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := New(context.Background(), cfg, store, embedding.NewHashEmbedder(0), log)
	require.NoError(t, err)
	return p, store
}

func message(guild, author, messageID int64, content string) domain.Message {
	return domain.Message{
		GuildID:   guild,
		ChannelID: 10,
		AuthorID:  author,
		Author:    "alice",
		MessageID: messageID,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Content:   content,
	}
}

func TestNewDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	_, err := New(context.Background(), cfg, memory.New(), embedding.NewHashEmbedder(0), nil)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestNewDimensionMismatchFailsFast(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.EnsureCollection(ctx, "test", 64))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := New(ctx, testConfig(), store, embedding.NewHashEmbedder(0), log)
	assert.Error(t, err, "existing collection with a different dimension must fail at startup")
}

func TestIngestSkipsBotAndTrivial(t *testing.T) {
	ctx := context.Background()
	p, store := newTestPipeline(t, testConfig())

	bot := message(1, 100, 1, "I am a bot announcement")
	bot.Bot = true
	count, err := p.IngestMessages(ctx, []domain.Message{
		bot,
		message(1, 100, 2, ""),
		message(1, 100, 3, "<:kappa:123456> <a:wave:789>"),
		message(1, 100, 4, "!!! ??? ..."),
	}, "chat")
	require.NoError(t, err)
	assert.Zero(t, count)

	stats, err := store.Stats(ctx, "test")
	require.NoError(t, err)
	assert.Zero(t, stats.Points, "a batch with no survivors never writes")
}

func TestIngestIdempotent(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(t, testConfig())

	count, err := p.IngestMessages(ctx, []domain.Message{
		message(1, 100, 1, "The quick brown fox jumps over the lazy dog"),
	}, "chat")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	first, err := p.Export(ctx, vectorstore.Filter{})
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Different author reposts identical content an hour later.
	p.now = func() time.Time { return time.Now().Add(time.Hour) }
	repost := message(1, 200, 2, "The  quick brown fox\njumps over the lazy dog")
	repost.Author = "bob"
	repost.CreatedAt = repost.CreatedAt.Add(time.Hour)
	count, err = p.IngestMessages(ctx, []domain.Message{repost}, "chat")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	second, err := p.Export(ctx, vectorstore.Filter{})
	require.NoError(t, err)
	require.Len(t, second, 1, "identical content stays one point")
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, []string{"chat"}, second[0].Payload.Sources)
	assert.Equal(t, first[0].Payload.FirstSeen, second[0].Payload.FirstSeen)
	assert.Greater(t, second[0].Payload.LastSeen, first[0].Payload.LastSeen, "re-ingest refreshes last_seen")
	assert.Equal(t, first[0].Payload.Author, second[0].Payload.Author, "original attribution survives a repost")
}

func TestIngestMergesSourcesAcrossOrigins(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(t, testConfig())

	text := "Release notes for version two point one"
	_, err := p.IngestMessages(ctx, []domain.Message{message(1, 100, 1, text)}, "chat")
	require.NoError(t, err)

	scope := domain.Scope{GuildID: 1, ChannelID: 10, AuthorID: 100, Author: "alice"}
	count, err := p.IngestFile(ctx, scope, []byte(text), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	recs, err := p.Export(ctx, vectorstore.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.ElementsMatch(t, []string{"chat", "notes.txt"}, recs[0].Payload.Sources)
}

func TestIngestChunksLongContent(t *testing.T) {
	cfg := testConfig()
	overlap := 10
	cfg.Chunker.MaxChars = 100
	cfg.Chunker.Overlap = &overlap
	p, _ := newTestPipeline(t, cfg)

	var long string
	for i := 0; i < 40; i++ {
		long += "every chunk of this long post carries distinct words "
	}
	count, err := p.IngestMessages(context.Background(), []domain.Message{message(1, 100, 1, long)}, "chat")
	require.NoError(t, err)
	assert.Greater(t, count, 1, "long content splits into several points")
}

func TestIngestFileUnsupportedFormat(t *testing.T) {
	p, _ := newTestPipeline(t, testConfig())
	count, err := p.IngestFile(context.Background(), domain.Scope{GuildID: 1}, []byte{0xff}, "photo.jpg")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRetrieve(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	p, _ := newTestPipeline(t, cfg)

	_, err := p.IngestMessages(ctx, []domain.Message{
		message(1, 100, 1, "The quick brown fox jumps over the lazy dog"),
		message(1, 100, 2, "Completely unrelated cooking recipe with garlic and onions"),
	}, "chat")
	require.NoError(t, err)

	cfg.Retrieval.TopK = 1
	res, err := p.Retrieve(ctx, 1, "fox jumping")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Contains(t, res.ContextBlock, "[1] The quick brown fox")
	assert.NotContains(t, res.ContextBlock, "garlic")
	require.Len(t, res.Citations, 1)
	assert.Contains(t, res.Citations[0], "chat — alice")
}

func TestRetrieveRespectsGuildScope(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(t, testConfig())

	other := message(2, 100, 1, "The quick brown fox jumps over the lazy dog")
	_, err := p.IngestMessages(ctx, []domain.Message{other}, "chat")
	require.NoError(t, err)

	res, err := p.Retrieve(ctx, 1, "quick brown fox")
	require.NoError(t, err)
	assert.Nil(t, res, "content from another guild is invisible")
}

func TestRetrieveScoreThreshold(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Retrieval.MinScore = 0.99
	p, _ := newTestPipeline(t, cfg)

	_, err := p.IngestMessages(ctx, []domain.Message{
		message(1, 100, 1, "The quick brown fox jumps over the lazy dog"),
	}, "chat")
	require.NoError(t, err)

	res, err := p.Retrieve(ctx, 1, "something entirely different about databases")
	require.NoError(t, err)
	assert.Nil(t, res, "weak matches below the threshold yield no context")
}

func TestRetrievePerGuildOverrides(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	require.NoError(t, cfg.SetGuildTopK(1, 1))
	p, _ := newTestPipeline(t, cfg)

	_, err := p.IngestMessages(ctx, []domain.Message{
		message(1, 100, 1, "the fox runs through the forest at dawn"),
		message(1, 100, 2, "the fox sleeps in the forest at night"),
	}, "chat")
	require.NoError(t, err)

	res, err := p.Retrieve(ctx, 1, "fox forest")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Len(t, res.Citations, 1, "guild override caps the result count")
}

func TestRetrieveTruncatesContext(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Retrieval.MaxContextChars = 50
	p, _ := newTestPipeline(t, cfg)

	_, err := p.IngestMessages(ctx, []domain.Message{
		message(1, 100, 1, "the fox runs through the forest at dawn every single day without fail"),
	}, "chat")
	require.NoError(t, err)

	res, err := p.Retrieve(ctx, 1, "fox forest dawn")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.LessOrEqual(t, len(res.ContextBlock), 50)
}

func TestRetrieveTruncatesOnRuneBoundary(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Retrieval.MaxContextChars = 12
	p, _ := newTestPipeline(t, cfg)

	_, err := p.IngestMessages(ctx, []domain.Message{
		message(1, 100, 1, "日本語のメッセージ 日本語のメッセージ"),
	}, "chat")
	require.NoError(t, err)

	res, err := p.Retrieve(ctx, 1, "日本語のメッセージ")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.LessOrEqual(t, len(res.ContextBlock), 12)
	assert.True(t, utf8.ValidString(res.ContextBlock), "truncation must not cut a rune in half")
}

func TestRetrieveTrivialQuery(t *testing.T) {
	p, _ := newTestPipeline(t, testConfig())
	res, err := p.Retrieve(context.Background(), 1, "<:kappa:123>")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestDeleteByUser(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(t, testConfig())

	bob := message(1, 200, 2, "bob wrote something memorable here")
	bob.Author = "bob"
	_, err := p.IngestMessages(ctx, []domain.Message{
		message(1, 100, 1, "alice wrote something memorable here"),
		message(2, 100, 3, "alice also posted in another guild"),
		bob,
	}, "chat")
	require.NoError(t, err)

	require.NoError(t, p.DeleteByUser(ctx, 100))

	recs, err := p.Export(ctx, vectorstore.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1, "deletion spans every guild the user posted in")
	assert.Equal(t, int64(200), recs[0].Payload.AuthorID)
}

func TestDeleteByMessageIDsWithAuthorGuard(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(t, testConfig())

	_, err := p.IngestMessages(ctx, []domain.Message{
		message(1, 100, 1, "first message about apples"),
		message(1, 100, 2, "second message about oranges"),
	}, "chat")
	require.NoError(t, err)

	wrongAuthor := int64(999)
	require.NoError(t, p.DeleteByMessageIDs(ctx, []int64{1}, &wrongAuthor))
	recs, err := p.Export(ctx, vectorstore.Filter{})
	require.NoError(t, err)
	assert.Len(t, recs, 2, "author guard blocks deleting someone else's message")

	rightAuthor := int64(100)
	require.NoError(t, p.DeleteByMessageIDs(ctx, []int64{1}, &rightAuthor))
	recs, err = p.Export(ctx, vectorstore.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(2), recs[0].Payload.MessageID)
}

func TestDeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	p, store := newTestPipeline(t, testConfig())

	old := message(1, 100, 1, "ancient history nobody needs")
	old.CreatedAt = time.Now().UTC().Add(-60 * 24 * time.Hour)
	fresh := message(1, 100, 2, "yesterday's discussion still relevant")
	fresh.CreatedAt = time.Now().UTC().Add(-24 * time.Hour)
	_, err := p.IngestMessages(ctx, []domain.Message{old, fresh}, "chat")
	require.NoError(t, err)

	// Non-positive retention is a no-op, never a full wipe.
	require.NoError(t, p.DeleteOlderThan(ctx, 0, nil))
	stats, err := store.Stats(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Points)

	require.NoError(t, p.DeleteOlderThan(ctx, 30, nil))
	recs, err := p.Export(ctx, vectorstore.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(2), recs[0].Payload.MessageID)
}

func TestDeleteOlderThanScopedToGuild(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(t, testConfig())

	oldA := message(1, 100, 1, "stale content in guild one")
	oldA.CreatedAt = time.Now().UTC().Add(-60 * 24 * time.Hour)
	oldB := message(2, 100, 2, "stale content in guild two")
	oldB.CreatedAt = oldA.CreatedAt
	_, err := p.IngestMessages(ctx, []domain.Message{oldA, oldB}, "chat")
	require.NoError(t, err)

	guild := int64(1)
	require.NoError(t, p.DeleteOlderThan(ctx, 30, &guild))

	recs, err := p.Export(ctx, vectorstore.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(2), recs[0].Payload.GuildID)
}

func TestExportUser(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(t, testConfig())

	bob := message(1, 200, 2, "bob's contribution to the archive")
	bob.Author = "bob"
	_, err := p.IngestMessages(ctx, []domain.Message{
		message(1, 100, 1, "alice's contribution to the archive"),
		bob,
	}, "chat")
	require.NoError(t, err)

	recs, err := p.ExportUser(ctx, 1, 200)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "bob", recs[0].Payload.Author)
	assert.NotEmpty(t, recs[0].Payload.ContentHash)
}

func TestMaintenance(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(t, testConfig())

	_, err := p.IngestMessages(ctx, []domain.Message{message(1, 100, 1, "some content")}, "chat")
	require.NoError(t, err)

	stats, err := p.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Points)

	name, err := p.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "memory", name)

	_, err = p.Snapshot(ctx)
	assert.Error(t, err, "in-memory store has no snapshots")
}
