package domain

import "time"

// Message is a single chat-origin item offered for ingestion. It carries the
// identity fields the pipeline needs for scoping and citations; the bot layer
// is responsible for mapping its own message objects onto this shape.
type Message struct {
	GuildID   int64     `json:"guild_id"`
	ChannelID int64     `json:"channel_id"`
	AuthorID  int64     `json:"author_id"`
	Author    string    `json:"author"`
	MessageID int64     `json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
	Content   string    `json:"content"`
	Bot       bool      `json:"bot"`
}

// Scope identifies where synthesized content (URL or file ingestion) should
// be attributed. It mirrors the scoping fields of a Message without content.
type Scope struct {
	GuildID   int64
	ChannelID int64
	AuthorID  int64
	Author    string
}

// RetrievalResult is the ranked context assembled for a query. It is never
// persisted; Citations[i] describes the origin of the i-th context block.
type RetrievalResult struct {
	ContextBlock string
	Citations    []string
}
