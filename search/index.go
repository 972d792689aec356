package search

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/blugelabs/bluge"

	"github.com/KorryKatti/Mirage/domain"
)

// Index is a bluge index over accepted chat messages. It lives entirely in
// memory: the ephemeral log is the retention authority, so the index is
// rebuilt from it at startup and simply accumulates afterwards.
type Index struct {
	mu     sync.Mutex
	writer *bluge.Writer
	log    *slog.Logger
}

// Hit is one search result.
type Hit struct {
	ID     string `json:"id"`
	Room   string `json:"room_id"`
	Author string `json:"username"`
	Body   string `json:"message"`
}

func NewInMemoryIndex(log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	if err != nil {
		return nil, err
	}
	return &Index{writer: writer, log: log}, nil
}

// Consume indexes one message. Implements the dispatcher's MessageSink.
func (i *Index) Consume(m domain.Message) error {
	doc := bluge.NewDocument(m.ID.String()).
		AddField(bluge.NewTextField("body", m.Body).StoreValue()).
		AddField(bluge.NewKeywordField("room", strconv.FormatInt(int64(m.Room), 10)).StoreValue()).
		AddField(bluge.NewKeywordField("author", m.Author).StoreValue()).
		AddField(bluge.NewDateTimeField("created_at", m.CreatedAt))

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writer.Update(doc.ID(), doc)
}

// Search runs a match query over message bodies, optionally narrowed to one
// room, and returns up to q.Limit hits by score.
func (i *Index) Search(ctx context.Context, q Query) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("failed to close index reader", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(q.Terms).SetField("body"))
	if q.Room != 0 {
		query.AddMust(bluge.NewTermQuery(strconv.FormatInt(int64(q.Room), 10)).SetField("room"))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	iter, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var hits []Hit
	match, err := iter.Next()
	for err == nil && match != nil {
		var hit Hit
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.ID = string(value)
			case "room":
				hit.Room = string(value)
			case "author":
				hit.Author = string(value)
			case "body":
				hit.Body = string(value)
			}
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
		hits = append(hits, hit)
		match, err = iter.Next()
	}
	if err != nil {
		return nil, err
	}
	return hits, nil
}

// Close releases the underlying writer.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writer.Close()
}
