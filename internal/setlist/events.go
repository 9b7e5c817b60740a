package setlist

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
)

// publishEvent broadcasts a mutation event for realtime consumers. Publish
// failures are logged and swallowed; the mutation already committed.
func (s *Server) publishEvent(ctx context.Context, eventType string, payload map[string]any) {
	if s.rdb == nil {
		return
	}
	event := map[string]any{
		"id":      uuid.NewString(),
		"type":    eventType,
		"payload": payload,
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("setlist-service: marshal event: %v", err)
		return
	}
	if err := s.rdb.Publish(ctx, "broadcast", string(data)).Err(); err != nil {
		log.Printf("setlist-service: publish event: %v", err)
	}
}
