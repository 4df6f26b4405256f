package sink

import (
	"bytes"
	"campus-chat/domain/event"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLogSink_Consume(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := NewLogSink(log, slog.LevelInfo)

	err := s.Consume(context.Background(), event.StoryDeleted{StoryID: "s1", AuthorID: "alice", At: time.Now()})

	req.NoError(err)
	req.Contains(buf.String(), "event=StoryDeleted")
	req.Contains(buf.String(), "audience=1")
}
