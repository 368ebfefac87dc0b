package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chatwork/chatwork/gateway/internal/domain/service"
	domainErrors "github.com/chatwork/chatwork/gateway/pkg/errors"
)

const defaultStreamIdle = 60 * time.Second

// streamEvent is the wire shape of one SSE data payload.
//
// Agent SSE events:
//   - delta      → incremental reply text
//   - tool_call  → a tool invocation the agent performed
//   - done       → stream complete
//   - error      → terminal agent-side failure
type streamEvent struct {
	Text     string `json:"text,omitempty"`
	ToolName string `json:"tool_name,omitempty"`
	ToolArgs string `json:"tool_args,omitempty"`
	Message  string `json:"message,omitempty"`
}

// parseEventStream reads "event: <type>" / "data: <json>" pairs until
// done, error, or context cancellation. A stream that stalls longer
// than the idle timeout is treated as unavailable.
func parseEventStream(ctx context.Context, reader io.Reader, idle time.Duration, onEvent func(service.AgentEvent), logger *zap.Logger) error {
	if idle <= 0 {
		idle = defaultStreamIdle
	}
	tReader := &timedReader{r: reader, timeout: idle}

	scanner := bufio.NewScanner(tReader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var currentEventType string

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()

		if strings.HasPrefix(line, "event: ") {
			currentEventType = strings.TrimPrefix(line, "event: ")
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		var evt streamEvent
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			logger.Debug("Skip unparseable stream event",
				zap.String("event", currentEventType),
				zap.Error(err),
			)
			continue
		}

		switch currentEventType {
		case "delta":
			onEvent(service.AgentEvent{Type: service.AgentEventDelta, Text: evt.Text})
		case "tool_call":
			onEvent(service.AgentEvent{
				Type:     service.AgentEventToolCall,
				ToolName: evt.ToolName,
				ToolArgs: evt.ToolArgs,
			})
		case "done":
			onEvent(service.AgentEvent{Type: service.AgentEventDone})
			return nil
		case "error":
			onEvent(service.AgentEvent{Type: service.AgentEventError, Err: evt.Message})
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domainErrors.NewUnavailable("agent stream interrupted", err)
	}
	// EOF without a done event; the orchestrator decides what to make
	// of the partial stream.
	return nil
}

// timedReader fails a Read that stalls longer than the timeout, which
// bounds how long a silent stream can hold a worker.
type timedReader struct {
	r       io.Reader
	timeout time.Duration
}

func (t *timedReader) Read(p []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := t.r.Read(p)
		ch <- result{n, err}
	}()

	select {
	case res := <-ch:
		return res.n, res.err
	case <-time.After(t.timeout):
		return 0, domainErrors.New(domainErrors.CodeUnavailable, "stream idle timeout")
	}
}
