package httpclient

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/user/agentinbox/pkg/langgraph"
)

const maxEventSize = 4 << 20

// readEvents decodes a text/event-stream body, calling emit once per
// dispatched event until emit returns false or the body ends.
func readEvents(r io.Reader, emit func(langgraph.StreamPart) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var event string
	var data []string
	dispatch := func() bool {
		if event == "" && len(data) == 0 {
			return true
		}
		part := langgraph.StreamPart{Event: event}
		if event == "" {
			part.Event = "message"
		}
		if len(data) > 0 {
			joined := strings.Join(data, "\n")
			if json.Valid([]byte(joined)) {
				part.Data = json.RawMessage(joined)
			} else {
				quoted, _ := json.Marshal(joined)
				part.Data = quoted
			}
		}
		event, data = "", nil
		return emit(part)
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if !dispatch() {
				return nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event = value
		case "data":
			data = append(data, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	dispatch()
	return nil
}
