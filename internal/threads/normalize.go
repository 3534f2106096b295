package threads

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/user/agentinbox/internal/types"
	"github.com/user/agentinbox/pkg/langgraph"
)

// payloadShape names the inline interrupt encodings the backend has used.
type payloadShape int

const (
	shapeNone payloadShape = iota
	// shapeTupleList entries are [meta, value] pairs.
	shapeTupleList
	// shapeFlatList entries are objects carrying a "value" field.
	shapeFlatList
)

var errInvalidInterrupt = errors.New("interrupt payload is not a human interrupt")

// normalized is the ingestion result of one thread.
type normalized struct {
	data types.ThreadData
	// needsState is set for interrupted threads without inline interrupts.
	needsState bool
}

// normalize resolves a thread into ThreadData once. Interrupted threads
// without inline interrupts are flagged for a state lookup.
func normalize(thread langgraph.Thread) normalized {
	status := types.ThreadStatus(thread.Status)
	data := types.ThreadData{Status: status, Thread: thread}
	if !status.IsInterrupted() {
		return normalized{data: data}
	}

	lists := inlineLists(thread.Interrupts)
	if len(lists) == 0 {
		return normalized{data: data, needsState: true}
	}

	var values []json.RawMessage
	for _, entries := range lists {
		vs, _ := unwrapEntries(entries)
		values = append(values, vs...)
	}
	if len(values) == 0 {
		return normalized{data: data, needsState: true}
	}

	var out []types.HumanInterrupt
	for _, v := range values {
		his, err := decodeValue(v)
		if err != nil {
			data.InvalidSchema = true
			continue
		}
		out = append(out, his...)
	}
	data.Interrupts = out
	return normalized{data: data}
}

// applyState fills data from the last interrupt of the last task. A
// missing value leaves Interrupts nil.
func applyState(data *types.ThreadData, state *langgraph.ThreadState) {
	if state == nil || len(state.Tasks) == 0 {
		return
	}
	last := state.Tasks[len(state.Tasks)-1]
	if len(last.Interrupts) == 0 {
		return
	}
	value := last.Interrupts[len(last.Interrupts)-1].Value
	if isNull(value) {
		return
	}
	his, err := decodeValue(value)
	if err != nil {
		data.InvalidSchema = true
		return
	}
	data.Interrupts = his
}

// inlineLists splits the raw interrupts field into entry lists. A map is
// walked in sorted key order; a bare array is a single list.
func inlineLists(raw json.RawMessage) [][]json.RawMessage {
	if isNull(raw) {
		return nil
	}
	var byTask map[string][]json.RawMessage
	if err := json.Unmarshal(raw, &byTask); err == nil {
		keys := make([]string, 0, len(byTask))
		for k := range byTask {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var lists [][]json.RawMessage
		for _, k := range keys {
			if len(byTask[k]) > 0 {
				lists = append(lists, byTask[k])
			}
		}
		return lists
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return [][]json.RawMessage{list}
	}
	return nil
}

// detectShape classifies an entry list by its first entry.
func detectShape(entries []json.RawMessage) payloadShape {
	if len(entries) == 0 {
		return shapeNone
	}
	first := bytes.TrimSpace(entries[0])
	if len(first) > 0 && first[0] == '[' {
		return shapeTupleList
	}
	return shapeFlatList
}

// unwrapEntries returns the interrupt values of an entry list.
func unwrapEntries(entries []json.RawMessage) ([]json.RawMessage, payloadShape) {
	shape := detectShape(entries)
	var values []json.RawMessage
	for _, e := range entries {
		switch shape {
		case shapeTupleList:
			var pair []json.RawMessage
			if err := json.Unmarshal(e, &pair); err != nil || len(pair) < 2 {
				values = append(values, e)
				continue
			}
			values = append(values, pair[1])
		case shapeFlatList:
			var wrapper struct {
				Value         json.RawMessage `json:"value"`
				ActionRequest json.RawMessage `json:"action_request"`
			}
			if err := json.Unmarshal(e, &wrapper); err != nil || wrapper.ActionRequest != nil {
				values = append(values, e)
				continue
			}
			if !isNull(wrapper.Value) {
				values = append(values, wrapper.Value)
			}
		}
	}
	return values, shape
}

// decodeValue turns an interrupt value into HumanInterrupts. The value may
// be a single interrupt, a list of them, or wrapped in {"value": ...}.
func decodeValue(raw json.RawMessage) ([]types.HumanInterrupt, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return nil, errInvalidInterrupt
	}
	if raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		var out []types.HumanInterrupt
		for _, item := range items {
			his, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, his...)
		}
		return out, nil
	}

	var probe struct {
		Value         json.RawMessage `json:"value"`
		ActionRequest json.RawMessage `json:"action_request"`
		Config        json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	if probe.ActionRequest == nil && probe.Value != nil {
		return decodeValue(probe.Value)
	}
	if probe.ActionRequest == nil || probe.Config == nil || isNull(probe.Config) {
		return nil, errInvalidInterrupt
	}

	var hi types.HumanInterrupt
	if err := json.Unmarshal(raw, &hi); err != nil {
		return nil, err
	}
	if hi.ActionRequest.Action == "" {
		return nil, errInvalidInterrupt
	}
	if hi.ActionRequest.Args == nil {
		hi.ActionRequest.Args = map[string]any{}
	}
	return []types.HumanInterrupt{hi}, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime parses the timestamp formats the backend emits.
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// sortByCreatedDesc orders threads newest first. Equal or unparsable
// timestamps keep their input order.
func sortByCreatedDesc(threads []types.ThreadData) {
	keys := make([]time.Time, len(threads))
	idx := make([]int, len(threads))
	for i, td := range threads {
		keys[i], _ = ParseTime(td.Thread.CreatedAt)
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return keys[idx[a]].After(keys[idx[b]])
	})
	sorted := make([]types.ThreadData, len(threads))
	for i, j := range idx {
		sorted[i] = threads[j]
	}
	copy(threads, sorted)
}
