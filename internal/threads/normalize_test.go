package threads

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/user/agentinbox/internal/types"
	"github.com/user/agentinbox/pkg/langgraph"
)

const sampleInterrupt = `{
	"action_request": {"action": "send_email", "args": {"to": "a@b.c", "subject": "hi"}},
	"config": {"allow_ignore": true, "allow_respond": true, "allow_edit": true, "allow_accept": true},
	"description": "Review the **draft**"
}`

var wantSample = []types.HumanInterrupt{{
	ActionRequest: types.ActionRequest{
		Action: "send_email",
		Args:   map[string]any{"to": "a@b.c", "subject": "hi"},
	},
	Config: types.HumanInterruptConfig{
		AllowIgnore: true, AllowRespond: true, AllowEdit: true, AllowAccept: true,
	},
	Description: "Review the **draft**",
}}

func interrupted(id, interrupts string) langgraph.Thread {
	t := langgraph.Thread{ThreadID: id, Status: "interrupted", CreatedAt: "2024-01-01T00:00:00Z"}
	if interrupts != "" {
		t.Interrupts = json.RawMessage(interrupts)
	}
	return t
}

func TestNormalizeShapeIndependence(t *testing.T) {
	t.Parallel()

	shapes := map[string]string{
		"tuple list":         `{"task-1": [[{"when": "during"}, ` + sampleInterrupt + `]]}`,
		"tuple wrapped":      `{"task-1": [[{"when": "during"}, {"value": ` + sampleInterrupt + `}]]}`,
		"flat list":          `{"task-1": [{"value": ` + sampleInterrupt + `, "when": "during"}]}`,
		"flat list of lists": `{"task-1": [{"value": [` + sampleInterrupt + `]}]}`,
		"bare array":         `[{"value": ` + sampleInterrupt + `}]`,
	}

	for name, raw := range shapes {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			n := normalize(interrupted("t1", raw))
			require.False(t, n.needsState)
			require.False(t, n.data.InvalidSchema)
			if diff := cmp.Diff(wantSample, n.data.Interrupts); diff != "" {
				t.Errorf("interrupts mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDetectShape(t *testing.T) {
	t.Parallel()

	tuple := []json.RawMessage{json.RawMessage(` [{}, {}]`)}
	flat := []json.RawMessage{json.RawMessage(`{"value": {}}`)}
	require.Equal(t, shapeTupleList, detectShape(tuple))
	require.Equal(t, shapeFlatList, detectShape(flat))
	require.Equal(t, shapeNone, detectShape(nil))
}

func TestNormalizeSortedKeys(t *testing.T) {
	t.Parallel()

	other := `{"action_request":{"action":"b","args":{}},"config":{"allow_ignore":true}}`
	first := `{"action_request":{"action":"a","args":{}},"config":{"allow_ignore":true}}`
	raw := `{"z-task": [{"value": ` + other + `}], "a-task": [{"value": ` + first + `}]}`

	for i := 0; i < 10; i++ {
		n := normalize(interrupted("t1", raw))
		require.Len(t, n.data.Interrupts, 2)
		require.Equal(t, "a", n.data.Interrupts[0].ActionRequest.Action)
		require.Equal(t, "b", n.data.Interrupts[1].ActionRequest.Action)
	}
}

func TestNormalizeNonInterrupted(t *testing.T) {
	t.Parallel()

	n := normalize(langgraph.Thread{ThreadID: "t1", Status: "idle", Interrupts: json.RawMessage(`{"x":[{"value":` + sampleInterrupt + `}]}`)})
	require.False(t, n.needsState)
	require.Equal(t, types.StatusIdle, n.data.Status)
	require.Nil(t, n.data.Interrupts)
}

func TestNormalizeNeedsStateWithoutInline(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "null", "{}", "[]", `{"task": []}`, `{"task": [{"when": "during"}]}`} {
		n := normalize(interrupted("t1", raw))
		require.True(t, n.needsState, "raw=%q", raw)
	}
}

func TestNormalizeInvalidSchema(t *testing.T) {
	t.Parallel()

	n := normalize(interrupted("t1", `{"task": [{"value": {"question": "what now?"}}]}`))
	require.False(t, n.needsState)
	require.True(t, n.data.InvalidSchema)
	require.Empty(t, n.data.Interrupts)
	require.Equal(t, types.StatusInterrupted, n.data.Status)
}

func TestNormalizeHumanResponseNeeded(t *testing.T) {
	t.Parallel()

	th := interrupted("t1", `{"task": [{"value": `+sampleInterrupt+`}]}`)
	th.Status = "human_response_needed"
	n := normalize(th)
	require.Equal(t, types.StatusHumanResponseNeeded, n.data.Status)
	require.Len(t, n.data.Interrupts, 1)
}

func TestApplyState(t *testing.T) {
	t.Parallel()

	state := &langgraph.ThreadState{Tasks: []langgraph.ThreadTask{
		{ID: "old", Interrupts: []langgraph.Interrupt{{Value: json.RawMessage(`{"action_request":{"action":"old","args":{}},"config":{}}`)}}},
		{ID: "last", Interrupts: []langgraph.Interrupt{
			{Value: json.RawMessage(`{"action_request":{"action":"earlier","args":{}},"config":{}}`)},
			{Value: json.RawMessage(sampleInterrupt)},
		}},
	}}

	data := types.ThreadData{Status: types.StatusInterrupted}
	applyState(&data, state)
	if diff := cmp.Diff(wantSample, data.Interrupts); diff != "" {
		t.Errorf("interrupts mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyStateMissingValueTolerated(t *testing.T) {
	t.Parallel()

	state := &langgraph.ThreadState{Tasks: []langgraph.ThreadTask{
		{ID: "last", Interrupts: []langgraph.Interrupt{{When: "during"}}},
	}}
	data := types.ThreadData{Status: types.StatusInterrupted}
	applyState(&data, state)
	require.Equal(t, types.StatusInterrupted, data.Status)
	require.Nil(t, data.Interrupts)
	require.False(t, data.InvalidSchema)
}

func TestParseTime(t *testing.T) {
	t.Parallel()

	for _, s := range []string{
		"2024-01-02T03:04:05.123456+00:00",
		"2024-01-02T03:04:05Z",
		"2024-01-02T03:04:05.123456",
		"2024-01-02T03:04:05",
		"2024-01-02",
	} {
		got, ok := ParseTime(s)
		require.True(t, ok, s)
		require.Equal(t, 2024, got.Year(), s)
	}
	_, ok := ParseTime("yesterday")
	require.False(t, ok)
}
