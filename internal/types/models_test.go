// internal/types/models_test.go
package types

import (
	"encoding/json"
	"testing"
)

func TestAgentInboxJSONKeys(t *testing.T) {
	inbox := AgentInbox{
		ID:            "abc",
		GraphID:       "agent",
		DeploymentURL: "http://localhost:2024",
		Selected:      true,
	}

	data, err := json.Marshal(inbox)
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"id", "graphId", "deploymentUrl", "selected"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("expected key %q in %s", key, data)
		}
	}
	if _, ok := raw["name"]; ok {
		t.Errorf("expected empty name to be omitted, got %s", data)
	}
}

func TestHumanResponseIgnoreArgsNull(t *testing.T) {
	data, err := json.Marshal([]HumanResponse{{Type: ResponseIgnore}})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `[{"type":"ignore","args":null}]` {
		t.Errorf("unexpected ignore payload: %s", data)
	}
}

func TestHumanResponseWithEditsMarshalsFlat(t *testing.T) {
	r := HumanResponseWithEdits{
		HumanResponse: HumanResponse{Type: ResponseResponse, Args: "ok"},
		EditsMade:     true,
	}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"type":"response","args":"ok","editsMade":true}` {
		t.Errorf("unexpected payload: %s", data)
	}
}

func TestStatusHelpers(t *testing.T) {
	if !StatusInterrupted.IsInterrupted() || !StatusHumanResponseNeeded.IsInterrupted() {
		t.Error("expected interrupted variants to report IsInterrupted")
	}
	if StatusIdle.IsInterrupted() {
		t.Error("idle is not interrupted")
	}
	if _, ok := ParseStatusFilter("all"); !ok {
		t.Error("expected 'all' to parse")
	}
	if _, ok := ParseStatusFilter("bogus"); ok {
		t.Error("expected 'bogus' to be rejected")
	}
}
