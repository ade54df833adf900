package ws

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"shoe-tracker/internal/counting"
	"shoe-tracker/internal/tracker"
)

func TestWSProtocolSchema(t *testing.T) {
	compiler := jsonschema.NewCompiler()
	data, err := os.ReadFile("../../api/schema/ws_v1.schema.json")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if err := compiler.AddResource("ws_v1.schema.json", strings.NewReader(string(data))); err != nil {
		t.Fatalf("add resource: %v", err)
	}
	schema, err := compiler.Compile("ws_v1.schema.json")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	counts := counting.New(8).Snapshot()
	messages := []any{
		Ack{Type: "ack", ProtocolVersion: ProtocolVersion, GameID: "G1", Ok: true, ActiveShoe: "Shoe 1"},
		Ack{Type: "ack", ProtocolVersion: ProtocolVersion, Error: "missing_game_id"},
		newStatusUpdate(tracker.Status{ActiveShoe: "Shoe 1", GameID: "G1", LastDealtCard: "TH", Counts: &counts}),
		newStatusUpdate(tracker.Status{ShuffleInProgress: true, ShufflingShoe: "Shoe 2"}),
	}
	samples := []string{
		`{"gameId":"G1","dealer":{"cards":[{"value":"TH","t":5},{"value":"**","t":6}]},"seats":{"0":{"first":{"cards":[{"value":"7S","t":1}]}}}}`,
		`{"gameId":77}`,
	}
	for _, m := range messages {
		b, err := json.Marshal(m)
		if err != nil {
			t.Fatalf("marshal %T: %v", m, err)
		}
		samples = append(samples, string(b))
	}

	for i, s := range samples {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			t.Fatalf("unmarshal sample %d: %v", i, err)
		}
		if err := schema.Validate(v); err != nil {
			t.Fatalf("schema validate sample %d: %v", i, err)
		}
	}
}
