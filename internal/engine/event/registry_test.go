package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRegistryValidateForAppend_RequiresScenarioID(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(Definition{Type: Type("entity.test")}); err != nil {
		t.Fatalf("register type: %v", err)
	}

	_, err := registry.ValidateForAppend(Event{
		Type:      Type("entity.test"),
		Timestamp: time.Unix(0, 0).UTC(),
	})
	if !errors.Is(err, ErrScenarioIDRequired) {
		t.Fatalf("expected ErrScenarioIDRequired, got %v", err)
	}
}

func TestRegistryValidateForAppend_RejectsUnknownType(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.ValidateForAppend(Event{
		ScenarioID: "scn-1",
		Type:       Type("entity.unregistered"),
		Timestamp:  time.Unix(0, 0).UTC(),
	})
	if !errors.Is(err, ErrTypeUnknown) {
		t.Fatalf("expected ErrTypeUnknown, got %v", err)
	}
}

func TestRegistryValidateForAppend_RequiresEntityAddressing(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(Definition{
		Type:           Type("entity.test"),
		RequiresEntity: true,
	}); err != nil {
		t.Fatalf("register type: %v", err)
	}

	base := Event{
		ScenarioID: "scn-1",
		Type:       Type("entity.test"),
		Timestamp:  time.Unix(0, 0).UTC(),
	}

	_, err := registry.ValidateForAppend(base)
	if !errors.Is(err, ErrEntityTypeRequired) {
		t.Fatalf("expected ErrEntityTypeRequired, got %v", err)
	}

	base.EntityType = "entity"
	_, err = registry.ValidateForAppend(base)
	if !errors.Is(err, ErrEntityIDRequired) {
		t.Fatalf("expected ErrEntityIDRequired, got %v", err)
	}
}

func TestRegistryValidateForAppend_PlayerActorRequiresActorID(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(Definition{Type: Type("entity.test")}); err != nil {
		t.Fatalf("register type: %v", err)
	}

	_, err := registry.ValidateForAppend(Event{
		ScenarioID: "scn-1",
		Type:       Type("entity.test"),
		Timestamp:  time.Unix(0, 0).UTC(),
		ActorType:  ActorTypePlayer,
	})
	if !errors.Is(err, ErrActorIDRequired) {
		t.Fatalf("expected ErrActorIDRequired, got %v", err)
	}
}

func TestRegistryValidateForAppend_DefaultsPayloadAndActor(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(Definition{Type: Type("entity.test")}); err != nil {
		t.Fatalf("register type: %v", err)
	}

	validated, err := registry.ValidateForAppend(Event{
		ScenarioID: "scn-1",
		Type:       Type("entity.test"),
		Timestamp:  time.Unix(0, 0).UTC(),
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if string(validated.PayloadJSON) != "{}" {
		t.Fatalf("payload = %s, want {}", validated.PayloadJSON)
	}
	if validated.ActorType != ActorTypeSystem {
		t.Fatalf("actor type = %s, want system", validated.ActorType)
	}
}

func TestRegistryValidateForAppend_RunsPayloadValidator(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(Definition{
		Type: Type("entity.test"),
		ValidatePayload: func(raw json.RawMessage) error {
			var payload struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(raw, &payload); err != nil {
				return err
			}
			if payload.Name == "" {
				return fmt.Errorf("name is required")
			}
			return nil
		},
	}); err != nil {
		t.Fatalf("register type: %v", err)
	}

	_, err := registry.ValidateForAppend(Event{
		ScenarioID:  "scn-1",
		Type:        Type("entity.test"),
		Timestamp:   time.Unix(0, 0).UTC(),
		PayloadJSON: []byte(`{"name":""}`),
	})
	if err == nil {
		t.Fatal("expected payload validation error")
	}
}

func TestDeterministicID_StableAndDistinct(t *testing.T) {
	a := DeterministicID("scn-1", 1000, 1)
	b := DeterministicID("scn-1", 1000, 1)
	if a != b {
		t.Fatalf("same inputs produced different ids: %s vs %s", a, b)
	}
	if DeterministicID("scn-1", 1000, 2) == a {
		t.Fatal("different seq produced identical id")
	}
	if DeterministicID("scn-2", 1000, 1) == a {
		t.Fatal("different scenario produced identical id")
	}
}

func TestContentHash_ExcludesSequence(t *testing.T) {
	evt := Event{
		ScenarioID:  "scn-1",
		Type:        Type("entity.test"),
		Timestamp:   time.UnixMilli(42).UTC(),
		PayloadJSON: []byte(`{"name":"Jenna"}`),
	}
	first, err := ContentHash(evt)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	evt.Seq = 7
	second, err := ContentHash(evt)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first != second {
		t.Fatal("content hash must not depend on storage-assigned sequence")
	}
}

func TestChainHash_LinksPredecessor(t *testing.T) {
	evt := Event{
		ScenarioID:  "scn-1",
		Seq:         2,
		Type:        Type("entity.test"),
		Timestamp:   time.UnixMilli(42).UTC(),
		PayloadJSON: []byte(`{}`),
	}
	withPrev, err := ChainHash(evt, "abc")
	if err != nil {
		t.Fatalf("chain hash: %v", err)
	}
	withoutPrev, err := ChainHash(evt, "")
	if err != nil {
		t.Fatalf("chain hash: %v", err)
	}
	if withPrev == withoutPrev {
		t.Fatal("chain hash must depend on the previous hash")
	}
}
