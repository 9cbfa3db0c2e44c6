package storage

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"pcbtrack-api/domain"
)

func TestBoardEntityRoundTrip(t *testing.T) {
	b := domain.NewBoard("Falcon", "PN-100", "A", "Apollo", true)
	pass := domain.StatusPass
	b.PassFailStatus = &pass
	b.IsArrived = true
	b.ArrivedDate = "2026-08-01"
	b.Stages[0].Tasks[0].DesignerApproved = true

	ent, err := boardToEntity(b)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if ent.PartitionKey != boardsPartition || ent.RowKey != b.ID {
		t.Fatalf("unexpected entity keys: %s/%s", ent.PartitionKey, ent.RowKey)
	}
	if ent.UpdatedAt == "" {
		t.Fatal("expected UpdatedAt bookkeeping")
	}

	data, err := json.Marshal(ent)
	if err != nil {
		t.Fatalf("marshal entity: %v", err)
	}
	got, err := decodeBoardEntity(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, b) {
		t.Fatalf("round trip mismatch:\ngot:  %#v\nwant: %#v", got, b)
	}
}

func TestDecodeBoardEntityUnsetOptionals(t *testing.T) {
	b := domain.NewBoard("Falcon", "PN-100", "A", "Apollo", false)

	ent, err := boardToEntity(b)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	data, err := json.Marshal(ent)
	if err != nil {
		t.Fatalf("marshal entity: %v", err)
	}
	got, err := decodeBoardEntity(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PassFailStatus != nil {
		t.Fatalf("expected nil pass/fail status, got %v", *got.PassFailStatus)
	}
	if got.DeletedAt != nil {
		t.Fatalf("expected nil deletedAt, got %v", *got.DeletedAt)
	}
}

func TestDecodeBoardEntityMigratesLegacySchema(t *testing.T) {
	legacyStages := `[{"name":"Release","tasks":[
		{"name":"Update Issues List","designerApproved":true,"reviewerApproved":false},
		{"name":"Draftsman","designerApproved":true,"reviewerApproved":false}]}]`
	ent := boardEntity{
		BoardName:  "Falcon",
		StagesJSON: legacyStages,
		CreatedAt:  "2025-01-01T00:00:00Z",
	}
	ent.PartitionKey = boardsPartition
	ent.RowKey = "b-legacy"

	data, err := json.Marshal(ent)
	if err != nil {
		t.Fatalf("marshal entity: %v", err)
	}
	got, err := decodeBoardEntity(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	st := got.Stages[0]
	for _, task := range st.Tasks {
		if strings.Contains(task.Name, "Issues List") {
			t.Fatalf("legacy task name survived decode: %q", task.Name)
		}
		if task.DesignerApproved {
			t.Fatalf("structural migration must reset approvals, task %q kept one", task.Name)
		}
	}
}

func TestDecodeBoardEntityRejectsCorruptStages(t *testing.T) {
	ent := boardEntity{StagesJSON: "{broken"}
	ent.PartitionKey = boardsPartition
	ent.RowKey = "b1"

	data, err := json.Marshal(ent)
	if err != nil {
		t.Fatalf("marshal entity: %v", err)
	}
	if _, err := decodeBoardEntity(data); err == nil {
		t.Fatal("expected an error for corrupt stages JSON")
	}
}
