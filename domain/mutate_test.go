package domain

import (
	"strings"
	"testing"
)

func TestSetTaskApprovalRecordsChange(t *testing.T) {
	b := NewBoard("Falcon", "PN-100", "A", "Apollo", false)

	changes, err := b.SetTaskApproval("Schematics", "", "GND hooks", FieldDesignerApproved, true)
	if err != nil {
		t.Fatalf("set approval: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	c := changes[0]
	if c.Stage != "Schematics" || c.Task != "GND hooks" || c.Field != FieldDesignerApproved {
		t.Fatalf("unexpected change identity: %#v", c)
	}
	if c.OldValue != "unchecked" || c.NewValue != "checked" {
		t.Fatalf("expected human-readable values, got %q -> %q", c.OldValue, c.NewValue)
	}

	// Setting the same value again is a no-op with no change records.
	changes, err = b.SetTaskApproval("Schematics", "", "GND hooks", FieldDesignerApproved, true)
	if err != nil {
		t.Fatalf("repeat set: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("expected no changes on a no-op toggle, got %d", len(changes))
	}
}

func TestSetTaskApprovalOnNestedTask(t *testing.T) {
	b := NewBoard("Falcon", "PN-100", "A", "Apollo", false)

	changes, err := b.SetTaskApproval("In Production", "Embedded", "Firmware Loaded", FieldReviewerApproved, true)
	if err != nil {
		t.Fatalf("set approval: %v", err)
	}
	if len(changes) != 1 || changes[0].Task != "Embedded / Firmware Loaded" {
		t.Fatalf("unexpected change records: %#v", changes)
	}
}

func TestSetTaskApprovalErrors(t *testing.T) {
	b := NewBoard("Falcon", "PN-100", "A", "Apollo", false)

	tests := []struct {
		name    string
		stage   string
		sub     string
		task    string
		field   string
		wantErr string
	}{
		{name: "unknown stage", stage: "Fabrication", task: "Wiring", field: FieldDesignerApproved, wantErr: "no stage"},
		{name: "unknown task", stage: "Layout", task: "Routing", field: FieldDesignerApproved, wantErr: "no task"},
		{name: "unknown subcategory", stage: "In Production", sub: "Thermal", task: "Firmware Loaded", field: FieldDesignerApproved, wantErr: "no subcategory"},
		{name: "unknown field", stage: "Layout", task: "Wiring", field: "approved", wantErr: "unknown approval field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.SetTaskApproval(tt.stage, tt.sub, tt.task, tt.field, true)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSetTaskRequiredFalseClearsApprovals(t *testing.T) {
	b := NewBoard("Falcon", "PN-100", "A", "Apollo", false)
	if _, err := b.SetTaskApproval("Layout", "", "Backdrill done?", FieldDesignerApproved, true); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := b.SetTaskApproval("Layout", "", "Backdrill done?", FieldReviewerApproved, true); err != nil {
		t.Fatalf("approve: %v", err)
	}

	changes, err := b.SetTaskRequired("Layout", "", "Backdrill done?", false)
	if err != nil {
		t.Fatalf("set required: %v", err)
	}
	if len(changes) != 3 {
		t.Fatalf("expected required + both approvals to change, got %d changes", len(changes))
	}

	task, err := b.findTask("Layout", "", "Backdrill done?")
	if err != nil {
		t.Fatalf("find task: %v", err)
	}
	if task.DesignerApproved || task.ReviewerApproved {
		t.Fatal("clearing required must force both approvals back to false")
	}
	if task.Required == nil || *task.Required {
		t.Fatal("required flag not cleared")
	}

	// And the task no longer counts toward progress.
	if ShouldCountTask(*task, b.IsNewRevision) {
		t.Fatal("not-required task must be excluded from counting")
	}
}

func TestSetTaskRequiredRejectsNonTogglableTask(t *testing.T) {
	b := NewBoard("Falcon", "PN-100", "A", "Apollo", false)

	_, err := b.SetTaskRequired("Layout", "", "Wiring", false)
	if err == nil || !strings.Contains(err.Error(), "does not support") {
		t.Fatalf("expected a toggle-support error, got %v", err)
	}
}

func TestSetTaskApprovalRejectsNotRequiredTask(t *testing.T) {
	b := NewBoard("Falcon", "PN-100", "A", "Apollo", false)
	if _, err := b.SetTaskRequired("Layout", "", "Backdrill done?", false); err != nil {
		t.Fatalf("set required: %v", err)
	}

	_, err := b.SetTaskApproval("Layout", "", "Backdrill done?", FieldDesignerApproved, true)
	if err == nil || !strings.Contains(err.Error(), "not required") {
		t.Fatalf("expected a not-required rejection, got %v", err)
	}
}

func TestSetSubcategoryApproval(t *testing.T) {
	b := NewBoard("Falcon", "PN-100", "A", "Apollo", false)

	changes, err := b.SetSubcategoryApproval("In Production", "Mechanical", FieldDesignerApproved, true)
	if err != nil {
		t.Fatalf("set subcategory approval: %v", err)
	}
	if len(changes) != 1 || changes[0].Task != "Mechanical" || changes[0].NewValue != "checked" {
		t.Fatalf("unexpected change records: %#v", changes)
	}

	// Only Mechanical is checked; the other three groups still block.
	st := b.Stages[len(b.Stages)-1]
	if IsStageComplete(st, false) {
		t.Fatal("expected stage to remain incomplete")
	}

	_, err = b.SetSubcategoryApproval("In Production", "Thermal", FieldDesignerApproved, true)
	if err == nil || !strings.Contains(err.Error(), "single-checkbox") {
		t.Fatalf("expected a single-checkbox rejection, got %v", err)
	}
}

func TestFormatValues(t *testing.T) {
	if FormatBoolValue(true) != "checked" || FormatBoolValue(false) != "unchecked" {
		t.Fatal("unexpected bool rendering")
	}
	if FormatStatusValue(nil) != "Not set" {
		t.Fatal("nil status must render as Not set")
	}
	pass := StatusPass
	if FormatStatusValue(&pass) != "Pass" {
		t.Fatal("set status must render its value")
	}
}
