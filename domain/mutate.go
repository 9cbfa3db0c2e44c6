package domain

import "fmt"

// Field names accepted by the mutation helpers.
const (
	FieldDesignerApproved = "designerApproved"
	FieldReviewerApproved = "reviewerApproved"
	FieldRequired         = "required"
)

// FieldChange records a single mutated field with human-readable values,
// ready to be written to the change log.
type FieldChange struct {
	Stage    string
	Task     string
	Field    string
	OldValue string
	NewValue string
}

// FormatBoolValue renders a checkbox state for the change log.
func FormatBoolValue(v bool) string {
	if v {
		return "checked"
	}
	return "unchecked"
}

// FormatStatusValue renders an optional status value for the change log.
// Unset values render as "Not set".
func FormatStatusValue(v *string) string {
	if v == nil {
		return "Not set"
	}
	return *v
}

// SetTaskApproval sets a designer or reviewer approval on a direct stage
// task (subName empty) or a nested subcategory task. Unknown names are a
// caller contract violation and fail fast. A task explicitly marked not
// required cannot be approved.
func (b *Board) SetTaskApproval(stageName, subName, taskName, field string, value bool) ([]FieldChange, error) {
	if field != FieldDesignerApproved && field != FieldReviewerApproved {
		return nil, fmt.Errorf("unknown approval field %q", field)
	}
	t, err := b.findTask(stageName, subName, taskName)
	if err != nil {
		return nil, err
	}
	if value && t.Required != nil && !*t.Required {
		return nil, fmt.Errorf("task %q in stage %q is marked not required and cannot be approved", taskName, stageName)
	}
	target := &t.DesignerApproved
	if field == FieldReviewerApproved {
		target = &t.ReviewerApproved
	}
	if *target == value {
		return nil, nil
	}
	old := *target
	*target = value
	return []FieldChange{{
		Stage:    stageName,
		Task:     changeLogTaskName(subName, taskName),
		Field:    field,
		OldValue: FormatBoolValue(old),
		NewValue: FormatBoolValue(value),
	}}, nil
}

// SetTaskRequired toggles the required flag of an optional-capable task.
// Clearing the flag also clears both approvals in the same operation, and
// every cleared field is reported as its own change.
func (b *Board) SetTaskRequired(stageName, subName, taskName string, required bool) ([]FieldChange, error) {
	t, err := b.findTask(stageName, subName, taskName)
	if err != nil {
		return nil, err
	}
	if t.Required == nil {
		return nil, fmt.Errorf("task %q in stage %q does not support the required toggle", taskName, stageName)
	}
	if *t.Required == required {
		return nil, nil
	}
	logName := changeLogTaskName(subName, taskName)
	changes := []FieldChange{{
		Stage:    stageName,
		Task:     logName,
		Field:    FieldRequired,
		OldValue: FormatBoolValue(*t.Required),
		NewValue: FormatBoolValue(required),
	}}
	*t.Required = required
	if !required {
		if t.DesignerApproved {
			t.DesignerApproved = false
			changes = append(changes, FieldChange{
				Stage:    stageName,
				Task:     logName,
				Field:    FieldDesignerApproved,
				OldValue: FormatBoolValue(true),
				NewValue: FormatBoolValue(false),
			})
		}
		if t.ReviewerApproved {
			t.ReviewerApproved = false
			changes = append(changes, FieldChange{
				Stage:    stageName,
				Task:     logName,
				Field:    FieldReviewerApproved,
				OldValue: FormatBoolValue(true),
				NewValue: FormatBoolValue(false),
			})
		}
	}
	return changes, nil
}

// SetSubcategoryApproval sets the collapsed checkbox of a single-checkbox
// subcategory.
func (b *Board) SetSubcategoryApproval(stageName, subName, field string, value bool) ([]FieldChange, error) {
	if field != FieldDesignerApproved && field != FieldReviewerApproved {
		return nil, fmt.Errorf("unknown approval field %q", field)
	}
	if !IsSingleCheckboxSubcategory(subName) {
		return nil, fmt.Errorf("subcategory %q in stage %q is not a single-checkbox group", subName, stageName)
	}
	sc, err := b.findSubcategory(stageName, subName)
	if err != nil {
		return nil, err
	}
	target := &sc.DesignerApproved
	if field == FieldReviewerApproved {
		target = &sc.ReviewerApproved
	}
	if *target == value {
		return nil, nil
	}
	old := *target
	*target = value
	return []FieldChange{{
		Stage:    stageName,
		Task:     subName,
		Field:    field,
		OldValue: FormatBoolValue(old),
		NewValue: FormatBoolValue(value),
	}}, nil
}

func (b *Board) findStage(stageName string) (*Stage, error) {
	for i := range b.Stages {
		if b.Stages[i].Name == stageName {
			return &b.Stages[i], nil
		}
	}
	return nil, fmt.Errorf("board %s has no stage %q", b.ID, stageName)
}

func (b *Board) findSubcategory(stageName, subName string) (*Subcategory, error) {
	st, err := b.findStage(stageName)
	if err != nil {
		return nil, err
	}
	for i := range st.Subcategories {
		if st.Subcategories[i].Name == subName {
			return &st.Subcategories[i], nil
		}
	}
	return nil, fmt.Errorf("stage %q has no subcategory %q", stageName, subName)
}

func (b *Board) findTask(stageName, subName, taskName string) (*Task, error) {
	if subName != "" {
		sc, err := b.findSubcategory(stageName, subName)
		if err != nil {
			return nil, err
		}
		for i := range sc.Tasks {
			if sc.Tasks[i].Name == taskName {
				return &sc.Tasks[i], nil
			}
		}
		return nil, fmt.Errorf("subcategory %q in stage %q has no task %q", subName, stageName, taskName)
	}
	st, err := b.findStage(stageName)
	if err != nil {
		return nil, err
	}
	for i := range st.Tasks {
		if st.Tasks[i].Name == taskName {
			return &st.Tasks[i], nil
		}
	}
	return nil, fmt.Errorf("stage %q has no task %q", stageName, taskName)
}

func changeLogTaskName(subName, taskName string) string {
	if subName == "" {
		return taskName
	}
	return subName + " / " + taskName
}
