package domain

import "fmt"

// UserRole identifies which side of the dual sign-off a user acts as.
type UserRole string

const (
	RoleDesigner UserRole = "Designer"
	RoleReviewer UserRole = "Reviewer"
)

// Valid reports whether the role is one of the two known sign-off roles.
func (r UserRole) Valid() bool {
	return r == RoleDesigner || r == RoleReviewer
}

// Task is the atomic trackable unit of a board.
//
// Required is a tri-state flag: nil means the task is always mandatory and
// cannot be toggled, a non-nil value marks an optional-capable task where
// false excludes the task from all completion accounting.
type Task struct {
	Name             string `json:"name"`
	DesignerApproved bool   `json:"designerApproved"`
	ReviewerApproved bool   `json:"reviewerApproved"`
	Required         *bool  `json:"required,omitempty"`
	URL              string `json:"url,omitempty"`
	Comments         string `json:"comments,omitempty"`
}

// Subcategory groups tasks within a stage. For the single-checkbox
// subcategories the top-level approvals are authoritative and the nested
// tasks are informational; for all others completion derives from Tasks.
type Subcategory struct {
	Name             string `json:"name"`
	DesignerApproved bool   `json:"designerApproved"`
	ReviewerApproved bool   `json:"reviewerApproved"`
	Tasks            []Task `json:"tasks"`
}

// Stage is one phase of the PCB lifecycle. Exactly one of Tasks and
// Subcategories is populated for template-shaped boards.
type Stage struct {
	Name          string        `json:"name"`
	Tasks         []Task        `json:"tasks,omitempty"`
	Subcategories []Subcategory `json:"subcategories,omitempty"`
}

// Pass/fail values for Board.PassFailStatus. A nil status means "not set".
const (
	StatusPass = "Pass"
	StatusFail = "Fail"
)

// Board is one tracked PCB revision. Stages always carries the full
// template shape; only leaf task fields mutate after creation.
type Board struct {
	ID             string  `json:"id"`
	BoardName      string  `json:"boardName"`
	PartNumber     string  `json:"partNumber"`
	Revision       string  `json:"revision"`
	Project        string  `json:"project"`
	ArrivedDate    string  `json:"arrivedDate"`
	IsArrived      bool    `json:"isArrived"`
	PassFailStatus *string `json:"passFailStatus"`
	IsNewRevision  bool    `json:"isNewRevision"`
	Stages         []Stage `json:"stages"`
	CreatedAt      string  `json:"createdAt"`
	IsDeleted      bool    `json:"isDeleted"`
	DeletedAt      *string `json:"deletedAt"`
}

// Validate checks the structural contract a well-formed board must satisfy
// before the completion engine or storage may consume it.
func (b *Board) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("board: missing id")
	}
	if b.BoardName == "" {
		return fmt.Errorf("board %s: missing boardName", b.ID)
	}
	if b.PassFailStatus != nil && *b.PassFailStatus != StatusPass && *b.PassFailStatus != StatusFail {
		return fmt.Errorf("board %s: invalid passFailStatus %q", b.ID, *b.PassFailStatus)
	}
	for i := range b.Stages {
		st := &b.Stages[i]
		if st.Name == "" {
			return fmt.Errorf("board %s: stage %d has no name", b.ID, i)
		}
		if len(st.Tasks) == 0 && len(st.Subcategories) == 0 {
			return fmt.Errorf("board %s: stage %q has neither tasks nor subcategories", b.ID, st.Name)
		}
	}
	return nil
}

// Clone returns a deep copy of the board. Engine consumers treat boards as
// immutable snapshots, so anything that rewrites structure copies first.
func (b *Board) Clone() *Board {
	out := *b
	if b.PassFailStatus != nil {
		v := *b.PassFailStatus
		out.PassFailStatus = &v
	}
	if b.DeletedAt != nil {
		v := *b.DeletedAt
		out.DeletedAt = &v
	}
	out.Stages = make([]Stage, len(b.Stages))
	for i, st := range b.Stages {
		out.Stages[i] = cloneStage(st)
	}
	return &out
}

func cloneStage(st Stage) Stage {
	cp := st
	if st.Tasks != nil {
		cp.Tasks = cloneTasks(st.Tasks)
	}
	if st.Subcategories != nil {
		cp.Subcategories = make([]Subcategory, len(st.Subcategories))
		for i, sc := range st.Subcategories {
			scp := sc
			scp.Tasks = cloneTasks(sc.Tasks)
			cp.Subcategories[i] = scp
		}
	}
	return cp
}

func cloneTasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		cp := t
		if t.Required != nil {
			v := *t.Required
			cp.Required = &v
		}
		out[i] = cp
	}
	return out
}
