package domain

import (
	"time"

	"github.com/google/uuid"
)

// NewBoard instantiates a fresh board from the stage templates. Every
// approval starts false; optional-capable tasks start with required=true.
func NewBoard(boardName, partNumber, revision, project string, isNewRevision bool) *Board {
	return &Board{
		ID:             uuid.NewString(),
		BoardName:      boardName,
		PartNumber:     partNumber,
		Revision:       revision,
		Project:        project,
		ArrivedDate:    "",
		IsArrived:      false,
		PassFailStatus: nil,
		IsNewRevision:  isNewRevision,
		Stages:         NewTemplateStages(),
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
	}
}

// NewTemplateStages builds a full stage tree from the registry with all
// approvals cleared. The migration adapter reuses it when replacing a
// stage wholesale.
func NewTemplateStages() []Stage {
	tpls := StageTemplates()
	stages := make([]Stage, 0, len(tpls))
	for _, tpl := range tpls {
		stages = append(stages, newTemplateStage(tpl))
	}
	return stages
}

func newTemplateStage(tpl StageTemplate) Stage {
	st := Stage{Name: tpl.Name}
	if len(tpl.Tasks) > 0 {
		st.Tasks = make([]Task, 0, len(tpl.Tasks))
		for _, tt := range tpl.Tasks {
			st.Tasks = append(st.Tasks, newTemplateTask(tt))
		}
	}
	for _, sc := range tpl.Subcategories {
		sub := Subcategory{Name: sc.Name, Tasks: make([]Task, 0, len(sc.Tasks))}
		for _, tt := range sc.Tasks {
			sub.Tasks = append(sub.Tasks, newTemplateTask(tt))
		}
		st.Subcategories = append(st.Subcategories, sub)
	}
	return st
}

func newTemplateTask(tt TaskTemplate) Task {
	t := Task{Name: tt.Name}
	if tt.OptionalCapable {
		// Absence of Required means "not togglable"; optional-capable
		// tasks start as explicitly required.
		required := true
		t.Required = &required
	}
	return t
}
