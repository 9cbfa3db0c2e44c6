package domain

// Legacy task names that mark a stage as carrying a retired schema. A
// stage containing any of its markers is replaced wholesale with the
// current template shape, dropping prior approvals: these stages changed
// shape, not just wording, so old sign-offs no longer map to anything.
var staleStageMarkers = map[string][]string{
	"Release":       {"Update Issues List", "Issues List Review"},
	"Bringup":       {"Bring-up Started", "Bring-up Completed", "Bring-up Notes Updated"},
	"Validation":    {"Validation Started", "Validation Completed", "Validation Notes Updated"},
	"In Production": {"Production Started", "Production Completed", "Production Sign-Off"},
}

// Pre-Schematics tasks were only renamed, so approvals carry over.
var preSchematicsRenames = map[string]string{
	"EQ Review":        "EQ Review (Previous revision)",
	"Bringup notes":    "Bringup notes (Previous revision)",
	"Mechanical notes": "Mechanical notes (Previous revision)",
	"Comments 365":     "Comments 365 (Previous revision)",
}

// MigrateBoard rewrites legacy task names and structures in a previously
// persisted board to the current template shape. It is pure and
// idempotent: the input is never mutated, and a board already on the
// current schema comes back structurally unchanged. Unrecognized task
// names pass through untouched.
func MigrateBoard(b *Board) *Board {
	out := b.Clone()
	for i := range out.Stages {
		st := &out.Stages[i]
		switch {
		case st.Name == "Pre-Schematics":
			renamePreSchematicsTasks(st)
		case stageHasStaleTasks(st):
			if fresh, ok := templateStageByName(st.Name); ok {
				*st = fresh
			}
		}
	}
	return out
}

func stageHasStaleTasks(st *Stage) bool {
	markers, ok := staleStageMarkers[st.Name]
	if !ok {
		return false
	}
	for _, t := range st.Tasks {
		for _, m := range markers {
			if t.Name == m {
				return true
			}
		}
	}
	for _, sc := range st.Subcategories {
		for _, t := range sc.Tasks {
			for _, m := range markers {
				if t.Name == m {
					return true
				}
			}
		}
	}
	return false
}

func renamePreSchematicsTasks(st *Stage) {
	for i := range st.Tasks {
		if current, ok := preSchematicsRenames[st.Tasks[i].Name]; ok {
			st.Tasks[i].Name = current
		}
	}
}

func templateStageByName(name string) (Stage, bool) {
	for _, tpl := range StageTemplates() {
		if tpl.Name == name {
			return newTemplateStage(tpl), true
		}
	}
	return Stage{}, false
}
