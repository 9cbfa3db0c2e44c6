package domain

import (
	"fmt"
	"math"
)

// NoStagesStageName is returned by CurrentStage for a board without stages.
const NoStagesStageName = "Not Started"

// IsTaskVisible reports whether the task appears on a board with the given
// new-revision flag. Visibility is independent of the required toggle.
func IsTaskVisible(t Task, isNewRevision bool) bool {
	if IsNewRevisionOnlyTask(t.Name) && !isNewRevision {
		return false
	}
	return true
}

// ShouldCountTask is the sole predicate deciding whether a task
// participates in progress and stage-completion aggregates: the task must
// be visible and must not be explicitly marked not required.
func ShouldCountTask(t Task, isNewRevision bool) bool {
	if !IsTaskVisible(t, isNewRevision) {
		return false
	}
	if t.Required != nil && !*t.Required {
		return false
	}
	return true
}

// IsTaskComplete reports task completion. Only the designer sign-off
// gates completion; reviewer approval is tracked for audit only.
func IsTaskComplete(t Task) bool {
	return t.DesignerApproved
}

// CalculateBoardProgress returns the board's completion percentage in
// [0,100], rounded half up. Single-checkbox subcategories contribute one
// unit regardless of their nested tasks. A board with no countable tasks
// is 0%. A stage with neither tasks nor subcategories indicates a
// template mismatch and is reported as an error rather than folded into
// the result.
func CalculateBoardProgress(b *Board) (int, error) {
	total, done := 0, 0
	for i := range b.Stages {
		st := &b.Stages[i]
		if len(st.Tasks) == 0 && len(st.Subcategories) == 0 {
			return 0, fmt.Errorf("stage %q has neither tasks nor subcategories", st.Name)
		}
		for _, t := range st.Tasks {
			if !ShouldCountTask(t, b.IsNewRevision) {
				continue
			}
			total++
			if t.DesignerApproved {
				done++
			}
		}
		for _, sc := range st.Subcategories {
			if IsSingleCheckboxSubcategory(sc.Name) {
				total++
				if sc.DesignerApproved {
					done++
				}
				continue
			}
			for _, t := range sc.Tasks {
				if !ShouldCountTask(t, b.IsNewRevision) {
					continue
				}
				total++
				if t.DesignerApproved {
					done++
				}
			}
		}
	}
	if total == 0 {
		return 0, nil
	}
	return int(math.Round(float64(done) / float64(total) * 100)), nil
}

// IsStageComplete reports whether every counted task in the stage carries
// designer approval. Single-checkbox subcategories require their own
// designer approval instead of their nested tasks'. A stage with nothing
// to count is vacuously complete.
func IsStageComplete(st Stage, isNewRevision bool) bool {
	for _, t := range st.Tasks {
		if ShouldCountTask(t, isNewRevision) && !t.DesignerApproved {
			return false
		}
	}
	for _, sc := range st.Subcategories {
		if IsSingleCheckboxSubcategory(sc.Name) {
			if !sc.DesignerApproved {
				return false
			}
			continue
		}
		for _, t := range sc.Tasks {
			if ShouldCountTask(t, isNewRevision) && !t.DesignerApproved {
				return false
			}
		}
	}
	return true
}

// CurrentStage returns the name of the latest stage holding at least one
// designer-approved task. The scan is deliberately unfiltered: hidden and
// not-required tasks still pin the current stage. Falls back to the first
// stage's name, or the sentinel when the board has no stages.
func CurrentStage(b *Board) string {
	for i := len(b.Stages) - 1; i >= 0; i-- {
		if stageHasApprovedTask(b.Stages[i]) {
			return b.Stages[i].Name
		}
	}
	if len(b.Stages) == 0 {
		return NoStagesStageName
	}
	return b.Stages[0].Name
}

func stageHasApprovedTask(st Stage) bool {
	for _, t := range st.Tasks {
		if t.DesignerApproved {
			return true
		}
	}
	for _, sc := range st.Subcategories {
		for _, t := range sc.Tasks {
			if t.DesignerApproved {
				return true
			}
		}
	}
	return false
}
