package domain

import (
	"strings"
	"testing"
)

func boolPtr(v bool) *bool { return &v }

func approveStageTask(t *testing.T, b *Board, stage, task string) {
	t.Helper()
	if _, err := b.SetTaskApproval(stage, "", task, FieldDesignerApproved, true); err != nil {
		t.Fatalf("approve %s/%s: %v", stage, task, err)
	}
}

func TestNewBoardStartsAtZeroProgress(t *testing.T) {
	b := NewBoard("Falcon", "PN-100", "A", "Apollo", false)

	got, err := CalculateBoardProgress(b)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected 0%% on a fresh board, got %d", got)
	}
	for _, st := range b.Stages {
		if IsStageComplete(st, b.IsNewRevision) {
			t.Fatalf("expected stage %q to be incomplete on a fresh board", st.Name)
		}
	}
}

func TestTaskVisibilityGatesOnNewRevision(t *testing.T) {
	tests := []struct {
		name          string
		task          Task
		isNewRevision bool
		want          bool
	}{
		{name: "regular task, old revision", task: Task{Name: "Requirements Available"}, want: true},
		{name: "regular task, new revision", task: Task{Name: "Requirements Available"}, isNewRevision: true, want: true},
		{name: "carryover task, old revision", task: Task{Name: "EQ Review (Previous revision)"}, want: false},
		{name: "carryover task, new revision", task: Task{Name: "EQ Review (Previous revision)"}, isNewRevision: true, want: true},
		{name: "issues excel, old revision", task: Task{Name: "Update Issues Excel"}, want: false},
		{name: "not-required task stays visible", task: Task{Name: "Backdrill done?", Required: boolPtr(false)}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTaskVisible(tt.task, tt.isNewRevision); got != tt.want {
				t.Fatalf("IsTaskVisible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldCountTaskExcludesNotRequired(t *testing.T) {
	tests := []struct {
		name          string
		task          Task
		isNewRevision bool
		want          bool
	}{
		{name: "plain task counts", task: Task{Name: "Wiring"}, want: true},
		{name: "explicitly required counts", task: Task{Name: "Backdrill done?", Required: boolPtr(true)}, want: true},
		{name: "explicitly not required never counts", task: Task{Name: "Backdrill done?", Required: boolPtr(false), DesignerApproved: true}, want: false},
		{name: "invisible task never counts", task: Task{Name: "Issues Excel Review", DesignerApproved: true}, want: false},
		{name: "invisible but new revision counts", task: Task{Name: "Issues Excel Review"}, isNewRevision: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldCountTask(tt.task, tt.isNewRevision); got != tt.want {
				t.Fatalf("ShouldCountTask = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoardProgressPreSchematicsScenario(t *testing.T) {
	// 9 tasks, 4 approved, one of them a carryover task visible only on
	// new revisions.
	b := NewBoard("Falcon", "PN-100", "B", "Apollo", true)
	b.Stages = b.Stages[:1]
	approveStageTask(t, b, "Pre-Schematics", "Requirements Available")
	approveStageTask(t, b, "Pre-Schematics", "Block Diagram Updated")
	approveStageTask(t, b, "Pre-Schematics", "Power Tree Updated")
	approveStageTask(t, b, "Pre-Schematics", "EQ Review (Previous revision)")

	got, err := CalculateBoardProgress(b)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if got != 44 {
		t.Fatalf("expected round(4/9*100) = 44, got %d", got)
	}

	// Same board on an old revision: the four carryover tasks drop out of
	// the total and the approved one drops out of done.
	b.IsNewRevision = false
	got, err = CalculateBoardProgress(b)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if got != 60 {
		t.Fatalf("expected round(3/5*100) = 60, got %d", got)
	}
}

func TestBoardProgressRoundsHalfUp(t *testing.T) {
	b := &Board{
		IsNewRevision: false,
		Stages: []Stage{{
			Name: "Order",
			Tasks: []Task{
				{Name: "PCB Ordered", DesignerApproved: true},
				{Name: "PCB Received"},
				{Name: "Assembly Ordered"},
				{Name: "Assembly Received"},
				{Name: "Spares Ordered"},
				{Name: "Spares Received"},
				{Name: "Panels Ordered"},
				{Name: "Panels Received"},
			},
		}},
	}

	got, err := CalculateBoardProgress(b)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if got != 13 {
		t.Fatalf("expected 1/8 to round 12.5 up to 13, got %d", got)
	}
}

func TestBoardProgressExcludesNotRequiredTasks(t *testing.T) {
	b := NewBoard("Falcon", "PN-100", "A", "Apollo", false)
	if _, err := b.SetTaskRequired("Layout", "", "Backdrill done?", false); err != nil {
		t.Fatalf("set required: %v", err)
	}
	withExcluded, err := CalculateBoardProgress(b)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}

	// Force approvals onto the excluded task: it must still contribute
	// nothing to either counter.
	st, err := b.findStage("Layout")
	if err != nil {
		t.Fatalf("find stage: %v", err)
	}
	for i := range st.Tasks {
		if st.Tasks[i].Name == "Backdrill done?" {
			st.Tasks[i].DesignerApproved = true
			st.Tasks[i].ReviewerApproved = true
		}
	}
	withApprovals, err := CalculateBoardProgress(b)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if withExcluded != withApprovals {
		t.Fatalf("excluded task changed progress: %d vs %d", withExcluded, withApprovals)
	}
}

func TestBoardProgressMonotonicOnApprovalToggle(t *testing.T) {
	b := NewBoard("Falcon", "PN-100", "A", "Apollo", true)
	before, err := CalculateBoardProgress(b)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}

	approveStageTask(t, b, "Schematics", "Test points")
	after, err := CalculateBoardProgress(b)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if after < before {
		t.Fatalf("approval decreased progress: %d -> %d", before, after)
	}

	if _, err := b.SetTaskApproval("Schematics", "", "Test points", FieldDesignerApproved, false); err != nil {
		t.Fatalf("unapprove: %v", err)
	}
	reverted, err := CalculateBoardProgress(b)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if reverted > after {
		t.Fatalf("unapproval increased progress: %d -> %d", after, reverted)
	}
	if reverted != before {
		t.Fatalf("expected progress to revert to %d, got %d", before, reverted)
	}
}

func TestSingleCheckboxSubcategoryCountsAsOneUnit(t *testing.T) {
	b := &Board{
		Stages: []Stage{{
			Name: "In Production",
			Subcategories: []Subcategory{{
				Name: "Mechanical",
				Tasks: []Task{
					{Name: "Mechanical Integration Complete", DesignerApproved: true},
					{Name: "Mechanical Testing Passed", DesignerApproved: true},
					{Name: "Mechanical Sign-Off", DesignerApproved: true},
				},
			}},
		}},
	}

	got, err := CalculateBoardProgress(b)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if got != 0 {
		t.Fatalf("nested approvals must not count for a collapsed subcategory, got %d%%", got)
	}

	b.Stages[0].Subcategories[0].DesignerApproved = true
	got, err = CalculateBoardProgress(b)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if got != 100 {
		t.Fatalf("expected 100%% once the collapsed checkbox is set, got %d", got)
	}
}

func TestNonCollapsedSubcategoryCountsNestedTasks(t *testing.T) {
	b := &Board{
		Stages: []Stage{{
			Name: "In Production",
			Subcategories: []Subcategory{{
				Name: "Thermal",
				Tasks: []Task{
					{Name: "Thermal Testing Passed", DesignerApproved: true},
					{Name: "Thermal Sign-Off"},
				},
			}},
		}},
	}

	got, err := CalculateBoardProgress(b)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if got != 50 {
		t.Fatalf("expected 50%% from nested task counting, got %d", got)
	}
}

func TestBoardProgressFailsOnMalformedStage(t *testing.T) {
	b := &Board{Stages: []Stage{{Name: "Layout"}}}

	_, err := CalculateBoardProgress(b)
	if err == nil {
		t.Fatal("expected an error for a stage with neither tasks nor subcategories")
	}
	if !strings.Contains(err.Error(), "Layout") {
		t.Fatalf("expected the stage name in the error, got %v", err)
	}
}

func TestBoardProgressEmptyBoardIsZero(t *testing.T) {
	got, err := CalculateBoardProgress(&Board{})
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected 0%% for a board with no stages, got %d", got)
	}
}

func TestIsStageCompleteFiltersCountedTasks(t *testing.T) {
	tests := []struct {
		name          string
		stage         Stage
		isNewRevision bool
		want          bool
	}{
		{
			name: "all counted tasks approved",
			stage: Stage{Name: "Order", Tasks: []Task{
				{Name: "PCB Ordered", DesignerApproved: true},
				{Name: "PCB Received", DesignerApproved: true},
			}},
			want: true,
		},
		{
			name: "one counted task missing approval",
			stage: Stage{Name: "Order", Tasks: []Task{
				{Name: "PCB Ordered", DesignerApproved: true},
				{Name: "PCB Received"},
			}},
			want: false,
		},
		{
			name: "unapproved carryover task ignored on old revision",
			stage: Stage{Name: "Release", Tasks: []Task{
				{Name: "Update Issues Excel"},
				{Name: "Draftsman", DesignerApproved: true},
			}},
			want: true,
		},
		{
			name: "unapproved carryover task blocks on new revision",
			stage: Stage{Name: "Release", Tasks: []Task{
				{Name: "Update Issues Excel"},
				{Name: "Draftsman", DesignerApproved: true},
			}},
			isNewRevision: true,
			want:          false,
		},
		{
			name: "not-required task ignored",
			stage: Stage{Name: "Layout", Tasks: []Task{
				{Name: "Backdrill done?", Required: boolPtr(false)},
				{Name: "Wiring", DesignerApproved: true},
			}},
			want: true,
		},
		{
			name: "collapsed subcategory requires its own checkbox",
			stage: Stage{Name: "In Production", Subcategories: []Subcategory{{
				Name:  "Embedded",
				Tasks: []Task{{Name: "Firmware Loaded", DesignerApproved: true}},
			}}},
			want: false,
		},
		{
			name: "collapsed subcategory approved",
			stage: Stage{Name: "In Production", Subcategories: []Subcategory{{
				Name:             "Embedded",
				DesignerApproved: true,
			}}},
			want: true,
		},
		{
			name: "non-collapsed subcategory requires nested tasks",
			stage: Stage{Name: "In Production", Subcategories: []Subcategory{{
				Name:             "Thermal",
				DesignerApproved: true,
				Tasks:            []Task{{Name: "Thermal Sign-Off"}},
			}}},
			want: false,
		},
		{
			name:  "empty stage is vacuously complete",
			stage: Stage{Name: "Ghost"},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStageComplete(tt.stage, tt.isNewRevision); got != tt.want {
				t.Fatalf("IsStageComplete = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCurrentStageScansInReverse(t *testing.T) {
	b := NewBoard("Falcon", "PN-100", "A", "Apollo", false)

	if got := CurrentStage(b); got != "Pre-Schematics" {
		t.Fatalf("expected first stage for a fresh board, got %q", got)
	}

	approveStageTask(t, b, "Schematics", "Test points")
	approveStageTask(t, b, "Order", "PCB Ordered")
	if got := CurrentStage(b); got != "Order" {
		t.Fatalf("expected the latest stage with an approved task, got %q", got)
	}
}

func TestCurrentStageIgnoresVisibilityFiltering(t *testing.T) {
	// An approved carryover task still pins the stage even on an old
	// revision, where the task itself is hidden from the UI.
	b := NewBoard("Falcon", "PN-100", "A", "Apollo", false)
	st, err := b.findStage("Release")
	if err != nil {
		t.Fatalf("find stage: %v", err)
	}
	approved := false
	for i := range st.Tasks {
		if st.Tasks[i].Name == "Update Issues Excel" {
			if IsTaskVisible(st.Tasks[i], b.IsNewRevision) {
				t.Fatalf("expected %q to be hidden on an old revision", st.Tasks[i].Name)
			}
			st.Tasks[i].DesignerApproved = true
			approved = true
		}
	}
	if !approved {
		t.Fatal("carryover task not found in Release")
	}
	if got := CurrentStage(b); got != "Release" {
		t.Fatalf("expected unfiltered scan to reach Release, got %q", got)
	}

	// A visible approval in a later stage still wins over the hidden one.
	approveStageTask(t, b, "Order", "PCB Ordered")
	if got := CurrentStage(b); got != "Order" {
		t.Fatalf("expected latest stage to win, got %q", got)
	}
}

func TestCurrentStageSentinelForEmptyBoard(t *testing.T) {
	if got := CurrentStage(&Board{}); got != NoStagesStageName {
		t.Fatalf("expected %q, got %q", NoStagesStageName, got)
	}
}

func TestCurrentStageChecksSubcategoryTasks(t *testing.T) {
	b := NewBoard("Falcon", "PN-100", "A", "Apollo", false)
	if _, err := b.SetTaskApproval("In Production", "System", "System Integration Complete", FieldDesignerApproved, true); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got := CurrentStage(b); got != "In Production" {
		t.Fatalf("expected In Production, got %q", got)
	}
}

func BenchmarkCalculateBoardProgress(b *testing.B) {
	board := NewBoard("Falcon", "PN-100", "A", "Apollo", true)
	board.Stages[1].Tasks[1].DesignerApproved = true

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := CalculateBoardProgress(board); err != nil {
			b.Fatal(err)
		}
	}
}
