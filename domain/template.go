package domain

// TaskVisibility controls when a template task appears on a board.
type TaskVisibility int

const (
	// VisibilityAlways tasks appear on every board.
	VisibilityAlways TaskVisibility = iota
	// VisibilityNewRevisionOnly tasks appear only on boards flagged as a
	// new revision of an existing design.
	VisibilityNewRevisionOnly
)

// TaskTemplate is the per-task metadata record the engine consults instead
// of re-checking literal name lists on every traversal.
type TaskTemplate struct {
	Name            string
	Visibility      TaskVisibility
	OptionalCapable bool
}

// SubcategoryTemplate describes one named task group within a stage.
// SingleCheckbox groups collapse to one designer checkbox in all
// completion accounting.
type SubcategoryTemplate struct {
	Name           string
	SingleCheckbox bool
	Tasks          []TaskTemplate
}

// StageTemplate describes one lifecycle stage. Exactly one of Tasks and
// Subcategories is populated.
type StageTemplate struct {
	Name          string
	Tasks         []TaskTemplate
	Subcategories []SubcategoryTemplate
}

// Task names visible only on new-revision boards.
var newRevisionOnlyTasks = map[string]bool{
	"EQ Review (Previous revision)":        true,
	"Bringup notes (Previous revision)":    true,
	"Mechanical notes (Previous revision)": true,
	"Comments 365 (Previous revision)":     true,
	"Update Issues Excel":                  true,
	"Issues Excel Review":                  true,
}

// Task names that support the "not required for this revision" toggle.
// All of them default to required=true on a fresh board.
var optionalCapableTasks = map[string]bool{
	"Impedance control done?":            true,
	"Length matching done?":              true,
	"Filling and capping vias sets?":     true,
	"TEAR DROPS optional done?":          true,
	"Backdrill done?":                    true,
	"STITCHING and shielding? (if need)": true,
}

// Subcategory names treated as a single checkbox.
var singleCheckboxSubcategories = map[string]bool{
	"Mechanical": true,
	"Embedded":   true,
	"Software":   true,
	"System":     true,
}

// IsNewRevisionOnlyTask reports whether the named task is gated on the
// board's new-revision flag.
func IsNewRevisionOnlyTask(name string) bool { return newRevisionOnlyTasks[name] }

// IsOptionalCapableTask reports whether the named task supports the
// required toggle.
func IsOptionalCapableTask(name string) bool { return optionalCapableTasks[name] }

// IsSingleCheckboxSubcategory reports whether the named subcategory
// collapses to one checkbox.
func IsSingleCheckboxSubcategory(name string) bool { return singleCheckboxSubcategories[name] }

// Stage and task names in lifecycle order. Boards instantiate this shape
// verbatim and never add or remove stages afterwards.
var stageTemplateNames = []struct {
	name    string
	tasks   []string
	subcats []struct {
		name  string
		tasks []string
	}
}{
	{
		name: "Pre-Schematics",
		tasks: []string{
			"Requirements Available",
			"EQ Review (Previous revision)",
			"Bringup notes (Previous revision)",
			"Mechanical notes (Previous revision)",
			"Comments 365 (Previous revision)",
			"Block Diagram Updated",
			"Power Tree Updated",
			"Shielding",
			"PDR Completed",
		},
	},
	{
		name: "Schematics",
		tasks: []string{
			"Schematic design",
			"Test points",
			"GND hooks",
			"Shielding",
			"Parts in BOM",
		},
	},
	{
		name: "Layout",
		tasks: []string{
			"Define Rules",
			"Define Stackup",
			"Get DXF",
			"Concept Placement",
			"First Mechanical Approval",
			"Placement",
			"Second Mechanical Approval",
			"Wiring",
			"Impedance control done?",
			"Length matching done?",
			"Filling and capping vias sets?",
			"TEAR DROPS optional done?",
			"Backdrill done?",
			"STITCHING and shielding? (if need)",
			"Check BOARD outline (5mil) layers",
			"Check Assembly layer",
			"Silk overview [name connectors(pins?), part number, serial number]",
			"Final Mechanical Approval",
		},
	},
	{
		name: "Release",
		tasks: []string{
			"Update Issues Excel",
			"Issues Excel Review",
			"Draftsman",
			"Confluence – Main Page",
			"Confluence – Bringup",
			"Software fetchers doc",
		},
	},
	{
		name: "Order",
		tasks: []string{
			"PCB Ordered",
			"PCB Received",
			"Assembly Ordered",
			"Assembly Received",
		},
	},
	{
		name: "Bringup",
		tasks: []string{
			"Bringup Started",
			"Bringup Completed",
			"Bringup Notes Updated",
		},
	},
	{
		name: "Validation",
		tasks: []string{
			"Bringup Completed",
			"Board outline",
			"BOM components stage",
			"Planes",
		},
	},
	{
		name: "In Production",
		subcats: []struct {
			name  string
			tasks []string
		}{
			{name: "Mechanical", tasks: []string{
				"Mechanical Integration Complete",
				"Mechanical Testing Passed",
				"Mechanical Sign-Off",
			}},
			{name: "Embedded", tasks: []string{
				"Firmware Loaded",
				"Embedded Testing Complete",
				"Embedded Sign-Off",
			}},
			{name: "Software", tasks: []string{
				"Software Integration Complete",
				"Software Testing Passed",
				"Software Sign-Off",
			}},
			{name: "System", tasks: []string{
				"System Integration Complete",
				"System Testing Passed",
				"System Sign-Off",
			}},
		},
	},
}

// stageTemplates is materialized once so visibility, optional-capability
// and checkbox collapsing are decided at load time, not per traversal.
var stageTemplates = buildStageTemplates()

func buildStageTemplates() []StageTemplate {
	out := make([]StageTemplate, 0, len(stageTemplateNames))
	for _, st := range stageTemplateNames {
		tpl := StageTemplate{Name: st.name}
		for _, name := range st.tasks {
			tpl.Tasks = append(tpl.Tasks, newTaskTemplate(name))
		}
		for _, sc := range st.subcats {
			sub := SubcategoryTemplate{
				Name:           sc.name,
				SingleCheckbox: singleCheckboxSubcategories[sc.name],
			}
			for _, name := range sc.tasks {
				// Nested tasks never carry the required toggle.
				sub.Tasks = append(sub.Tasks, TaskTemplate{
					Name:       name,
					Visibility: taskVisibility(name),
				})
			}
			tpl.Subcategories = append(tpl.Subcategories, sub)
		}
		out = append(out, tpl)
	}
	return out
}

func newTaskTemplate(name string) TaskTemplate {
	return TaskTemplate{
		Name:            name,
		Visibility:      taskVisibility(name),
		OptionalCapable: optionalCapableTasks[name],
	}
}

func taskVisibility(name string) TaskVisibility {
	if newRevisionOnlyTasks[name] {
		return VisibilityNewRevisionOnly
	}
	return VisibilityAlways
}

// StageTemplates returns the ordered stage templates. Callers must not
// mutate the returned slice.
func StageTemplates() []StageTemplate { return stageTemplates }
