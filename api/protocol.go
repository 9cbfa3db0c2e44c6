package api

import "pcbtrack-api/domain"

const (
	postBoardMaxSize  = 64 * 1024       // 64 KiB
	putBoardMaxSize   = 1 * 1024 * 1024 // 1 MiB, full boards carry every stage
	postToggleMaxSize = 16 * 1024       // 16 KiB
)

// POST /api/boards request body.
type createBoardRequest struct {
	BoardName     string `json:"boardName"`
	PartNumber    string `json:"partNumber"`
	Revision      string `json:"revision"`
	Project       string `json:"project"`
	IsNewRevision bool   `json:"isNewRevision"`
}

// POST /api/boards/:id/toggle request body. Subcategory is empty for
// direct stage tasks; Task is empty when toggling a collapsed
// single-checkbox subcategory.
type toggleRequest struct {
	Stage       string `json:"stage"`
	Subcategory string `json:"subcategory,omitempty"`
	Task        string `json:"task,omitempty"`
	Field       string `json:"field"`
	Value       bool   `json:"value"`
}

// Board responses carry the stored board plus the derived completion
// values so clients never recompute them.
type boardResponse struct {
	Board        *domain.Board `json:"board"`
	Progress     int           `json:"progress"`
	CurrentStage string        `json:"currentStage"`
}

type stageStatus struct {
	Name     string `json:"name"`
	Complete bool   `json:"complete"`
}

// GET /api/boards/:id/progress response body.
type progressResponse struct {
	Progress     int           `json:"progress"`
	CurrentStage string        `json:"currentStage"`
	Stages       []stageStatus `json:"stages"`
}

type usersResponse struct {
	Users []string `json:"users"`
}
