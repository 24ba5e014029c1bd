package models

const (
	GenerationStatusCompleted = "completed"
	GenerationStatusFailed    = "failed"
)

// OutfitGeneration is the history row written by the worker for every generation attempt.
type OutfitGeneration struct {
	JsonModel
	RequestID string `gorm:"uniqueIndex;size:64" json:"request_id"`
	ClientIP  string `gorm:"size:64" json:"-"`

	Provider *string `json:"provider"`
	LLMModel *string `json:"llm_model"`
	Prompt   string  `gorm:"type:text" json:"-"`

	ItemCount   int     `json:"item_count"`
	Preferences string  `gorm:"type:jsonb" json:"-"`
	Result      *string `gorm:"type:jsonb" json:"-"`

	Status       string   `json:"status"` // completed, failed
	ErrorCode    *string  `json:"error_code"`
	ErrorMessage *string  `gorm:"type:text" json:"-"`
	Duration     *float64 `json:"duration"` // in seconds

	// object key of the uploaded result JSON in the snapshot bucket
	SnapshotKey *string `json:"-"`
}
