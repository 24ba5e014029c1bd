package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"outfitapi/models"

	"gorm.io/gorm"
)

// GenerationRecord is what the API hands to the history worker after each attempt.
type GenerationRecord struct {
	RequestID   string                   `json:"request_id"`
	ClientIP    string                   `json:"client_ip"`
	Provider    string                   `json:"provider,omitempty"`
	Model       string                   `json:"model,omitempty"`
	Prompt      string                   `json:"prompt,omitempty"`
	ItemCount   int                      `json:"item_count"`
	Preferences models.OutfitPreferences `json:"preferences"`
	Result      *models.GenerationResult `json:"result,omitempty"`
	ErrorCode   string                   `json:"error_code,omitempty"`
	Error       string                   `json:"error,omitempty"`
	Duration    time.Duration            `json:"duration"`
	RecordedAt  time.Time                `json:"recorded_at"`
}

type HistoryRecorder interface {
	Record(ctx context.Context, record GenerationRecord) error
}

// NoopHistoryRecorder is used when no task broker is configured.
type NoopHistoryRecorder struct{}

func (NoopHistoryRecorder) Record(context.Context, GenerationRecord) error {
	return nil
}

// ToModel converts a record into its history row. The snapshot key is filled in by the
// caller once the upload succeeds.
func (r GenerationRecord) ToModel() (*models.OutfitGeneration, error) {
	preferences, err := json.Marshal(r.Preferences)
	if err != nil {
		return nil, fmt.Errorf("marshal preferences: %w", err)
	}

	row := &models.OutfitGeneration{
		RequestID:    r.RequestID,
		ClientIP:     r.ClientIP,
		Provider:     StrPointer(r.Provider),
		LLMModel:     StrPointer(r.Model),
		Prompt:       r.Prompt,
		ItemCount:    r.ItemCount,
		Preferences:  string(preferences),
		Status:       models.GenerationStatusCompleted,
		ErrorCode:    StrPointer(r.ErrorCode),
		ErrorMessage: StrPointer(r.Error),
	}
	if r.Duration > 0 {
		seconds := r.Duration.Seconds()
		row.Duration = &seconds
	}
	if r.Result == nil {
		row.Status = models.GenerationStatusFailed
		return row, nil
	}
	result, err := json.Marshal(r.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	row.Result = StrPointer(string(result))
	return row, nil
}

// FindGeneration loads one history row by request id.
func FindGeneration(ctx context.Context, db *gorm.DB, requestID string) (*models.OutfitGeneration, error) {
	var row models.OutfitGeneration
	if err := db.WithContext(ctx).Where("request_id = ?", requestID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// PruneGenerations deletes rows created before cutoff and returns how many went.
func PruneGenerations(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.OutfitGeneration{})
	return result.RowsAffected, result.Error
}
