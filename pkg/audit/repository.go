package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/panelbio/riskserver/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AssessmentLog is the persistence model for assessment analytics. Raw form
// payloads and computed risks are kept as JSON for ad-hoc review.
type AssessmentLog struct {
	ID        uuid.UUID         `gorm:"primaryKey;column:id"`
	RequestID string            `gorm:"column:request_id"`
	Request   datatypes.JSONMap `gorm:"column:request"`
	Risks     datatypes.JSONMap `gorm:"column:risks"`
	LatencyMs float64           `gorm:"column:latency_ms"`
	CreatedAt time.Time         `gorm:"column:created_at"`
}

// TableName overrides gorm naming.
func (AssessmentLog) TableName() string {
	return "assessment_logs"
}

// Repository handles assessment log queries.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&AssessmentLog{})
}

func (r *Repository) RecordAssessment(ctx context.Context, requestID string, req models.AssessmentRequest, risks []models.DiseaseRisk, latency time.Duration) error {
	riskMap := make(map[string]interface{}, len(risks))
	for _, risk := range risks {
		riskMap[risk.Disease] = risk.Percent
	}

	log := AssessmentLog{
		ID:        uuid.New(),
		RequestID: requestID,
		Request:   toJSONMap(req),
		Risks:     datatypes.JSONMap(riskMap),
		LatencyMs: float64(latency.Microseconds()) / 1000.0,
		CreatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&log).Error
}

// Recent returns the most recent assessment logs up to limit.
func (r *Repository) Recent(ctx context.Context, limit int) ([]AssessmentLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []AssessmentLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func toJSONMap(v interface{}) datatypes.JSONMap {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSONMap{}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return datatypes.JSONMap{}
	}
	return datatypes.JSONMap(m)
}
