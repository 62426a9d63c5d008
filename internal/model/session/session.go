package session

import (
	"time"

	"github.com/labelscan/backend/internal/model/label"
)

// Session binds one label analysis to an opaque identifier for a limited time.
type Session struct {
	ID        string          `json:"id"`
	Analysis  *label.Analysis `json:"analysis"`
	CreatedAt time.Time       `json:"createdAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}
