package model

import (
	"time"

	"github.com/cloudwego/eino/schema"
)

// SessionSnapshot is the short-term memory kept between processes for a user:
// the rolling conversation window and the last recommendation made.
//
// session:{user_id} -> SessionSnapshot (JSON, TTL)
type SessionSnapshot struct {
	UserID             string            `json:"user_id"`
	Window             []*schema.Message `json:"window"`
	LastRecommendation string            `json:"last_recommendation"`
	SavedAt            time.Time         `json:"saved_at"`
}
