package speech

import "time"

// TTSResponse 语音合成响应
type TTSResponse struct {
	AudioData   []byte    `json:"-"`
	Format      string    `json:"format"`
	ContentType string    `json:"contentType"`
	Voice       string    `json:"voice"`
	Provider    string    `json:"provider"`
	Duration    int64     `json:"duration,omitempty"` // milliseconds
	RequestID   string    `json:"requestId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
