package speech

// TTSRequest 语音合成请求
type TTSRequest struct {
	Text   string  `json:"text"`
	Voice  string  `json:"voice"`  // alloy, echo, fable, onyx, nova, shimmer
	Speed  float32 `json:"speed"`  // 语速倍率，0 表示使用默认值
	Format string  `json:"format"` // 目前只输出 mp3
}
