package speech

import "strings"

// Supported voice names. Any other value is rejected before synthesis.
const (
	VoiceAlloy   = "alloy"
	VoiceEcho    = "echo"
	VoiceFable   = "fable"
	VoiceOnyx    = "onyx"
	VoiceNova    = "nova"
	VoiceShimmer = "shimmer"

	DefaultVoice = VoiceAlloy
)

var supportedVoices = []string{VoiceAlloy, VoiceEcho, VoiceFable, VoiceOnyx, VoiceNova, VoiceShimmer}

// volcengineSpeakers 把对外暴露的声音名映射到火山引擎的音色 ID。
var volcengineSpeakers = map[string]string{
	VoiceAlloy:   "en_female_amy_jupiter_bigtts",
	VoiceEcho:    "en_male_glen_emo_v2_mars_bigtts",
	VoiceFable:   "en_male_corey_emo_v2_mars_bigtts",
	VoiceOnyx:    "en_male_sylus_emo_v2_mars_bigtts",
	VoiceNova:    "en_female_skye_emo_v2_mars_bigtts",
	VoiceShimmer: "en_female_candice_emo_v2_mars_bigtts",
}

// SupportedVoices returns the accepted voice names in a stable order.
func SupportedVoices() []string {
	out := make([]string, len(supportedVoices))
	copy(out, supportedVoices)
	return out
}

// NormalizeVoice lowercases and trims a voice name.
func NormalizeVoice(voice string) string {
	return strings.ToLower(strings.TrimSpace(voice))
}

// IsSupportedVoice reports whether voice is one of the enumerated names.
func IsSupportedVoice(voice string) bool {
	normalized := NormalizeVoice(voice)
	for _, v := range supportedVoices {
		if v == normalized {
			return true
		}
	}
	return false
}

// VolcengineSpeaker maps a supported voice to its Volcengine speaker id.
func VolcengineSpeaker(voice string) string {
	return volcengineSpeakers[NormalizeVoice(voice)]
}
