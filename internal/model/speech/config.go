package speech

// SpeechConfig carries the Volcengine credentials and recognition/playback defaults.
type SpeechConfig struct {
	AppID          string `json:"appId"`
	AccessToken    string `json:"accessToken"`
	Region         string `json:"region"`
	ConcurrentMode bool   `json:"concurrentMode"` // concurrent ASR resource instead of the duration one

	ASRLanguage string `json:"asrLanguage"`

	TTSVoice    string  `json:"ttsVoice"`
	TTSSpeed    float32 `json:"ttsSpeed"`
	TTSVolume   float32 `json:"ttsVolume"`
	TTSLanguage string  `json:"ttsLanguage"`

	Timeout int `json:"timeout"` // seconds
}
