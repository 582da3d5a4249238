package profile

// DefaultID is the profile used when a session does not name one.
const DefaultID = "educhain"

// Profile describes how an assistant greets, frames prompts and speaks.
type Profile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Greeting string `json:"greeting"`
	Context  string `json:"context"`
	VoiceID  string `json:"voiceId,omitempty"`
	Language string `json:"language"`
}

// Seed returns the built-in profiles.
func Seed() []Profile {
	return []Profile{
		{
			ID:       DefaultID,
			Name:     "EduChain Assistant",
			Greeting: "Hi! I'm your AI assistant. How can I help you today?",
			Context:  "You are an AI learning assistant helping with blockchain and web3 education.",
			VoiceID:  "en_default",
			Language: "en-US",
		},
		{
			ID:       "learning-coach",
			Name:     "Learning Coach",
			Greeting: "Welcome back! Ready to pick up where you left off?",
			Context:  "You are a supportive learning coach who reviews course progress and suggests next steps.",
			VoiceID:  "en_default",
			Language: "en-US",
		},
	}
}
