package performance

import "time"

// Snapshot holds the learner counters used to build a summary prompt.
// The last three fields are optional and omitted from the prompt when nil.
type Snapshot struct {
	CoursesCompleted   int        `json:"coursesCompleted"`
	AverageScore       float64    `json:"averageScore"`
	BadgesEarned       int        `json:"badgesEarned"`
	CertificatesIssued int        `json:"certificatesIssued"`
	TimeSpent          float64    `json:"timeSpent"`
	LastActive         *time.Time `json:"lastActive,omitempty"`
	LearningStreak     *int       `json:"learningStreak,omitempty"`
	CompletionRate     *float64   `json:"completionRate,omitempty"`
}
