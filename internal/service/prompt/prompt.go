// Package prompt renders the text sent to the completion backend.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/educhain/assistant/backend/internal/model/performance"
)

// DefaultContext frames chat prompts when a profile carries no context of its own.
const DefaultContext = "You are an AI learning assistant helping with blockchain and web3 education."

// DateLayout is used for the "Last Active" line.
const DateLayout = "1/2/2006"

// Chat wraps message with the profile context and an optional additional context line.
func Chat(profileContext, additional, message string) string {
	if strings.TrimSpace(profileContext) == "" {
		profileContext = DefaultContext
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Context: %s\n", profileContext)
	if additional = strings.TrimSpace(additional); additional != "" {
		fmt.Fprintf(&b, "Additional context: %s\n", additional)
	}
	fmt.Fprintf(&b, "User message: %s\n\n", message)
	b.WriteString("Please provide a helpful, informative, and engaging response.")
	return b.String()
}

var focusPoints = []string{
	"Progress and achievements",
	"Areas of strength",
	"Encouragement for continued learning",
	"Suggestions for next steps",
}

// Performance renders a learner snapshot into a summary request.
// Optional counters that are unset are left out.
func Performance(s performance.Snapshot) string {
	var b strings.Builder
	b.WriteString("Please analyze the following learning performance metrics and provide an encouraging summary:\n\n")

	fmt.Fprintf(&b, "- Courses Completed: %d\n", s.CoursesCompleted)
	fmt.Fprintf(&b, "- Average Score: %s%%\n", number(s.AverageScore))
	fmt.Fprintf(&b, "- Badges Earned: %d\n", s.BadgesEarned)
	fmt.Fprintf(&b, "- Certificates Issued: %d\n", s.CertificatesIssued)
	fmt.Fprintf(&b, "- Time Spent Learning: %s hours\n", number(s.TimeSpent))
	if s.LearningStreak != nil {
		fmt.Fprintf(&b, "- Learning Streak: %d days\n", *s.LearningStreak)
	}
	if s.CompletionRate != nil {
		fmt.Fprintf(&b, "- Course Completion Rate: %s%%\n", number(*s.CompletionRate))
	}
	if s.LastActive != nil {
		fmt.Fprintf(&b, "- Last Active: %s\n", s.LastActive.Format(DateLayout))
	}

	b.WriteString("\nFocus on:\n")
	for i, point := range focusPoints {
		fmt.Fprintf(&b, "%d. %s\n", i+1, point)
	}
	return b.String()
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
