package domain

import "strings"

// Question is one generated multiple-choice record as delivered by the
// generation pipeline: the question text, its options in presentation order,
// and the designated correct answer.
type Question struct {
	Text          string
	Options       []string
	CorrectAnswer string
}

// Distractors returns the options that are not the correct answer.
// Blank options and options textually identical to the correct answer
// (after trimming) are excluded.
func (q Question) Distractors() []string {
	correct := strings.TrimSpace(q.CorrectAnswer)
	distractors := make([]string, 0, len(q.Options))
	for _, opt := range q.Options {
		trimmed := strings.TrimSpace(opt)
		if trimmed == "" || trimmed == correct {
			continue
		}
		distractors = append(distractors, trimmed)
	}
	return distractors
}
