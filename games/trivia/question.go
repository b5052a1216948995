/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"errors"
	"slices"
	"strings"
)

// Question is a single trivia prompt. It is never mutated after the pool loads.
type Question struct {
	Prompt        string   `json:"prompt" yaml:"prompt"`
	Choices       []string `json:"choices" yaml:"choices"`
	CorrectAnswer string   `json:"correctAnswer" yaml:"correctAnswer"`
}

func (q Question) validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return errors.New("prompt must not be empty")
	}
	if q.CorrectAnswer == "" {
		return errors.New("correctAnswer must not be empty")
	}
	if len(q.Choices) > 0 && !slices.Contains(q.Choices, q.CorrectAnswer) {
		return errors.New("correctAnswer must be one of the choices")
	}
	return nil
}

// IsCorrect reports whether answer matches the correct answer exactly.
func (q Question) IsCorrect(answer string) bool {
	return answer == q.CorrectAnswer
}
