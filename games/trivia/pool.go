/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pool is the immutable set of questions games draw from.
type Pool struct {
	questions []Question
}

// NewPool validates and copies questions into a Pool.
//
// Postcondition: Returns a non-empty Pool, or an error naming the first invalid question.
func NewPool(questions []Question) (*Pool, error) {
	if len(questions) == 0 {
		return nil, errors.New("question pool is empty")
	}

	qs := make([]Question, len(questions))
	for i, q := range questions {
		if err := q.validate(); err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		q.Choices = append([]string(nil), q.Choices...)
		qs[i] = q
	}

	return &Pool{questions: qs}, nil
}

// LoadPool reads a question file. Files ending in .yaml or .yml are decoded
// as YAML, anything else as JSON. Both hold a list of questions.
func LoadPool(path string) (*Pool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading question file: %w", err)
	}

	var questions []Question

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &questions)
	default:
		err = json.Unmarshal(data, &questions)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	pool, err := NewPool(questions)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return pool, nil
}

// Len returns the number of questions in the pool.
func (p *Pool) Len() int {
	return len(p.questions)
}

// Draw returns min(n, Len()) distinct questions sampled uniformly without
// replacement, using a partial Fisher-Yates shuffle over the pool indices.
func (p *Pool) Draw(rng *rand.Rand, n int) []Question {
	if n > len(p.questions) {
		n = len(p.questions)
	}
	if n <= 0 {
		return nil
	}

	idx := make([]int, len(p.questions))
	for i := range idx {
		idx[i] = i
	}

	out := make([]Question, 0, n)
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
		out = append(out, p.questions[idx[i]])
	}

	return out
}
