/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/stretchr/testify/require"
)

// recorder is a Notifier that keeps every message per connection.
type recorder struct {
	mu   sync.Mutex
	msgs map[ConnID][]any
}

func newRecorder() *recorder {
	return &recorder{msgs: make(map[ConnID][]any)}
}

func (r *recorder) Send(conn ConnID, msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs[conn] = append(r.msgs[conn], msg)
}

func (r *recorder) all(conn ConnID) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.msgs[conn]...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = make(map[ConnID][]any)
}

func messagesOf[T any](r *recorder, conn ConnID) []T {
	var out []T
	for _, m := range r.all(conn) {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func typeOf(msg any) string {
	switch m := msg.(type) {
	case RoomMessage:
		return m.Type
	case QuestionMessage:
		return m.Type
	case ScoresMessage:
		return m.Type
	case GameEndedMessage:
		return m.Type
	case GameResultMessage:
		return m.Type
	default:
		return fmt.Sprintf("%T", msg)
	}
}

func types(r *recorder, conn ConnID) []string {
	var out []string
	for _, m := range r.all(conn) {
		out = append(out, typeOf(m))
	}
	return out
}

// testingT is satisfied by both *testing.T and *rapid.T.
type testingT interface {
	require.TestingT
	Helper()
}

// testQuestions returns n questions whose correct answer is "right".
func testQuestions(n int) []Question {
	qs := make([]Question, n)
	for i := range qs {
		qs[i] = Question{
			Prompt:        fmt.Sprintf("Question %d?", i),
			Choices:       []string{"right", "wrong"},
			CorrectAnswer: "right",
		}
	}
	return qs
}

func testPool(t testingT, n int) *Pool {
	t.Helper()
	p, err := NewPool(testQuestions(n))
	require.NoError(t, err)
	return p
}

func newTestManager(t testingT, poolSize int, opts ...Option) (*Manager, *recorder) {
	t.Helper()
	rec := newRecorder()
	opts = append([]Option{WithRand(rand.New(rand.NewPCG(1, 2)))}, opts...)
	m := NewManager(rec, nil, opts...)
	if poolSize > 0 {
		m.SetPool(testPool(t, poolSize))
	}
	return m, rec
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
