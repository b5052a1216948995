/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultQuestionCount = 10
	minReapInterval      = time.Millisecond
)

// Notifier delivers outbound messages to a single connection. Send is
// called with the manager lock held and must not block.
type Notifier interface {
	Send(conn ConnID, msg any)
}

// NotifierFunc adapts a function into a Notifier.
type NotifierFunc func(conn ConnID, msg any)

// Send calls f(conn, msg).
func (f NotifierFunc) Send(conn ConnID, msg any) { f(conn, msg) }

// Option configures a Manager.
type Option func(*Manager)

// WithQuestionCount sets how many questions each game draws from the pool.
func WithQuestionCount(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.questionCount = n
		}
	}
}

// WithQuestionDelay paces games by waiting d between a score update and the
// next question. Zero dispatches immediately.
func WithQuestionDelay(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.questionDelay = d
		}
	}
}

// WithRevealAnswers includes the correct answer in outbound questions.
func WithRevealAnswers(reveal bool) Option {
	return func(m *Manager) { m.revealAnswers = reveal }
}

// WithIdleTimeout expires rooms with no activity for d. Zero disables expiry.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

// WithRand sets the source used to draw question selections.
func WithRand(rng *rand.Rand) Option {
	return func(m *Manager) {
		if rng != nil {
			m.rng = rng
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager is the room session manager. It owns every room and seated
// player; all methods are safe for concurrent use and each runs as one
// atomic step under a single lock.
type Manager struct {
	mu    sync.Mutex
	rooms map[string]*Room
	conns map[ConnID]*Room // seated connection -> room
	pool  *Pool

	notifier Notifier
	logger   *zap.Logger
	rng      *rand.Rand
	now      func() time.Time

	questionCount int
	questionDelay time.Duration
	revealAnswers bool
	idleTimeout   time.Duration
}

// NewManager creates a Manager with no pool installed. Joins are rejected
// with ErrPoolNotReady until SetPool is called.
//
// Precondition: notifier must be non-nil.
func NewManager(notifier Notifier, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		rooms:         make(map[string]*Room),
		conns:         make(map[ConnID]*Room),
		notifier:      notifier,
		logger:        logger,
		rng:           rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:           time.Now,
		questionCount: defaultQuestionCount,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// SetPool installs the question pool. Games already in progress keep
// the selection they drew. Nil and empty pools are ignored.
func (m *Manager) SetPool(p *Pool) {
	if p == nil || p.Len() == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.pool = p

	m.logger.Debug("question pool installed", zap.Int("questions", p.Len()))
}

// Ready reports whether a question pool is installed.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.pool != nil
}

// Join seats conn in roomToken and starts the game once the room holds two
// players. A connection already seated elsewhere leaves that room first;
// joining the room it already sits in only updates the display name.
func (m *Manager) Join(conn ConnID, displayName, roomToken string) error {
	name, token, err := normalizeJoin(displayName, roomToken)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pool == nil {
		return ErrPoolNotReady
	}

	now := m.now()
	room := m.rooms[token]

	prev, seated := m.conns[conn]
	if seated && prev == room {
		p := room.player(conn)
		p.DisplayName = name
		room.lastActive = now
		m.broadcastScoresLocked(room)
		return nil
	}

	if room != nil && room.full() {
		return fmt.Errorf("%w: %s", ErrRoomFull, token)
	}

	if seated {
		m.leaveLocked(conn, prev)
	}

	if room == nil {
		room = newRoom(token, now)
		m.rooms[token] = room
	}

	room.players = append(room.players, &Player{
		ID:          conn,
		DisplayName: name,
		RoomToken:   token,
		JoinedAt:    now,
	})
	room.lastActive = now
	m.conns[conn] = room

	m.logger.Info("player joined",
		zap.String("room", token),
		zap.String("conn", string(conn)),
		zap.String("name", name),
		zap.Int("players", len(room.players)),
	)

	if len(room.players) == maxPlayers && !room.started {
		m.startGameLocked(room)
	}

	return nil
}

// StartGame starts the game in a room holding two players. It is a no-op
// for a room whose game is already running.
func (m *Manager) StartGame(roomToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, err := m.startableRoomLocked(roomToken)
	if err != nil {
		return err
	}
	if room.started {
		return nil
	}

	m.startGameLocked(room)

	return nil
}

// RestartGame abandons the current game, announces the restart and starts
// a fresh one with a new selection.
func (m *Manager) RestartGame(roomToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, err := m.startableRoomLocked(roomToken)
	if err != nil {
		return err
	}

	m.restartGameLocked(room)

	return nil
}

// Restart restarts the game in the room conn is seated in.
func (m *Manager) Restart(conn ConnID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.conns[conn]
	if !ok {
		m.logger.Debug("restart from unknown player", zap.String("conn", string(conn)))
		return ErrUnknownPlayer
	}
	if len(room.players) != maxPlayers {
		return ErrNotEnoughPlayers
	}

	m.restartGameLocked(room)

	return nil
}

// SubmitAnswer scores conn's answer to the active question and advances
// the room. A second answer to the same question is ignored. When
// questionIndex is non-nil it must match the active question.
func (m *Manager) SubmitAnswer(conn ConnID, answer string, questionIndex *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.conns[conn]
	if !ok {
		m.logger.Debug("answer from unknown player", zap.String("conn", string(conn)))
		return ErrUnknownPlayer
	}

	p := room.player(conn)
	if p == nil {
		m.logger.Warn("connection mapped to room without its player",
			zap.String("conn", string(conn)),
			zap.String("room", room.token),
		)
		delete(m.conns, conn)
		return ErrUnknownPlayer
	}

	// An answer for a question the room has moved past is a duplicate.
	if room.started && questionIndex != nil && *questionIndex < room.index {
		m.logger.Debug("ignoring duplicate answer",
			zap.String("room", room.token),
			zap.String("conn", string(conn)),
			zap.Int("question", *questionIndex),
			zap.Int("active", room.index),
		)
		return nil
	}

	q, ok := room.activeQuestion()
	if !ok {
		return ErrNoActiveQuestion
	}

	if questionIndex != nil && *questionIndex != room.index {
		return fmt.Errorf("%w: got %d, active %d", ErrStaleAnswer, *questionIndex, room.index)
	}

	if p.Answered {
		return nil
	}

	correct := q.IsCorrect(answer)
	if correct {
		p.Score++
	} else {
		p.Score--
	}
	p.Answered = true
	room.lastActive = m.now()

	m.logger.Debug("answer scored",
		zap.String("room", room.token),
		zap.String("name", p.DisplayName),
		zap.Int("question", room.index),
		zap.Bool("correct", correct),
		zap.Int("score", p.Score),
	)

	m.broadcastScoresLocked(room)

	room.index++

	if room.index >= len(room.selection) {
		m.endGameLocked(room)
		return nil
	}

	if m.questionDelay > 0 {
		room.pending = true
		generation := room.generation
		time.AfterFunc(m.questionDelay, func() {
			m.dispatchPaced(room, generation)
		})
		return nil
	}

	m.dispatchQuestionLocked(room)

	return nil
}

// EndGame ends the game in roomToken, announces the outcome and clears
// the room.
func (m *Manager) EndGame(roomToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomToken]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRoom, roomToken)
	}

	m.endGameLocked(room)

	return nil
}

// Disconnect removes conn from its room, ending a running game that drops
// below two players. Unknown connections are ignored.
func (m *Manager) Disconnect(conn ConnID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.conns[conn]
	if !ok {
		m.logger.Debug("disconnect from unseated connection", zap.String("conn", string(conn)))
		return
	}

	m.leaveLocked(conn, room)
}

// BroadcastScores sends the room's score snapshot to every member.
func (m *Manager) BroadcastScores(roomToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomToken]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRoom, roomToken)
	}

	m.broadcastScoresLocked(room)

	return nil
}

// Reap expires rooms idle since before now minus the idle timeout and
// returns how many were expired.
func (m *Manager) Reap(now time.Time) int {
	if m.idleTimeout <= 0 {
		return 0
	}

	cutoff := now.Add(-m.idleTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	expired := 0
	for _, room := range m.rooms {
		if !room.lastActive.Before(cutoff) {
			continue
		}

		m.broadcastLocked(room, RoomMessage{Type: TypeRoomExpired, RoomToken: room.token})

		m.logger.Info("room expired",
			zap.String("room", room.token),
			zap.Duration("idle", now.Sub(room.lastActive)),
		)

		if room.started {
			m.endGameLocked(room)
		} else {
			m.clearRoomLocked(room)
		}
		expired++
	}

	return expired
}

// Run expires idle rooms until ctx is done. It returns immediately when no
// idle timeout is configured.
func (m *Manager) Run(ctx context.Context) {
	if m.idleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(max(m.idleTimeout/2, minReapInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Reap(m.now())
		}
	}
}

// Room returns a copy of the named room's state.
func (m *Manager) Room(roomToken string) (RoomView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomToken]
	if !ok {
		return RoomView{}, false
	}

	return room.view(), true
}

// RoomCount returns the number of rooms with at least one player.
func (m *Manager) RoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.rooms)
}

// PlayerCount returns the number of seated players across all rooms.
func (m *Manager) PlayerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.conns)
}

func (m *Manager) startableRoomLocked(roomToken string) (*Room, error) {
	if m.pool == nil {
		return nil, ErrPoolNotReady
	}

	room, ok := m.rooms[roomToken]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoom, roomToken)
	}
	if len(room.players) != maxPlayers {
		return nil, ErrNotEnoughPlayers
	}

	return room, nil
}

func (m *Manager) startGameLocked(room *Room) {
	room.started = true
	room.pending = false
	room.generation++

	for _, p := range room.players {
		p.Score = 0
		p.Answered = false
	}

	room.selection = m.pool.Draw(m.rng, m.questionCount)
	room.index = 0
	room.lastActive = m.now()

	m.logger.Info("game started",
		zap.String("room", room.token),
		zap.Int("questions", len(room.selection)),
	)

	m.broadcastLocked(room, RoomMessage{Type: TypeGameStarted, RoomToken: room.token})
	m.dispatchQuestionLocked(room)
}

func (m *Manager) restartGameLocked(room *Room) {
	room.started = false

	m.logger.Info("game restarting", zap.String("room", room.token))

	m.broadcastLocked(room, RoomMessage{Type: TypeRestartGame, RoomToken: room.token})
	m.startGameLocked(room)
}

func (m *Manager) dispatchPaced(room *Room, generation uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room.generation != generation || !room.pending {
		return
	}

	room.pending = false
	m.dispatchQuestionLocked(room)
}

func (m *Manager) dispatchQuestionLocked(room *Room) {
	for _, p := range room.players {
		p.Answered = false
	}

	q := room.selection[room.index]

	msg := QuestionMessage{
		Type:      TypeQuestion,
		RoomToken: room.token,
		Index:     room.index,
		Total:     len(room.selection),
		Prompt:    q.Prompt,
		Choices:   q.Choices,
	}
	if m.revealAnswers {
		msg.CorrectAnswer = q.CorrectAnswer
	}

	m.broadcastLocked(room, msg)
	m.broadcastScoresLocked(room)
}

func (m *Manager) endGameLocked(room *Room) {
	players := make(map[ConnID]PlayerScore, len(room.players))
	for _, p := range room.players {
		players[p.ID] = PlayerScore{
			DisplayName: p.DisplayName,
			RoomToken:   room.token,
			Score:       p.Score,
		}
	}

	m.broadcastLocked(room, GameEndedMessage{
		Type:      TypeGameEnded,
		RoomToken: room.token,
		Players:   players,
	})

	if len(room.players) == maxPlayers {
		a, b := room.players[0], room.players[1]

		outcomeA, outcomeB := OutcomeDraw, OutcomeDraw
		switch {
		case a.Score > b.Score:
			outcomeA, outcomeB = OutcomeWon, OutcomeLost
		case b.Score > a.Score:
			outcomeA, outcomeB = OutcomeLost, OutcomeWon
		}

		m.sendResultLocked(room, a, outcomeA)
		m.sendResultLocked(room, b, outcomeB)
	} else {
		m.logger.Debug("skipping outcome, room does not hold two players",
			zap.String("room", room.token),
			zap.Int("players", len(room.players)),
		)
	}

	m.broadcastScoresLocked(room)

	m.logger.Info("game ended",
		zap.String("room", room.token),
		zap.Any("scores", room.scores()),
	)

	m.clearRoomLocked(room)
}

func (m *Manager) sendResultLocked(room *Room, p *Player, outcome string) {
	m.notifier.Send(p.ID, GameResultMessage{
		Type:      TypeGameResult,
		RoomToken: room.token,
		Outcome:   outcome,
		Message:   resultText(outcome),
	})
}

// leaveLocked removes conn from room, ending the game or deleting the room
// as needed.
func (m *Manager) leaveLocked(conn ConnID, room *Room) {
	delete(m.conns, conn)

	if !room.removePlayer(conn) {
		return
	}

	m.logger.Info("player left",
		zap.String("room", room.token),
		zap.String("conn", string(conn)),
		zap.Int("players", len(room.players)),
	)

	switch {
	case room.started && len(room.players) < maxPlayers:
		m.endGameLocked(room)
	case len(room.players) == 0:
		m.clearRoomLocked(room)
	}
}

func (m *Manager) clearRoomLocked(room *Room) {
	for _, p := range room.players {
		delete(m.conns, p.ID)
	}

	room.reset()

	if m.rooms[room.token] == room {
		delete(m.rooms, room.token)
	}
}

func (m *Manager) broadcastScoresLocked(room *Room) {
	m.broadcastLocked(room, ScoresMessage{
		Type:      TypeUpdateScores,
		RoomToken: room.token,
		Scores:    room.scores(),
	})
}

func (m *Manager) broadcastLocked(room *Room, msg any) {
	for _, p := range room.players {
		m.notifier.Send(p.ID, msg)
	}
}
