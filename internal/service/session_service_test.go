package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aasprep/practest-backend/internal/config"
	"github.com/aasprep/practest-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// In-memory fakes for the engine's store contracts.

type fakeSessionStore struct {
	sessions map[uuid.UUID]*model.TestSession

	// staleReads > 0 makes GetByID serve that many reads as if the row were
	// still open, reproducing a read that raced a concurrent submit.
	staleReads int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[uuid.UUID]*model.TestSession)}
}

func (f *fakeSessionStore) Create(ctx context.Context, s *model.TestSession) error {
	s.ID = uuid.New()
	s.StartedAt = time.Now()
	stored := *s
	f.sessions[s.ID] = &stored
	return nil
}

func (f *fakeSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*model.TestSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *s
	if f.staleReads > 0 {
		f.staleReads--
		copied.CompletedAt = nil
		copied.Score = nil
		copied.TotalQuestions = nil
		copied.Answers = nil
	}
	return &copied, nil
}

func (f *fakeSessionStore) Complete(ctx context.Context, id uuid.UUID, score, totalQuestions, timeSpentSeconds int, answers model.AnswerMap) (bool, error) {
	s, ok := f.sessions[id]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if s.CompletedAt != nil {
		return false, nil
	}
	now := time.Now()
	s.CompletedAt = &now
	s.Score = &score
	s.TotalQuestions = &totalQuestions
	s.TimeSpentSeconds = &timeSpentSeconds
	s.Answers = answers
	return true, nil
}

func (f *fakeSessionStore) ListByUser(ctx context.Context, userID int) ([]model.TestSession, error) {
	var out []model.TestSession
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

type fakeQuestionStore struct {
	bank []model.Question
}

func (f *fakeQuestionStore) Sample(ctx context.Context, subject string, limit int) ([]model.Question, error) {
	var out []model.Question
	for _, q := range f.bank {
		if subject != "" && q.Subject != subject {
			continue
		}
		out = append(out, q)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeQuestionStore) GetByIDs(ctx context.Context, ids []int64) ([]model.Question, error) {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []model.Question
	for _, q := range f.bank {
		if want[q.ID] {
			out = append(out, q)
		}
	}
	return out, nil
}

type fakeCheckpointStore struct {
	checkpoints []model.ProgressCheckpoint
	failCreate  bool
}

func (f *fakeCheckpointStore) Create(ctx context.Context, cp *model.ProgressCheckpoint) error {
	if f.failCreate {
		return errors.New("insert failed")
	}
	cp.ID = int64(len(f.checkpoints) + 1)
	cp.SavedAt = time.Now()
	f.checkpoints = append(f.checkpoints, *cp)
	return nil
}

func (f *fakeCheckpointStore) LatestBySession(ctx context.Context, sessionID uuid.UUID) (*model.ProgressCheckpoint, error) {
	for i := len(f.checkpoints) - 1; i >= 0; i-- {
		if f.checkpoints[i].SessionID == sessionID {
			cp := f.checkpoints[i]
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeAnswerStore struct {
	bySession map[uuid.UUID]model.AnswerMap
}

func (f *fakeAnswerStore) MapBySession(ctx context.Context, sessionID uuid.UUID) (model.AnswerMap, error) {
	return f.bySession[sessionID], nil
}

type fakeAnswerCache struct {
	answers map[uuid.UUID]model.AnswerMap
	cleared []uuid.UUID
}

func newFakeAnswerCache() *fakeAnswerCache {
	return &fakeAnswerCache{answers: make(map[uuid.UUID]model.AnswerMap)}
}

func (f *fakeAnswerCache) Save(ctx context.Context, sessionID uuid.UUID, questionID int64, optionIndex int) error {
	if f.answers[sessionID] == nil {
		f.answers[sessionID] = make(model.AnswerMap)
	}
	f.answers[sessionID][questionID] = optionIndex
	return nil
}

func (f *fakeAnswerCache) Snapshot(ctx context.Context, sessionID uuid.UUID) (model.AnswerMap, error) {
	return f.answers[sessionID], nil
}

func (f *fakeAnswerCache) Clear(ctx context.Context, sessionID uuid.UUID) error {
	delete(f.answers, sessionID)
	f.cleared = append(f.cleared, sessionID)
	return nil
}

type fakeQueue struct {
	enqueued map[string][][]byte
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{enqueued: make(map[string][][]byte)}
}

func (f *fakeQueue) Enqueue(ctx context.Context, queue string, payload []byte) error {
	f.enqueued[queue] = append(f.enqueued[queue], payload)
	return nil
}

type engineFixture struct {
	svc         *SessionService
	sessions    *fakeSessionStore
	questions   *fakeQuestionStore
	checkpoints *fakeCheckpointStore
	answers     *fakeAnswerStore
	cache       *fakeAnswerCache
	queue       *fakeQueue
	cfg         *config.Config
}

func newEngineFixture(bank []model.Question) *engineFixture {
	f := &engineFixture{
		sessions:    newFakeSessionStore(),
		questions:   &fakeQuestionStore{bank: bank},
		checkpoints: &fakeCheckpointStore{},
		answers:     &fakeAnswerStore{bySession: make(map[uuid.UUID]model.AnswerMap)},
		cache:       newFakeAnswerCache(),
		queue:       newFakeQueue(),
		cfg: &config.Config{
			TestDuration:       45 * time.Minute,
			CheckpointInterval: 30 * time.Second,
			QuestionLimit:      50,
		},
	}
	f.svc = NewSessionService(
		f.sessions, f.questions, f.checkpoints, f.answers,
		f.cache, f.queue, f.cfg, zerolog.Nop(),
	)
	return f
}

func defaultBank() []model.Question {
	return []model.Question{q(1, 0), q(2, 1), q(3, 2)}
}

const testUserID = 7

func startSession(t *testing.T, f *engineFixture) *StartedSession {
	t.Helper()
	started, err := f.svc.Start(context.Background(), testUserID, model.StartSessionRequest{})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return started
}

func TestStartSession(t *testing.T) {
	f := newEngineFixture(defaultBank())

	started := startSession(t, f)

	if started.Session.ID == uuid.Nil {
		t.Fatal("expected a session id")
	}
	if len(started.Session.QuestionIDs) != 3 {
		t.Fatalf("question_ids = %d, want 3", len(started.Session.QuestionIDs))
	}
	if len(started.Questions) != 3 {
		t.Fatalf("questions = %d, want 3", len(started.Questions))
	}
	if started.DurationSeconds != 45*60 {
		t.Fatalf("duration = %d, want %d", started.DurationSeconds, 45*60)
	}
	if started.Session.Completed() {
		t.Fatal("new session must be open")
	}
}

func TestStartSessionEmptyBank(t *testing.T) {
	f := newEngineFixture(nil)

	_, err := f.svc.Start(context.Background(), testUserID, model.StartSessionRequest{})
	if !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("err = %v, want ErrNoQuestions", err)
	}
}

func TestStartSessionSubjectFilter(t *testing.T) {
	bank := defaultBank()
	bank[2].Subject = "Verbal Reasoning"
	f := newEngineFixture(bank)

	started, err := f.svc.Start(context.Background(), testUserID, model.StartSessionRequest{Subject: "Verbal Reasoning"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if len(started.Questions) != 1 {
		t.Fatalf("questions = %d, want 1", len(started.Questions))
	}

	_, err = f.svc.Start(context.Background(), testUserID, model.StartSessionRequest{Subject: "History"})
	if !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("err = %v, want ErrNoQuestions", err)
	}
}

func TestRecordAnswer(t *testing.T) {
	f := newEngineFixture(defaultBank())
	started := startSession(t, f)
	sessionID := started.Session.ID

	if err := f.svc.RecordAnswer(context.Background(), sessionID, testUserID, 1, 2); err != nil {
		t.Fatalf("RecordAnswer failed: %v", err)
	}

	// Last write wins.
	if err := f.svc.RecordAnswer(context.Background(), sessionID, testUserID, 1, 0); err != nil {
		t.Fatalf("RecordAnswer failed: %v", err)
	}
	if got := f.cache.answers[sessionID][1]; got != 0 {
		t.Fatalf("cached answer = %d, want 0", got)
	}

	if len(f.queue.enqueued[config.WorkerKey.PersistAnswersQueue]) != 2 {
		t.Fatalf("enqueued = %d, want 2", len(f.queue.enqueued[config.WorkerKey.PersistAnswersQueue]))
	}
}

func TestRecordAnswerGuards(t *testing.T) {
	f := newEngineFixture(defaultBank())
	started := startSession(t, f)
	sessionID := started.Session.ID

	if err := f.svc.RecordAnswer(context.Background(), sessionID, testUserID, 99, 0); !errors.Is(err, ErrQuestionNotInSession) {
		t.Fatalf("err = %v, want ErrQuestionNotInSession", err)
	}
	if err := f.svc.RecordAnswer(context.Background(), sessionID, testUserID, 1, 4); !errors.Is(err, ErrOptionOutOfRange) {
		t.Fatalf("err = %v, want ErrOptionOutOfRange", err)
	}
	if err := f.svc.RecordAnswer(context.Background(), sessionID, testUserID+1, 1, 0); !errors.Is(err, ErrNotSessionOwner) {
		t.Fatalf("err = %v, want ErrNotSessionOwner", err)
	}
	if err := f.svc.RecordAnswer(context.Background(), uuid.New(), testUserID, 1, 0); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestRecordAnswerAfterSubmit(t *testing.T) {
	f := newEngineFixture(defaultBank())
	started := startSession(t, f)
	sessionID := started.Session.ID

	if _, err := f.svc.Submit(context.Background(), sessionID, testUserID, model.AnswerMap{1: 0}, 60); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	err := f.svc.RecordAnswer(context.Background(), sessionID, testUserID, 2, 1)
	if !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("err = %v, want ErrSessionClosed", err)
	}
}

func TestCheckpoint(t *testing.T) {
	f := newEngineFixture(defaultBank())
	started := startSession(t, f)
	sessionID := started.Session.ID

	cp, err := f.svc.Checkpoint(context.Background(), sessionID, testUserID, model.CheckpointRequest{
		CurrentQuestionIndex: 1,
		Answers:              model.AnswerMap{1: 0},
		TimeRemainingSeconds: 2400,
	})
	if err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	if cp.ID == 0 {
		t.Fatal("expected a persisted checkpoint id")
	}

	// Checkpoints append; they never mutate the session.
	session, _ := f.sessions.GetByID(context.Background(), sessionID)
	if session.Completed() || session.Answers != nil {
		t.Fatal("checkpoint must not touch the session row")
	}

	cp2, err := f.svc.Checkpoint(context.Background(), sessionID, testUserID, model.CheckpointRequest{
		CurrentQuestionIndex: 2,
		TimeRemainingSeconds: 2300,
	})
	if err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	if cp2.ID <= cp.ID {
		t.Fatalf("checkpoint ids must grow: %d then %d", cp.ID, cp2.ID)
	}

	latest, err := f.checkpoints.LatestBySession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("LatestBySession failed: %v", err)
	}
	if latest.CurrentQuestionIndex != 2 {
		t.Fatalf("latest index = %d, want 2", latest.CurrentQuestionIndex)
	}
}

func TestCheckpointInsertFailureQueues(t *testing.T) {
	f := newEngineFixture(defaultBank())
	started := startSession(t, f)
	f.checkpoints.failCreate = true

	cp, err := f.svc.Checkpoint(context.Background(), started.Session.ID, testUserID, model.CheckpointRequest{
		TimeRemainingSeconds: 100,
	})
	if err != nil {
		t.Fatalf("Checkpoint must not surface insert failures: %v", err)
	}
	if cp.ID != 0 {
		t.Fatalf("queued checkpoint id = %d, want 0", cp.ID)
	}
	if len(f.queue.enqueued[config.WorkerKey.PersistCheckpointsQueue]) != 1 {
		t.Fatal("expected the snapshot on the retry queue")
	}
}

func TestCheckpointClosedSession(t *testing.T) {
	f := newEngineFixture(defaultBank())
	started := startSession(t, f)

	if _, err := f.svc.Submit(context.Background(), started.Session.ID, testUserID, nil, 10); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	_, err := f.svc.Checkpoint(context.Background(), started.Session.ID, testUserID, model.CheckpointRequest{})
	if !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("err = %v, want ErrSessionClosed", err)
	}
}

func TestSubmitScores(t *testing.T) {
	f := newEngineFixture(defaultBank())
	started := startSession(t, f)
	sessionID := started.Session.ID

	result, err := f.svc.Submit(context.Background(), sessionID, testUserID, model.AnswerMap{1: 0, 2: 0}, 300)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.Score != 1 || result.TotalQuestions != 2 {
		t.Fatalf("result = %d/%d, want 1/2", result.Score, result.TotalQuestions)
	}
	if result.Percentage != 50 {
		t.Fatalf("percentage = %d, want 50", result.Percentage)
	}

	session, _ := f.sessions.GetByID(context.Background(), sessionID)
	if !session.Completed() {
		t.Fatal("session must be closed after submit")
	}
	if *session.TimeSpentSeconds != 300 {
		t.Fatalf("time_spent = %d, want 300", *session.TimeSpentSeconds)
	}
	if len(f.cache.cleared) != 1 || f.cache.cleared[0] != sessionID {
		t.Fatal("winning submit must clear the live answer cache")
	}
}

func TestSubmitSingleAnswer(t *testing.T) {
	f := newEngineFixture(defaultBank())
	started := startSession(t, f)

	result, err := f.svc.Submit(context.Background(), started.Session.ID, testUserID, model.AnswerMap{1: 0}, 30)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.Score != 1 || result.TotalQuestions != 1 || result.Percentage != 100 {
		t.Fatalf("result = %d/%d (%d%%), want 1/1 (100%%)", result.Score, result.TotalQuestions, result.Percentage)
	}
}

func TestSubmitDanglingAnswersExcluded(t *testing.T) {
	f := newEngineFixture(defaultBank())
	started := startSession(t, f)

	// Question 99 was never presented; its answer must not count at all.
	result, err := f.svc.Submit(context.Background(), started.Session.ID, testUserID, model.AnswerMap{99: 0}, 30)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.Score != 0 || result.TotalQuestions != 0 || result.Percentage != 0 {
		t.Fatalf("result = %d/%d (%d%%), want 0/0 (0%%)", result.Score, result.TotalQuestions, result.Percentage)
	}
}

func TestSubmitIdempotent(t *testing.T) {
	f := newEngineFixture(defaultBank())
	started := startSession(t, f)
	sessionID := started.Session.ID

	first, err := f.svc.Submit(context.Background(), sessionID, testUserID, model.AnswerMap{1: 0, 2: 1, 3: 2}, 120)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// A retry with different answers must return the stored result untouched.
	second, err := f.svc.Submit(context.Background(), sessionID, testUserID, model.AnswerMap{1: 3, 2: 3, 3: 3}, 999)
	if err != nil {
		t.Fatalf("retried Submit failed: %v", err)
	}
	if *second != *first {
		t.Fatalf("retried result %+v differs from first %+v", second, first)
	}

	session, _ := f.sessions.GetByID(context.Background(), sessionID)
	if *session.Score != 3 || *session.TimeSpentSeconds != 120 {
		t.Fatal("retry must not overwrite the stored attempt")
	}
}

func TestSubmitRaceLoserGetsStoredResult(t *testing.T) {
	f := newEngineFixture(defaultBank())
	started := startSession(t, f)
	sessionID := started.Session.ID

	// Simulate the timer-expiry submit landing between the loser's open-state
	// read and its conditional update.
	winner, err := f.svc.Submit(context.Background(), sessionID, testUserID, model.AnswerMap{1: 0}, 60)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// The loser's first read sees the pre-completion row, so it scores and
	// tries the conditional update, which reports no rows changed.
	f.sessions.staleReads = 1

	loser, err := f.svc.Submit(context.Background(), sessionID, testUserID, model.AnswerMap{1: 3}, 61)
	if err != nil {
		t.Fatalf("losing Submit failed: %v", err)
	}
	if *loser != *winner {
		t.Fatalf("loser result %+v differs from winner %+v", loser, winner)
	}
}

func TestSubmitUnansweredAsWrong(t *testing.T) {
	f := newEngineFixture(defaultBank())
	f.cfg.ScoreUnansweredAsWrong = true
	started := startSession(t, f)

	result, err := f.svc.Submit(context.Background(), started.Session.ID, testUserID, model.AnswerMap{1: 0}, 30)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.Score != 1 || result.TotalQuestions != 3 {
		t.Fatalf("result = %d/%d, want 1/3", result.Score, result.TotalQuestions)
	}
	if result.Percentage != 33 {
		t.Fatalf("percentage = %d, want 33", result.Percentage)
	}
}

func TestResults(t *testing.T) {
	f := newEngineFixture(defaultBank())
	started := startSession(t, f)
	sessionID := started.Session.ID

	if _, err := f.svc.Results(context.Background(), sessionID, testUserID); !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("err = %v, want ErrNotCompleted", err)
	}

	if _, err := f.svc.Submit(context.Background(), sessionID, testUserID, model.AnswerMap{1: 0, 3: 0}, 90); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	bundle, err := f.svc.Results(context.Background(), sessionID, testUserID)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if len(bundle.Questions) != 2 {
		t.Fatalf("reviews = %d, want 2", len(bundle.Questions))
	}

	// Presented order.
	if bundle.Questions[0].ID != 1 || bundle.Questions[1].ID != 3 {
		t.Fatalf("review order = [%d, %d], want [1, 3]", bundle.Questions[0].ID, bundle.Questions[1].ID)
	}
	if !bundle.Questions[0].IsCorrect {
		t.Fatal("question 1 answered correctly, review disagrees")
	}
	if bundle.Questions[1].IsCorrect {
		t.Fatal("question 3 answered wrong, review disagrees")
	}
	if bundle.Questions[1].CorrectAnswer != 2 {
		t.Fatalf("correct_answer = %d, want 2", bundle.Questions[1].CorrectAnswer)
	}
	if bundle.Result.Score != 1 || bundle.Result.TotalQuestions != 2 {
		t.Fatalf("result = %d/%d, want 1/2", bundle.Result.Score, bundle.Result.TotalQuestions)
	}
}

func TestState(t *testing.T) {
	f := newEngineFixture(defaultBank())
	started := startSession(t, f)
	sessionID := started.Session.ID

	if err := f.svc.RecordAnswer(context.Background(), sessionID, testUserID, 2, 1); err != nil {
		t.Fatalf("RecordAnswer failed: %v", err)
	}
	if _, err := f.svc.Checkpoint(context.Background(), sessionID, testUserID, model.CheckpointRequest{
		CurrentQuestionIndex: 1,
		TimeRemainingSeconds: 2000,
	}); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}

	state, err := f.svc.State(context.Background(), sessionID, testUserID)
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if state.Completed {
		t.Fatal("session should still be open")
	}
	if state.Answers[2] != 1 {
		t.Fatalf("answers = %v, want question 2 -> 1", state.Answers)
	}
	if state.Checkpoint == nil || state.Checkpoint.CurrentQuestionIndex != 1 {
		t.Fatalf("checkpoint = %+v, want index 1", state.Checkpoint)
	}
	if state.TimeRemainingSeconds <= 0 || state.TimeRemainingSeconds > 45*60 {
		t.Fatalf("remaining = %d, want within (0, %d]", state.TimeRemainingSeconds, 45*60)
	}
}

func TestStateFallsBackToStore(t *testing.T) {
	f := newEngineFixture(defaultBank())
	started := startSession(t, f)
	sessionID := started.Session.ID

	// Nothing in the live cache; the durable rows must fill in.
	f.answers.bySession[sessionID] = model.AnswerMap{1: 2}

	state, err := f.svc.State(context.Background(), sessionID, testUserID)
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if state.Answers[1] != 2 {
		t.Fatalf("answers = %v, want question 1 -> 2 from the store", state.Answers)
	}
}

func TestStateCompletedSession(t *testing.T) {
	f := newEngineFixture(defaultBank())
	started := startSession(t, f)
	sessionID := started.Session.ID

	if _, err := f.svc.Submit(context.Background(), sessionID, testUserID, model.AnswerMap{1: 0}, 50); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	state, err := f.svc.State(context.Background(), sessionID, testUserID)
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if !state.Completed {
		t.Fatal("state must report completion")
	}
	if state.TimeRemainingSeconds != 0 {
		t.Fatalf("remaining = %d, want 0 for a closed session", state.TimeRemainingSeconds)
	}
}

func TestOwnershipGuards(t *testing.T) {
	f := newEngineFixture(defaultBank())
	started := startSession(t, f)
	sessionID := started.Session.ID

	if _, err := f.svc.State(context.Background(), sessionID, testUserID+1); !errors.Is(err, ErrNotSessionOwner) {
		t.Fatalf("err = %v, want ErrNotSessionOwner", err)
	}
	if _, err := f.svc.Submit(context.Background(), sessionID, testUserID+1, nil, 0); !errors.Is(err, ErrNotSessionOwner) {
		t.Fatalf("err = %v, want ErrNotSessionOwner", err)
	}
	if _, err := f.svc.Results(context.Background(), uuid.New(), testUserID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}
