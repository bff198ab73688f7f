package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cyberpolicy/cracklab/internal/cracks/model"
	"github.com/cyberpolicy/cracklab/internal/cracks/repository"
	"github.com/cyberpolicy/cracklab/internal/cracks/service"
	"go.uber.org/zap"
)

var ctx = context.Background()

// ── Counting store ────────────────────────────────────────────────────────

// countingStore wraps a MemoryStore and counts every call. getErr and
// insertErr, when set, are returned instead of touching the store.
type countingStore struct {
	*repository.MemoryStore
	calls     atomic.Int64
	getErr    error
	insertErr error
	reReadErr error
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: repository.NewMemoryStore()}
}

func (s *countingStore) GetChallenge(ctx context.Context, id string) (*model.Challenge, error) {
	s.calls.Add(1)
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.MemoryStore.GetChallenge(ctx, id)
}

func (s *countingStore) InsertFirstSuccess(ctx context.Context, rec *model.SubmissionRecord) (bool, error) {
	s.calls.Add(1)
	if s.insertErr != nil {
		return false, s.insertErr
	}
	return s.MemoryStore.InsertFirstSuccess(ctx, rec)
}

func (s *countingStore) GetSuccess(ctx context.Context, studentID, assignmentID string) (*model.SubmissionRecord, error) {
	s.calls.Add(1)
	if s.reReadErr != nil {
		return nil, s.reReadErr
	}
	return s.MemoryStore.GetSuccess(ctx, studentID, assignmentID)
}

// hunter2Challenge is challenge c1 with salt 0xab and answer "hunter2".
func hunter2Challenge() *model.Challenge {
	return &model.Challenge{
		ID:             "c1",
		StudentID:      "s1",
		AssignmentID:   "lab1",
		Salt:           "ab",
		ExpectedDigest: service.Digest([]byte{0xab}, "hunter2"),
	}
}

func newService(t *testing.T, challenges ...*model.Challenge) (*service.SubmitService, *countingStore) {
	t.Helper()
	store := newCountingStore()
	for _, ch := range challenges {
		if err := store.CreateChallenge(ctx, ch); err != nil {
			t.Fatal(err)
		}
	}
	svc := service.NewSubmitService(store, store, service.NewReceiptSigner([]byte("test-key")), zap.NewNop())
	return svc, store
}

// ── Scenarios ─────────────────────────────────────────────────────────────

func TestSubmit_happyPath(t *testing.T) {
	svc, _ := newService(t, hunter2Challenge())

	out, err := svc.Submit(ctx, "c1", "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if out.Verdict != service.VerdictAccepted {
		t.Fatalf("verdict: got %v, want accepted", out.Verdict)
	}
	if !out.FirstSuccess {
		t.Error("first correct submission must be first_success")
	}
	if out.Record.ReceiptID == "" {
		t.Error("receipt id must be non-empty")
	}
}

func TestSubmit_wrongAnswer(t *testing.T) {
	svc, store := newService(t, hunter2Challenge())

	out, err := svc.Submit(ctx, "c1", "wrong")
	if err != nil {
		t.Fatal(err)
	}
	if out.Verdict != service.VerdictIncorrect {
		t.Fatalf("verdict: got %v, want incorrect", out.Verdict)
	}
	if _, err := store.MemoryStore.GetSuccess(ctx, "s1", "lab1"); !errors.Is(err, repository.ErrSubmissionNotFound) {
		t.Error("a wrong answer must not write a submission")
	}
}

func TestSubmit_replayReturnsSameReceipt(t *testing.T) {
	svc, _ := newService(t, hunter2Challenge())
	start := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	clock := start
	svc.SetClock(func() time.Time { return clock })

	first, err := svc.Submit(ctx, "c1", "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	clock = start.Add(time.Hour)
	second, err := svc.Submit(ctx, "c1", "hunter2")
	if err != nil {
		t.Fatal(err)
	}

	if !first.FirstSuccess || second.FirstSuccess {
		t.Errorf("first_success: first=%v second=%v, want true/false", first.FirstSuccess, second.FirstSuccess)
	}
	if first.Record.ReceiptID != second.Record.ReceiptID {
		t.Errorf("receipt changed across replay: %q vs %q", first.Record.ReceiptID, second.Record.ReceiptID)
	}
	if !second.Record.AcceptedAt.Equal(start) {
		t.Errorf("replay accepted_at: got %v, want original %v", second.Record.AcceptedAt, start)
	}
}

func TestSubmit_idempotentFirstSuccess(t *testing.T) {
	svc, _ := newService(t, hunter2Challenge())

	firsts := 0
	receipts := map[string]bool{}
	for i := 0; i < 10; i++ {
		out, err := svc.Submit(ctx, "c1", "hunter2")
		if err != nil {
			t.Fatal(err)
		}
		if out.FirstSuccess {
			firsts++
		}
		receipts[out.Record.ReceiptID] = true
	}
	if firsts != 1 {
		t.Errorf("first_success true %d times, want 1", firsts)
	}
	if len(receipts) != 1 {
		t.Errorf("expected one stable receipt, got %v", receipts)
	}
}

func TestSubmit_unknownChallenge(t *testing.T) {
	svc, _ := newService(t, hunter2Challenge())

	_, err := svc.Submit(ctx, "does-not-exist", "hunter2")
	if !errors.Is(err, service.ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound, got %v", err)
	}
}

func TestSubmit_trimsChallengeID(t *testing.T) {
	svc, _ := newService(t, hunter2Challenge())

	out, err := svc.Submit(ctx, "  c1\n", "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if out.Verdict != service.VerdictAccepted {
		t.Errorf("verdict: got %v, want accepted", out.Verdict)
	}
}

// ── Validation ────────────────────────────────────────────────────────────

func TestSubmit_missingFields(t *testing.T) {
	svc, store := newService(t, hunter2Challenge())

	cases := [][2]string{{"", "hunter2"}, {"c1", ""}, {"   ", "hunter2"}, {"", ""}}
	for _, c := range cases {
		_, err := svc.Submit(ctx, c[0], c[1])
		if !errors.Is(err, service.ErrMissingField) {
			t.Errorf("Submit(%q, %q): expected ErrMissingField, got %v", c[0], c[1], err)
		}
	}
	if n := store.calls.Load(); n != 0 {
		t.Errorf("validation failures touched the store %d times", n)
	}
}

func TestSubmit_candidateLengthBoundary(t *testing.T) {
	answer := strings.Repeat("a", service.MaxCandidateLength)
	ch := &model.Challenge{
		ID:             "long",
		StudentID:      "s1",
		AssignmentID:   "lab1",
		Salt:           "00",
		ExpectedDigest: service.Digest([]byte{0x00}, answer),
	}
	svc, store := newService(t, ch)

	out, err := svc.Submit(ctx, "long", answer)
	if err != nil {
		t.Fatalf("256 characters should be accepted: %v", err)
	}
	if out.Verdict != service.VerdictAccepted {
		t.Errorf("verdict: got %v", out.Verdict)
	}

	before := store.calls.Load()
	_, err = svc.Submit(ctx, "long", answer+"a")
	if !errors.Is(err, service.ErrCandidateTooLong) {
		t.Fatalf("257 characters: expected ErrCandidateTooLong, got %v", err)
	}
	if store.calls.Load() != before {
		t.Error("too-long candidate must be rejected before any store access")
	}
}

func TestSubmit_lengthCountsCharactersNotBytes(t *testing.T) {
	svc, _ := newService(t, hunter2Challenge())

	// 256 two-byte characters is 512 bytes but still within the limit.
	out, err := svc.Submit(ctx, "c1", strings.Repeat("é", service.MaxCandidateLength))
	if err != nil {
		t.Fatalf("expected a normal mismatch, got %v", err)
	}
	if out.Verdict != service.VerdictIncorrect {
		t.Errorf("verdict: got %v", out.Verdict)
	}
}

func TestSubmit_misconfiguredChallenge(t *testing.T) {
	good := hunter2Challenge()
	tests := []struct {
		name   string
		mutate func(*model.Challenge)
	}{
		{"no salt", func(c *model.Challenge) { c.Salt = "" }},
		{"no digest", func(c *model.Challenge) { c.ExpectedDigest = "" }},
		{"salt not hex", func(c *model.Challenge) { c.Salt = "not-hex" }},
		{"digest truncated", func(c *model.Challenge) { c.ExpectedDigest = c.ExpectedDigest[:10] }},
		{"no owner", func(c *model.Challenge) { c.StudentID = "" }},
		{"separator in student", func(c *model.Challenge) { c.StudentID = "s1#lab1" }},
		{"separator in assignment", func(c *model.Challenge) { c.AssignmentID = "lab1#x" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := *good
			tt.mutate(&ch)
			svc, _ := newService(t, &ch)

			_, err := svc.Submit(ctx, "c1", "hunter2")
			if !errors.Is(err, service.ErrChallengeMisconfigured) {
				t.Fatalf("expected ErrChallengeMisconfigured, got %v", err)
			}
			if _, err := svc.GetSubmission(ctx, ch.StudentID, ch.AssignmentID); !errors.Is(err, service.ErrSubmissionNotFound) {
				t.Errorf("misconfigured challenge must not record a success, got %v", err)
			}
		})
	}
}

// ── Infrastructure faults ─────────────────────────────────────────────────

func TestSubmit_challengeStoreFault(t *testing.T) {
	svc, store := newService(t, hunter2Challenge())
	store.getErr = errors.New("connection reset")

	_, err := svc.Submit(ctx, "c1", "hunter2")
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, sentinel := range []error{service.ErrChallengeNotFound, service.ErrChallengeMisconfigured} {
		if errors.Is(err, sentinel) {
			t.Errorf("store fault must not be reported as %v", sentinel)
		}
	}
}

func TestSubmit_submissionStoreFault(t *testing.T) {
	svc, store := newService(t, hunter2Challenge())
	store.insertErr = errors.New("throttled")

	out, err := svc.Submit(ctx, "c1", "hunter2")
	if err == nil {
		t.Fatalf("expected an error, got outcome %+v", out)
	}
}

func TestRecordFirstSuccess_reReadFault(t *testing.T) {
	svc, store := newService(t)
	at := time.Now()
	if _, _, err := svc.RecordFirstSuccess(ctx, "s1", "lab1", at); err != nil {
		t.Fatal(err)
	}
	store.reReadErr = repository.ErrSubmissionNotFound

	_, _, err := svc.RecordFirstSuccess(ctx, "s1", "lab1", at)
	if err == nil {
		t.Fatal("a lost write with no row to re-read must surface as an error")
	}
}

// ── Concurrency ───────────────────────────────────────────────────────────

func TestSubmit_concurrentCorrectSubmissions(t *testing.T) {
	svc, _ := newService(t, hunter2Challenge())

	const n = 50
	var wg sync.WaitGroup
	results := make([]*service.Outcome, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Submit(ctx, "c1", "hunter2")
		}(i)
	}
	wg.Wait()

	firsts := 0
	receipt := ""
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("submission %d: %v", i, errs[i])
		}
		if results[i].FirstSuccess {
			firsts++
		}
		if results[i].Record.ReceiptID == "" {
			t.Errorf("submission %d has no receipt", i)
		}
		if receipt == "" {
			receipt = results[i].Record.ReceiptID
		} else if results[i].Record.ReceiptID != receipt {
			t.Errorf("submission %d receipt %q differs from %q", i, results[i].Record.ReceiptID, receipt)
		}
	}
	if firsts != 1 {
		t.Errorf("first_success true for %d of %d submissions, want exactly 1", firsts, n)
	}
}

func TestGetSubmission(t *testing.T) {
	svc, _ := newService(t, hunter2Challenge())

	if _, err := svc.GetSubmission(ctx, "s1", "lab1"); !errors.Is(err, service.ErrSubmissionNotFound) {
		t.Fatalf("expected ErrSubmissionNotFound, got %v", err)
	}
	if _, err := svc.Submit(ctx, "c1", "hunter2"); err != nil {
		t.Fatal(err)
	}
	rec, err := svc.GetSubmission(ctx, "s1", "lab1")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.FirstSuccess || rec.ReceiptID == "" {
		t.Errorf("unexpected record: %+v", rec)
	}

	// "s1#lab1" could only alias another pair; it never has a record.
	if _, err := svc.GetSubmission(ctx, "s1#lab1", ""); !errors.Is(err, service.ErrSubmissionNotFound) {
		t.Errorf("expected ErrSubmissionNotFound for separator ids, got %v", err)
	}
}
