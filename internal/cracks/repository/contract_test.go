package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cyberpolicy/cracklab/internal/cracks/model"
	"github.com/cyberpolicy/cracklab/internal/cracks/repository"
)

var ctx = context.Background()

type store interface {
	repository.ChallengeStore
	repository.SubmissionStore
}

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) store) {
	t.Run("challenge round trip", func(t *testing.T) {
		s := newStore(t)
		in := &model.Challenge{
			ID:             "c1",
			StudentID:      "s1",
			AssignmentID:   "lab1",
			Salt:           "ab",
			ExpectedDigest: "00ff",
		}
		if err := s.CreateChallenge(ctx, in); err != nil {
			t.Fatalf("CreateChallenge: %v", err)
		}
		got, err := s.GetChallenge(ctx, "c1")
		if err != nil {
			t.Fatalf("GetChallenge: %v", err)
		}
		if got.StudentID != "s1" || got.AssignmentID != "lab1" || got.Salt != "ab" || got.ExpectedDigest != "00ff" {
			t.Errorf("unexpected challenge: %+v", got)
		}
	})

	t.Run("challenge not found", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetChallenge(ctx, "does-not-exist")
		if !errors.Is(err, repository.ErrChallengeNotFound) {
			t.Fatalf("expected ErrChallengeNotFound, got %v", err)
		}
	})

	t.Run("duplicate challenge", func(t *testing.T) {
		s := newStore(t)
		ch := &model.Challenge{ID: "c1", StudentID: "s1", AssignmentID: "lab1", Salt: "ab", ExpectedDigest: "00"}
		if err := s.CreateChallenge(ctx, ch); err != nil {
			t.Fatal(err)
		}
		dup := *ch
		dup.Salt = "cd"
		if err := s.CreateChallenge(ctx, &dup); !errors.Is(err, repository.ErrChallengeExists) {
			t.Fatalf("expected ErrChallengeExists, got %v", err)
		}
		got, _ := s.GetChallenge(ctx, "c1")
		if got.Salt != "ab" {
			t.Errorf("salt was overwritten: %q", got.Salt)
		}
	})

	t.Run("insert once", func(t *testing.T) {
		s := newStore(t)
		at := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
		first := &model.SubmissionRecord{StudentID: "s1", AssignmentID: "lab1", AcceptedAt: at, ReceiptID: "r1", FirstSuccess: true}

		ok, err := s.InsertFirstSuccess(ctx, first)
		if err != nil || !ok {
			t.Fatalf("first insert: ok=%v err=%v", ok, err)
		}

		second := &model.SubmissionRecord{StudentID: "s1", AssignmentID: "lab1", AcceptedAt: at.Add(time.Minute), ReceiptID: "r2", FirstSuccess: true}
		ok, err = s.InsertFirstSuccess(ctx, second)
		if err != nil {
			t.Fatalf("second insert: %v", err)
		}
		if ok {
			t.Fatal("second insert for the same pair must not succeed")
		}

		got, err := s.GetSuccess(ctx, "s1", "lab1")
		if err != nil {
			t.Fatalf("GetSuccess: %v", err)
		}
		if got.ReceiptID != "r1" {
			t.Errorf("receipt: got %q, want r1", got.ReceiptID)
		}
		if !got.AcceptedAt.Equal(at) {
			t.Errorf("accepted_at: got %v, want %v", got.AcceptedAt, at)
		}
	})

	t.Run("pairs are independent", func(t *testing.T) {
		s := newStore(t)
		for _, pair := range [][2]string{{"s1", "lab1"}, {"s1", "lab2"}, {"s2", "lab1"}} {
			rec := &model.SubmissionRecord{StudentID: pair[0], AssignmentID: pair[1], AcceptedAt: time.Now().UTC(), ReceiptID: pair[0] + pair[1]}
			ok, err := s.InsertFirstSuccess(ctx, rec)
			if err != nil || !ok {
				t.Fatalf("insert %v: ok=%v err=%v", pair, ok, err)
			}
		}
	})

	t.Run("separator ids never share a record", func(t *testing.T) {
		s := newStore(t)
		at := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
		pairs := []*model.SubmissionRecord{
			{StudentID: "a#b", AssignmentID: "c", AcceptedAt: at, ReceiptID: "r-ab-c", FirstSuccess: true},
			{StudentID: "a", AssignmentID: "b#c", AcceptedAt: at, ReceiptID: "r-a-bc", FirstSuccess: true},
		}
		for _, rec := range pairs {
			ok, err := s.InsertFirstSuccess(ctx, rec)
			if errors.Is(err, repository.ErrInvalidPair) {
				// The backend refuses ids it cannot key unambiguously.
				continue
			}
			if err != nil || !ok {
				t.Fatalf("insert %s/%s: ok=%v err=%v", rec.StudentID, rec.AssignmentID, ok, err)
			}
			got, err := s.GetSuccess(ctx, rec.StudentID, rec.AssignmentID)
			if err != nil {
				t.Fatalf("GetSuccess %s/%s: %v", rec.StudentID, rec.AssignmentID, err)
			}
			if got.ReceiptID != rec.ReceiptID || got.StudentID != rec.StudentID {
				t.Errorf("%s/%s read back another pair's record: %+v", rec.StudentID, rec.AssignmentID, got)
			}
		}
	})

	t.Run("missing submission", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetSuccess(ctx, "nobody", "lab1")
		if !errors.Is(err, repository.ErrSubmissionNotFound) {
			t.Fatalf("expected ErrSubmissionNotFound, got %v", err)
		}
	})

	t.Run("concurrent inserts", func(t *testing.T) {
		s := newStore(t)
		const n = 32
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				rec := &model.SubmissionRecord{StudentID: "s1", AssignmentID: "lab1", AcceptedAt: time.Now().UTC(), ReceiptID: "r", FirstSuccess: true}
				ok, err := s.InsertFirstSuccess(ctx, rec)
				if err != nil {
					t.Errorf("insert: %v", err)
					return
				}
				if ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if wins != 1 {
			t.Errorf("expected exactly one winning insert, got %d", wins)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(*testing.T) store { return repository.NewMemoryStore() })
}
