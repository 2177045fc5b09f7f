package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	queue "github.com/okian/mccskill/internal/adapters/mq/queue"
	worker "github.com/okian/mccskill/internal/adapters/mq/worker"
	model "github.com/okian/mccskill/internal/domain/model"
	logging "github.com/okian/mccskill/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockApplier struct {
	mu         sync.Mutex
	applied    []string
	reject     map[string]error
	recomputes int
	recompErr  error
}

func newMockApplier() *mockApplier {
	return &mockApplier{reject: make(map[string]error)}
}

func (m *mockApplier) Apply(_ context.Context, s model.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.reject[s.PlayerID]; ok {
		return err
	}
	m.applied = append(m.applied, s.PlayerID)
	return nil
}

func (m *mockApplier) Recompute(_ context.Context) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recomputes++
	if m.recompErr != nil {
		return model.Run{}, m.recompErr
	}
	return model.Run{ID: uuid.New(), Players: len(m.applied), Passes: 1}, nil
}

func (m *mockApplier) snapshot() ([]string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.applied...), m.recomputes
}

// waitFor polls cond until it holds or a second passes.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func enqueue(q *queue.InMemoryQueue, players ...string) {
	for _, p := range players {
		q.Enqueue(context.Background(), model.Submission{
			SubmissionID: uuid.NewString(),
			PlayerID:     p,
			Results:      []model.Result{model.Scored(1)},
		})
	}
}

func TestRecomputer(t *testing.T) {
	convey.Convey("Given a queue and a recomputer", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		applier := newMockApplier()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		convey.Convey("When several submissions are already waiting", func() {
			enqueue(q, "a", "b", "c", "d", "e")
			w := worker.NewRecomputer(q, applier, worker.WithName("test-recomputer"))
			go w.Run(ctx)

			ok := waitFor(func() bool {
				applied, _ := applier.snapshot()
				return len(applied) == 5
			})

			convey.Convey("Then they are applied in order with one recompute", func() {
				convey.So(ok, convey.ShouldBeTrue)
				applied, recomputes := applier.snapshot()
				convey.So(applied, convey.ShouldResemble, []string{"a", "b", "c", "d", "e"})
				convey.So(recomputes, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the batch size is capped", func() {
			enqueue(q, "a", "b", "c", "d", "e")
			w := worker.NewRecomputer(q, applier, worker.WithMaxBatch(2))
			go w.Run(ctx)

			ok := waitFor(func() bool {
				_, recomputes := applier.snapshot()
				return recomputes == 3
			})

			convey.Convey("Then one recompute runs per batch", func() {
				convey.So(ok, convey.ShouldBeTrue)
				applied, _ := applier.snapshot()
				convey.So(len(applied), convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When a submission is rejected", func() {
			applier.reject["bad"] = errors.New("wrong length")
			enqueue(q, "bad", "good")
			w := worker.NewRecomputer(q, applier)
			go w.Run(ctx)

			ok := waitFor(func() bool {
				_, recomputes := applier.snapshot()
				return recomputes == 1
			})

			convey.Convey("Then the rest of the batch still applies", func() {
				convey.So(ok, convey.ShouldBeTrue)
				applied, _ := applier.snapshot()
				convey.So(applied, convey.ShouldResemble, []string{"good"})
			})
		})

		convey.Convey("When every submission in a batch is rejected", func() {
			applier.reject["bad"] = errors.New("wrong length")
			enqueue(q, "bad")
			w := worker.NewRecomputer(q, applier)
			go w.Run(ctx)

			_ = waitFor(func() bool { return q.Len(ctx) == 0 })
			time.Sleep(20 * time.Millisecond)

			convey.Convey("Then no recompute is triggered", func() {
				_, recomputes := applier.snapshot()
				convey.So(recomputes, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When recompute fails", func() {
			applier.recompErr = errors.New("boom")
			enqueue(q, "a")
			w := worker.NewRecomputer(q, applier)
			go w.Run(ctx)

			ok := waitFor(func() bool {
				_, recomputes := applier.snapshot()
				return recomputes == 1
			})

			convey.Convey("Then the worker keeps running", func() {
				convey.So(ok, convey.ShouldBeTrue)
				enqueue(q, "b")
				ok = waitFor(func() bool {
					_, recomputes := applier.snapshot()
					return recomputes == 2
				})
				convey.So(ok, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down", func() {
			w := worker.NewRecomputer(q, applier)
			go w.Run(ctx)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer shutdownCancel()
			err := w.Shutdown(shutdownCtx)

			convey.Convey("Then it stops gracefully and a second call is harmless", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When shutdown is requested with submissions still queued", func() {
			enqueue(q, "a", "b", "c")
			w := worker.NewRecomputer(q, applier, worker.WithMaxBatch(1))

			expired, expire := context.WithCancel(context.Background())
			expire()
			_ = w.Shutdown(expired) // signals only; Run has not started
			w.Run(ctx)

			convey.Convey("Then every queued submission is applied before Run returns", func() {
				applied, recomputes := applier.snapshot()
				convey.So(applied, convey.ShouldResemble, []string{"a", "b", "c"})
				convey.So(recomputes, convey.ShouldEqual, 3)
				convey.So(q.Len(ctx), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the queue is closed", func() {
			w := worker.NewRecomputer(q, applier)
			stopped := make(chan struct{})
			go func() {
				w.Run(ctx)
				close(stopped)
			}()
			_ = q.Close()

			convey.Convey("Then Run returns", func() {
				select {
				case <-stopped:
				case <-time.After(time.Second):
					t.Error("expected Run to return after Close")
				}
			})
		})

		convey.Convey("When shutdown never completes in time", func() {
			w := worker.NewRecomputer(q, applier)
			// Run is never started, so done is never closed.
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer shutdownCancel()

			convey.Convey("Then Shutdown reports the timeout", func() {
				err := w.Shutdown(shutdownCtx)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
	})
}
