package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/okian/mccskill/internal/adapters/http/api"
	"github.com/okian/mccskill/internal/adapters/repository"
	service "github.com/okian/mccskill/internal/app"
	"github.com/okian/mccskill/internal/domain/model"
	"github.com/okian/mccskill/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDeps struct {
	submitted  []model.Submission
	submitErr  error
	run        model.Run
	runErr     error
	topN       []types.Entry
	topNErr    error
	rank       types.Entry
	rankErr    error
	lastRankID string
}

func (m *mockDeps) Submit(_ context.Context, s model.Submission) error {
	if m.submitErr != nil {
		return m.submitErr
	}
	m.submitted = append(m.submitted, s)
	return nil
}

func (m *mockDeps) Recompute(_ context.Context) (model.Run, error) {
	return m.run, m.runErr
}

func (m *mockDeps) TopN(_ context.Context, n int) ([]types.Entry, error) {
	if m.topNErr != nil {
		return nil, m.topNErr
	}
	if n > len(m.topN) {
		return m.topN, nil
	}
	return m.topN[:n], nil
}

func (m *mockDeps) Rank(_ context.Context, playerID string) (types.Entry, error) {
	m.lastRankID = playerID
	if m.rankErr != nil {
		return types.Entry{}, m.rankErr
	}
	return m.rank, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(deps *mockDeps) *http.ServeMux {
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}, 100)
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func serve(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func errorCode(w *httptest.ResponseRecorder) string {
	var resp struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return resp.Code
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDeps{
			topN: []types.Entry{{Rank: 1, PlayerID: "Dream", Skill: 0.6}},
			rank: types.Entry{Rank: 1, PlayerID: "Dream", Skill: 0.6},
		}
		mux := newMux(deps)

		Convey("Then health serves prometheus metrics", func() {
			w := serve(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then stats serves JSON", func() {
			w := serve(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "application/json")
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("Then results rejects an empty body", func() {
			w := serve(mux, http.MethodPost, "/results", `{}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Then leaderboard is reachable", func() {
			w := serve(mux, http.MethodGet, "/leaderboard?limit=10", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then rank is reachable", func() {
			w := serve(mux, http.MethodGet, "/rank/Dream", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastRankID, ShouldEqual, "Dream")
		})

		Convey("Then wrong methods are not found", func() {
			So(serve(mux, http.MethodPost, "/leaderboard?limit=1", "").Code, ShouldEqual, http.StatusNotFound)
			So(serve(mux, http.MethodGet, "/results", "").Code, ShouldEqual, http.StatusNotFound)
			So(serve(mux, http.MethodGet, "/recompute", "").Code, ShouldEqual, http.StatusNotFound)
			So(serve(mux, http.MethodDelete, "/rank/Dream", "").Code, ShouldEqual, http.StatusNotFound)
			So(serve(mux, http.MethodPost, "/stats", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestResultsHandler_HandlePostResults(t *testing.T) {
	Convey("Given a results handler", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("When posting a row with absent events", func() {
			w := serve(mux, http.MethodPost, "/results",
				`{"submission_id":"sub-1","player_id":"Sapnap","results":[3,null,-1,0]}`)

			Convey("Then it is accepted and converted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Body.String(), ShouldContainSubstring, `"submission_id":"sub-1"`)
				So(len(deps.submitted), ShouldEqual, 1)
				So(deps.submitted[0].PlayerID, ShouldEqual, "Sapnap")
				So(deps.submitted[0].Results, ShouldResemble, []model.Result{
					model.Scored(3), model.Absent(), model.Absent(), model.Scored(0),
				})
			})
		})

		Convey("When the submission id is omitted", func() {
			w := serve(mux, http.MethodPost, "/results", `{"player_id":"Punz","results":[1]}`)

			Convey("Then a UUID is generated", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				_, err := uuid.Parse(deps.submitted[0].SubmissionID)
				So(err, ShouldBeNil)
			})
		})

		invalid := []struct {
			name string
			body string
		}{
			{"malformed JSON", `{"player_id":`},
			{"missing player", `{"results":[1,2]}`},
			{"missing results", `{"player_id":"x"}`},
			{"a negative score other than -1", `{"player_id":"x","results":[1,-2]}`},
			{"a fractional score", `{"player_id":"x","results":[1.5]}`},
		}
		for _, tc := range invalid {
			Convey("When the body has "+tc.name, func() {
				w := serve(mux, http.MethodPost, "/results", tc.body)

				Convey("Then it is a bad request", func() {
					So(w.Code, ShouldEqual, http.StatusBadRequest)
					So(errorCode(w), ShouldEqual, "bad_request")
					So(deps.submitted, ShouldBeEmpty)
				})
			})
		}

		Convey("When the service rejects the row length", func() {
			deps.submitErr = fmt.Errorf("%w: 1 results, want 31", service.ErrInvalidSubmission)
			w := serve(mux, http.MethodPost, "/results", `{"player_id":"x","results":[1]}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the queue is full", func() {
			deps.submitErr = service.ErrQueueFull
			w := serve(mux, http.MethodPost, "/results", `{"player_id":"x","results":[1]}`)

			Convey("Then it reports backpressure", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(errorCode(w), ShouldEqual, "backpressure")
			})
		})

		Convey("When the submission id was already accepted", func() {
			deps.submitErr = service.ErrDuplicate
			w := serve(mux, http.MethodPost, "/results", `{"submission_id":"s-1","player_id":"x","results":[1]}`)

			Convey("Then it acknowledges without queueing again", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var ack map[string]string
				So(json.Unmarshal(w.Body.Bytes(), &ack), ShouldBeNil)
				So(ack["status"], ShouldEqual, "duplicate")
				So(ack["submission_id"], ShouldEqual, "s-1")
			})
		})

		Convey("When the service is not running", func() {
			deps.submitErr = service.ErrNotStarted
			w := serve(mux, http.MethodPost, "/results", `{"player_id":"x","results":[1]}`)

			Convey("Then it is unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})
	})
}

func TestLeaderboardHandler_HandleGetLeaderboard(t *testing.T) {
	Convey("Given a leaderboard handler", t, func() {
		deps := &mockDeps{topN: []types.Entry{
			{Rank: 1, PlayerID: "Technoblade", Skill: 0.5},
			{Rank: 2, PlayerID: "Dream", Skill: 0.3},
			{Rank: 3, PlayerID: "Sapnap", Skill: 0.2},
		}}
		mux := newMux(deps)

		Convey("When asking for the top two", func() {
			w := serve(mux, http.MethodGet, "/leaderboard?limit=2", "")

			Convey("Then two entries are returned in order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var entries []types.Entry
				So(json.Unmarshal(w.Body.Bytes(), &entries), ShouldBeNil)
				So(len(entries), ShouldEqual, 2)
				So(entries[0].PlayerID, ShouldEqual, "Technoblade")
				So(entries[1].Rank, ShouldEqual, 2)
			})
		})

		limits := []struct {
			query string
			code  string
		}{
			{"", "bad_request"},
			{"?limit=abc", "bad_request"},
			{"?limit=0", "bad_request"},
			{"?limit=101", "limit_exceeded"},
		}
		for _, tc := range limits {
			Convey("When the limit is "+tc.query, func() {
				w := serve(mux, http.MethodGet, "/leaderboard"+tc.query, "")

				Convey("Then it is rejected with "+tc.code, func() {
					So(w.Code, ShouldEqual, http.StatusBadRequest)
					So(errorCode(w), ShouldEqual, tc.code)
				})
			})
		}

		Convey("When the store fails", func() {
			deps.topNErr = errors.New("boom")
			w := serve(mux, http.MethodGet, "/leaderboard?limit=2", "")

			Convey("Then it is an internal error", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}

func TestRankHandler_HandleGetRank(t *testing.T) {
	Convey("Given a rank handler", t, func() {
		deps := &mockDeps{rank: types.Entry{Rank: 4, PlayerID: "Punz", Skill: 0.01}}
		mux := newMux(deps)

		Convey("When the player is known", func() {
			w := serve(mux, http.MethodGet, "/rank/Punz", "")

			Convey("Then the entry is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var entry types.Entry
				So(json.Unmarshal(w.Body.Bytes(), &entry), ShouldBeNil)
				So(entry.Rank, ShouldEqual, 4)
				So(entry.PlayerID, ShouldEqual, "Punz")
			})
		})

		Convey("When the player is unknown", func() {
			deps.rankErr = repository.ErrNotFound
			w := serve(mux, http.MethodGet, "/rank/ghost", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(errorCode(w), ShouldEqual, "not_found")
			})
		})

		Convey("When the path has no id or nests further", func() {
			So(serve(mux, http.MethodGet, "/rank/", "").Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodGet, "/rank/a/b", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the store fails", func() {
			deps.rankErr = errors.New("boom")
			w := serve(mux, http.MethodGet, "/rank/Punz", "")

			Convey("Then it is an internal error", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}

func TestRecomputeHandler_HandleRecompute(t *testing.T) {
	Convey("Given a recompute handler", t, func() {
		id := uuid.New()
		deps := &mockDeps{run: model.Run{
			ID:        id,
			StartedAt: time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC),
			Duration:  1500 * time.Microsecond,
			Players:   40,
			Events:    31,
			Passes:    1000,
		}}
		mux := newMux(deps)

		Convey("When a recompute succeeds", func() {
			w := serve(mux, http.MethodPost, "/recompute", "")

			Convey("Then the run summary is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp map[string]interface{}
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp["run_id"], ShouldEqual, id.String())
				So(resp["players"], ShouldEqual, float64(40))
				So(resp["passes"], ShouldEqual, float64(1000))
				So(resp["duration_ms"], ShouldAlmostEqual, 1.5)
				So(resp["started_at"], ShouldEqual, "2024-07-01T12:00:00Z")
			})
		})

		Convey("When the service is stopped", func() {
			deps.runErr = service.ErrNotStarted
			w := serve(mux, http.MethodPost, "/recompute", "")

			Convey("Then it is unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})
	})
}

func TestError(t *testing.T) {
	Convey("Given API errors", t, func() {
		cause := errors.New("cause")

		Convey("Then kinds and causes unwrap", func() {
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: cause")
		})

		Convey("Then NewKind carries only the kind", func() {
			err := api.NewKind("api.op", api.ErrBackpressure)
			So(errors.Is(err, api.ErrBackpressure), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: backpressure")
		})

		Convey("Then wrapping nil yields nil", func() {
			So(api.Wrap("api.op", nil), ShouldBeNil)
		})
	})
}
