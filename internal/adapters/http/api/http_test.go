package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/adapters/http/api"
	service "github.com/akashca-pro/codex-problem-service-sub000/internal/app"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/leaderboard"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/model"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/types"
)

type call struct {
	name   string
	id     string
	entity string
	value  float64
}

type mockDependencies struct {
	mu        sync.Mutex
	seen      map[string]bool
	submitted []model.Submission
	submitErr error
	calls     []call
	mutErr    error
	board     types.Leaderboard
	user      types.User
	resync    types.ResyncResult
	resyncErr error
	readyErr  error
	lastLimit int
}

func newMockDependencies() *mockDependencies {
	return &mockDependencies{seen: map[string]bool{}}
}

func (m *mockDependencies) record(c call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
	return m.mutErr
}

func (m *mockDependencies) Submit(_ context.Context, sub model.Submission) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return false, m.submitErr
	}
	if m.seen[sub.ID] {
		return true, nil
	}
	m.seen[sub.ID] = true
	m.submitted = append(m.submitted, sub)
	return false, nil
}

func (m *mockDependencies) Leaderboard(_ context.Context, limit int) (types.Leaderboard, error) {
	m.lastLimit = limit
	return m.board, m.mutErr
}

func (m *mockDependencies) EntityLeaderboard(_ context.Context, entity string, limit int) (types.Leaderboard, error) {
	m.lastLimit = limit
	lb := m.board
	lb.Scope, lb.Entity = "entity", entity
	return lb, m.mutErr
}

func (m *mockDependencies) User(_ context.Context, id string) (types.User, error) {
	u := m.user
	u.UserID = id
	return u, m.mutErr
}

func (m *mockDependencies) SetUser(_ context.Context, id string, score float64, entity string) error {
	return m.record(call{"set", id, entity, score})
}

func (m *mockDependencies) IncrementScore(_ context.Context, id, entity string, delta float64) error {
	return m.record(call{"increment", id, entity, delta})
}

func (m *mockDependencies) DecrementScore(_ context.Context, id, entity string, delta float64) error {
	return m.record(call{"decrement", id, entity, delta})
}

func (m *mockDependencies) UpdateEntity(_ context.Context, id, entity string) error {
	return m.record(call{"entity", id, entity, 0})
}

func (m *mockDependencies) SetUsername(_ context.Context, id, name string) {
	_ = m.record(call{"username", id, name, 0})
}

func (m *mockDependencies) RemoveUser(_ context.Context, id string) error {
	return m.record(call{"remove", id, "", 0})
}

func (m *mockDependencies) Resync(context.Context) (types.ResyncResult, error) {
	return m.resync, m.resyncErr
}

func (m *mockDependencies) Ready(context.Context) error { return m.readyErr }

func (m *mockDependencies) GetStats(context.Context) map[string]any {
	return map[string]any{"started": true}
}

func (m *mockDependencies) lastCall() call {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return call{}
	}
	return m.calls[len(m.calls)-1]
}

func newMux(deps api.Dependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, api.WithMaxLimit(100)).Register(context.Background(), mux)
	return mux
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func errorCode(w *httptest.ResponseRecorder) string {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body.Code
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps)

		Convey("Then health exposes Prometheus metrics", func() {
			w := do(mux, "GET", "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then readyz reflects the store", func() {
			So(do(mux, "GET", "/readyz", "").Code, ShouldEqual, http.StatusOK)
			deps.readyErr = errors.New("connection refused")
			w := do(mux, "GET", "/readyz", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(errorCode(w), ShouldEqual, "unavailable")
		})

		Convey("Then stats are served as JSON", func() {
			w := do(mux, "GET", "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("Then unknown paths and methods are rejected", func() {
			So(do(mux, "GET", "/unknown", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, "POST", "/leaderboard", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestSubmissionsHandler(t *testing.T) {
	Convey("Given the submissions endpoint", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps)
		body := `{"submission_id":"s1","user_id":"u1","username":"alice","entity":"IN","problem_id":"p1","difficulty":"hard","accepted":true,"submitted_at":"2024-05-01T10:00:00Z"}`

		Convey("When a valid submission is posted", func() {
			w := do(mux, "POST", "/submissions", body)

			Convey("Then it is accepted and converted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Body.String(), ShouldContainSubstring, `"status":"accepted"`)
				So(len(deps.submitted), ShouldEqual, 1)
				sub := deps.submitted[0]
				So(sub.ID, ShouldEqual, "s1")
				So(sub.Entity, ShouldEqual, "IN")
				So(sub.Accepted, ShouldBeTrue)
				So(sub.SubmittedAt.Year(), ShouldEqual, 2024)
			})

			Convey("And posting it again reports a duplicate", func() {
				w := do(mux, "POST", "/submissions", body)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"duplicate":true`)
			})
		})

		Convey("When required fields are missing", func() {
			w := do(mux, "POST", "/submissions", `{"submission_id":"s1","problem_id":"p1"}`)

			Convey("Then 400 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorCode(w), ShouldEqual, "bad_request")
			})
		})

		Convey("When the timestamp is not RFC3339", func() {
			w := do(mux, "POST", "/submissions", `{"submission_id":"s1","user_id":"u1","problem_id":"p1","submitted_at":"yesterday"}`)

			Convey("Then 400 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, "POST", "/submissions", `not json`)

			Convey("Then 400 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the queue is full", func() {
			deps.submitErr = service.ErrBackpressure
			w := do(mux, "POST", "/submissions", body)

			Convey("Then 429 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(errorCode(w), ShouldEqual, "backpressure")
			})
		})
	})
}

func TestLeaderboardHandler(t *testing.T) {
	Convey("Given the leaderboard endpoints", t, func() {
		deps := newMockDependencies()
		deps.board = types.Leaderboard{Scope: "global", Entries: []types.Entry{
			{Rank: 1, UserID: "u1", Score: 30},
			{Rank: 1, UserID: "u2", Score: 30},
			{Rank: 3, UserID: "u3", Score: 10},
		}}
		mux := newMux(deps)

		Convey("When the global board is requested", func() {
			w := do(mux, "GET", "/leaderboard?limit=3", "")

			Convey("Then the entries are returned with their ranks", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var lb types.Leaderboard
				So(json.Unmarshal(w.Body.Bytes(), &lb), ShouldBeNil)
				So(len(lb.Entries), ShouldEqual, 3)
				So(lb.Entries[2].Rank, ShouldEqual, 3)
				So(deps.lastLimit, ShouldEqual, 3)
			})
		})

		Convey("When no limit is given", func() {
			So(do(mux, "GET", "/leaderboard", "").Code, ShouldEqual, http.StatusOK)

			Convey("Then the default limit is used", func() {
				So(deps.lastLimit, ShouldEqual, 10)
			})
		})

		Convey("When an entity board is requested", func() {
			w := do(mux, "GET", "/leaderboard/IN?limit=5", "")

			Convey("Then the entity is taken from the path", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"entity":"IN"`)
			})
		})

		Convey("When the limit is invalid or too large", func() {
			Convey("Then 400 is returned", func() {
				So(do(mux, "GET", "/leaderboard?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
				So(do(mux, "GET", "/leaderboard?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
				So(do(mux, "GET", "/leaderboard?limit=101", "").Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the store fails", func() {
			deps.mutErr = &leaderboard.Error{Op: "top_k_global", Kind: leaderboard.ErrStore, Err: errors.New("boom")}
			w := do(mux, "GET", "/leaderboard?limit=3", "")

			Convey("Then 500 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(errorCode(w), ShouldEqual, "internal_error")
			})
		})
	})
}

func TestUserHandler(t *testing.T) {
	Convey("Given the user endpoints", t, func() {
		deps := newMockDependencies()
		deps.user = types.User{Score: 12, Entity: "IN", GlobalRank: 0, EntityRank: -1}
		mux := newMux(deps)

		Convey("When a user is fetched", func() {
			w := do(mux, "GET", "/users/u1", "")

			Convey("Then the standing is returned with a null username", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"user_id":"u1"`)
				So(w.Body.String(), ShouldContainSubstring, `"username":null`)
				So(w.Body.String(), ShouldContainSubstring, `"entity_rank":-1`)
			})
		})

		Convey("When a score is set", func() {
			w := do(mux, "PUT", "/users/u1", `{"score":42.5,"entity":"US"}`)

			Convey("Then the service receives it", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastCall(), ShouldResemble, call{"set", "u1", "US", 42.5})
			})
		})

		Convey("When the score is missing", func() {
			w := do(mux, "PUT", "/users/u1", `{"entity":"US"}`)

			Convey("Then 400 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When scores are incremented and decremented", func() {
			So(do(mux, "POST", "/users/u1/increment", `{"delta":5}`).Code, ShouldEqual, http.StatusOK)
			So(deps.lastCall(), ShouldResemble, call{"increment", "u1", "", 5})
			So(do(mux, "POST", "/users/u1/decrement", `{"delta":2,"entity":"IN"}`).Code, ShouldEqual, http.StatusOK)

			Convey("Then both reach the service", func() {
				So(deps.lastCall(), ShouldResemble, call{"decrement", "u1", "IN", 2})
			})
		})

		Convey("When the entity and username are updated", func() {
			So(do(mux, "PUT", "/users/u1/entity", `{"entity":"FR"}`).Code, ShouldEqual, http.StatusOK)
			So(deps.lastCall(), ShouldResemble, call{"entity", "u1", "FR", 0})
			w := do(mux, "PUT", "/users/u1/username", `{"username":"bob"}`)

			Convey("Then the username write is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(deps.lastCall(), ShouldResemble, call{"username", "u1", "bob", 0})
			})
		})

		Convey("When an empty entity is sent", func() {
			w := do(mux, "PUT", "/users/u1/entity", `{"entity":""}`)

			Convey("Then 400 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the engine rejects the input", func() {
			deps.mutErr = &leaderboard.Error{Op: "increment_score", Kind: leaderboard.ErrValidation, Err: errors.New("delta must be finite")}
			w := do(mux, "POST", "/users/u1/increment", `{"delta":1}`)

			Convey("Then 400 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a user is deleted", func() {
			w := do(mux, "DELETE", "/users/u1", "")

			Convey("Then the removal reaches the service", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastCall().name, ShouldEqual, "remove")
			})
		})
	})
}

func TestAdminHandler(t *testing.T) {
	Convey("Given the admin endpoint", t, func() {
		deps := newMockDependencies()
		deps.resync = types.ResyncResult{RunID: "run-1", Users: 3}
		mux := newMux(deps)

		Convey("When a resync succeeds", func() {
			w := do(mux, "POST", "/admin/resync", "")

			Convey("Then the result is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"run_id":"run-1"`)
			})
		})

		Convey("When a resync is throttled", func() {
			deps.resyncErr = service.ErrResyncThrottled
			w := do(mux, "POST", "/admin/resync", "")

			Convey("Then 429 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(errorCode(w), ShouldEqual, "throttled")
			})
		})

		Convey("When the source fails", func() {
			deps.resyncErr = &leaderboard.Error{Op: "resync", Kind: leaderboard.ErrSource, Err: errors.New("disk")}

			Convey("Then 500 is returned", func() {
				So(do(mux, "POST", "/admin/resync", "").Code, ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}
