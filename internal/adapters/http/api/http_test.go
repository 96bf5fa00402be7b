package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/okian/allot/internal/adapters/http/api"
	"github.com/okian/allot/internal/adapters/repository"
	"github.com/okian/allot/internal/domain/fault"
	"github.com/okian/allot/internal/domain/ledger"
	"github.com/okian/allot/internal/domain/lifecycle"
	"github.com/okian/allot/internal/domain/model"
	"github.com/okian/allot/internal/domain/optimizer"
	"github.com/okian/allot/internal/domain/planning"
	"github.com/okian/allot/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() { //nolint:gochecknoinits // test logger
	_ = logger.Init()
}

type deps struct {
	*lifecycle.Manager
	*planning.Planner
}

type mockStatsProvider struct {
	stats map[string]any
}

func (m *mockStatsProvider) GetStats() map[string]any {
	return m.stats
}

// failingDeps fails every call with err.
type failingDeps struct {
	err error
}

func (f failingDeps) Recommend(context.Context, string) (planning.Recommendations, error) {
	return planning.Recommendations{}, f.err
}

func (f failingDeps) Optimize(context.Context, []string, bool) (planning.Plan, error) {
	return planning.Plan{}, f.err
}

func (f failingDeps) AllocateBatch(context.Context, string, []lifecycle.AllocateRequest) ([]model.Allocation, error) {
	return nil, f.err
}

func (f failingDeps) Remove(context.Context, string, string) (model.Allocation, error) {
	return model.Allocation{}, f.err
}

func (f failingDeps) Confirm(context.Context, string, string) (model.Allocation, error) {
	return model.Allocation{}, f.err
}

func (f failingDeps) CompleteProject(context.Context, string) ([]model.Allocation, error) {
	return nil, f.err
}

func (f failingDeps) SetProjectStatus(context.Context, string, model.ProjectStatus) (model.Project, error) {
	return model.Project{}, f.err
}

func (f failingDeps) Capacity(context.Context, string) (lifecycle.Capacity, error) {
	return lifecycle.Capacity{}, f.err
}

func newMux(d api.Dependencies, stats api.StatsProvider) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(d, stats).Register(context.Background(), mux)
	return mux
}

func seededMux() *http.ServeMux {
	ctx := context.Background()
	repo := repository.NewMemoryStore()
	var seq atomic.Int64
	mgr := lifecycle.New(repo, ledger.New(),
		lifecycle.WithIDGenerator(func() string { return fmt.Sprintf("a%d", seq.Add(1)) }))
	planner := planning.New(repo, mgr, optimizer.New())

	goSkill := model.Skill{ID: "s-go", Name: "Go"}
	So(repo.SaveEmployee(ctx, model.Employee{ID: "e1", Name: "Ada", Skills: []model.Skill{goSkill}, Performance: 4, CapacityRemaining: model.Full, Active: true, Role: model.RoleEmployee}), ShouldBeNil)
	So(repo.SaveEmployee(ctx, model.Employee{ID: "e2", Name: "Ben", Performance: 3, CapacityRemaining: model.Full, Active: true, Role: model.RoleEmployee}), ShouldBeNil)
	for _, p := range []model.Project{
		{ID: "p1", Name: "Atlas", HoursNeeded: 40, Status: model.ProjectPlanning},
		{ID: "p2", Name: "Borealis", HoursNeeded: 20, Status: model.ProjectPlanning},
	} {
		So(repo.SaveProject(ctx, p), ShouldBeNil)
		So(repo.SaveSkillRequirements(ctx, p.ID, []model.SkillRequirement{{ProjectID: p.ID, SkillID: "s-go", EmployeesRequested: 1}}), ShouldBeNil)
	}
	return newMux(deps{Manager: mgr, Planner: planner}, &mockStatsProvider{stats: map[string]any{"processed": 3}})
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

func decodeBody(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := seededMux()

		Convey("Then health responds", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["status"], ShouldEqual, "ok")
		})

		Convey("Then metrics are served from the engine registry", func() {
			_ = do(mux, http.MethodGet, "/healthz", "")
			w := do(mux, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "allot_engine_http_requests_total")
		})

		Convey("Then stats come from the provider", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["processed"], ShouldEqual, 3)
		})

		Convey("Then a wrong method is rejected", func() {
			w := do(mux, http.MethodGet, "/allocations", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("Then a nil mux panics", func() {
			So(func() { api.NewServer(failingDeps{}, nil).Register(context.Background(), nil) }, ShouldPanic)
		})
	})
}

func TestAllocationRoutes(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := seededMux()

		Convey("When allocating a single employee", func() {
			w := do(mux, http.MethodPost, "/allocations",
				`{"project_id":"p1","employee_id":"e1","allocation_percentage":60,"skill_name":"Go"}`)

			Convey("Then the allocation is created and capacity drops", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				body := decodeBody(w)
				So(body["detail"], ShouldEqual, "Employees allocated successfully")
				allocs := body["allocations"].([]any)
				So(allocs, ShouldHaveLength, 1)
				So(allocs[0].(map[string]any)["percentage"], ShouldEqual, 60)
				So(allocs[0].(map[string]any)["hours_allocated"], ShouldEqual, 24)

				c := do(mux, http.MethodGet, "/employees/e1/capacity", "")
				So(c.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(c)["capacity_remaining"], ShouldEqual, 40)
			})

			Convey("Then allocating the same pair again conflicts", func() {
				again := do(mux, http.MethodPost, "/allocations",
					`{"project_id":"p1","employee_id":"e1","allocation_percentage":10,"skill_name":"Go"}`)
				So(again.Code, ShouldEqual, http.StatusConflict)
				So(decodeBody(again)["kind"], ShouldEqual, "duplicate_allocation")
			})

			Convey("Then exceeding capacity conflicts", func() {
				over := do(mux, http.MethodPost, "/allocations",
					`{"project_id":"p2","employee_id":"e1","allocation_percentage":50,"skill_name":"Go"}`)
				So(over.Code, ShouldEqual, http.StatusConflict)
				So(decodeBody(over)["kind"], ShouldEqual, "insufficient_capacity")
			})

			Convey("Then removing it restores capacity", func() {
				rm := do(mux, http.MethodPost, "/allocations/remove", `{"employee_id":"e1","project_id":"p1"}`)
				So(rm.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(rm)["detail"], ShouldEqual, "Allocation successfully removed")
				c := do(mux, http.MethodGet, "/employees/e1/capacity", "")
				So(decodeBody(c)["capacity_remaining"], ShouldEqual, 100)
			})
		})

		Convey("When the employee lacks the skill", func() {
			w := do(mux, http.MethodPost, "/allocations",
				`{"project_id":"p1","employee_id":"e2","allocation_percentage":20,"skill_name":"Go"}`)
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(decodeBody(w)["kind"], ShouldEqual, "skill_mismatch")
		})

		Convey("When a batch has one bad member", func() {
			w := do(mux, http.MethodPost, "/allocations", `{"project_id":"p1","employees":[
				{"employee_id":"e1","allocation_percentage":20,"skill_name":"Go"},
				{"employee_id":"e2","allocation_percentage":20,"skill_name":"Go"}]}`)

			Convey("Then nothing is allocated", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				c := do(mux, http.MethodGet, "/employees/e1/capacity", "")
				So(decodeBody(c)["capacity_remaining"], ShouldEqual, 100)
			})
		})

		Convey("When the request is malformed", func() {
			for _, body := range []string{
				``,
				`{`,
				`{"project_id":"p1"}`,
				`{"project_id":"p1","employee_id":"e1","skill_name":"Go"}`,
				`{"project_id":"p1","employee_id":"e1","allocation_percentage":120,"skill_name":"Go"}`,
				`{"project_id":"p1","employee_id":"e1","allocation_percentage":10,"skill_name":"Go","extra":1}`,
			} {
				w := do(mux, http.MethodPost, "/allocations", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeBody(w)["kind"], ShouldEqual, "bad_request")
			}
		})

		Convey("When removing an allocation that does not exist", func() {
			w := do(mux, http.MethodPost, "/allocations/remove", `{"employee_id":"e1","project_id":"p2"}`)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When reading capacity of an unknown employee", func() {
			w := do(mux, http.MethodGet, "/employees/nope/capacity", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeBody(w)["kind"], ShouldEqual, "not_found")
		})
	})
}

func TestPlanningRoutes(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := seededMux()

		Convey("When asking for recommendations", func() {
			w := do(mux, http.MethodPost, "/recommendations", `{"project_id":"p1"}`)

			Convey("Then the ranked envelope is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["status"], ShouldEqual, "success")
				recs := body["recommendations"].([]any)
				So(recs, ShouldHaveLength, 1)
				So(recs[0].(map[string]any)["employee_id"], ShouldEqual, "e1")
				So(recs[0].(map[string]any)["selected"], ShouldBeTrue)
			})
		})

		Convey("When optimizing with apply and confirming", func() {
			w := do(mux, http.MethodPost, "/optimize", `{"project_ids":["p1"],"apply":true}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decodeBody(w)
			So(body["status"], ShouldEqual, "optimal")
			So(body["objective_value"], ShouldBeGreaterThan, 0)
			So(body["assignments"].([]any)[0].(map[string]any)["percentage"], ShouldEqual, 100)
			proposals := body["proposals"].([]any)
			So(proposals, ShouldHaveLength, 1)
			So(proposals[0].(map[string]any)["allocation"].(map[string]any)["status"], ShouldEqual, "proposed")

			c := do(mux, http.MethodPost, "/allocations/confirm", `{"employee_id":"e1","project_id":"p1"}`)
			So(c.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(c)["allocation"].(map[string]any)["status"], ShouldEqual, "confirmed")
		})

		Convey("When recommending without a project id", func() {
			w := do(mux, http.MethodPost, "/recommendations", `{}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestProjectRoutes(t *testing.T) {
	Convey("Given a project with an allocation", t, func() {
		mux := seededMux()
		w := do(mux, http.MethodPost, "/allocations",
			`{"project_id":"p1","employee_id":"e1","allocation_percentage":70,"skill_name":"Go"}`)
		So(w.Code, ShouldEqual, http.StatusCreated)

		Convey("When completing the project", func() {
			done := do(mux, http.MethodPost, "/projects/p1/complete", "")

			Convey("Then the allocation is completed and capacity restored", func() {
				So(done.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(done)["completed"], ShouldHaveLength, 1)
				c := do(mux, http.MethodGet, "/employees/e1/capacity", "")
				So(decodeBody(c)["capacity_remaining"], ShouldEqual, 100)
			})

			Convey("Then completing again is a no-op", func() {
				again := do(mux, http.MethodPost, "/projects/p1/complete", "")
				So(again.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(again)["completed"], ShouldBeEmpty)
			})

			Convey("Then allocating to it is an invalid transition", func() {
				al := do(mux, http.MethodPost, "/allocations",
					`{"project_id":"p1","employee_id":"e1","allocation_percentage":10,"skill_name":"Go"}`)
				So(al.Code, ShouldEqual, http.StatusConflict)
				So(decodeBody(al)["kind"], ShouldEqual, "invalid_transition")
			})
		})

		Convey("When setting a status", func() {
			st := do(mux, http.MethodPost, "/projects/p2/status", `{"status":"on-hold"}`)
			So(st.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(st)["status"], ShouldEqual, "on-hold")

			bad := do(mux, http.MethodPost, "/projects/p2/status", `{"status":"archived"}`)
			So(bad.Code, ShouldEqual, http.StatusBadRequest)

			missing := do(mux, http.MethodPost, "/projects/nope/status", `{"status":"active"}`)
			So(missing.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestErrorMapping(t *testing.T) {
	Convey("Given dependencies that fail", t, func() {
		cases := []struct {
			err  error
			code int
			kind string
		}{
			{fmt.Errorf("solve queue full: %w", fault.ErrBackpressure), http.StatusTooManyRequests, "backpressure"},
			{fault.New("allocate", fault.ErrInsufficientCapacity, "only 10%% left"), http.StatusConflict, "insufficient_capacity"},
			{fault.New("allocate", fault.ErrValidation, "bad"), http.StatusBadRequest, "validation"},
			{errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
		}
		for _, tc := range cases {
			mux := newMux(failingDeps{err: tc.err}, nil)
			w := do(mux, http.MethodPost, "/recommendations", `{"project_id":"p1"}`)
			So(w.Code, ShouldEqual, tc.code)
			body := decodeBody(w)
			So(body["kind"], ShouldEqual, tc.kind)
			So(body["message"], ShouldNotContainSubstring, "recommend:")
		}

		Convey("Then internal errors do not leak their text", func() {
			mux := newMux(failingDeps{err: errors.New("disk on fire")}, nil)
			w := do(mux, http.MethodPost, "/optimize", `{}`)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(w.Body.String(), ShouldNotContainSubstring, "disk on fire")
		})

		Convey("Then stats without a provider are empty", func() {
			w := do(newMux(failingDeps{}, nil), http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w), ShouldBeEmpty)
		})
	})
}

func doWithKey(mux http.Handler, path, body, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(api.IdempotencyHeader, key)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestIdempotency(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := seededMux()
		body := `{"project_id":"p1","employee_id":"e1","allocation_percentage":30,"skill_name":"Go"}`

		Convey("When an allocation is retried with the same key", func() {
			first := doWithKey(mux, "/allocations", body, "req-1")
			second := doWithKey(mux, "/allocations", body, "req-1")

			Convey("Then only the first is applied", func() {
				So(first.Code, ShouldEqual, http.StatusCreated)
				So(second.Code, ShouldEqual, http.StatusConflict)
				So(decodeBody(second)["kind"], ShouldEqual, "duplicate_request")
				c := do(mux, http.MethodGet, "/employees/e1/capacity", "")
				So(decodeBody(c)["capacity_remaining"], ShouldEqual, 70)
			})
		})

		Convey("When the keyed request fails", func() {
			bad := `{"project_id":"p1","employee_id":"e1","allocation_percentage":30,"skill_name":"Rust"}`
			failed := doWithKey(mux, "/allocations", bad, "req-2")
			retried := doWithKey(mux, "/allocations", body, "req-2")

			Convey("Then the key can be reused", func() {
				So(failed.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(retried.Code, ShouldEqual, http.StatusCreated)
			})
		})

		Convey("When the same key is used on another route", func() {
			So(doWithKey(mux, "/allocations", body, "req-3").Code, ShouldEqual, http.StatusCreated)
			rm := doWithKey(mux, "/allocations/remove", `{"employee_id":"e1","project_id":"p1"}`, "req-3")

			Convey("Then it is treated as a different request", func() {
				So(rm.Code, ShouldEqual, http.StatusOK)
			})
		})
	})

	Convey("Given a server with idempotency disabled", t, func() {
		mux := http.NewServeMux()
		api.NewServer(failingDeps{err: errors.New("boom")}, nil, api.WithDeduper(nil)).Register(context.Background(), mux)

		Convey("Then keyed requests are not tracked", func() {
			So(doWithKey(mux, "/optimize", `{}`, "k").Code, ShouldEqual, http.StatusInternalServerError)
			So(doWithKey(mux, "/optimize", `{}`, "k").Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}
