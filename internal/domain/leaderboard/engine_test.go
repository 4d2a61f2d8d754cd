package leaderboard

import (
	"context"
	"errors"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/adapters/repository"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/model"
)

func TestEngineMutationsAndQueries(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		Convey("Given an empty engine over the "+name+" store", t, func() {
			ctx := context.Background()
			store := newStore()
			e := New(store, nil)

			Convey("Entity top-K orders by score", func() {
				So(e.AddOrSetUser(ctx, "u1", 10, "IN"), ShouldBeNil)
				So(e.AddOrSetUser(ctx, "u2", 20, "IN"), ShouldBeNil)

				rows, err := e.GetTopKEntity(ctx, "IN", 2)
				So(err, ShouldBeNil)
				So(ids(rows), ShouldResemble, []string{"u2", "u1"})
				So(ranks(rows), ShouldResemble, []int{1, 2})
				So(rows[0].Score, ShouldEqual, 20)
				So(rows[1].Score, ShouldEqual, 10)
				So(rows[0].Entity, ShouldEqual, "IN")
			})

			Convey("Tied scores share a competition rank", func() {
				So(e.AddOrSetUser(ctx, "u1", 50, ""), ShouldBeNil)
				So(e.AddOrSetUser(ctx, "u2", 50, ""), ShouldBeNil)
				So(e.AddOrSetUser(ctx, "u3", 30, ""), ShouldBeNil)

				rows, err := e.GetTopKGlobal(ctx, 3)
				So(err, ShouldBeNil)
				So(ranks(rows), ShouldResemble, []int{1, 1, 3})
				So(ids(rows)[:2], ShouldContain, "u1")
				So(ids(rows)[:2], ShouldContain, "u2")
				So(rows[2].ID, ShouldEqual, "u3")
			})

			Convey("Increment without entity uses the stored entity", func() {
				So(e.AddOrSetUser(ctx, "u1", 10, "US"), ShouldBeNil)
				So(e.IncrementScore(ctx, "u1", "", 5), ShouldBeNil)

				score, err := e.GetScore(ctx, "u1")
				So(err, ShouldBeNil)
				So(score, ShouldEqual, 15)

				rows, err := e.GetTopKEntity(ctx, "US", 10)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(rows[0].Score, ShouldEqual, 15)
			})

			Convey("Increment with an explicit entity records it", func() {
				So(e.IncrementScore(ctx, "u1", "DE", 7), ShouldBeNil)

				entity, err := e.GetEntity(ctx, "u1")
				So(err, ShouldBeNil)
				So(entity, ShouldEqual, "DE")
				rank, err := e.GetRankEntity(ctx, "u1")
				So(err, ShouldBeNil)
				So(rank, ShouldEqual, 0)
			})

			Convey("Decrement subtracts from both sets", func() {
				So(e.AddOrSetUser(ctx, "u1", 10, "US"), ShouldBeNil)
				So(e.DecrementScore(ctx, "u1", "", 4), ShouldBeNil)

				score, _ := e.GetScore(ctx, "u1")
				So(score, ShouldEqual, 6)
				rows, _ := e.GetTopKEntity(ctx, "US", 1)
				So(rows[0].Score, ShouldEqual, 6)
			})

			Convey("Increment for a user without entity only touches the global set", func() {
				So(e.IncrementScore(ctx, "u1", "", 3), ShouldBeNil)

				score, _ := e.GetScore(ctx, "u1")
				So(score, ShouldEqual, 3)
				rank, _ := e.GetRankEntity(ctx, "u1")
				So(rank, ShouldEqual, -1)
			})

			Convey("RemoveUser clears the user everywhere", func() {
				So(e.AddOrSetUser(ctx, "u1", 40, "IN"), ShouldBeNil)
				So(e.AddOrSetUser(ctx, "u2", 20, "IN"), ShouldBeNil)
				e.SetUsername(ctx, "u1", "alice")
				e.IncrementProblemsSolved(ctx, "u1")

				So(e.RemoveUser(ctx, "u1"), ShouldBeNil)

				score, _ := e.GetScore(ctx, "u1")
				So(score, ShouldEqual, 0)
				global, _ := e.GetTopKGlobal(ctx, 10)
				So(ids(global), ShouldResemble, []string{"u2"})
				entity, _ := e.GetTopKEntity(ctx, "IN", 10)
				So(ids(entity), ShouldResemble, []string{"u2"})
				_, found, _ := e.GetUsername(ctx, "u1")
				So(found, ShouldBeFalse)
				solved, _ := e.GetProblemsSolved(ctx, "u1")
				So(solved, ShouldEqual, 0)
			})

			Convey("RemoveUser of an unknown user succeeds", func() {
				So(e.RemoveUser(ctx, "ghost"), ShouldBeNil)
			})

			Convey("UpdateEntity rejects an empty entity and changes nothing", func() {
				So(e.AddOrSetUser(ctx, "u1", 10, "IN"), ShouldBeNil)

				err := e.UpdateEntity(ctx, "u1", "")
				So(errors.Is(err, ErrValidation), ShouldBeTrue)

				entity, _ := e.GetEntity(ctx, "u1")
				So(entity, ShouldEqual, "IN")
				rows, _ := e.GetTopKEntity(ctx, "IN", 10)
				So(ids(rows), ShouldResemble, []string{"u1"})
			})

			Convey("UpdateEntity moves the user and keeps metadata", func() {
				So(e.AddOrSetUser(ctx, "u1", 25, "IN"), ShouldBeNil)
				So(e.AddOrSetUser(ctx, "u2", 5, "IN"), ShouldBeNil)
				e.SetUsername(ctx, "u1", "alice")
				e.IncrementProblemsSolved(ctx, "u1")
				e.IncrementProblemsSolved(ctx, "u1")

				So(e.UpdateEntity(ctx, "u1", "US"), ShouldBeNil)

				in, _ := e.GetTopKEntity(ctx, "IN", 10)
				So(ids(in), ShouldResemble, []string{"u2"})
				us, _ := e.GetTopKEntity(ctx, "US", 10)
				So(us, ShouldHaveLength, 1)
				So(us[0].ID, ShouldEqual, "u1")
				So(us[0].Score, ShouldEqual, 25)
				So(us[0].Username, ShouldEqual, "alice")
				So(us[0].ProblemsSolved, ShouldEqual, 2)
				So(us[0].Entity, ShouldEqual, "US")
			})

			Convey("UpdateEntity rewrites a corrupt solved count the way reads see it", func() {
				So(e.AddOrSetUser(ctx, "u1", 25, "IN"), ShouldBeNil)
				So(store.HSet(ctx, e.Keys().UserSolved(), "u1", "not-a-number"), ShouldBeNil)
				before, err := e.GetProblemsSolved(ctx, "u1")
				So(err, ShouldBeNil)

				So(e.UpdateEntity(ctx, "u1", "US"), ShouldBeNil)

				after, err := e.GetProblemsSolved(ctx, "u1")
				So(err, ShouldBeNil)
				So(after, ShouldEqual, before)
				raw, ok, err := store.HGet(ctx, e.Keys().UserSolved(), "u1")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(raw, ShouldEqual, "0")
			})

			Convey("UpdateEntity to the same entity is a no-op", func() {
				So(e.AddOrSetUser(ctx, "u1", 25, "IN"), ShouldBeNil)
				So(e.UpdateEntity(ctx, "u1", "IN"), ShouldBeNil)

				rows, _ := e.GetTopKEntity(ctx, "IN", 10)
				So(ids(rows), ShouldResemble, []string{"u1"})
				_, found, _ := e.GetUsername(ctx, "u1")
				So(found, ShouldBeFalse)
			})

			Convey("UpdateEntity for an unranked user writes metadata only", func() {
				So(e.UpdateEntity(ctx, "u9", "FR"), ShouldBeNil)

				entity, _ := e.GetEntity(ctx, "u9")
				So(entity, ShouldEqual, "FR")
				rows, _ := e.GetTopKEntity(ctx, "FR", 10)
				So(rows, ShouldBeEmpty)
				solved, _ := e.GetProblemsSolved(ctx, "u9")
				So(solved, ShouldEqual, 0)
			})

			Convey("A never-seen user reads as defaults", func() {
				score, err := e.GetScore(ctx, "nobody")
				So(err, ShouldBeNil)
				So(score, ShouldEqual, 0)

				rank, err := e.GetRankGlobal(ctx, "nobody")
				So(err, ShouldBeNil)
				So(rank, ShouldEqual, -1)

				solved, err := e.GetProblemsSolved(ctx, "nobody")
				So(err, ShouldBeNil)
				So(solved, ShouldEqual, 0)

				name, found, err := e.GetUsername(ctx, "nobody")
				So(err, ShouldBeNil)
				So(found, ShouldBeFalse)
				So(name, ShouldBeEmpty)

				entity, err := e.GetEntity(ctx, "nobody")
				So(err, ShouldBeNil)
				So(entity, ShouldBeEmpty)
			})

			Convey("Positional ranks are 0-based", func() {
				So(e.AddOrSetUser(ctx, "u1", 10, "IN"), ShouldBeNil)
				So(e.AddOrSetUser(ctx, "u2", 30, "US"), ShouldBeNil)
				So(e.AddOrSetUser(ctx, "u3", 20, "IN"), ShouldBeNil)

				rank, _ := e.GetRankGlobal(ctx, "u2")
				So(rank, ShouldEqual, 0)
				rank, _ = e.GetRankGlobal(ctx, "u1")
				So(rank, ShouldEqual, 2)
				rank, _ = e.GetRankEntity(ctx, "u1")
				So(rank, ShouldEqual, 1)
			})

			Convey("GetUserLeaderboardData composes all fields", func() {
				So(e.AddOrSetUser(ctx, "u1", 10, "IN"), ShouldBeNil)
				So(e.AddOrSetUser(ctx, "u2", 30, "IN"), ShouldBeNil)
				e.SetUsername(ctx, "u1", "alice")

				d, err := e.GetUserLeaderboardData(ctx, "u1")
				So(err, ShouldBeNil)
				So(d, ShouldResemble, model.UserLeaderboardData{
					UserID: "u1", Username: "alice", Score: 10, Entity: "IN", GlobalRank: 1, EntityRank: 1,
				})

				d, err = e.GetUserLeaderboardData(ctx, "nobody")
				So(err, ShouldBeNil)
				So(d.GlobalRank, ShouldEqual, -1)
				So(d.EntityRank, ShouldEqual, -1)
				So(d.Entity, ShouldBeEmpty)
			})

			Convey("Top-K is hydrated with metadata", func() {
				So(e.AddOrSetUser(ctx, "u1", 10, "IN"), ShouldBeNil)
				So(e.AddOrSetUser(ctx, "u2", 5, ""), ShouldBeNil)
				e.SetUsername(ctx, "u1", "alice")
				e.IncrementProblemsSolved(ctx, "u1")

				rows, err := e.GetTopKGlobal(ctx, 10)
				So(err, ShouldBeNil)
				So(rows, ShouldResemble, []model.LeaderboardEntry{
					{ID: "u1", Score: 10, Entity: "IN", Username: "alice", ProblemsSolved: 1, Rank: 1},
					{ID: "u2", Score: 5, Rank: 2},
				})
			})

			Convey("Top-K bounds", func() {
				So(e.AddOrSetUser(ctx, "u1", 1, ""), ShouldBeNil)

				_, err := e.GetTopKGlobal(ctx, 0)
				So(errors.Is(err, ErrValidation), ShouldBeTrue)
				_, err = e.GetTopKEntity(ctx, "IN", -1)
				So(errors.Is(err, ErrValidation), ShouldBeTrue)

				rows, err := e.GetTopKEntity(ctx, "", 5)
				So(err, ShouldBeNil)
				So(rows, ShouldBeEmpty)

				rows, err = e.GetTopKGlobal(ctx, 100)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)

				rows, err = e.GetTopKEntity(ctx, "nowhere", 5)
				So(err, ShouldBeNil)
				So(rows, ShouldBeEmpty)
			})

			Convey("Invalid arguments are rejected", func() {
				So(errors.Is(e.AddOrSetUser(ctx, "", 1, ""), ErrValidation), ShouldBeTrue)
				So(errors.Is(e.AddOrSetUser(ctx, "u1", math.NaN(), ""), ErrValidation), ShouldBeTrue)
				So(errors.Is(e.IncrementScore(ctx, "u1", "", math.Inf(1)), ErrValidation), ShouldBeTrue)
				So(errors.Is(e.DecrementScore(ctx, "", "", 1), ErrValidation), ShouldBeTrue)
				So(errors.Is(e.RemoveUser(ctx, ""), ErrValidation), ShouldBeTrue)
				So(errors.Is(e.UpdateEntity(ctx, "", "IN"), ErrValidation), ShouldBeTrue)

				rows, _ := e.GetTopKGlobal(ctx, 10)
				So(rows, ShouldBeEmpty)
			})
		})
	}
}

func TestRankProperties(t *testing.T) {
	Convey("Given a populated engine", t, func() {
		ctx := context.Background()
		e := New(repository.NewMemStore(), nil)
		scores := map[string]float64{"a": 90, "b": 100, "c": 90, "d": 70, "e": 100, "f": 50, "g": 70}
		for id, s := range scores {
			So(e.AddOrSetUser(ctx, id, s, "X"), ShouldBeNil)
		}

		for _, scope := range []string{"global", "entity"} {
			var rows []model.LeaderboardEntry
			var err error
			if scope == "global" {
				rows, err = e.GetTopKGlobal(ctx, len(scores))
			} else {
				rows, err = e.GetTopKEntity(ctx, "X", len(scores))
			}
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, len(scores))

			Convey("Higher scores rank strictly better in the "+scope+" view", func() {
				for _, a := range rows {
					for _, b := range rows {
						if a.Score > b.Score {
							So(a.Rank, ShouldBeLessThan, b.Rank)
						}
					}
				}
			})

			Convey("Ties share a rank and the next score skips in the "+scope+" view", func() {
				So(ranks(rows), ShouldResemble, []int{1, 1, 3, 3, 5, 5, 7})
			})
		}
	})

	Convey("Entity membership follows the stored entity", t, func() {
		ctx := context.Background()
		e := New(repository.NewMemStore(), nil)
		So(e.AddOrSetUser(ctx, "u1", 10, "IN"), ShouldBeNil)
		So(e.UpdateEntity(ctx, "u1", "US"), ShouldBeNil)
		So(e.IncrementScore(ctx, "u1", "", 5), ShouldBeNil)

		in, _ := e.GetTopKEntity(ctx, "IN", 10)
		So(in, ShouldBeEmpty)
		us, _ := e.GetTopKEntity(ctx, "US", 10)
		So(ids(us), ShouldResemble, []string{"u1"})
		So(us[0].Score, ShouldEqual, 15)
	})
}

func TestEngineStoreFailures(t *testing.T) {
	Convey("Given an engine over a failing store", t, func() {
		ctx := context.Background()
		store := &flakyStore{Store: repository.NewMemStore()}
		e := New(store, nil)
		So(e.AddOrSetUser(ctx, "u1", 10, "IN"), ShouldBeNil)
		store.failing.Store(true)

		Convey("Mutations and queries report store errors", func() {
			checks := []error{
				e.AddOrSetUser(ctx, "u1", 1, ""),
				e.IncrementScore(ctx, "u1", "", 1),
				e.RemoveUser(ctx, "u1"),
				e.UpdateEntity(ctx, "u1", "US"),
			}
			_, err := e.GetScore(ctx, "u1")
			checks = append(checks, err)
			_, err = e.GetRankEntity(ctx, "u1")
			checks = append(checks, err)
			_, err = e.GetTopKGlobal(ctx, 3)
			checks = append(checks, err)
			_, err = e.GetUserLeaderboardData(ctx, "u1")
			checks = append(checks, err)

			for _, err := range checks {
				So(errors.Is(err, ErrStore), ShouldBeTrue)
				So(errors.Is(err, errInjected), ShouldBeTrue)
				var lerr *Error
				So(errors.As(err, &lerr), ShouldBeTrue)
				So(lerr.Op, ShouldNotBeEmpty)
			}
		})

		Convey("Best-effort writes swallow failures", func() {
			So(func() { e.IncrementProblemsSolved(ctx, "u1") }, ShouldNotPanic)
			So(func() { e.SetUsername(ctx, "u1", "alice") }, ShouldNotPanic)
		})

		Convey("Validation runs before the store is touched", func() {
			before := store.txCalls.Load()
			err := e.AddOrSetUser(ctx, "", 1, "")
			So(errors.Is(err, ErrValidation), ShouldBeTrue)
			So(errors.Is(err, ErrStore), ShouldBeFalse)
			So(store.txCalls.Load(), ShouldEqual, before)
		})

		Convey("Recovery restores normal operation", func() {
			store.failing.Store(false)
			score, err := e.GetScore(ctx, "u1")
			So(err, ShouldBeNil)
			So(score, ShouldEqual, 10)
		})
	})
}
