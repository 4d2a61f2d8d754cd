package scoring_test

import (
	"context"
	"math"
	"testing"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/model"
	scoring "github.com/akashca-pro/codex-problem-service-sub000/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDifficultyScorer_Score(t *testing.T) {
	Convey("Given a scorer with default weights", t, func() {
		scorer := scoring.NewDifficultyScorer()
		ctx := context.Background()

		Convey("When scoring accepted submissions", func() {
			Convey("Then each difficulty maps to its weight", func() {
				for difficulty, want := range map[string]float64{"easy": 10, "medium": 20, "hard": 40} {
					points, err := scorer.Score(ctx, model.Submission{Difficulty: difficulty, Accepted: true})
					So(err, ShouldBeNil)
					So(points, ShouldEqual, want)
				}
			})

			Convey("Then difficulty names are case-insensitive", func() {
				points, err := scorer.Score(ctx, model.Submission{Difficulty: " HARD ", Accepted: true})
				So(err, ShouldBeNil)
				So(points, ShouldEqual, 40)
			})

			Convey("Then unknown difficulties get the default weight", func() {
				points, err := scorer.Score(ctx, model.Submission{Difficulty: "legendary", Accepted: true})
				So(err, ShouldBeNil)
				So(points, ShouldEqual, 10)
			})
		})

		Convey("When scoring a rejected submission", func() {
			points, err := scorer.Score(ctx, model.Submission{Difficulty: "hard"})

			Convey("Then it is worth nothing", func() {
				So(err, ShouldBeNil)
				So(points, ShouldEqual, 0)
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := scorer.Score(cctx, model.Submission{Difficulty: "easy", Accepted: true})

			Convey("Then an error is returned", func() {
				So(err, ShouldNotBeNil)
				So(err, ShouldWrap, context.Canceled)
			})
		})
	})
}

func TestDifficultyScorer_Options(t *testing.T) {
	Convey("Given configured weights", t, func() {
		scorer := scoring.NewDifficultyScorer(
			scoring.WithWeights(map[string]float64{
				"Easy":    5,
				"expert":  100,
				"broken":  -1,
				"forever": math.Inf(1),
			}, 7),
		)

		Convey("Then configured names replace the defaults", func() {
			So(scorer.Weight("easy"), ShouldEqual, 5)
			So(scorer.Weight("expert"), ShouldEqual, 100)
			So(scorer.Weight("medium"), ShouldEqual, 7)
		})

		Convey("Then invalid weights fall back to the default", func() {
			So(scorer.Weight("broken"), ShouldEqual, 7)
			So(scorer.Weight("forever"), ShouldEqual, 7)
		})
	})

	Convey("Given a non-positive default weight", t, func() {
		scorer := scoring.NewDifficultyScorer(scoring.WithWeights(nil, 0))

		Convey("Then the built-in default is kept", func() {
			So(scorer.Weight("anything"), ShouldEqual, 10)
		})
	})
}
