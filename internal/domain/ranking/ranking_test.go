package ranking_test

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/okian/allot/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBoard(t *testing.T) {
	Convey("Given a board with tied and distinct scores", t, func() {
		b := ranking.New()
		b.Upsert("e3", 0.7)
		b.Upsert("e2", 0.96)
		b.Upsert("e1", 0.96)
		b.Upsert("e4", 0.5)

		Convey("Then TopN orders by score desc, then id asc", func() {
			top := b.TopN(10)
			So(top, ShouldHaveLength, 4)
			So([]string{top[0].ID, top[1].ID, top[2].ID, top[3].ID}, ShouldResemble, []string{"e1", "e2", "e3", "e4"})
			So(top[0].Rank, ShouldEqual, 1)
			So(top[3].Rank, ShouldEqual, 4)
			So(top[0].Score, ShouldEqual, 0.96)
		})

		Convey("Then TopN truncates", func() {
			So(b.TopN(2), ShouldHaveLength, 2)
			So(b.TopN(0), ShouldBeNil)
		})

		Convey("When a score changes", func() {
			b.Upsert("e4", 0.99)
			Convey("Then the rank follows", func() {
				r, ok := b.Rank("e4")
				So(ok, ShouldBeTrue)
				So(r.Rank, ShouldEqual, 1)
				r, _ = b.Rank("e3")
				So(r.Rank, ShouldEqual, 4)
				So(b.Len(), ShouldEqual, 4)
			})
		})

		Convey("When an id is removed", func() {
			So(b.Remove("e1"), ShouldBeTrue)
			So(b.Remove("e1"), ShouldBeFalse)
			Convey("Then the others move up", func() {
				r, _ := b.Rank("e2")
				So(r.Rank, ShouldEqual, 1)
				_, ok := b.Rank("e1")
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestBoardMatchesSort(t *testing.T) {
	Convey("Given random upserts and removals", t, func() {
		rng := rand.New(rand.NewSource(1))
		b := ranking.New()
		want := map[string]float64{}
		for i := 0; i < 2000; i++ {
			id := fmt.Sprintf("e%03d", rng.Intn(300))
			if rng.Intn(5) == 0 {
				b.Remove(id)
				delete(want, id)
				continue
			}
			score := float64(rng.Intn(50)) / 50
			b.Upsert(id, score)
			want[id] = score
		}

		ids := make([]string, 0, len(want))
		for id := range want {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			if want[ids[i]] != want[ids[j]] {
				return want[ids[i]] > want[ids[j]]
			}
			return ids[i] < ids[j]
		})

		Convey("Then the board agrees with a full sort", func() {
			top := b.TopN(len(ids))
			So(len(top), ShouldEqual, len(ids))
			for i, e := range top {
				So(e.ID, ShouldEqual, ids[i])
			}
			r, ok := b.Rank(ids[len(ids)/2])
			So(ok, ShouldBeTrue)
			So(r.Rank, ShouldEqual, len(ids)/2+1)
		})
	})
}

func TestBoardConcurrent(t *testing.T) {
	Convey("Given concurrent writers", t, func() {
		b := ranking.New()
		var wg sync.WaitGroup
		for w := 0; w < 8; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					b.Upsert(fmt.Sprintf("w%d-%d", w, i), float64(i)/100)
				}
			}(w)
		}
		wg.Wait()
		So(b.Len(), ShouldEqual, 800)
		So(b.TopN(1)[0].Score, ShouldEqual, 0.99)
	})
}
