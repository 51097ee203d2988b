package upstream

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/okian/boxscore/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseFlexFloat(t *testing.T) {
	Convey("Numeric fields accept every upstream encoding", t, func() {
		So(*parseFlexFloat("28"), ShouldEqual, 28)
		So(*parseFlexFloat("0.478"), ShouldEqual, 0.478)
		So(*parseFlexFloat("34:30"), ShouldEqual, 34.5)
		So(*parseFlexFloat("12:20"), ShouldEqual, 12.33)

		Convey("Unparsable values degrade to nil", func() {
			for _, s := range []string{"", "null", "abc", "12:xx", "NaN"} {
				So(parseFlexFloat(s), ShouldBeNil)
			}
		})
	})
}

func TestFlexID(t *testing.T) {
	Convey("Ids decode from numbers and strings", t, func() {
		var ids []flexID
		So(json.Unmarshal([]byte(`[2544,"0022400123","abc",null,""]`), &ids), ShouldBeNil)
		So(len(ids), ShouldEqual, 5)

		v, ok := ids[0].Int64()
		So(ok, ShouldBeTrue)
		So(v, ShouldEqual, 2544)

		v, ok = ids[1].Int64()
		So(ok, ShouldBeTrue)
		So(v, ShouldEqual, 22400123)

		for _, id := range ids[2:] {
			_, ok := id.Int64()
			So(ok, ShouldBeFalse)
			So(id.ptr(), ShouldBeNil)
		}
	})
}

func TestParseCalendarDate(t *testing.T) {
	Convey("Calendar dates normalise to midnight UTC", t, func() {
		want := model.Day(2025, time.January, 15)
		for _, s := range []string{"2025-01-15", "Jan 15, 2025", "01/15/2025", "01/15/2025 12:00:00 AM", "2025-01-15T19:30:00"} {
			got, ok := parseCalendarDate(s)
			So(ok, ShouldBeTrue)
			So(got, ShouldEqual, want)
		}

		_, ok := parseCalendarDate("someday")
		So(ok, ShouldBeFalse)
	})
}
