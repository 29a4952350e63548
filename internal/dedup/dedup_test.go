package dedup

import (
	"testing"

	"github.com/lepinkainen/bookfeed/internal/catalog"
	. "github.com/smartystreets/goconvey/convey"
)

func rec(id, title, authors string) catalog.Record {
	return catalog.Record{ExternalID: id, Title: title, Authors: authors}
}

func TestFold(t *testing.T) {
	Convey("Given titles that differ only in accents, case and punctuation", t, func() {
		So(Fold("Les Misérables!"), ShouldEqual, "lesmiserables")
		So(Fold("  THE  Hobbit: or, There & Back Again"), ShouldEqual, "thehobbitortherebackagain")
		So(Fold("Straße"), ShouldEqual, "strasse")
		So(Fold(""), ShouldBeEmpty)
	})
}

func TestDeduper(t *testing.T) {
	Convey("Given a fresh Deduper", t, func() {
		d := New()

		Convey("The first record is never a duplicate", func() {
			So(d.SeenAndRecord(rec("0000000001", "Dune", "Frank Herbert")), ShouldBeFalse)
			So(d.Len(), ShouldEqual, 1)

			Convey("The same title and author under a different id is a duplicate", func() {
				So(d.SeenAndRecord(rec("0000000002", "DUNE", "frank herbert")), ShouldBeTrue)
			})

			Convey("A different book sharing the id is a duplicate", func() {
				So(d.SeenAndRecord(rec("0000000001", "Emma", "Jane Austen")), ShouldBeTrue)
			})

			Convey("The same title by another author is distinct", func() {
				So(d.SeenAndRecord(rec("0000000003", "Dune", "Someone Else")), ShouldBeFalse)
			})
		})

		Convey("Author order does not matter", func() {
			So(d.SeenAndRecord(rec("1", "Good Omens", "Terry Pratchett, Neil Gaiman")), ShouldBeFalse)
			So(d.SeenAndRecord(rec("2", "Good Omens", "Neil Gaiman, Terry Pratchett")), ShouldBeTrue)
		})

		Convey("Unique keeps first-seen order", func() {
			in := []catalog.Record{
				rec("1", "Dune", "Frank Herbert"),
				rec("2", "Emma", "Jane Austen"),
				rec("3", "dune", "Frank Herbert"),
				rec("2", "Persuasion", "Jane Austen"),
				rec("4", "Beloved", "Toni Morrison"),
			}

			out := d.Unique(in)

			So(len(out), ShouldEqual, 3)
			So(out[0].ExternalID, ShouldEqual, "1")
			So(out[1].ExternalID, ShouldEqual, "2")
			So(out[2].ExternalID, ShouldEqual, "4")

			Convey("and remembers across calls", func() {
				So(d.Unique([]catalog.Record{rec("9", "Beloved", "Toni Morrison")}), ShouldBeEmpty)
			})
		})
	})
}
