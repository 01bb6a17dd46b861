package mirror

import (
	"testing"

	"github.com/taxiline/taxiline/internal/districts"
)

func testTable() districts.Table {
	return districts.Table{
		Districts: []districts.District{
			{Key: "central", Title: "Центральный", ThreadID: 11, Keywords: []string{"москва", "тверь", "тула"}},
			{Key: "sev_zapad", Title: "Северо-Западный", ThreadID: 12, Keywords: []string{"петербург", "псков"}},
			{Key: "yug", Title: "Южный", ThreadID: 13, Keywords: []string{"краснодар", "сочи"}},
		},
		Blacklist: []string{"реклама", "продам", "егодня в прода"},
	}
}

func newTestClassifier(tbl districts.Table) *Classifier {
	return NewClassifier(districts.NewStore(tbl))
}

func TestClassify_SingleDistrict(t *testing.T) {
	c := newTestClassifier(testTable())
	cls := c.Classify("Москва - Тверь, сегодня в 19:00, 5000 руб")
	if cls.Blocked {
		t.Fatal("unexpected block")
	}
	if len(cls.Matched) != 1 || cls.Matched[0] != "central" {
		t.Fatalf("Matched = %v, want [central]", cls.Matched)
	}
	if cls.Primary != "central" {
		t.Errorf("Primary = %q, want central", cls.Primary)
	}
}

func TestClassify_BlacklistShortCircuits(t *testing.T) {
	c := newTestClassifier(testTable())
	cls := c.Classify("Продам запчасти, самовывоз Москва")
	if !cls.Blocked {
		t.Fatal("expected blocked")
	}
	if len(cls.Matched) != 0 || cls.Primary != "" {
		t.Errorf("blocked message must carry no district routing, got %v / %q", cls.Matched, cls.Primary)
	}
}

func TestClassify_TodayMaskAvoidsFalsePositive(t *testing.T) {
	// The masked "сегодня" must not trip blacklist terms that are substrings
	// of it, while the same term elsewhere in the text still blocks.
	c := newTestClassifier(testTable())

	cls := c.Classify("Выезд сегодня в 19:00 Москва-Тверь")
	if cls.Blocked {
		t.Fatal("the word 'сегодня' alone must not disqualify a message")
	}

	cls = c.Classify("Москва егодня в продаже дешево")
	if !cls.Blocked {
		t.Fatal("blacklist term outside the mask should still block")
	}
}

func TestClassify_SubstringMatching(t *testing.T) {
	// Matching is substring-based, not tokenized: "тула" inside "Тулачермет".
	c := newTestClassifier(testTable())
	cls := c.Classify("Забрать груз от проходной Тулачермет завтра утром")
	if len(cls.Matched) != 1 || cls.Matched[0] != "central" {
		t.Fatalf("Matched = %v, want [central]", cls.Matched)
	}
}

func TestClassify_MultipleDistricts(t *testing.T) {
	c := newTestClassifier(testTable())
	cls := c.Classify("Сочи - Москва, завтра, 2 пассажира")
	if len(cls.Matched) != 2 {
		t.Fatalf("Matched = %v, want two districts", cls.Matched)
	}
	// Matched keeps table order regardless of text order.
	if cls.Matched[0] != "central" || cls.Matched[1] != "yug" {
		t.Errorf("Matched = %v, want [central yug]", cls.Matched)
	}
	// Primary goes to the earliest keyword occurrence: "сочи" at position 0.
	if cls.Primary != "yug" {
		t.Errorf("Primary = %q, want yug (pickup city comes first)", cls.Primary)
	}
}

func TestClassify_PrimaryTieIsStable(t *testing.T) {
	tbl := districts.Table{
		Districts: []districts.District{
			{Key: "a", Keywords: []string{"мос"}},
			{Key: "b", Keywords: []string{"москва"}},
		},
	}
	c := newTestClassifier(tbl)
	// Both keywords match at position 0; the first district in table order wins.
	cls := c.Classify("москва - тверь, нужна машина на 4 человека")
	if cls.Primary != "a" {
		t.Errorf("Primary = %q, want a (first in table order on tie)", cls.Primary)
	}
}

func TestClassify_NoMatch(t *testing.T) {
	c := newTestClassifier(testTable())
	cls := c.Classify("Владивосток - Хабаровск, 3 пассажира, завтра")
	if cls.Blocked || len(cls.Matched) != 0 || cls.Primary != "" {
		t.Errorf("unexpected classification: %+v", cls)
	}
}

func TestClassify_EmptyTableDegrades(t *testing.T) {
	c := newTestClassifier(districts.Table{})
	cls := c.Classify("Москва - Тверь, сегодня, 5000")
	if cls.Blocked || len(cls.Matched) != 0 {
		t.Errorf("empty table must degrade to no matches, got %+v", cls)
	}
}

func TestClassify_ReadsCurrentTable(t *testing.T) {
	store := districts.NewStore(testTable())
	c := NewClassifier(store)

	if cls := c.Classify("Уфа - Казань, нужен минивэн на завтра"); len(cls.Matched) != 0 {
		t.Fatalf("unexpected match before reload: %v", cls.Matched)
	}

	tbl := testTable()
	tbl.Districts = append(tbl.Districts, districts.District{
		Key: "privolz", Title: "Приволжский", ThreadID: 14, Keywords: []string{"казань", "уфа"},
	})
	store.Swap(tbl)

	cls := c.Classify("Уфа - Казань, нужен минивэн на завтра")
	if len(cls.Matched) != 1 || cls.Matched[0] != "privolz" {
		t.Errorf("classifier did not pick up the swapped table: %v", cls.Matched)
	}
}
