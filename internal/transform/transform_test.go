package transform

import (
	"testing"
	"time"

	"churn/pkg/records"
)

func TestRename(t *testing.T) {
	t.Parallel()

	in := []records.Record{{"sub_id": "1", "status": "active"}}
	out := Rename{Map: map[string]string{
		"sub_id": "subscription_id",
		"status": "status", // identity, no-op
		"absent": "whatever",
	}}.Apply(in)

	r := out[0]
	if v, _ := r.String("subscription_id"); v != "1" {
		t.Fatalf("subscription_id = %q", v)
	}
	if _, ok := r["sub_id"]; ok {
		t.Fatalf("source key not removed")
	}
	if v, _ := r.String("status"); v != "active" {
		t.Fatalf("identity rename clobbered value: %q", v)
	}
	if _, ok := r["whatever"]; ok {
		t.Fatalf("absent source produced a key")
	}
}

func TestDatesCoercion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   any
		want any // nil or "YYYY-MM-DD"
	}{
		{"iso", "2025-03-09", "2025-03-09"},
		{"iso datetime", "2025-03-09 14:30:00", "2025-03-09"},
		{"rfc3339", "2025-03-09T14:30:00Z", "2025-03-09"},
		{"us slash", "03/09/2025", "2025-03-09"},
		{"eu dotted", "09.03.2025", "2025-03-09"},
		{"garbage", "not a date", nil},
		{"empty", "", nil},
		{"missing", nil, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			in := []records.Record{{"d": tc.in}}
			out := Dates{Fields: []string{"d"}}.Apply(in)
			got, ok := out[0].Time("d")

			if tc.want == nil {
				if ok {
					t.Fatalf("got %v, want missing", got)
				}
				return
			}
			if !ok {
				t.Fatalf("value missing, want %v", tc.want)
			}
			if s := got.Format("2006-01-02"); s != tc.want {
				t.Fatalf("parsed %s, want %s", s, tc.want)
			}
			if h, m, sec := got.Clock(); h+m+sec != 0 {
				t.Fatalf("not truncated to midnight: %v", got)
			}
		})
	}
}

func TestNumbersCoercion(t *testing.T) {
	t.Parallel()

	in := []records.Record{{
		"id":    "42",
		"idf":   "7.0",
		"price": "19.99",
		"bad":   "n/a",
	}}
	out := Numbers{Ints: []string{"id", "idf", "bad"}, Floats: []string{"price"}}.Apply(in)
	r := out[0]

	if v, ok := r.Int("id"); !ok || v != 42 {
		t.Fatalf("id = %v, %v", v, ok)
	}
	if v, ok := r.Int("idf"); !ok || v != 7 {
		t.Fatalf("idf = %v, %v (float-formatted id should coerce)", v, ok)
	}
	if v, ok := r.Float("price"); !ok || v != 19.99 {
		t.Fatalf("price = %v, %v", v, ok)
	}
	if r.Has("bad") {
		t.Fatalf("unparseable value should be nil")
	}
}

func TestChainOrder(t *testing.T) {
	t.Parallel()

	in := []records.Record{{"Start": "2025-01-02"}}
	c := Chain{
		Rename{Map: map[string]string{"Start": "start_date"}},
		Dates{Fields: []string{"start_date"}},
	}
	out := c.Apply(in)
	want := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	if v, ok := out[0].Time("start_date"); !ok || !v.Equal(want) {
		t.Fatalf("chain result = %v, %v", v, ok)
	}
}

func TestBoolsCoercion(t *testing.T) {
	t.Parallel()

	rows := []records.Record{
		{"a": "true", "b": "0", "c": "maybe", "d": true},
		{"a": "False"},
	}
	Bools{Fields: []string{"a", "b", "c", "d"}}.Apply(rows)

	if v, _ := rows[0].Bool("a"); !v {
		t.Errorf("a = %v, want true", rows[0]["a"])
	}
	if v, ok := rows[0].Bool("b"); !ok || v {
		t.Errorf("b = %v, want false", rows[0]["b"])
	}
	if rows[0]["c"] != nil {
		t.Errorf("c = %v, want nil", rows[0]["c"])
	}
	if v, _ := rows[0].Bool("d"); !v {
		t.Errorf("d = %v, want true untouched", rows[0]["d"])
	}
	if v, ok := rows[1].Bool("a"); !ok || v {
		t.Errorf("row 2 a = %v, want false", rows[1]["a"])
	}
}
