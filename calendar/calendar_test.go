package calendar

import (
	"testing"
	"time"
)

func TestToTimestamp(t *testing.T) {
	cases := []struct {
		in       int64
		expected time.Time
	}{
		{in: 1541903636796, expected: time.Date(2018, 11, 11, 2, 33, 56, 0, time.UTC)},
		{in: 0, expected: time.Unix(0, 0).UTC()},
		{in: 999, expected: time.Unix(0, 0).UTC()},
		{in: -1, expected: time.Unix(-1, 0).UTC()},
		{in: -1000, expected: time.Unix(-1, 0).UTC()},
	}
	for _, c := range cases {
		got := ToTimestamp(c.in)
		if !got.Equal(c.expected) || got.Location() != time.UTC {
			t.Fatalf("ToTimestamp(%v): expected %v; got %v", c.in, c.expected, got)
		}
	}
}

func TestNewTimeParts(t *testing.T) {
	// Thursday 15th November 2018 is in ISO week 46.
	p := NewTimeParts(time.Date(2018, 11, 15, 0, 30, 26, 0, time.UTC))
	expected := TimeParts{Hour: 0, Day: 15, Week: 46, Month: 11, Year: 2018, Weekday: 5}
	if p != expected {
		t.Fatalf("expected %+v; got %+v", expected, p)
	}
	// Sunday is 1 and Saturday is 7.
	if got := NewTimeParts(time.Date(2018, 11, 4, 12, 0, 0, 0, time.UTC)).Weekday; got != 1 {
		t.Fatalf("expected Sunday = 1; got %v", got)
	}
	if got := NewTimeParts(time.Date(2018, 11, 3, 12, 0, 0, 0, time.UTC)).Weekday; got != 7 {
		t.Fatalf("expected Saturday = 7; got %v", got)
	}
	// ISO week of 1st January 2016 belongs to week 53 of the previous year.
	if got := NewTimeParts(time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)).Week; got != 53 {
		t.Fatalf("expected week 53; got %v", got)
	}
	// Times in other zones are converted to UTC first.
	loc := time.FixedZone("UTC-8", -8*3600)
	if got := NewTimeParts(time.Date(2018, 11, 30, 20, 0, 0, 0, loc)); got.Month != 12 || got.Day != 1 || got.Hour != 4 {
		t.Fatalf("unexpected parts for a non-UTC time: %+v", got)
	}
}

func TestTimePartsRoundTrip(t *testing.T) {
	// Re-deriving the parts from the same start time reproduces them exactly.
	for ms := int64(1541030400000); ms < 1543622400000; ms += 7777777 {
		st := ToTimestamp(ms)
		a := NewTimeParts(st)
		b := NewTimeParts(ToTimestamp(st.UnixNano() / int64(time.Millisecond)))
		if a != b {
			t.Fatalf("parts differ for %v: %+v vs %+v", st, a, b)
		}
		if _, ok := a.Get(PartWeekday); !ok {
			t.Fatal("expected weekday part")
		}
	}
	if _, ok := (TimeParts{}).Get("quarter"); ok {
		t.Fatal("expected unknown part to fail")
	}
}
