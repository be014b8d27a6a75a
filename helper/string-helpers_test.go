package helper

import (
	"reflect"
	"testing"
	"time"

	"github.com/relloyd/sparkify/logger"
)

func TestTokensToOrderedMap(t *testing.T) {
	log := logger.NewLogger("sparkify", "info", true)
	log.Info("Test 1, confirm empty string produces empty ordered map")
	m := TokensToOrderedMap("")
	if m.Len() != 0 {
		t.Fatal("expected empty ordered map but got something")
	}
	log.Info("Test 2, confirm keys keep their order and spaces are trimmed")
	m = TokensToOrderedMap("artist_id:artist_id, artist_name : name,bad")
	got := OrderedMapKeys(m)
	expected := []string{"artist_id", "artist_name"}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected keys %v; got %v", expected, got)
	}
	if v := OrderedMapValues(m); v[1] != "name" {
		t.Fatalf("expected value %q; got %q", "name", v[1])
	}
}

func TestCsvToStringSliceTrimSpaces(t *testing.T) {
	got := CsvToStringSliceTrimSpaces(" year, artist_id ,,")
	expected := []string{"year", "artist_id"}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v; got %v", expected, got)
	}
}

func TestGetStringFromInterface(t *testing.T) {
	log := logger.NewLogger("sparkify", "info", true)
	s := "abc"
	f := 218.93179
	i := int64(2018)
	cases := []struct {
		in       interface{}
		expected string
	}{
		{in: nil, expected: ""},
		{in: &s, expected: "abc"},
		{in: (*string)(nil), expected: ""},
		{in: &f, expected: "218.93179"},
		{in: &i, expected: "2018"},
		{in: int32(7), expected: "7"},
		{in: time.Date(2018, 11, 15, 0, 30, 26, 0, time.UTC), expected: "20181115T003026+0000"},
	}
	for _, c := range cases {
		if got := GetStringFromInterfaceUseUtcTime(log, c.in); got != c.expected {
			t.Fatalf("expected %q; got %q for input %v", c.expected, got, c.in)
		}
	}
}
