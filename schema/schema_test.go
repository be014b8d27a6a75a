package schema

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/relloyd/sparkify/stream"
)

func TestEventRecordUserIDFormats(t *testing.T) {
	dec := json.NewDecoder(strings.NewReader(`
{"userId":"10","ts":100,"page":"NextSong"}
{"userId":26,"ts":1541903636796,"sessionId":583}
{"userId":null}
{}
`))
	expected := []*string{strPtr("10"), strPtr("26"), nil, nil}
	for idx, want := range expected {
		var e EventRecord
		if err := dec.Decode(&e); err != nil {
			t.Fatalf("record %v: %v", idx, err)
		}
		got := e.ToRecord().GetString(FieldUserID)
		if (got == nil) != (want == nil) || (got != nil && *got != *want) {
			t.Fatalf("record %v: expected %v; got %v", idx, want, got)
		}
	}
}

func TestEventRecordRejectsBadUserID(t *testing.T) {
	var e EventRecord
	if err := json.Unmarshal([]byte(`{"userId":true}`), &e); err == nil {
		t.Fatal("expected error for a boolean userId")
	}
}

func TestSongRecordNulls(t *testing.T) {
	var s SongRecord
	if err := json.Unmarshal([]byte(`{"song_id":"SOUPIRU12A6D4FA1E1","artist_latitude":null,"year":0,"duration":245.21098}`), &s); err != nil {
		t.Fatal(err)
	}
	r := s.ToRecord()
	if !r.IsNull(FieldArtistLatitude) || !r.IsNull(FieldTitle) {
		t.Fatal("expected null fields for null and missing keys")
	}
	if y := r.GetInt64(FieldYear); y == nil || *y != 0 {
		t.Fatal("expected year 0 to be kept")
	}
	row := SongFromRecord(r)
	if *row.SongID != "SOUPIRU12A6D4FA1E1" || *row.Duration != 245.21098 || row.Title != nil {
		t.Fatalf("unexpected row %+v", row)
	}
}

func TestRowsFromRecords(t *testing.T) {
	ts := time.Date(2018, 11, 15, 0, 30, 26, 0, time.UTC)
	r := stream.NewRecord()
	r.SetData(ColStartTime, ts)
	r.SetData(ColHour, int32(0))
	r.SetData(ColDay, int32(15))
	r.SetData(ColWeek, int32(46))
	r.SetData(ColWeekday, int32(5))
	ti := TimeSliceFromRecord(r)
	if !ti.StartTime.Equal(ts) || ti.Day != 15 || ti.Week != 46 || ti.Weekday != 5 {
		t.Fatalf("unexpected time row %+v", ti)
	}
	p := stream.NewRecord()
	p.SetData(ColStartTime, ts)
	p.SetData(ColUserID, strPtr("26"))
	p.SetData(FieldLevel, strPtr("free"))
	p.SetData(FieldSongID, strPtr("SOXXX"))
	p.SetData(FieldArtistID, strPtr("ARXXX"))
	p.SetData(ColSessionID, (*int64)(nil))
	p.SetData(FieldLocation, nil)
	p.SetData(ColUserAgent, strPtr("Mozilla"))
	p.SetData(ColSongplayID, int64(1<<33+1))
	sp := SongPlayFromRecord(p)
	if sp.SongplayID != 1<<33+1 || sp.SessionID != nil || *sp.UserID != "26" {
		t.Fatalf("unexpected songplay row %+v", sp)
	}
}

func TestTableDefinitions(t *testing.T) {
	for _, td := range []TableDefinition{SongsTable, ArtistsTable, UsersTable, TimeTable, SongplaysTable} {
		cols := make(map[string]bool)
		for _, c := range td.Columns {
			cols[c] = true
		}
		for _, p := range td.PartitionBy {
			if !cols[p] {
				t.Fatalf("table %v partition column %v is not a column", td.Name, p)
			}
		}
	}
}

func strPtr(s string) *string {
	return &s
}
