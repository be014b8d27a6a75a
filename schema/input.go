// Package schema holds the typed input records and output table rows.
// Every field of the input records is optional and a JSON null or a missing key both decode to nil.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/relloyd/sparkify/stream"
)

// Field names of the song catalog records.
const (
	FieldNumSongs        = "num_songs"
	FieldArtistID        = "artist_id"
	FieldArtistLatitude  = "artist_latitude"
	FieldArtistLongitude = "artist_longitude"
	FieldArtistLocation  = "artist_location"
	FieldArtistName      = "artist_name"
	FieldSongID          = "song_id"
	FieldTitle           = "title"
	FieldDuration        = "duration"
	FieldYear            = "year"
)

// SongRecord is one song metadata record.
type SongRecord struct {
	NumSongs        *int64   `json:"num_songs"`
	ArtistID        *string  `json:"artist_id"`
	ArtistLatitude  *float64 `json:"artist_latitude"`
	ArtistLongitude *float64 `json:"artist_longitude"`
	ArtistLocation  *string  `json:"artist_location"`
	ArtistName      *string  `json:"artist_name"`
	SongID          *string  `json:"song_id"`
	Title           *string  `json:"title"`
	Duration        *float64 `json:"duration"`
	Year            *int64   `json:"year"`
}

// ToRecord converts the song into a stream.Record keyed by the JSON field names.
func (s *SongRecord) ToRecord() stream.Record {
	r := stream.NewRecord()
	r.SetData(FieldNumSongs, s.NumSongs)
	r.SetData(FieldArtistID, s.ArtistID)
	r.SetData(FieldArtistLatitude, s.ArtistLatitude)
	r.SetData(FieldArtistLongitude, s.ArtistLongitude)
	r.SetData(FieldArtistLocation, s.ArtistLocation)
	r.SetData(FieldArtistName, s.ArtistName)
	r.SetData(FieldSongID, s.SongID)
	r.SetData(FieldTitle, s.Title)
	r.SetData(FieldDuration, s.Duration)
	r.SetData(FieldYear, s.Year)
	return r
}

// Field names of the event log records.
const (
	FieldArtist        = "artist"
	FieldAuth          = "auth"
	FieldFirstName     = "firstName"
	FieldGender        = "gender"
	FieldItemInSession = "itemInSession"
	FieldLastName      = "lastName"
	FieldLength        = "length"
	FieldLevel         = "level"
	FieldLocation      = "location"
	FieldMethod        = "method"
	FieldPage          = "page"
	FieldRegistration  = "registration"
	FieldSessionID     = "sessionId"
	FieldSong          = "song"
	FieldStatus        = "status"
	FieldTs            = "ts"
	FieldUserAgent     = "userAgent"
	FieldUserID        = "userId"
)

// EventRecord is one user action from the event log.
type EventRecord struct {
	Artist        *string     `json:"artist"`
	Auth          *string     `json:"auth"`
	FirstName     *string     `json:"firstName"`
	Gender        *string     `json:"gender"`
	ItemInSession *int64      `json:"itemInSession"`
	LastName      *string     `json:"lastName"`
	Length        *float64    `json:"length"`
	Level         *string     `json:"level"`
	Location      *string     `json:"location"`
	Method        *string     `json:"method"`
	Page          *string     `json:"page"`
	Registration  *float64    `json:"registration"`
	SessionID     *int64      `json:"sessionId"`
	Song          *string     `json:"song"`
	Status        *int64      `json:"status"`
	Ts            *int64      `json:"ts"`
	UserAgent     *string     `json:"userAgent"`
	UserID        *FlexString `json:"userId"`
}

// ToRecord converts the event into a stream.Record keyed by the JSON field names.
func (e *EventRecord) ToRecord() stream.Record {
	r := stream.NewRecord()
	r.SetData(FieldArtist, e.Artist)
	r.SetData(FieldAuth, e.Auth)
	r.SetData(FieldFirstName, e.FirstName)
	r.SetData(FieldGender, e.Gender)
	r.SetData(FieldItemInSession, e.ItemInSession)
	r.SetData(FieldLastName, e.LastName)
	r.SetData(FieldLength, e.Length)
	r.SetData(FieldLevel, e.Level)
	r.SetData(FieldLocation, e.Location)
	r.SetData(FieldMethod, e.Method)
	r.SetData(FieldPage, e.Page)
	r.SetData(FieldRegistration, e.Registration)
	r.SetData(FieldSessionID, e.SessionID)
	r.SetData(FieldSong, e.Song)
	r.SetData(FieldStatus, e.Status)
	r.SetData(FieldTs, e.Ts)
	r.SetData(FieldUserAgent, e.UserAgent)
	r.SetData(FieldUserID, e.UserID.StringPtr())
	return r
}

// FlexString decodes a JSON string or number into its string form.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected a string or number but got %s", b)
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		*f = FlexString(strconv.FormatInt(i, 10))
	} else {
		*f = FlexString(n.String())
	}
	return nil
}

// StringPtr returns nil for a nil FlexString.
func (f *FlexString) StringPtr() *string {
	if f == nil {
		return nil
	}
	s := string(*f)
	return &s
}
