package schema

import (
	"time"

	"github.com/relloyd/sparkify/constants"
	"github.com/relloyd/sparkify/stream"
)

// Output column names that differ from the input field names.
const (
	ColUserID     = "user_id"
	ColFirstName  = "first_name"
	ColLastName   = "last_name"
	ColName       = "name"
	ColLatitude   = "latitude"
	ColLongitude  = "longitude"
	ColStartTime  = "start_time"
	ColHour       = "hour"
	ColDay        = "day"
	ColWeek       = "week"
	ColMonth      = "month"
	ColWeekday    = "weekday"
	ColSessionID  = "session_id"
	ColUserAgent  = "user_agent"
	ColSongplayID = "songplay_id"
)

// TableDefinition describes an output table.
// Columns lists every column in order, PartitionBy the subset that is written as directory names.
type TableDefinition struct {
	Name        string
	Columns     []string
	PartitionBy []string
}

var (
	SongsTable = TableDefinition{
		Name:        constants.TableSongs,
		Columns:     []string{FieldSongID, FieldTitle, FieldArtistID, FieldYear, FieldDuration},
		PartitionBy: []string{FieldYear, FieldArtistID},
	}
	ArtistsTable = TableDefinition{
		Name:    constants.TableArtists,
		Columns: []string{FieldArtistID, ColName, FieldLocation, ColLatitude, ColLongitude},
	}
	UsersTable = TableDefinition{
		Name:    constants.TableUsers,
		Columns: []string{ColUserID, ColFirstName, ColLastName, FieldGender, FieldLevel},
	}
	TimeTable = TableDefinition{
		Name:        constants.TableTime,
		Columns:     []string{ColStartTime, ColHour, ColDay, ColWeek, ColMonth, FieldYear, ColWeekday},
		PartitionBy: []string{FieldYear, ColMonth},
	}
	SongplaysTable = TableDefinition{
		Name: constants.TableSongplays,
		Columns: []string{ColStartTime, ColMonth, FieldYear, ColUserID, FieldLevel, FieldSongID, FieldArtistID,
			ColSessionID, FieldLocation, ColUserAgent, ColSongplayID},
		PartitionBy: []string{FieldYear, ColMonth},
	}
)

// Rows written to the Parquet files.
// Partition columns are encoded in the directory names so they are not part of the rows.

type Song struct {
	SongID   *string  `parquet:"song_id"`
	Title    *string  `parquet:"title"`
	Duration *float64 `parquet:"duration"`
}

func SongFromRecord(r stream.Record) Song {
	return Song{
		SongID:   r.GetString(FieldSongID),
		Title:    r.GetString(FieldTitle),
		Duration: r.GetFloat64(FieldDuration),
	}
}

type Artist struct {
	ArtistID  *string  `parquet:"artist_id"`
	Name      *string  `parquet:"name"`
	Location  *string  `parquet:"location"`
	Latitude  *float64 `parquet:"latitude"`
	Longitude *float64 `parquet:"longitude"`
}

func ArtistFromRecord(r stream.Record) Artist {
	return Artist{
		ArtistID:  r.GetString(FieldArtistID),
		Name:      r.GetString(ColName),
		Location:  r.GetString(FieldLocation),
		Latitude:  r.GetFloat64(ColLatitude),
		Longitude: r.GetFloat64(ColLongitude),
	}
}

type User struct {
	UserID    *string `parquet:"user_id"`
	FirstName *string `parquet:"first_name"`
	LastName  *string `parquet:"last_name"`
	Gender    *string `parquet:"gender"`
	Level     *string `parquet:"level"`
}

func UserFromRecord(r stream.Record) User {
	return User{
		UserID:    r.GetString(ColUserID),
		FirstName: r.GetString(ColFirstName),
		LastName:  r.GetString(ColLastName),
		Gender:    r.GetString(FieldGender),
		Level:     r.GetString(FieldLevel),
	}
}

type TimeSlice struct {
	StartTime time.Time `parquet:"start_time,timestamp(millisecond)"`
	Hour      int32     `parquet:"hour"`
	Day       int32     `parquet:"day"`
	Week      int32     `parquet:"week"`
	Weekday   int32     `parquet:"weekday"`
}

func TimeSliceFromRecord(r stream.Record) TimeSlice {
	t, _ := r.GetTime(ColStartTime)
	return TimeSlice{
		StartTime: t,
		Hour:      r.GetInt32(ColHour),
		Day:       r.GetInt32(ColDay),
		Week:      r.GetInt32(ColWeek),
		Weekday:   r.GetInt32(ColWeekday),
	}
}

type SongPlay struct {
	StartTime  time.Time `parquet:"start_time,timestamp(millisecond)"`
	UserID     *string   `parquet:"user_id"`
	Level      *string   `parquet:"level"`
	SongID     *string   `parquet:"song_id"`
	ArtistID   *string   `parquet:"artist_id"`
	SessionID  *int64    `parquet:"session_id"`
	Location   *string   `parquet:"location"`
	UserAgent  *string   `parquet:"user_agent"`
	SongplayID int64     `parquet:"songplay_id"`
}

func SongPlayFromRecord(r stream.Record) SongPlay {
	t, _ := r.GetTime(ColStartTime)
	var id int64
	if p := r.GetInt64(ColSongplayID); p != nil {
		id = *p
	}
	return SongPlay{
		StartTime:  t,
		UserID:     r.GetString(ColUserID),
		Level:      r.GetString(FieldLevel),
		SongID:     r.GetString(FieldSongID),
		ArtistID:   r.GetString(FieldArtistID),
		SessionID:  r.GetInt64(ColSessionID),
		Location:   r.GetString(FieldLocation),
		UserAgent:  r.GetString(ColUserAgent),
		SongplayID: id,
	}
}
