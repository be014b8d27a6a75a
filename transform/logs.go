package transform

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/relloyd/sparkify/calendar"
	"github.com/relloyd/sparkify/components"
	c "github.com/relloyd/sparkify/constants"
	"github.com/relloyd/sparkify/engine"
	"github.com/relloyd/sparkify/schema"
	"github.com/relloyd/sparkify/storage"
)

func newEventRecord() components.JsonRow {
	return &schema.EventRecord{}
}

// nextSongRule keeps the events where a song was played.
var nextSongRule = fmt.Sprintf(`{"==": [{"var": %q}, %q]}`, schema.FieldPage, c.PageNextSong)

// ProcessLogData reads the event logs under <inputData>/log_data and writes the users, time and songplays tables
// under outputData, replacing any previous contents. The song catalog under <inputData>/song_data is read again
// to find the song and artist IDs of each play.
func ProcessLogData(sess *engine.Session, inputData string, outputData string) error {
	in, out, err := parseLocations(inputData, outputData)
	if err != nil {
		return errors.Wrap(err, "ProcessLogData")
	}
	sg := newStepGroup(sess, "ProcessLogData")
	sg.build(func() {
		events := sg.readJson("log data", storage.JoinLocation(in, c.LogDataDir), newEventRecord)
		plays := sg.filter("filter NextSong", events, components.FilterRowsJsonLogic, nextSongRule)
		plays = sg.filter("filter missing ts", plays, components.FilterRowsNotNull, schema.FieldTs)
		plays = sg.mapFields("add start_time", plays,
			components.ComponentStep{Type: components.FieldMapperEpochMillisToTimestamp, Data: map[string]string{
				"fieldName":   schema.FieldTs,
				"resultField": schema.ColStartTime,
			}},
			components.ComponentStep{Type: components.FieldMapperDateParts, Data: map[string]string{
				"fieldName": schema.ColStartTime,
				"parts": pairs(
					calendar.PartHour, schema.ColHour,
					calendar.PartDay, schema.ColDay,
					calendar.PartWeek, schema.ColWeek,
					calendar.PartMonth, schema.ColMonth,
					calendar.PartYear, schema.FieldYear,
					calendar.PartWeekday, schema.ColWeekday,
				),
			}},
		)
		branches := sg.split("split plays", plays, 3)
		// users: the latest record of each user.
		users := sg.filter("latest user", branches[0], components.FilterRowsLatestByKey, fmt.Sprintf("%v:%v,%v,%v,%v,%v",
			schema.FieldUserID, schema.FieldTs, schema.FieldLevel, schema.FieldFirstName, schema.FieldLastName, schema.FieldGender))
		users = sg.project("project users", users, pairs(
			schema.FieldUserID, schema.ColUserID,
			schema.FieldFirstName, schema.ColFirstName,
			schema.FieldLastName, schema.ColLastName,
			schema.FieldGender, schema.FieldGender,
			schema.FieldLevel, schema.FieldLevel,
		))
		users = sg.filter("distinct users", users, components.FilterRowsDistinct, strings.Join(schema.UsersTable.Columns, ","))
		usersWritten := writeTable(sg, users, out, schema.UsersTable, schema.UserFromRecord)
		// time
		times := sg.project("project time", branches[1], identity(schema.TimeTable.Columns...))
		times = sg.filter("distinct time", times, components.FilterRowsDistinct, schema.ColStartTime)
		timeWritten := writeTable(sg, times, out, schema.TimeTable, schema.TimeSliceFromRecord)
		// songplays: plays joined to the song catalog on title and artist name.
		songData := sg.readJson("song data", storage.JoinLocation(in, c.SongDataDir), newSongRecord)
		songs := sg.project("project song keys", songData, identity(schema.FieldTitle, schema.FieldArtistName, schema.FieldSongID, schema.FieldArtistID))
		songplays := sg.join("join songs", branches[2], songs,
			pairs(schema.FieldSong, schema.FieldTitle, schema.FieldArtist, schema.FieldArtistName),
			identity(schema.FieldSongID, schema.FieldArtistID))
		songplays = sg.sequence("add songplay_id", songplays, schema.ColSongplayID)
		songplays = sg.project("project songplays", songplays, pairs(
			schema.ColStartTime, schema.ColStartTime,
			schema.ColMonth, schema.ColMonth,
			schema.FieldYear, schema.FieldYear,
			schema.FieldUserID, schema.ColUserID,
			schema.FieldLevel, schema.FieldLevel,
			schema.FieldSongID, schema.FieldSongID,
			schema.FieldArtistID, schema.FieldArtistID,
			schema.FieldSessionID, schema.ColSessionID,
			schema.FieldLocation, schema.FieldLocation,
			schema.FieldUserAgent, schema.ColUserAgent,
			schema.ColSongplayID, schema.ColSongplayID,
		))
		songplaysWritten := writeTable(sg, songplays, out, schema.SongplaysTable, schema.SongPlayFromRecord)
		sg.reportTables(usersWritten, timeWritten, songplaysWritten)
	})
	return sg.wait()
}
