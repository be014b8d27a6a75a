package transform

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/relloyd/sparkify/components"
	c "github.com/relloyd/sparkify/constants"
	"github.com/relloyd/sparkify/engine"
	"github.com/relloyd/sparkify/schema"
	"github.com/relloyd/sparkify/storage"
)

func newSongRecord() components.JsonRow {
	return &schema.SongRecord{}
}

// ProcessSongData reads the song catalog under <inputData>/song_data and writes the songs and artists tables
// under outputData, replacing any previous contents.
func ProcessSongData(sess *engine.Session, inputData string, outputData string) error {
	in, out, err := parseLocations(inputData, outputData)
	if err != nil {
		return errors.Wrap(err, "ProcessSongData")
	}
	sg := newStepGroup(sess, "ProcessSongData")
	sg.build(func() {
		songData := sg.readJson("song data", storage.JoinLocation(in, c.SongDataDir), newSongRecord)
		branches := sg.split("split song data", songData, 2)
		// songs
		songs := sg.project("project songs", branches[0], identity(schema.SongsTable.Columns...))
		songs = sg.filter("distinct songs", songs, components.FilterRowsDistinct, strings.Join(schema.SongsTable.Columns, ","))
		songsWritten := writeTable(sg, songs, out, schema.SongsTable, schema.SongFromRecord)
		// artists
		artists := sg.project("project artists", branches[1], pairs(
			schema.FieldArtistID, schema.FieldArtistID,
			schema.FieldArtistName, schema.ColName,
			schema.FieldArtistLocation, schema.FieldLocation,
			schema.FieldArtistLatitude, schema.ColLatitude,
			schema.FieldArtistLongitude, schema.ColLongitude,
		))
		artists = sg.filter("distinct artists", artists, components.FilterRowsDistinct, strings.Join(schema.ArtistsTable.Columns, ","))
		artistsWritten := writeTable(sg, artists, out, schema.ArtistsTable, schema.ArtistFromRecord)
		sg.reportTables(songsWritten, artistsWritten)
	})
	return sg.wait()
}

func parseLocations(inputData string, outputData string) (in storage.Location, out storage.Location, err error) {
	if in, err = storage.ParseLocation(inputData); err != nil {
		return in, out, errors.Wrap(err, "bad input location")
	}
	if out, err = storage.ParseLocation(outputData); err != nil {
		return in, out, errors.Wrap(err, "bad output location")
	}
	return
}

// identity returns "a:a, b:b" for use in a Project step.
func identity(fields ...string) string {
	p := make([]string, 0, len(fields))
	for _, f := range fields {
		p = append(p, f+":"+f)
	}
	return strings.Join(p, ", ")
}

// pairs returns "a:b, c:d" from a list of source and target names.
func pairs(sourceTarget ...string) string {
	p := make([]string, 0, len(sourceTarget)/2)
	for i := 0; i+1 < len(sourceTarget); i += 2 {
		p = append(p, sourceTarget[i]+":"+sourceTarget[i+1])
	}
	return strings.Join(p, ", ")
}
