package components

// Default field names are used by components to know the names of input and output fields.
// They start with '#' so they never clash with data fields.
var Defaults = struct {
	ChanField4FileName              string // the full path or object key of a file.
	ChanField4FileNameWithoutPrefix string // the file name relative to the listed location or table directory.
	ChanField4SourceIndex           string // the position of the input file in the sorted listing, used for generated ids.
	ChanField4TableName             string // the table a written file belongs to.
	ChanField4RowCount              string // the number of rows in a written file.
}{
	ChanField4FileName:              "#DataFileName",
	ChanField4FileNameWithoutPrefix: "#DataFileNameWithoutPrefix",
	ChanField4SourceIndex:           "#SourceIndex",
	ChanField4TableName:             "#TableName",
	ChanField4RowCount:              "#RowCount",
}
