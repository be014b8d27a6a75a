package constants

// Component

const (
	ChanSize                     = 20000
	StatsCaptureFrequencySeconds = 5
	TimeFormatYearSeconds        = "20060102T150405" // used for human readable file names
	TimeFormatYearSecondsRegex   = "[0-9]{4}[0-9]{2}[0-9]{2}T[0-9]{6}"
	TimeFormatYearSecondsTZ      = "20060102T150405-0700" // a format that includes the time zone for string comparison of times.
	EmojiBang                    = "\U0001F4A5"
	EnvVarPrefix                 = "SPK" // prefix for environment variables read by the config package.
	EnvVarLambdaMode             = EnvVarPrefix + "_LAMBDA_MODE"
	EnvVarConfigFile             = EnvVarPrefix + "_CONFIG_FILE"
	AppName                      = "Sparkify Data Lake"
	ServiceName                  = "sparkify"
)

// Input locations relative to the input root.

const (
	SongDataDir = "song_data"
	LogDataDir  = "log_data"
)

// Output tables relative to the output root.

const (
	TableSongs     = "songs"
	TableArtists   = "artists"
	TableUsers     = "users"
	TableTime      = "time"
	TableSongplays = "songplays"
)

// Writer

const (
	PageNextSong             = "NextSong"
	HiveDefaultPartition     = "__HIVE_DEFAULT_PARTITION__"
	SuccessMarkerFileName    = "_SUCCESS"
	ParquetFileExtension     = "parquet"
	CompressionDefault       = "snappy"
	MaxFileRowsDefault       = 0 // unlimited
	WriteConcurrencyDefault  = 4
	SequencePartitionBits    = 33 // the number of low bits used by the per-source counter in generated ids.
	StagingDirPrefix         = "sparkify-staging-"
	ObjectNameHiddenPrefixes = "._" // local and S3 object names starting with any of these chars are not read.
)
