package storage

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/relloyd/sparkify/aws/s3"
)

// Location is a parsed input or output root.
// Remote locations live in an S3 bucket under Path (no leading or trailing slash).
// Local locations are cleaned file system paths.
type Location struct {
	Remote bool
	Bucket string
	Path   string
}

// ParseLocation accepts s3://, s3a://, s3n://, file:// and bare paths.
func ParseLocation(s string) (Location, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Location{}, fmt.Errorf("empty location")
	}
	if s3.IsS3URL(s) {
		b, err := s3.ParseDSN(s, "-") // region is supplied by the session, not the URL.
		if err != nil {
			return Location{}, err
		}
		return Location{Remote: true, Bucket: b.Name, Path: b.Prefix}, nil
	}
	if strings.HasPrefix(strings.ToLower(s), "file://") {
		s = s[len("file://"):]
		if s == "" {
			return Location{}, fmt.Errorf("empty file location")
		}
	} else if strings.Contains(s, "://") {
		return Location{}, fmt.Errorf("unsupported location scheme in %q", s)
	}
	return Location{Path: filepath.Clean(s)}, nil
}

// MustParseLocation is ParseLocation for hard coded values.
func MustParseLocation(s string) Location {
	l, err := ParseLocation(s)
	if err != nil {
		panic(err)
	}
	return l
}

// JoinLocation appends path elements to base.
func JoinLocation(base Location, elems ...string) Location {
	retval := base
	if base.Remote {
		retval.Path = strings.Trim(path.Join(append([]string{base.Path}, elems...)...), "/")
	} else {
		retval.Path = filepath.Join(append([]string{base.Path}, elems...)...)
	}
	return retval
}

// KeyPrefix is the S3 key prefix of a remote location including a trailing slash.
func (l Location) KeyPrefix() string {
	if l.Path == "" {
		return ""
	}
	return l.Path + "/"
}

func (l Location) String() string {
	if !l.Remote {
		return l.Path
	}
	return s3.AwsS3Bucket{Name: l.Bucket, Prefix: l.Path}.String()
}

// isHidden returns true if any element of the relative path starts with '.' or '_'.
func isHidden(rel string) bool {
	for _, p := range strings.Split(filepath.ToSlash(rel), "/") {
		if p != "" && strings.ContainsAny(p[:1], "._") {
			return true
		}
	}
	return false
}
