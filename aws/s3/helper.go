package s3

import (
	"fmt"
	"net/url"
	"strings"
)

// AwsS3Bucket is a bucket, key prefix and region parsed from an S3 URL.
type AwsS3Bucket struct {
	Name   string `errorTxt:"bucket name" mandatory:"yes"`
	Prefix string `errorTxt:"bucket prefix"`
	Region string `errorTxt:"bucket region" mandatory:"yes"`
}

// String renders the bucket as an s3:// URL without a trailing slash.
func (d AwsS3Bucket) String() string {
	if d.Prefix == "" {
		return fmt.Sprintf("s3://%v", d.Name)
	}
	return fmt.Sprintf("s3://%v/%v", d.Name, d.Prefix)
}

// KeyPrefix returns the prefix with a trailing slash or "" for the bucket root.
func (d AwsS3Bucket) KeyPrefix() string {
	if d.Prefix == "" {
		return ""
	}
	return d.Prefix + "/"
}

var s3Schemes = map[string]struct{}{"s3": {}, "s3a": {}, "s3n": {}}

// IsS3URL returns true if s starts with one of the S3 URL schemes.
func IsS3URL(s string) bool {
	scheme, _ := splitScheme(s)
	_, ok := s3Schemes[strings.ToLower(scheme)]
	return ok
}

func splitScheme(s string) (string, string) {
	i := strings.Index(s, "://")
	if i < 0 {
		return "", s
	}
	return s[:i], s[i+3:]
}

// ParseDSN expects bucketPrefix to be of the form [s3://|s3a://|s3n://]<bucket>/<prefix>
// It returns an AwsS3Bucket populated with the components of bucketPrefix and the supplied region.
// If there is a parsing error it returns an error.
func ParseDSN(bucketPrefix string, region string) (retval AwsS3Bucket, err error) {
	s3url, err := url.Parse(bucketPrefix)
	if err != nil {
		return retval, fmt.Errorf("error parsing S3 URL: %v", err)
	}
	if s3url.Scheme == "" { // if there's no scheme the bucket is the first path element...
		s3url, err = url.Parse("s3://" + strings.TrimLeft(bucketPrefix, "/"))
		if err != nil {
			return retval, fmt.Errorf("error parsing S3 URL: %v", err)
		}
	}
	if _, ok := s3Schemes[strings.ToLower(s3url.Scheme)]; !ok {
		return retval, fmt.Errorf("expected S3 URL scheme s3, s3a or s3n but got %q", s3url.Scheme)
	}
	if region == "" {
		return retval, fmt.Errorf("value expected for bucket region")
	}
	retval.Name = s3url.Host
	if retval.Name == "" {
		return retval, fmt.Errorf("DSN failed to parse bucket name")
	}
	retval.Prefix = strings.Trim(s3url.Path, "/")
	retval.Region = region
	return
}
