package storage

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/relloyd/sparkify/aws/s3"
)

// ErrLocationNotFound is returned when a location to be read does not exist.
var ErrLocationNotFound = errors.New("location not found")

// Storage reads and removes objects below a root location.
type Storage interface {
	// Location is the root this Storage was created for.
	Location() Location
	// List returns the keys of all visible objects under location in lexical order.
	// Objects whose relative path has an element starting with '.' or '_' are skipped.
	List(location Location) ([]string, error)
	// Open returns the content of the object with the given key.
	Open(key string) (io.ReadCloser, error)
	// RemoveAll deletes everything under location. It is not an error if nothing exists.
	RemoveAll(location Location) error
}

// NewLocalStorage returns Storage for the local file system.
func NewLocalStorage(root Location) Storage {
	return &localStorage{root: root}
}

type localStorage struct {
	root Location
}

func (s *localStorage) Location() Location {
	return s.root
}

func (s *localStorage) List(location Location) ([]string, error) {
	fi, err := os.Stat(location.Path)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrLocationNotFound, "path %v", location.Path)
	} else if err != nil {
		return nil, errors.Wrapf(err, "error reading %v", location.Path)
	}
	if !fi.IsDir() {
		return []string{location.Path}, nil
	}
	retval := make([]string, 0)
	err = filepath.Walk(location.Path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(location.Path, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if isHidden(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			retval = append(retval, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error listing %v", location.Path)
	}
	sort.Strings(retval)
	return retval, nil
}

func (s *localStorage) Open(key string) (io.ReadCloser, error) {
	f, err := os.Open(key)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening %v", key)
	}
	return f, nil
}

func (s *localStorage) RemoveAll(location Location) error {
	return errors.Wrapf(os.RemoveAll(location.Path), "error removing %v", location.Path)
}

// NewS3Storage returns Storage for the bucket in root using the supplied client.
// The client must have been created without a key prefix.
func NewS3Storage(client s3.BasicClient, root Location) Storage {
	return &s3Storage{client: client, root: root}
}

type s3Storage struct {
	client s3.BasicClient
	root   Location
}

func (s *s3Storage) Location() Location {
	return s.root
}

// List treats a prefix without objects as missing since S3 has no directories.
func (s *s3Storage) List(location Location) ([]string, error) {
	if err := s.checkBucket(location); err != nil {
		return nil, err
	}
	keys, err := s.client.List(location.KeyPrefix())
	if err != nil {
		return nil, err
	}
	retval := make([]string, 0, len(keys))
	for _, k := range keys {
		rel := strings.TrimPrefix(k, location.KeyPrefix())
		if rel == "" || strings.HasSuffix(rel, "/") || isHidden(rel) { // skip directory markers and hidden objects.
			continue
		}
		retval = append(retval, k)
	}
	if len(keys) == 0 {
		return nil, errors.Wrapf(ErrLocationNotFound, "path %v", location)
	}
	sort.Strings(retval)
	return retval, nil
}

func (s *s3Storage) Open(key string) (io.ReadCloser, error) {
	b, err := s.client.Get(key)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening s3://%v/%v", s.root.Bucket, key)
	}
	return ioutil.NopCloser(bytes.NewReader(b)), nil
}

func (s *s3Storage) RemoveAll(location Location) error {
	if err := s.checkBucket(location); err != nil {
		return err
	}
	if location.Path == "" {
		return errors.Errorf("refusing to remove the whole bucket %v", location.Bucket)
	}
	keys, err := s.client.List(location.KeyPrefix())
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.client.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (s *s3Storage) checkBucket(location Location) error {
	if !location.Remote || location.Bucket != s.root.Bucket {
		return errors.Errorf("location %v is not in bucket %v", location, s.root.Bucket)
	}
	return nil
}
