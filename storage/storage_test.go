package storage

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/relloyd/sparkify/aws/s3/mocks"
)

func TestParseLocation(t *testing.T) {
	cases := []struct {
		in       string
		expected Location
	}{
		{in: "s3a://udacity-dend/", expected: Location{Remote: true, Bucket: "udacity-dend"}},
		{in: "s3://out/sparkify/", expected: Location{Remote: true, Bucket: "out", Path: "sparkify"}},
		{in: "file:///tmp/data/", expected: Location{Path: "/tmp/data"}},
		{in: "data/", expected: Location{Path: "data"}},
	}
	for _, c := range cases {
		got, err := ParseLocation(c.in)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", c.in, err)
		}
		if got != c.expected {
			t.Fatalf("expected %+v for %q; got %+v", c.expected, c.in, got)
		}
	}
	for _, bad := range []string{"", "  ", "gs://bucket", "file://"} {
		if _, err := ParseLocation(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestJoinLocation(t *testing.T) {
	r := JoinLocation(MustParseLocation("s3://out/"), "songs")
	if r.String() != "s3://out/songs" || r.KeyPrefix() != "songs/" {
		t.Fatalf("unexpected remote join %v", r)
	}
	l := JoinLocation(MustParseLocation("/tmp/out"), "time", "year=2018")
	if l.String() != filepath.Join("/tmp/out", "time", "year=2018") {
		t.Fatalf("unexpected local join %v", l)
	}
}

func TestLocalStorage(t *testing.T) {
	dir, err := ioutil.TempDir("", "storage-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	files := []string{
		"B/b.json",
		"A/a2.json",
		"A/a1.json",
		"_temporary/x.json",
		"A/.a1.json.crc",
		"_SUCCESS",
	}
	for _, f := range files {
		p := filepath.Join(dir, f)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := ioutil.WriteFile(p, []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	root := MustParseLocation(dir)
	s := NewLocalStorage(root)
	got, err := s.List(root)
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{
		filepath.Join(dir, "A/a1.json"),
		filepath.Join(dir, "A/a2.json"),
		filepath.Join(dir, "B/b.json"),
	}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v; got %v", expected, got)
	}
	rc, err := s.Open(got[0])
	if err != nil {
		t.Fatal(err)
	}
	b, _ := ioutil.ReadAll(rc)
	rc.Close()
	if string(b) != "{}" {
		t.Fatalf("unexpected content %q", b)
	}
	// Missing location.
	if _, err := s.List(JoinLocation(root, "missing")); !errors.Is(err, ErrLocationNotFound) {
		t.Fatalf("expected ErrLocationNotFound; got %v", err)
	}
	// RemoveAll is idempotent.
	a := JoinLocation(root, "A")
	if err := s.RemoveAll(a); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveAll(a); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(a.Path); !os.IsNotExist(err) {
		t.Fatal("expected directory to be removed")
	}
}

func TestS3Storage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	client := mocks.NewMockBasicClient(ctrl)
	root := MustParseLocation("s3://udacity-dend/")
	s := NewS3Storage(client, root)

	// List skips hidden objects and directory markers and sorts keys.
	client.EXPECT().List("song_data/").Return([]string{
		"song_data/B/b.json",
		"song_data/A/",
		"song_data/A/a.json",
		"song_data/_SUCCESS",
	}, nil)
	got, err := s.List(JoinLocation(root, "song_data"))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"song_data/A/a.json", "song_data/B/b.json"}) {
		t.Fatalf("unexpected keys %v", got)
	}

	// An empty prefix is a missing location.
	client.EXPECT().List("log_data/").Return([]string{}, nil)
	if _, err := s.List(JoinLocation(root, "log_data")); !errors.Is(err, ErrLocationNotFound) {
		t.Fatalf("expected ErrLocationNotFound; got %v", err)
	}

	// Open reads the object.
	client.EXPECT().Get("song_data/A/a.json").Return([]byte(`{"song_id":"S1"}`), nil)
	rc, err := s.Open("song_data/A/a.json")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := ioutil.ReadAll(rc)
	if string(b) != `{"song_id":"S1"}` {
		t.Fatalf("unexpected content %q", b)
	}

	// RemoveAll deletes every key under the prefix.
	client.EXPECT().List("songs/").Return([]string{"songs/_SUCCESS", "songs/year=2018/part-00000.parquet"}, nil)
	client.EXPECT().Delete("songs/_SUCCESS").Return(nil)
	client.EXPECT().Delete("songs/year=2018/part-00000.parquet").Return(nil)
	if err := s.RemoveAll(JoinLocation(root, "songs")); err != nil {
		t.Fatal(err)
	}

	// Locations in other buckets and the bucket root are refused.
	if err := s.RemoveAll(root); err == nil {
		t.Fatal("expected error removing the bucket root")
	}
	if _, err := s.List(MustParseLocation("s3://other/x")); err == nil {
		t.Fatal("expected error listing another bucket")
	}
}
