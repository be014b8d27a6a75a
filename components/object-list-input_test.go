package components

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/relloyd/sparkify/logger"
	"github.com/relloyd/sparkify/storage"
	"github.com/relloyd/sparkify/stream"
)

// writeTestFiles creates files under dir from a map of relative name to content.
func writeTestFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := ioutil.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestNewObjectListInput(t *testing.T) {
	log := logger.NewLogger("object list test", "info", true)
	dir, err := ioutil.TempDir("", "object-list-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	writeTestFiles(t, dir, map[string]string{
		"b/2.json":    "{}",
		"a/1.json":    "{}",
		"a/.hidden":   "{}",
		"_tmp/x.json": "{}",
	})
	loc := storage.MustParseLocation(dir)

	log.Info("Test 1: objects are listed recursively in lexical order...")
	outputChan, _ := NewObjectListInput(&ObjectListInputConfig{Log: log, Name: "Test1 ObjectListInput", Storage: storage.NewLocalStorage(loc), Location: loc})
	got := collectRows(t, outputChan, 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 objects; got %v", len(got))
	}
	for idx, rel := range []string{"a/1.json", "b/2.json"} {
		if got[idx].GetData(Defaults.ChanField4FileNameWithoutPrefix) != rel {
			t.Fatalf("object %v: expected %v; got %v", idx, rel, got[idx].GetData(Defaults.ChanField4FileNameWithoutPrefix))
		}
		if got[idx].GetData(Defaults.ChanField4FileName) != filepath.Join(dir, filepath.FromSlash(rel)) {
			t.Fatalf("object %v: unexpected key %v", idx, got[idx].GetData(Defaults.ChanField4FileName))
		}
		if got[idx].GetData(Defaults.ChanField4SourceIndex) != int64(idx) {
			t.Fatalf("object %v: unexpected source index %v", idx, got[idx].GetData(Defaults.ChanField4SourceIndex))
		}
	}

	log.Info("Test 2: a missing location panics...")
	missing := storage.JoinLocation(loc, "missing")
	waiter := &MockComponentWaiter{}
	panicChan := make(chan interface{}, 1)
	NewObjectListInput(&ObjectListInputConfig{
		Log:            log,
		Name:           "Test2 ObjectListInput",
		Storage:        storage.NewLocalStorage(loc),
		Location:       missing,
		WaitCounter:    waiter,
		PanicHandlerFn: func() { panicChan <- recover() },
	})
	waitForZero(t, waiter, 10)
	if p := <-panicChan; p == nil {
		t.Fatal("expected a panic for a missing location")
	}
}

func TestNewJsonFileReader(t *testing.T) {
	log := logger.NewLogger("json reader test", "info", true)
	dir, err := ioutil.TempDir("", "json-reader-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	writeTestFiles(t, dir, map[string]string{
		"lines.json": "{\"name\": \"a\", \"n\": 1}\n{\"name\": \"b\"}\n",
		"one.json":   "{\n  \"name\": \"c\",\n  \"n\": 3\n}",
		"bad.json":   "{\"name\": ",
	})
	loc := storage.MustParseLocation(dir)
	store := storage.NewLocalStorage(loc)
	newInput := func(names ...string) chan stream.Record {
		ch := make(chan stream.Record, len(names))
		for idx, n := range names {
			r := stream.NewRecord()
			r.SetData(Defaults.ChanField4FileName, filepath.Join(dir, n))
			r.SetData(Defaults.ChanField4SourceIndex, int64(idx))
			ch <- r
		}
		close(ch)
		return ch
	}

	log.Info("Test 1: objects per line and per file are decoded...")
	outputChan, _ := NewJsonFileReader(&JsonFileReaderConfig{
		Log:       log,
		Name:      "Test1 JsonFileReader",
		InputChan: newInput("lines.json", "one.json"),
		Storage:   store,
		NewRow:    func() JsonRow { return &testJsonRow{} },
	})
	got := collectRows(t, outputChan, 10)
	if len(got) != 3 {
		t.Fatalf("expected 3 rows; got %v", len(got))
	}
	expected := []struct {
		name string
		n    interface{}
		idx  int64
	}{{"a", int64(1), 0}, {"b", nil, 0}, {"c", int64(3), 1}}
	for i, e := range expected {
		if *got[i].GetString("name") != e.name {
			t.Fatalf("row %v: expected name %v; got %v", i, e.name, got[i].GetDataMap())
		}
		n := got[i].GetInt64("n")
		if (e.n == nil) != (n == nil) || (n != nil && *n != e.n.(int64)) {
			t.Fatalf("row %v: unexpected n %v", i, got[i].GetData("n"))
		}
		if got[i].GetData(Defaults.ChanField4SourceIndex) != e.idx {
			t.Fatalf("row %v: expected source index %v", i, e.idx)
		}
	}

	log.Info("Test 2: malformed JSON panics...")
	waiter := &MockComponentWaiter{}
	panicChan := make(chan interface{}, 1)
	outputChan, _ = NewJsonFileReader(&JsonFileReaderConfig{
		Log:            log,
		Name:           "Test2 JsonFileReader",
		InputChan:      newInput("bad.json"),
		Storage:        store,
		NewRow:         func() JsonRow { return &testJsonRow{} },
		WaitCounter:    waiter,
		PanicHandlerFn: func() { panicChan <- recover() },
	})
	select {
	case p := <-panicChan:
		if p == nil {
			t.Fatal("expected a panic for malformed JSON")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for panic")
	}
	waitForZero(t, waiter, 10)
}

type testJsonRow struct {
	Name *string `json:"name"`
	N    *int64  `json:"n"`
}

func (r *testJsonRow) ToRecord() stream.Record {
	rec := stream.NewRecord()
	rec.SetData("name", r.Name)
	rec.SetData("n", r.N)
	return rec
}
