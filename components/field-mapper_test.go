package components

import (
	"testing"
	"time"

	"github.com/relloyd/sparkify/logger"
	"github.com/relloyd/sparkify/stream"
)

func TestNewFieldMapper(t *testing.T) {
	log := logger.NewLogger("sparkify", "info", true)
	inputChan := make(chan stream.Record, 10)
	ts := int64(1541105830796) // 2018-11-01T20:57:10.796Z
	rec := stream.NewRecord()
	rec.SetData("ts", &ts)
	rec.SetData("userId", "39")
	rec.SetData("page", "NextSong")
	inputChan <- rec
	nullRec := stream.NewRecord()
	nullRec.SetData("ts", nil)
	nullRec.SetData("userId", "40")
	inputChan <- nullRec
	close(inputChan)
	waiter := &MockComponentWaiter{}
	outputChan, _ := NewFieldMapper(&FieldMapperConfig{
		Log:       log,
		Name:      "test-field-mapper",
		InputChan: inputChan,
		Steps: []ComponentStep{
			{Type: FieldMapperEpochMillisToTimestamp, Data: map[string]string{"fieldName": "ts", "resultField": "start_time"}},
			{Type: FieldMapperDateParts, Data: map[string]string{"fieldName": "start_time", "parts": "hour:hour, week:week, weekday:weekday, year:year"}},
			{Type: FieldMapperProject, Data: map[string]string{"fields": "start_time:start_time, hour:hour, week:week, weekday:weekday, year:year, userId:user_id, missing:missing"}},
		},
		WaitCounter: waiter,
	})
	got := collectRows(t, outputChan, 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 rows; got %v", len(got))
	}
	r := got[0]
	if r.GetDataLen() != 7 {
		t.Fatalf("expected 7 projected fields; got %v", r.GetDataMap())
	}
	if r.HasField("page") || r.HasField("ts") {
		t.Fatal("expected unprojected fields to be removed")
	}
	st, ok := r.GetTime("start_time")
	if !ok || !st.Equal(time.Date(2018, 11, 1, 20, 57, 10, 0, time.UTC)) {
		t.Fatalf("unexpected start_time %v", st)
	}
	if st.Location() != time.UTC {
		t.Fatal("expected start_time in UTC")
	}
	expected := map[string]int32{"hour": 20, "week": 44, "weekday": 5, "year": 2018}
	for k, v := range expected {
		if r.GetData(k) != v {
			t.Fatalf("expected %v=%v; got %v", k, v, r.GetData(k))
		}
	}
	if r.GetData("user_id") != "39" {
		t.Fatalf("expected user_id 39; got %v", r.GetData("user_id"))
	}
	if !r.IsNull("missing") {
		t.Fatal("expected missing source field to be null")
	}
	n := got[1]
	if !n.IsNull("start_time") || !n.IsNull("hour") {
		t.Fatal("expected null time parts for a null ts")
	}
	waitForZero(t, waiter, 10)
}

func TestFieldMapperShutdown(t *testing.T) {
	log := logger.NewLogger("sparkify", "info", true)
	_, controlChan := NewFieldMapper(&FieldMapperConfig{
		Log:       log,
		Name:      "test-field-mapper-shutdown",
		InputChan: make(chan stream.Record),
		Steps:     []ComponentStep{{Type: FieldMapperProject, Data: map[string]string{"fields": "a:b"}}},
	})
	responseChan := make(chan error, 1)
	controlChan <- ControlAction{ResponseChan: responseChan, Action: Shutdown}
	select {
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for shutdown")
	case err := <-responseChan:
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestFieldMapperBadConfig(t *testing.T) {
	log := logger.NewLogger("sparkify", "info", true)
	cases := [][]ComponentStep{
		{{Type: "Unknown", Data: map[string]string{}}},
		{{Type: FieldMapperProject, Data: map[string]string{}}},
		{{Type: FieldMapperEpochMillisToTimestamp, Data: map[string]string{"fieldName": "ts"}}},
		{{Type: FieldMapperDateParts, Data: map[string]string{"fieldName": "t", "parts": "fortnight:f"}}},
	}
	for idx, steps := range cases {
		func() {
			defer func() {
				if r := recover(); r == nil {
					t.Fatalf("case %v: expected panic", idx)
				}
			}()
			NewFieldMapper(&FieldMapperConfig{Log: log, Name: "bad", InputChan: make(chan stream.Record), Steps: steps})
		}()
	}
}
