package actions

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/relloyd/sparkify/engine"
	"github.com/relloyd/sparkify/logger"
	"github.com/relloyd/sparkify/stats"
)

type WebServerResponse uint32

const (
	Okay WebServerResponse = iota + 1
	Error
)

func (w WebServerResponse) MarshalJSON() ([]byte, error) {
	var retval string
	switch w {
	case Okay:
		retval = "ok"
	case Error:
		retval = "error"
	default:
		err := fmt.Errorf("unhandled WebServerResponse value in MarshalJSON() conversion")
		return nil, err
	}
	return json.Marshal(retval)
}

type ResponseSimple struct {
	ServerStatus WebServerResponse `json:"status"`
}

type ResponseStats struct {
	Status WebServerResponse `json:"status"`
	RunID  string            `json:"runId"`
	Stats  []stats.Stats     `json:"stepStats"`
}

type ResponseStatusList struct {
	Status     WebServerResponse        `json:"status"`
	RunID      string                   `json:"runId"`
	Transforms []engine.TransformStatus `json:"transforms"`
}

type ResponseStatus struct {
	Status          WebServerResponse      `json:"status"`
	Message         string                 `json:"message"`
	TransformStatus engine.TransformStatus `json:"transformStatus"`
}

type ResponseStop struct {
	Status  WebServerResponse `json:"status"`
	Message string            `json:"message"`
	RunID   string            `json:"runId"`
}

func GetHandlerHealth(log logger.Logger) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(log, w, http.StatusOK, ResponseSimple{ServerStatus: Okay})
	}
}

func GetHandlerStats(log logger.Logger, sess *engine.Session) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		s := make([]stats.Stats, 0)
		if m := sess.Stats(); m != nil {
			s = m.GetStats()
		}
		respond(log, w, http.StatusOK, ResponseStats{Status: Okay, RunID: sess.RunID, Stats: s})
	}
}

func GetHandlerStatusList(log logger.Logger, sess *engine.Session) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(log, w, http.StatusOK, ResponseStatusList{Status: Okay, RunID: sess.RunID, Transforms: sess.Status.All()})
	}
}

func GetHandlerStatus(log logger.Logger, sess *engine.Session) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]
		ts, ok := sess.Status.Load(name)
		if !ok { // if the transform hasn't started...
			log.Info("HTTP request for status of transform ", name, " that doesn't exist.")
			respond(log, w, http.StatusNotFound, ResponseStatus{Status: Error, Message: fmt.Sprintf("transform %v does not exist", name)})
			return
		}
		respond(log, w, http.StatusOK, ResponseStatus{Status: Okay, TransformStatus: ts})
	}
}

// GetHandlerStop shuts down the running transform. The run then ends with an error.
func GetHandlerStop(log logger.Logger, sess *engine.Session) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Info("Stopping run ", sess.RunID)
		sess.Shutdown()
		respond(log, w, http.StatusOK, ResponseStop{Status: Okay, Message: "shutting down", RunID: sess.RunID})
	}
}

// respond will write the HTTP status code and i marshalled as JSON to w.
func respond(log logger.Logger, w http.ResponseWriter, code int, i interface{}) {
	j, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		log.Error(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err = w.Write(j); err != nil {
		log.Error(err)
	}
}
