/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package stats

import (
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// JSONServer reports Counters over HTTP as a flat JSON map. It is a passive
// reporter: only Start needs to be called, and it blocks for the life of
// the server, matching the teacher's JSONStats.Start pattern.
type JSONServer struct {
	Counters *Counters
}

func (j *JSONServer) toMap() map[string]int64 {
	export := map[string]int64{
		"receive_count": j.Counters.ReceiveCount,
		"skip_count":    j.Counters.SkipCount,
	}
	duplicates, outOfOrder, dropped := j.Counters.Snapshot()
	for ix, v := range duplicates {
		export[fmt.Sprintf("duplicates.server%d", ix)] = int64(v)
	}
	for ix, v := range outOfOrder {
		export[fmt.Sprintf("out_of_order.server%d", ix)] = int64(v)
	}
	for ix, v := range dropped {
		export[fmt.Sprintf("dropped.server%d", ix)] = int64(v)
	}
	return export
}

func (j *JSONServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	js, err := json.Marshal(j.toMap())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(js)
}

// Start serves the JSON stats endpoint on port until the process exits.
func (j *JSONServer) Start(port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", j.handleRequest)
	addr := fmt.Sprintf(":%d", port)
	log.Debugf("stats: starting JSON server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil { //nolint:gosec
		log.Errorf("stats: JSON server stopped: %v", err)
	}
}
