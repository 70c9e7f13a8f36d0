// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package adminhttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/groupsio/capharness/internal/hostruntime"
)

// acquireMode derives the runtime-mutex acquisition mode from the request's
// ?wait=false / ?timeout=<seconds> query parameters, mirroring
// internal/attach's wire-level wait/timeout fields.
func acquireMode(r *http.Request) (hostruntime.AcquireMode, time.Duration) {
	q := r.URL.Query()

	if ts := q.Get("timeout"); ts != "" {
		if secs, err := strconv.ParseFloat(ts, 64); err == nil && secs > 0 {
			return hostruntime.Timed, time.Duration(secs * float64(time.Second))
		}
	}
	if wait := q.Get("wait"); wait == "false" || wait == "0" {
		return hostruntime.NonBlocking, 0
	}
	return hostruntime.Blocking, 0
}

// withRuntime runs fn under the runtime mutex and writes the JSON result,
// mapping hostruntime.ErrBusy to HTTP 409.
func withRuntime(w http.ResponseWriter, r *http.Request, rt *hostruntime.Runtime, fn func() (interface{}, error)) {
	mode, timeout := acquireMode(r)
	result, err := rt.WithLock(mode, timeout, fn)
	if err != nil {
		if err == hostruntime.ErrBusy {
			WriteError(w, http.StatusConflict, ErrBusy, "runtime busy")
			return
		}
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, result)
}
