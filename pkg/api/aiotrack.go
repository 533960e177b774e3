/*
Copyright 2016 The GoStor Authors All rights reserved.

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

package api

import "sync"

// Tracker counts commands in flight against a device so a device close
// can wait for every outstanding command to finish before tearing down
// its backend, mirroring libtcmu's track_queue bookkeeping around each
// async_call_command.
type Tracker struct {
	mu       sync.Mutex
	cond     *sync.Cond
	inFlight int
}

func NewTracker() *Tracker {
	t := &Tracker{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Start records one more command in flight. Call it before any backend
// call is issued for the command.
func (t *Tracker) Start() {
	t.mu.Lock()
	t.inFlight++
	t.mu.Unlock()
}

// Finish records a command's completion and reports whether the device
// just went idle. It must be called exactly once per Start; a command
// that goes through passthrough and then the generic fallback makes one
// Start/Finish pair for each attempt.
func (t *Tracker) Finish() (idle bool) {
	t.mu.Lock()
	t.inFlight--
	if t.inFlight < 0 {
		t.inFlight = 0
	}
	if t.inFlight == 0 {
		idle = true
		t.cond.Broadcast()
	}
	t.mu.Unlock()
	return idle
}

// InFlight returns the current in-flight count.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inFlight
}

// Drain blocks until no commands are in flight. A device close calls this
// before closing its backend, so no completion races the backend's
// teardown.
func (t *Tracker) Drain() {
	t.mu.Lock()
	for t.inFlight > 0 {
		t.cond.Wait()
	}
	t.mu.Unlock()
}
