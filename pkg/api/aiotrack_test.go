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

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrackerIdleReporting(t *testing.T) {
	tr := NewTracker()
	tr.Start()
	tr.Start()
	assert.Equal(t, 2, tr.InFlight())
	assert.False(t, tr.Finish())
	assert.True(t, tr.Finish())
	assert.Zero(t, tr.InFlight())
}

func TestTrackerDrainWaits(t *testing.T) {
	tr := NewTracker()
	tr.Start()

	drained := make(chan struct{})
	go func() {
		tr.Drain()
		close(drained)
	}()

	select {
	case <-drained:
		t.Fatal("Drain returned with a command in flight")
	case <-time.After(20 * time.Millisecond):
	}

	tr.Finish()
	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("Drain did not return after the last Finish")
	}
}

func TestTrackerConcurrent(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Start()
			tr.Finish()
		}()
	}
	wg.Wait()
	assert.Zero(t, tr.InFlight())
}
