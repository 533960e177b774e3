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
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

// A single worker serves the queue in FIFO order.
func TestPoolFIFOWithOneWorker(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		i := i
		wg.Add(1)
		p.Submit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	for i, got := range order {
		assert.Equal(t, i, got)
	}
}

func TestPoolRunsAllWork(t *testing.T) {
	p := NewPool(4)
	var ran int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		p.Submit(func() {
			atomic.AddInt64(&ran, 1)
			wg.Done()
		})
	}
	wg.Wait()
	p.Close()
	assert.EqualValues(t, 100, atomic.LoadInt64(&ran))
}

// Close drains work already queued before returning.
func TestPoolCloseDrainsQueue(t *testing.T) {
	p := NewPool(1)
	var ran int64
	for i := 0; i < 10; i++ {
		p.Submit(func() { atomic.AddInt64(&ran, 1) })
	}
	p.Close()
	assert.EqualValues(t, 10, atomic.LoadInt64(&ran))
}

func TestPoolSubmitAfterCloseIsDropped(t *testing.T) {
	p := NewPool(1)
	p.Close()
	var ran int64
	p.Submit(func() { atomic.AddInt64(&ran, 1) })
	assert.Zero(t, atomic.LoadInt64(&ran))
}

func TestPoolDefaultWorkerCount(t *testing.T) {
	p := NewPool(0)
	defer p.Close()
	done := make(chan struct{})
	p.Submit(func() { close(done) })
	<-done
}
