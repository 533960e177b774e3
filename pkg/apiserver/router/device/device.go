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
package device

import (
	"fmt"
	"net/http"

	"golang.org/x/net/context"

	"github.com/gostor/gotgt-async-core/pkg/api"
	"github.com/gostor/gotgt-async-core/pkg/apiserver/httputils"
	"github.com/gostor/gotgt-async-core/pkg/apiserver/router"
	"github.com/gostor/gotgt-async-core/pkg/scsi"
)

// deviceRouter exposes the device registry over the admin API.
type deviceRouter struct {
	registry *scsi.Registry
	routes   []router.Route
}

// NewRouter initializes a new device router over the given registry.
func NewRouter(registry *scsi.Registry) router.Router {
	r := &deviceRouter{registry: registry}
	r.initRoutes()
	return r
}

// Routes returns the available routes of the device router
func (r *deviceRouter) Routes() []router.Route {
	return r.routes
}

// initRoutes initializes the routes in the device router
func (r *deviceRouter) initRoutes() {
	r.routes = []router.Route{
		// GET
		router.NewGetRoute("/devices", r.getDevices),
		router.NewGetRoute("/devices/{name:.*}", r.getDevice),
		// POST
		router.NewPostRoute("/devices/create", r.postDeviceCreate),
		router.NewPostRoute("/devices/{name:.*}/lock", r.postDeviceLock),
		// DELETE
		router.NewDeleteRoute("/devices/{name:.*}", r.deleteDevice),
	}
}

func deviceInfo(dev *api.Device) api.DeviceInfo {
	depth := 0
	if dev.Pool != nil {
		depth = dev.Pool.QueueDepth()
	}
	return api.DeviceInfo{
		Name:        dev.Name,
		ID:          dev.ID.String(),
		BlockSize:   dev.BlockSize,
		NumLBAs:     dev.NumLBAs,
		SizeBytes:   dev.SizeBytes(),
		LockState:   dev.LockState().String(),
		InFlight:    dev.Tracker.InFlight(),
		QueueDepth:  depth,
		Miscompares: dev.Miscompares(),
	}
}

func (s *deviceRouter) getDevices(ctx context.Context, w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	devices := s.registry.List()
	out := make([]api.DeviceInfo, 0, len(devices))
	for _, dev := range devices {
		out = append(out, deviceInfo(dev))
	}
	return httputils.WriteJSON(w, http.StatusOK, out)
}

func (s *deviceRouter) getDevice(ctx context.Context, w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	dev := s.registry.Get(vars["name"])
	if dev == nil {
		return fmt.Errorf("no such device %q", vars["name"])
	}
	return httputils.WriteJSON(w, http.StatusOK, deviceInfo(dev))
}

func (s *deviceRouter) postDeviceCreate(ctx context.Context, w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	if err := httputils.CheckForJSON(r); err != nil {
		return err
	}
	var req api.DeviceCreateRequest
	if err := httputils.ReadJSON(r, &req); err != nil {
		return err
	}
	dev, err := s.registry.Open(req.Name, req.Backend, req.BlockSize, req.Workers)
	if err != nil {
		return err
	}
	return httputils.WriteJSON(w, http.StatusCreated, deviceInfo(dev))
}

func (s *deviceRouter) postDeviceLock(ctx context.Context, w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	res, err := s.registry.Lock(vars["name"])
	if err != nil {
		return err
	}
	return httputils.WriteJSON(w, http.StatusOK, api.DeviceLockResponse{
		Name:   vars["name"],
		Result: res.String(),
	})
}

func (s *deviceRouter) deleteDevice(ctx context.Context, w http.ResponseWriter, r *http.Request, vars map[string]string) error {
	if err := s.registry.Remove(vars["name"]); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
