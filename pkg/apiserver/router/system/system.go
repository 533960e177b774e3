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
package system

import (
	"net/http"

	"golang.org/x/net/context"

	"github.com/gostor/gotgt-async-core/pkg/api"
	"github.com/gostor/gotgt-async-core/pkg/apiserver/httputils"
	"github.com/gostor/gotgt-async-core/pkg/apiserver/router"
	"github.com/gostor/gotgt-async-core/pkg/metrics"
	"github.com/gostor/gotgt-async-core/pkg/version"
)

// systemRouter serves daemon-level endpoints: version and Prometheus
// metrics.
type systemRouter struct {
	routes []router.Route
}

func NewRouter() router.Router {
	r := &systemRouter{}
	r.initRoutes()
	return r
}

func (r *systemRouter) Routes() []router.Route {
	return r.routes
}

func (r *systemRouter) initRoutes() {
	metricsHandler := metrics.Handler()
	r.routes = []router.Route{
		router.NewGetRoute("/version", r.getVersion),
		router.NewGetRoute("/metrics", func(ctx context.Context, w http.ResponseWriter, req *http.Request, vars map[string]string) error {
			metricsHandler.ServeHTTP(w, req)
			return nil
		}),
	}
}

func (r *systemRouter) getVersion(ctx context.Context, w http.ResponseWriter, req *http.Request, vars map[string]string) error {
	return httputils.WriteJSON(w, http.StatusOK, api.VersionResponse{
		Version:    version.VERSION,
		APIVersion: version.APIVersion,
	})
}
