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

// Package homedir resolves the invoking user's home directory for
// locating the default config directory.
package homedir

import (
	"os"

	gohomedir "github.com/mitchellh/go-homedir"
)

// Get returns the home directory of the current user, preferring the
// HOME environment variable so daemons launched with an overridden
// environment behave predictably.
func Get() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if home, err := gohomedir.Dir(); err == nil {
		return home
	}
	return "/"
}
