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

package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	sdDaemon "github.com/coreos/go-systemd/daemon"
	"github.com/natefinch/lumberjack"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gostor/gotgt-async-core/pkg/apiserver"
	"github.com/gostor/gotgt-async-core/pkg/config"
	"github.com/gostor/gotgt-async-core/pkg/metrics"
	"github.com/gostor/gotgt-async-core/pkg/scsi"

	_ "github.com/gostor/gotgt-async-core/pkg/backend/filestore"
	_ "github.com/gostor/gotgt-async-core/pkg/backend/qcow2store"
	_ "github.com/gostor/gotgt-async-core/pkg/backend/rbdstore"
)

func newDaemonCommand() *cobra.Command {
	var host string
	var logLevel string
	var configDir string
	var cmd = &cobra.Command{
		Use:   "daemon",
		Short: "Setup a daemon",
		Long:  `Setup the Gotgt's daemon`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return createDaemon(host, configDir, logLevel)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&host, "host", "tcp://127.0.0.1:23457", "Address the admin API listens on")
	flags.StringVar(&logLevel, "log", "info", "Log level of SCSI target daemon")
	flags.StringVar(&configDir, "config", "", "Config directory (default ~/.gotgt)")
	return cmd
}

func createDaemon(host, configDir, level string) error {
	switch level {
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "panic", "fatal", "error":
		log.SetLevel(log.ErrorLevel)
	default:
		return fmt.Errorf("unknown log level: %v", level)
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		log.Error(err)
		return err
	}
	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			LocalTime:  true,
		}
		log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	}

	registry := scsi.NewRegistry()
	for name, devCfg := range cfg.Devices {
		if _, err := registry.Open(name, devCfg.Backend, devCfg.BlockSize, devCfg.Workers); err != nil {
			log.Error(err)
			registry.CloseAll()
			return err
		}
	}
	metrics.Register(registry)

	serverConfig := &apiserver.Config{
		Addrs: []apiserver.Addr{},
	}
	protoAddrParts := strings.SplitN(host, "://", 2)
	if len(protoAddrParts) != 2 {
		err = fmt.Errorf("bad format %s, expected PROTO://ADDR", host)
		log.Error(err)
		return err
	}
	serverConfig.Addrs = append(serverConfig.Addrs, apiserver.Addr{Proto: protoAddrParts[0], Addr: protoAddrParts[1]})

	s, err := apiserver.New(serverConfig)
	if err != nil {
		log.Error(err)
		registry.CloseAll()
		return err
	}
	s.InitRouters(registry)

	// The serve API routine never exits unless an error occurs
	// We need to start it as a goroutine and wait on it so
	// daemon doesn't exit
	serveAPIWait := make(chan error)
	go s.Wait(serveAPIWait)

	if _, err := sdDaemon.SdNotify(false, sdDaemon.SdNotifyReady); err != nil {
		log.Debugf("sd_notify ready: %v", err)
	}

	stopAll := make(chan os.Signal, 1)
	signal.Notify(stopAll, syscall.SIGINT, syscall.SIGTERM)

	select {
	case errAPI := <-serveAPIWait:
		if errAPI != nil {
			log.Warnf("Shutting down due to ServeAPI error: %v", errAPI)
		}
	case <-stopAll:
		break
	}

	if _, err := sdDaemon.SdNotify(false, sdDaemon.SdNotifyStopping); err != nil {
		log.Debugf("sd_notify stopping: %v", err)
	}
	s.Close()
	if err := registry.CloseAll(); err != nil {
		log.Errorf("device teardown: %v", err)
		return err
	}
	return nil
}
