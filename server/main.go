// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Usage:
//   make build
//   ./bin/server -config-path=./config.yaml
//

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"

	"github.com/iotexproject/iotex-npos/config"
	"github.com/iotexproject/iotex-npos/pkg/log"
	"github.com/iotexproject/iotex-npos/pkg/probe"
	"github.com/iotexproject/iotex-npos/server/itx"
)

// configPaths is the list of config files, the later ones override the earlier ones
type configPaths []string

func (p *configPaths) String() string { return strings.Join(*p, ",") }

func (p *configPaths) Set(v string) error {
	*p = append(*p, v)
	return nil
}

var _configPaths configPaths

func init() {
	flag.Var(&_configPaths, "config-path", "Config path, repeat to overlay several files")
	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr,
			"usage: server -config-path=[string]\n")
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()
}

func main() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-stop
		cancel()
	}()

	cfg, err := config.New(_configPaths)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := log.InitLoggers(cfg.Log, cfg.SubLogs); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	genesisHash := cfg.Genesis.Hash()
	log.S().Infof("Config in use: %+v", cfg.Chain)
	log.L().Info("Genesis loaded.", zap.String("hash", fmt.Sprintf("%x", genesisHash[:])))

	svr, err := itx.NewServer(cfg)
	if err != nil {
		log.L().Fatal("Failed to create server.", zap.Error(err))
	}
	probeSvr := probe.New(cfg.System.HTTPProbePort, probe.WithReadinessCheck(func() error {
		_, err := svr.ChainService().StateReader().Height()
		return err
	}))
	if err := probeSvr.Start(ctx); err != nil {
		log.L().Fatal("Failed to start probe server.", zap.Error(err))
	}
	defer func() {
		if err := probeSvr.Stop(context.Background()); err != nil {
			log.L().Panic("Failed to stop probe server.", zap.Error(err))
		}
	}()
	itx.StartServer(ctx, svr, probeSvr, cfg)
}
