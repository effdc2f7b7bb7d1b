// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package log

import (
	"log"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GlobalConfig defines the global logger configurations.
type GlobalConfig struct {
	Zap            *zap.Config `json:"zap" yaml:"zap"`
	RedirectStdLog bool        `json:"stdLogRedirect" yaml:"stdLogRedirect"`
}

var (
	_globalCfg  GlobalConfig
	_logMu      sync.RWMutex
	_subLoggers = make(map[string]*zap.Logger)
)

func init() {
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	zapCfg.Level.SetLevel(zap.InfoLevel)
	l, err := zapCfg.Build()
	if err != nil {
		log.Println("Failed to init zap global logger, no zap log will be shown till zap is properly initialized: ", err)
		return
	}
	_globalCfg.Zap = &zapCfg
	zap.ReplaceGlobals(l)
}

// L wraps zap.L().
func L() *zap.Logger { return zap.L() }

// S wraps zap.S().
func S() *zap.SugaredLogger { return zap.S() }

// Logger returns logger of the given name, a named child of the global logger if none was configured
func Logger(name string) *zap.Logger {
	_logMu.RLock()
	logger, ok := _subLoggers[name]
	_logMu.RUnlock()
	if !ok {
		return L().Named(name)
	}
	return logger
}

// InitLoggers initializes the global logger and other sub loggers.
func InitLoggers(globalCfg GlobalConfig, subCfgs map[string]GlobalConfig, opts ...zap.Option) error {
	if _, exists := subCfgs["global"]; exists {
		return errors.New("'global' is a reserved name for global logger")
	}
	logger, err := build(globalCfg, opts...)
	if err != nil {
		return err
	}
	subs := make(map[string]*zap.Logger, len(subCfgs))
	for name, cfg := range subCfgs {
		sub, err := build(cfg, opts...)
		if err != nil {
			return errors.Wrapf(err, "failed to build logger %s", name)
		}
		subs[name] = sub.Named(name)
	}
	if globalCfg.RedirectStdLog {
		zap.RedirectStdLog(logger)
	}

	_logMu.Lock()
	_globalCfg = globalCfg
	_subLoggers = subs
	_logMu.Unlock()
	zap.ReplaceGlobals(logger)
	return nil
}

func build(cfg GlobalConfig, opts ...zap.Option) (*zap.Logger, error) {
	if cfg.Zap == nil {
		zapCfg := zap.NewProductionConfig()
		cfg.Zap = &zapCfg
	} else {
		cfg.Zap.EncoderConfig = zap.NewProductionEncoderConfig()
	}
	return cfg.Zap.Build(opts...)
}
