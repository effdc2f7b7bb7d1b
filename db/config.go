// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package db

// supported backends
const (
	BackendBolt    = "boltdb"
	BackendPebble  = "pebbledb"
	BackendLevel   = "leveldb"
	BackendInMemDB = "memory"
)

// Config is the config for database
type Config struct {
	DbPath string `yaml:"dbPath"`
	// NumRetries is the number of retries
	NumRetries uint8 `yaml:"numRetries"`
	// Backend is one of boltdb, pebbledb, leveldb and memory
	Backend string `yaml:"backend"`
	// ReadOnly is set db to be opened in read only mode
	ReadOnly bool `yaml:"readOnly"`
	// LevelDBCacheMB is the block cache size of leveldb
	LevelDBCacheMB int `yaml:"levelDBCacheMB"`
	// LevelDBHandles is the number of open files held by leveldb
	LevelDBHandles int `yaml:"levelDBHandles"`
}

// DefaultConfig returns the default config
var DefaultConfig = Config{
	NumRetries:     3,
	Backend:        BackendBolt,
	LevelDBCacheMB: 16,
	LevelDBHandles: 64,
}
