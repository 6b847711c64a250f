package config

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetDataDir(t *testing.T) {
	conf := NewDefaultConfig()
	conf.SetDataDir("/tmp/pool")

	if conf.DatabaseDir != filepath.Join("/tmp/pool", DefaultDatabaseFile) {
		t.Fatalf("DatabaseDir should follow DataDir, got %s", conf.DatabaseDir)
	}
	if conf.Genesis() != filepath.Join("/tmp/pool", DefaultGenesisFile) {
		t.Fatalf("unexpected genesis path %s", conf.Genesis())
	}

	conf.DatabaseDir = "/var/db"
	conf.SetDataDir("/tmp/other")
	if conf.DatabaseDir != "/var/db" {
		t.Fatalf("explicit DatabaseDir should be kept, got %s", conf.DatabaseDir)
	}

	conf.GenesisFile = "/etc/genesis"
	if conf.Genesis() != "/etc/genesis" {
		t.Fatalf("explicit genesis should be kept, got %s", conf.Genesis())
	}
}

func TestDatabasePath(t *testing.T) {
	conf := NewDefaultConfig()
	conf.DatabaseDir = "/var/db"

	if conf.DatabasePath() != "/var/db" {
		t.Fatalf("badger should use the directory, got %s", conf.DatabasePath())
	}

	conf.Store = "bolt"
	if conf.DatabasePath() != "/var/db/pool.db" {
		t.Fatalf("bolt should use a file in the directory, got %s", conf.DatabasePath())
	}
}

func TestLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"info":    logrus.InfoLevel,
		"warn":    logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"unknown": logrus.DebugLevel,
	}
	for in, exp := range cases {
		if l := LogLevel(in); l != exp {
			t.Errorf("LogLevel(%s) = %v, expected %v", in, l, exp)
		}
	}
}

func TestLoggerLogFile(t *testing.T) {
	conf := NewDefaultConfig()
	conf.LogFile = filepath.Join(t.TempDir(), "pool.log")

	entry := conf.Logger()
	if entry.Data["prefix"] != "ledgerpool" {
		t.Fatalf("logger should carry the ledgerpool prefix")
	}
	if len(entry.Logger.Hooks[logrus.InfoLevel]) != 1 {
		t.Fatalf("a file hook should be registered")
	}
}
