package db

import (
	"strings"
	"testing"

	"github.com/zulandar/aocrank/internal/config"
	"github.com/zulandar/aocrank/internal/models"
	"gorm.io/gorm"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "default local",
			cfg:  config.DatabaseConfig{Host: "127.0.0.1", Port: 3306, Name: "crank", User: "root"},
			want: "root@tcp(127.0.0.1:3306)/crank?parseTime=true",
		},
		{
			name: "with password",
			cfg:  config.DatabaseConfig{Host: "db.internal", Port: 3307, Name: "relay", User: "mu", Password: "pw"},
			want: "mu:pw@tcp(db.internal:3307)/relay?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DSN(tt.cfg); got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "unsupported driver") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestConnect_RequiresMySQL(t *testing.T) {
	// Connecting to MySQL needs a running server; verify the signature only.
	var fn func(config.DatabaseConfig) (*gorm.DB, error) = Connect
	if fn == nil {
		t.Fatal("Connect function is nil")
	}
}

func TestOpenTest_MigratesAllModels(t *testing.T) {
	gormDB, err := OpenTest()
	if err != nil {
		t.Fatalf("OpenTest: %v", err)
	}
	for _, m := range AllModels() {
		if !gormDB.Migrator().HasTable(m) {
			t.Errorf("table for %T not created", m)
		}
	}
	if !gormDB.Migrator().HasColumn(&models.CachedMessage{}, "fromTxId") {
		t.Error("cached message table should keep the fromTxId column name")
	}
	if !gormDB.Migrator().HasColumn(&models.MonitoredProcess{}, "lastFromCursor") {
		t.Error("monitor table should keep the lastFromCursor column name")
	}
}

func TestAllModels_Count(t *testing.T) {
	if got := len(AllModels()); got != 4 {
		t.Errorf("AllModels() has %d entries, want 4", got)
	}
}
