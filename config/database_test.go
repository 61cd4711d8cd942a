package config

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/villageone/api/store"
)

func TestOpenStoreDrivers(t *testing.T) {
	repo, err := OpenStore(AppConfig{DBDriver: "memory"}, zap.NewNop())
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := repo.(*store.MemoryStore); !ok {
		t.Fatalf("memory driver returned %T", repo)
	}

	cfg := AppConfig{DBDriver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "db", "forum.db"), LogLevel: "silent"}
	repo, err = OpenStore(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	if n, err := repo.CountUsers(context.Background()); err != nil || n != 0 {
		t.Fatalf("fresh sqlite store: n=%d err=%v", n, err)
	}

	if _, err := OpenStore(AppConfig{DBDriver: "oracle"}, nil); err == nil {
		t.Fatalf("unknown driver should fail")
	}
}

func TestDSNBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want []string
	}{
		{"mysql fields", mysqlDSN(AppConfig{DBUser: "u", DBPassword: "p", DBHost: "h", DBName: "n"}),
			[]string{"u:p@tcp(h:3306)/n", "clientFoundRows=true", "parseTime=True"}},
		{"mysql uri", mysqlDSN(AppConfig{DatabaseURI: "u:p@tcp(h:1)/n?charset=utf8mb4"}),
			[]string{"?charset=utf8mb4&clientFoundRows=true"}},
		{"postgres fields", postgresDSN(AppConfig{DBUser: "u", DBHost: "h", DBName: "n", DBSSLMode: "disable"}),
			[]string{"host=h", "port=5432", "dbname=n", "sslmode=disable"}},
	}
	for _, tt := range tests {
		for _, part := range tt.want {
			if !strings.Contains(tt.got, part) {
				t.Fatalf("%s: %q missing %q", tt.name, tt.got, part)
			}
		}
	}
}
