package database

import (
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfig_Defaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cfg := GetConfig()
	assert.Equal(t, "credits", cfg.Name)
	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=password dbname=credits sslmode=disable connect_timeout=5",
		cfg.DSN())
}

func TestGetConfig_Overrides(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("database.host", "db.internal")
	viper.Set("database.ssl_mode", "require")
	viper.Set("database.connect_timeout", "2s")

	cfg := GetConfig()
	assert.Contains(t, cfg.DSN(), "host=db.internal")
	assert.Contains(t, cfg.DSN(), "sslmode=require")
	assert.Contains(t, cfg.DSN(), "connect_timeout=2")
}

func TestMigrations_Embedded(t *testing.T) {
	entries, err := fs.ReadDir(migrations, "migrations")
	require.NoError(t, err)

	var ups, downs int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Equal(t, ups, downs)
	assert.Positive(t, ups)

	up, err := fs.ReadFile(migrations, "migrations/000001_create_credit_ledger.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(up), "credit_transactions_external_payment_id_key")
	assert.Contains(t, string(up), "CHECK (amount >= 0)")
}
