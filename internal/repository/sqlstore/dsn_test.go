package sqlstore

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/config"
)

func TestDSN(t *testing.T) {
	base := config.DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "clinic",
		Password: "secret",
		Name:     "clinic",
		SSLMode:  "disable",
	}

	t.Run("postgres", func(t *testing.T) {
		cfg := base
		cfg.Driver = "postgres"
		dsn, err := DSN(cfg)
		require.NoError(t, err)
		assert.Equal(t, "host=db port=5432 user=clinic password=secret dbname=clinic sslmode=disable", dsn)
	})

	t.Run("mysql parses back", func(t *testing.T) {
		cfg := base
		cfg.Driver = "mysql"
		cfg.Port = 3306
		dsn, err := DSN(cfg)
		require.NoError(t, err)

		parsed, err := mysql.ParseDSN(dsn)
		require.NoError(t, err)
		assert.Equal(t, "db:3306", parsed.Addr)
		assert.Equal(t, "clinic", parsed.DBName)
		assert.True(t, parsed.ParseTime)
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := base
		cfg.Driver = "oracle"
		_, err := DSN(cfg)
		assert.Error(t, err)
	})
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(storageErr("commit", &mysql.MySQLError{Number: 1213})))
	assert.False(t, isRetryable(storageErr("commit", &mysql.MySQLError{Number: 1062})))
	assert.True(t, isUniqueViolation(&mysql.MySQLError{Number: 1062}))
	assert.True(t, isForeignKeyViolation(&mysql.MySQLError{Number: 1451}))
}
