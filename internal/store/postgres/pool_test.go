package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "u", Password: "p", Database: "envelopes"}
	assert.Equal(t, "postgres://u:p@db:5432/envelopes?sslmode=require", cfg.DSN())

	cfg.SSLMode = "disable"
	assert.Equal(t, "postgres://u:p@db:5432/envelopes?sslmode=disable", cfg.DSN())

	cfg.URL = "postgres://override/db"
	assert.Equal(t, "postgres://override/db", cfg.DSN())
}
