package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDriverURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/logibill?sslmode=disable",
		DriverURL("postgres://u:p@db:5432/logibill?sslmode=disable"))
	assert.Equal(t, "pgx5://db/logibill", DriverURL("postgresql://db/logibill"))
	assert.Equal(t, "pgx5://db/logibill", DriverURL("pgx5://db/logibill"))
}
