package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/ocpp-central/central-system/internal/store"
)

func TestClassify_Nil(t *testing.T) {
	assert.Nil(t, classify(nil))
}

func TestClassify_TransientSQLSTATEClasses(t *testing.T) {
	transientCodes := []string{"08006", "40001", "53300", "57014"}
	for _, code := range transientCodes {
		err := classify(&pgconn.PgError{Code: code})
		var te *store.TransientError
		assert.True(t, errors.As(err, &te), "expected TransientError for code %s", code)
	}
}

func TestClassify_PermanentSQLSTATEClasses(t *testing.T) {
	permanentCodes := []string{"23505", "22001", "42601"}
	for _, code := range permanentCodes {
		err := classify(&pgconn.PgError{Code: code})
		var pe *store.PermanentError
		assert.True(t, errors.As(err, &pe), "expected PermanentError for code %s", code)
	}
}

func TestClassify_ConnDoneIsTransient(t *testing.T) {
	err := classify(sql.ErrConnDone)
	var te *store.TransientError
	assert.True(t, errors.As(err, &te))
}

func TestClassify_DeadlineExceededIsTransient(t *testing.T) {
	err := classify(context.DeadlineExceeded)
	var te *store.TransientError
	assert.True(t, errors.As(err, &te))
}

func TestClassify_UnknownErrorIsPermanent(t *testing.T) {
	err := classify(errors.New("boom"))
	var pe *store.PermanentError
	assert.True(t, errors.As(err, &pe))
}
