package status

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Postgres Store Tests
// ==========================

func TestPostgresStore_Put_Upserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStoreWithDB(db)
	snap := New("987", StepUserCreation, 50, "Creating user accounts...", nil)

	mock.ExpectExec(`INSERT INTO workflow_status`).
		WithArgs(snap.StatusTrackingID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Put(context.Background(), snap))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_ReturnsSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStoreWithDB(db)

	stored := New("987", StepCompleted, 100, "Account creation completed successfully", map[string]interface{}{
		"finalData": map[string]interface{}{"userCreation": map[string]interface{}{}},
	})
	doc, err := json.Marshal(stored)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT snapshot FROM workflow_status WHERE status_tracking_id = \$1`).
		WithArgs("987").
		WillReturnRows(sqlmock.NewRows([]string{"snapshot"}).AddRow(doc))

	got, err := store.Get(context.Background(), "987")
	require.NoError(t, err)
	assert.Equal(t, StepCompleted, got.CurrentStep)
	assert.Equal(t, 100, got.Progress)
	assert.True(t, got.Completed)
	assert.Contains(t, got.Extra, "finalData")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_UnknownID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStoreWithDB(db)

	mock.ExpectQuery(`SELECT snapshot FROM workflow_status WHERE status_tracking_id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"snapshot"}))

	_, err = store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
