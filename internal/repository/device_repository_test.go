package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/wifi-presence-api/internal/models"
)

func TestDeviceRepositoryFindByDeviceIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDeviceRepository(db)

	now := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"device_id", "device_hash", "student_name", "matric_number", "class_name", "created_at", "updated_at"}).
		AddRow("aa:bb", "h1", "Siti", "A001", nil, now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM registered_devices WHERE device_id IN ($1, $2)`)).
		WithArgs("aa:bb", "cc:dd").
		WillReturnRows(rows)

	found, err := repo.FindByDeviceIDs(context.Background(), []string{"aa:bb", "cc:dd"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.NotNil(t, found["aa:bb"].StudentName)
	assert.Equal(t, "Siti", *found["aa:bb"].StudentName)
	assert.Nil(t, found["aa:bb"].ClassName)
	_, ok := found["cc:dd"]
	assert.False(t, ok)
}

func TestDeviceRepositoryFindByDeviceIDsEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDeviceRepository(db)

	found, err := repo.FindByDeviceIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDeviceRepository(db)

	name := "Budi"
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (device_id) DO UPDATE`)).
		WithArgs("aa:bb", "h1", name, nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	device := &models.RegisteredDevice{DeviceID: "aa:bb", DeviceHash: "h1", StudentName: &name}
	require.NoError(t, repo.Upsert(context.Background(), device))
	assert.False(t, device.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
