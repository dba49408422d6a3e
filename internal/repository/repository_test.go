package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	bookingDomain "github.com/vroomshare/service-booking/internal/domain/booking"
	paymentDomain "github.com/vroomshare/service-booking/internal/domain/payment"
	vehicleDomain "github.com/vroomshare/service-booking/internal/domain/vehicle"
	"github.com/vroomshare/service-booking/pkg/domain"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func newBooking(t *testing.T) *bookingDomain.Booking {
	t.Helper()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	dates, err := bookingDomain.ParseDateRange("2025-03-10", "2025-03-13", now)
	require.NoError(t, err)
	bk, err := bookingDomain.NewBooking(bookingDomain.NewBookingParams{
		ID:        uuid.New(),
		VehicleID: uuid.New(),
		RenterID:  uuid.New(),
		OwnerID:   uuid.New(),
		Dates:     dates,
		Quote: bookingDomain.Quote{
			DailyRate: 250, DurationDays: 3, InsuranceTier: bookingDomain.InsuranceBasic,
			BasePrice: 750, InsuranceFee: 150, ServiceFee: 75, TotalAmount: 975, DepositAmount: 225,
		},
		Currency:       "USD",
		PickupLocation: "12 Harbour St",
		ReturnLocation: "12 Harbour St",
		HoldID:         uuid.NewString(),
	}, now)
	require.NoError(t, err)
	return bk
}

func TestTranslateWriteError(t *testing.T) {
	vehicleID := uuid.New()

	tests := []struct {
		name string
		err  error
		code domain.ErrorCode
	}{
		{"exclusion violation", &pgconn.PgError{Code: "23P01", ConstraintName: "bookings_no_overlap"}, domain.CodeVehicleUnavailable},
		{"wrapped exclusion violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23P01"}), domain.CodeVehicleUnavailable},
		{"unique violation", &pgconn.PgError{Code: "23505"}, domain.CodeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, domain.HasCode(translateWriteError(tt.err, vehicleID), tt.code))
		})
	}

	t.Run("other errors pass through", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := translateWriteError(cause, vehicleID)
		assert.ErrorIs(t, err, cause)
		_, ok := domain.AsDomainError(err)
		assert.False(t, ok)
	})
}

func TestGormBookingRepository_InsertOverlap(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormBookingRepository(db)
	bk := newBooking(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "bookings"`).
		WillReturnError(&pgconn.PgError{Code: pgExclusionViolation, ConstraintName: "bookings_no_overlap"})
	mock.ExpectRollback()

	err := repo.Insert(context.Background(), bk)

	assert.True(t, domain.HasCode(err, domain.CodeVehicleUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormBookingRepository_UpdateWithExpectedStatus(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewGormBookingRepository(db)
		bk := newBooking(t)
		bk.IncrementVersion()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "bookings" SET .* WHERE id = \$\d+ AND status = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.UpdateWithExpectedStatus(context.Background(), bk, bookingDomain.StatusPending))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Stale", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewGormBookingRepository(db)
		bk := newBooking(t)
		bk.IncrementVersion()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "bookings" SET`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := repo.UpdateWithExpectedStatus(context.Background(), bk, bookingDomain.StatusPending)
		assert.True(t, domain.HasCode(err, domain.CodeStaleState))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormBookingRepository_FindByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormBookingRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "bookings" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.True(t, domain.HasCode(err, domain.CodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormBookingRepository_ExistingIDs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormBookingRepository(db)
	present, missing := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT "id" FROM "bookings" WHERE id IN`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(present.String()))

	got, err := repo.ExistingIDs(context.Background(), []uuid.UUID{present, missing})
	require.NoError(t, err)
	assert.True(t, got[present])
	assert.False(t, got[missing])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormHoldRepository_UpdateFromWrongState(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormHoldRepository(db)
	hold := &paymentDomain.Hold{ID: uuid.New(), State: paymentDomain.HoldReleasing, UpdatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "payment_holds" SET .* WHERE id = \$\d+ AND state IN`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT \* FROM "payment_holds" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "state"}).AddRow(hold.ID.String(), "captured"))

	err := repo.UpdateFrom(context.Background(), hold, paymentDomain.HoldHeld)

	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeInvalidState, de.Code)
	assert.Contains(t, de.Message, "captured")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormVehicleRepository_UpsertKeepsNewerVersion(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormVehicleRepository(db)
	v, err := vehicleDomain.NewVehicle(uuid.New(), uuid.New(), "2019 Honda Civic", 250, nil, "USD", vehicleDomain.StatusAvailable, 3)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "vehicles" .* ON CONFLICT \("id"\) DO UPDATE SET .* WHERE vehicles.version <= excluded.version`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Upsert(context.Background(), v))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPageBounds(t *testing.T) {
	offset, limit := pageBounds(0, 0)
	assert.Equal(t, 0, offset)
	assert.Equal(t, 20, limit)

	offset, limit = pageBounds(3, 10)
	assert.Equal(t, 20, offset)
	assert.Equal(t, 10, limit)
}
