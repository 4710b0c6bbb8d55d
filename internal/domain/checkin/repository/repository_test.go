package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"event_ticketing/internal/domain/checkin/model"
	"event_ticketing/pkg/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDuplicateSuccessful(t *testing.T) {
	db, mock := testutil.NewGormMock(t)
	repo := NewCheckInRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "check_ins"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_check_ins_ticket_successful"})

	err := repo.Create(context.Background(), &model.CheckIn{
		TicketID:    "tkt-1",
		EventName:   "Concierto",
		UserID:      "user-1",
		CheckInTime: time.Now(),
		Status:      model.CheckInStatusSuccessful,
	})
	assert.ErrorIs(t, err, model.ErrDuplicateCheckIn)
}

func TestHasSuccessful(t *testing.T) {
	db, mock := testutil.NewGormMock(t)
	repo := NewCheckInRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "check_ins" WHERE (ticket_id = $1 AND status = $2)`)).
		WithArgs("tkt-1", "successful").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	has, err := repo.HasSuccessful(context.Background(), "tkt-1")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestStatsRepository(t *testing.T) {
	db, mock := testutil.NewSqlxMock(t)
	repo := NewStatsRepository(db)
	ctx := context.Background()
	hour := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) AS count")).
		WithArgs("Concierto").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("failed", 3).
			AddRow("successful", 51))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT date_trunc('hour', check_in_time) AS hour")).
		WithArgs("Concierto").
		WillReturnRows(sqlmock.NewRows([]string{"hour", "count"}).AddRow(hour, 51))

	byStatus, err := repo.CountByStatus(ctx, "Concierto")
	require.NoError(t, err)
	assert.Equal(t, []StatusCount{{model.CheckInStatusFailed, 3}, {model.CheckInStatusSuccessful, 51}}, byStatus)

	byHour, err := repo.CountByHour(ctx, "Concierto")
	require.NoError(t, err)
	require.Len(t, byHour, 1)
	assert.Equal(t, hour, byHour[0].Hour)
	assert.Equal(t, int64(51), byHour[0].Count)
}

func TestStatsRepositoryError(t *testing.T) {
	db, mock := testutil.NewSqlxMock(t)
	mock.ExpectQuery("SELECT status").WillReturnError(errors.New("timeout"))

	_, err := NewStatsRepository(db).CountByStatus(context.Background(), "Concierto")
	assert.ErrorContains(t, err, "count check-ins by status")
}

func TestRedisScanGuard(t *testing.T) {
	client, mock := redismock.NewClientMock()
	guard := NewRedisScanGuard(client, 10*time.Second).(*redisScanGuard)
	tokens := []string{"tok-1", "tok-2"}
	guard.newToken = func() string {
		tok := tokens[0]
		tokens = tokens[1:]
		return tok
	}
	ctx := context.Background()

	mock.ExpectSetNX(GuardKey("tkt-1"), "tok-1", 10*time.Second).SetVal(true)
	mock.ExpectSetNX(GuardKey("tkt-1"), "tok-2", 10*time.Second).SetVal(false)
	mock.ExpectEval(releaseGuardScript, []string{GuardKey("tkt-1")}, "tok-1").SetVal(int64(1))

	token, ok, err := guard.Acquire(ctx, "tkt-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-1", token)

	token, ok, err = guard.Acquire(ctx, "tkt-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, token)

	require.NoError(t, guard.Release(ctx, "tkt-1", "tok-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisScanGuardReleaseKeepsForeignLock(t *testing.T) {
	client, mock := redismock.NewClientMock()
	guard := NewRedisScanGuard(client, 10*time.Second)

	// 锁已过期并被另一请求以新令牌持有，脚本比对失败返回 0
	mock.ExpectEval(releaseGuardScript, []string{GuardKey("tkt-1")}, "expired-token").SetVal(int64(0))

	require.NoError(t, guard.Release(context.Background(), "tkt-1", "expired-token"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisScanGuardOutage(t *testing.T) {
	client, mock := redismock.NewClientMock()
	guard := NewRedisScanGuard(client, 10*time.Second).(*redisScanGuard)
	guard.newToken = func() string { return "tok-1" }

	mock.ExpectSetNX(GuardKey("tkt-1"), "tok-1", 10*time.Second).SetErr(errors.New("connection refused"))

	_, ok, err := guard.Acquire(context.Background(), "tkt-1")
	assert.Error(t, err)
	assert.False(t, ok)
}
