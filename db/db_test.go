package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gorm.io/gorm"

	"github.com/ceyewan/bfametrics/clog"
	"github.com/ceyewan/bfametrics/connector"
	"github.com/ceyewan/bfametrics/xerrors"
)

type causeRow struct {
	Name  string `gorm:"primaryKey;size:255"`
	Count int64
}

func newSQLite(t *testing.T) connector.SQLiteConnector {
	t.Helper()
	conn, err := connector.NewSQLite(&connector.SQLiteConfig{Path: t.TempDir() + "/bfa.db"})
	require.NoError(t, err)
	require.NoError(t, conn.Connect(context.Background()))
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestNewErrors(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, ErrConnectorRequired)

	notConnected, err := connector.NewSQLite(&connector.SQLiteConfig{Path: t.TempDir() + "/bfa.db"})
	require.NoError(t, err)
	_, err = New(notConnected, nil)
	assert.ErrorIs(t, err, connector.ErrNotConnected)

	_, err = New(newSQLite(t), &Config{LogLevel: "verbose"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestTransaction(t *testing.T) {
	database, err := New(newSQLite(t), &Config{LogLevel: "info"}, WithLogger(clog.Discard()))
	require.NoError(t, err)
	defer database.Close()

	ctx := context.Background()
	require.NoError(t, database.DB(ctx).AutoMigrate(&causeRow{}))

	require.NoError(t, database.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		return tx.Create(&causeRow{Name: "OOM", Count: 1}).Error
	}))

	boom := errors.New("boom")
	err = database.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		if err := tx.Create(&causeRow{Name: "Timeout", Count: 1}).Error; err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var rows []causeRow
	require.NoError(t, database.DB(ctx).Order("name").Find(&rows).Error)
	assert.Equal(t, []causeRow{{Name: "OOM", Count: 1}}, rows, "rolled back insert is not visible")

	// 记录不存在只返回错误，不记录日志
	err = database.DB(ctx).Where("name = ?", "missing").Take(&causeRow{}).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	conn := newSQLite(t)
	database, err := New(conn, &Config{EnableTracing: true}, WithTracer(tp))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, database.DB(ctx).AutoMigrate(&causeRow{}))
	require.NoError(t, database.DB(ctx).Create(&causeRow{Name: "OOM"}).Error)
	assert.NotEmpty(t, recorder.Ended(), "sql statements produce spans")

	// 同一连接器再次创建不会重复注册插件
	_, err = New(conn, &Config{EnableTracing: true}, WithTracer(tp))
	require.NoError(t, err)
}
