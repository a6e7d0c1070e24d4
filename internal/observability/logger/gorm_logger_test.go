package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestDescribeSQL(t *testing.T) {
	cases := []struct {
		sql       string
		operation string
		table     string
	}{
		{`SELECT * FROM "invoices" WHERE id = $1`, "SELECT", "invoices"},
		{"INSERT INTO `invoice_items` (`invoice_id`) VALUES (?)", "INSERT", "invoice_items"},
		{`UPDATE "invoices" SET "status"=$1`, "UPDATE", "invoices"},
		{`DELETE FROM audit_logs WHERE id = 1`, "DELETE", "audit_logs"},
		{`  `, "UNKNOWN", ""},
	}
	for _, tc := range cases {
		operation, table := describeSQL(tc.sql)
		assert.Equal(t, tc.operation, operation, tc.sql)
		assert.Equal(t, tc.table, table, tc.sql)
	}
}

func TestGormLoggerTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core), GormLoggerConfig{Level: gormlogger.Warn, SlowThreshold: 50 * time.Millisecond})
	query := func() (string, int64) { return `SELECT * FROM "invoices"`, 2 }

	l.Trace(context.Background(), time.Now(), query, gormlogger.ErrRecordNotFound)
	l.Trace(context.Background(), time.Now(), query, nil)
	assert.Equal(t, 0, logs.Len())

	l.Trace(context.Background(), time.Now(), query, errors.New("boom"))
	l.Trace(context.Background(), time.Now().Add(-time.Second), query, nil)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "invoices", entries[0].ContextMap()["table"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(2), entries[1].ContextMap()["rows_affected"])
}

func TestGormLoggerLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core), DefaultGormLoggerConfig())

	l.Info(context.Background(), "ignored %s", "x")
	l.Warn(context.Background(), "pool %d exhausted", 3)

	entries := logs.AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, "pool 3 exhausted", entries[0].Message)

	silent := l.LogMode(gormlogger.Silent)
	silent.Error(context.Background(), "nope")
	assert.Equal(t, 1, logs.Len())
}
