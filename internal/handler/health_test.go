package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/melafrancom/erp-bulonera/internal/worker"
)

// unreachableDB builds a gorm handle over a lazy connection whose ping fails.
func unreachableDB(t *testing.T) *gorm.DB {
	t.Helper()
	sqlDB, err := sql.Open("pgx", "host=127.0.0.1 port=1 user=none dbname=none connect_timeout=1")
	require.NoError(t, err)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return db
}

func healthResponse(t *testing.T, db *gorm.DB, rdb *redis.Client) (int, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", Health(db, rdb))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealthReportsDLQDepth(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	ctx := context.Background()
	worker.SendToDLQ(ctx, rdb, worker.QueueNotificaciones, "conversion_notice", json.RawMessage(`{}`), "destinatario inválido", 3)
	worker.SendToDLQ(ctx, rdb, worker.QueueNotificaciones, "conversion_notice", json.RawMessage(`{}`), "destinatario inválido", 3)

	code, body := healthResponse(t, unreachableDB(t), rdb)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "error", body["db"])
	assert.Equal(t, "connected", body["redis"])
	assert.Equal(t, float64(2), body["dlq_depth"])
}

func TestHealthRedisDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})

	code, body := healthResponse(t, unreachableDB(t), rdb)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "error", body["redis"])
	assert.Equal(t, float64(-1), body["dlq_depth"])
}
