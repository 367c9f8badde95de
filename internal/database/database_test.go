package database

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestConnectRosterFallsBackToMemory(t *testing.T) {
	db, err := ConnectRoster("")
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Ping())
}

func TestConnectRedis(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	client, err := ConnectRedis(context.Background(), "redis://"+mini.Addr())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	mini.CheckGet(t, "k", "v")
}

func TestConnectRejectsEmptyURLs(t *testing.T) {
	_, err := ConnectRedis(context.Background(), "")
	require.Error(t, err)

	_, err = ConnectNATS("", "test")
	require.Error(t, err)

	_, err = ConnectPostgres("")
	require.Error(t, err)
}

