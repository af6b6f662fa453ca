package storage

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func openTestLSM(t *testing.T, configure func(*Config)) *LSM {
	dir := t.TempDir()
	config := DefaultConfig()
	config.DataDir = dir
	if configure != nil {
		configure(&config)
	}
	lsm, err := Open(config, testLogger(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lsm.Close() })
	return lsm
}

func TestLSM_RoundTrip(t *testing.T) {
	lsm := openTestLSM(t, nil)

	require.NoError(t, lsm.Put([]byte("foo"), []byte("bar")))
	status, value := lsm.Get([]byte("foo"))
	require.Equal(t, Found, status)
	require.Equal(t, "bar", string(value))

	require.NoError(t, lsm.Remove([]byte("foo")))
	status, _ = lsm.Get([]byte("foo"))
	require.Equal(t, Deleted, status)

	require.NoError(t, lsm.Put([]byte("foo"), []byte("baz")))
	status, value = lsm.Get([]byte("foo"))
	require.Equal(t, Found, status)
	require.Equal(t, "baz", string(value))
}

func TestLSM_FlushThenRead(t *testing.T) {
	lsm := openTestLSM(t, func(c *Config) { c.MemTableSizeThreshold = 4096 })

	n := 2000
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("k%06d", i))
		value := []byte(fmt.Sprintf("v%06d", i))
		require.NoError(t, lsm.Put(key, value))
	}

	for i := 0; i < n; i += 37 {
		key := []byte(fmt.Sprintf("k%06d", i))
		status, value := lsm.Get(key)
		require.Equal(t, Found, status, "key %s", key)
		require.Equal(t, fmt.Sprintf("v%06d", i), string(value))
	}
}

func TestLSM_ShadowingByNewerMemtable(t *testing.T) {
	lsm := openTestLSM(t, func(c *Config) { c.MemTableSizeThreshold = 1 })

	require.NoError(t, lsm.Put([]byte("x"), []byte("1")))
	require.NoError(t, lsm.Put([]byte("x"), []byte("2")))

	status, value := lsm.Get([]byte("x"))
	require.Equal(t, Found, status)
	require.Equal(t, "2", string(value))
}

func TestLSM_CompactionDropsTombstonesAndShadowedKeys(t *testing.T) {
	lsm := openTestLSM(t, func(c *Config) {
		c.MemTableSizeThreshold = 1
		c.SSTableCountThreshold = 3
	})

	require.NoError(t, lsm.Put([]byte("a"), []byte("1")))
	require.NoError(t, lsm.Put([]byte("a"), []byte("2")))
	require.NoError(t, lsm.Remove([]byte("b")))

	require.Eventually(t, func() bool {
		status, _ := lsm.Get([]byte("b"))
		return lsm.Stats().SSTableCount == 1 && status == Absent
	}, 3*time.Second, 20*time.Millisecond, "compaction never ran")

	status, value := lsm.Get([]byte("a"))
	require.Equal(t, Found, status)
	require.Equal(t, "2", string(value))
}

func TestLSM_Reopen(t *testing.T) {
	dir := os.TempDir() + "/ridgedb-reopen-test"
	require.NoError(t, os.MkdirAll(dir, 0o755))
	defer os.RemoveAll(dir)

	config := DefaultConfig()
	config.DataDir = dir
	config.MemTableSizeThreshold = 1

	lsm, err := Open(config, testLogger(), nil)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("persist-%03d", i))
		value := []byte(fmt.Sprintf("value-%03d", i))
		require.NoError(t, lsm.Put(key, value))
	}
	require.NoError(t, lsm.Close())

	reopened, err := Open(config, testLogger(), nil)
	require.NoError(t, err)
	defer reopened.Close()

	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("persist-%03d", i))
		status, value := reopened.Get(key)
		require.Equal(t, Found, status)
		require.Equal(t, fmt.Sprintf("value-%03d", i), string(value))
	}
}

func TestLSM_ConcurrentPutGet(t *testing.T) {
	lsm := openTestLSM(t, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			key := []byte(fmt.Sprintf("concurrent-%04d", i))
			value := []byte(fmt.Sprintf("value-%04d", i))
			_ = lsm.Put(key, value)
		}
	}()

	for i := 0; i < 500; i++ {
		key := []byte(fmt.Sprintf("concurrent-%04d", i))
		lsm.Get(key)
	}
	<-done

	for i := 0; i < 500; i++ {
		key := []byte(fmt.Sprintf("concurrent-%04d", i))
		status, _ := lsm.Get(key)
		require.Equal(t, Found, status)
	}
}

func TestSweepOrphans_RemovesUnmatchedHalves(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/sstable_100.index", []byte{0, 0, 0, 0, 0, 0, 0, 0}, 0o644))
	require.NoError(t, os.WriteFile(dir+"/sstable_200.data", nil, 0o644))

	sweepOrphans(dir, logrus.NewEntry(testLogger()))

	_, err := os.Stat(dir + "/sstable_100.index")
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(dir + "/sstable_200.data")
	require.True(t, os.IsNotExist(err))
}
