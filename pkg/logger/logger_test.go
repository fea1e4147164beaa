package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func TestBuild_DefaultFilesInDir(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, NewBuilder().SetDir(dir).SetLevel(DEBUG).Build())
	defer Close()

	Info().Msg("relayer started")
	Error().Err(errors.New("rpc down")).Msg("fill failed")

	assert.Contains(t, readFile(t, filepath.Join(dir, "info.log")), "relayer started")
	assert.Contains(t, readFile(t, filepath.Join(dir, "error.log")), "rpc down")
}

func TestLevelRouting(t *testing.T) {
	dir := t.TempDir()
	infoFile := filepath.Join(dir, "info.log")
	errorFile := filepath.Join(dir, "error.log")

	require.NoError(t, NewBuilder().
		AddLevelFile(INFO, infoFile).
		AddLevelFile(ERROR, errorFile).
		SetLevel(DEBUG).
		Build())
	defer Close()

	Debug().Msg("debug-line")
	Warn().Msg("warn-line")
	Error().Msg("error-line")

	info := readFile(t, infoFile)
	errs := readFile(t, errorFile)

	// 未单独配置的等级落到 info 文件
	assert.Contains(t, info, "debug-line")
	assert.Contains(t, info, "warn-line")
	assert.NotContains(t, info, "error-line")
	assert.Contains(t, errs, "error-line")
	assert.NotContains(t, errs, "warn-line")
}

func TestGlobalLevel(t *testing.T) {
	dir := t.TempDir()
	infoFile := filepath.Join(dir, "info.log")

	require.NoError(t, NewBuilder().AddLevelFile(INFO, infoFile).SetLevel(WARN).Build())
	defer Close()

	Info().Msg("filtered")
	Warn().Msg("kept")

	content := readFile(t, infoFile)
	assert.NotContains(t, content, "filtered")
	assert.Contains(t, content, "kept")
}

func TestJSONOutput(t *testing.T) {
	dir := t.TempDir()
	infoFile := filepath.Join(dir, "info.log")

	require.NoError(t, NewBuilder().AddLevelFile(INFO, infoFile).EnableJSON(true).Build())
	defer Close()

	l := Component("executor")
	l.Info().Str("digest", "0xabc").Msg("order submitted")

	content := readFile(t, infoFile)
	assert.Contains(t, content, `"component":"executor"`)
	assert.Contains(t, content, `"digest":"0xabc"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("verbose"))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, INFO, cfg.Level)
	assert.Equal(t, 10, cfg.MaxSize)

	files := cfg.files()
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join("logs", "error.log"), files[0].Path)
	assert.Equal(t, filepath.Join("logs", "info.log"), files[1].Path)
}

func TestClose_Idempotent(t *testing.T) {
	require.NoError(t, NewBuilder().SetDir(t.TempDir()).Build())
	Close()
	Close()
}

func BenchmarkStructuredLogging(b *testing.B) {
	require.NoError(b, NewBuilder().AddLevelFile(INFO, filepath.Join(b.TempDir(), "bench.log")).Build())
	defer Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Info().
			Str("digest", "0xabc").
			Int("candidates", 12).
			Msg("benchmark message")
	}
}
