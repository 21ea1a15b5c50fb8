package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHelpFlag(t *testing.T) {
	t.Parallel()

	stdout := &bytes.Buffer{}

	rt := run(t.Context(), []string{"sshlog-exporter", "--help"}, stdout, nil)
	require.Equal(t, ReturnCodeOK, rt, stdout)
	require.Contains(t, stdout.String(), "Usage of")
}

func TestVersionFlag(t *testing.T) {
	t.Parallel()

	stdout := &bytes.Buffer{}

	rt := run(t.Context(), []string{"sshlog-exporter", "--version"}, stdout, nil)
	require.Equal(t, ReturnCodeOK, rt, stdout)
	require.Contains(t, stdout.String(), "version")
}

func TestVerifyConfig(t *testing.T) {
	t.Parallel()

	stdout := &bytes.Buffer{}

	configPath := filepath.Join(t.TempDir(), "scrapeconfig.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
global:
  format:
    - remote_addr: label
    - body_bytes_sent: clf_number
ssh:
  connection:
    file: /var/log/app.log
    user: scraper
  environments:
    prod:
      hosts: ["10.0.0.1"]
`), 0o600))

	rt := run(t.Context(), []string{
		"sshlog-exporter",
		"--config=" + configPath,
		"--log.format=json",
		"--verify-config",
	}, stdout, nil)
	require.Equal(t, ReturnCodeOK, rt, stdout.String())
}

func TestInvalidConfigRejected(t *testing.T) {
	t.Parallel()

	stdout := &bytes.Buffer{}

	configPath := filepath.Join(t.TempDir(), "scrapeconfig.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
global:
  format:
    - status: label+size_buckets
`), 0o600))

	rt := run(t.Context(), []string{
		"sshlog-exporter",
		"--config=" + configPath,
		"--verify-config",
	}, stdout, nil)
	require.Equal(t, ReturnCodeError, rt, stdout.String())
	require.Contains(t, stdout.String(), "configuration validation error")
}
