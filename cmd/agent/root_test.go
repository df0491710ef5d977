package main

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerURL(t *testing.T) {
	cases := []struct {
		raw     string
		want    string
		wantErr string
	}{
		{raw: "http://localhost:8080", want: "http://localhost:8080"},
		{raw: " https://proctor.example.com/ ", want: "https://proctor.example.com"},
		{raw: "", wantErr: "server URL is required"},
		{raw: "   ", wantErr: "server URL is required"},
		{raw: "localhost:8080", wantErr: "absolute http or https"},
		{raw: "/focus", wantErr: "absolute http or https"},
		{raw: "ftp://files.example.com", wantErr: "absolute http or https"},
	}
	for _, tc := range cases {
		got, err := serverURL(tc.raw)
		if tc.wantErr != "" {
			require.Error(t, err, tc.raw)
			assert.Contains(t, err.Error(), tc.wantErr)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got)
	}
}

func TestAgentRefusesRelativeServer(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("AGENT_POLICY_FILE", "")
	rootCmd.SetArgs([]string{"--server", "focus-events", "--format", "jsonl"})
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absolute http or https")
}
