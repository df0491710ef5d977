package focus

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadPolicyMergesOverDefaults(t *testing.T) {
	path := writePolicy(t, `
mode: exam
recovery_rate: 0.25
blocked_hosts: [games.example.net]
kinds:
  tab_switch:
    grace: 5s
    warn_after: 0s
    penalty: 4
    countdown: true
`)
	p, err := LoadPolicy(path)
	require.NoError(t, err)

	assert.Equal(t, ModeExam, p.Mode)
	assert.Equal(t, 0.25, p.RecoveryRate)
	assert.Equal(t, 5*time.Second, p.TickInterval)
	assert.Equal(t, []string{"games.example.net"}, p.BlockedHosts)
	assert.Equal(t, KindPolicy{Grace: 5 * time.Second, Penalty: 4, Countdown: true}, p.For(KindTabSwitch))
	assert.Equal(t, DefaultPolicy().For(KindCameraOff), p.For(KindCameraOff))
}

func TestLoadPolicyRejectsUnknownKind(t *testing.T) {
	path := writePolicy(t, `
kinds:
  daydreaming:
    grace: 1s
    penalty: 1
`)
	_, err := LoadPolicy(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daydreaming")
}

func TestLoadPolicyMissingFile(t *testing.T) {
	_, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaultPolicyIsValid(t *testing.T) {
	p := DefaultPolicy()
	require.NoError(t, p.Validate())
	for _, k := range Kinds {
		assert.Contains(t, p.Kinds, k)
	}
}

func TestLoadPolicyCanDisableRecovery(t *testing.T) {
	p, err := LoadPolicy(writePolicy(t, "recovery_rate: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.RecoveryRate)
	assert.Equal(t, DefaultPolicy().Kinds, p.Kinds)
}

func TestLoadPolicyPartialKindKeepsDefaults(t *testing.T) {
	p, err := LoadPolicy(writePolicy(t, `
kinds:
  camera_off:
    penalty: 5
`))
	require.NoError(t, err)
	assert.Equal(t, KindPolicy{Grace: 30 * time.Second, WarnAfter: 30 * time.Second, Penalty: 5}, p.For(KindCameraOff))
	assert.Equal(t, DefaultPolicy().For(KindTabSwitch), p.For(KindTabSwitch))
	assert.Equal(t, 0.5, p.RecoveryRate)
}
