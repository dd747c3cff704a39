package capability

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCapability struct{}

func (failingCapability) Name() string        { return "broken" }
func (failingCapability) Description() string { return "always fails" }
func (failingCapability) Invoke(context.Context, string) (any, error) {
	return nil, errors.New("upstream unavailable")
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg, err := NewRegistry(NewReputationLookup(nil))
	require.NoError(t, err)

	err = reg.Register(NewReputationLookup(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate capability")
}

func TestRegistryFreeze(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	reg.Freeze()

	err = reg.Register(NewReputationLookup(nil))
	assert.ErrorIs(t, err, ErrRegistryFrozen)
}

func TestRegistryInvokeUnknown(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	_, err = reg.Invoke(context.Background(), "nope", "x")
	var capErr *CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "nope", capErr.Name)
	assert.ErrorIs(t, err, ErrUnknownCapability)
}

func TestRegistryInvokeWrapsFailures(t *testing.T) {
	reg, err := NewRegistry(failingCapability{})
	require.NoError(t, err)

	_, err = reg.Invoke(context.Background(), "broken", "x")
	var capErr *CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "broken", capErr.Name)
	assert.Contains(t, err.Error(), "upstream unavailable")
}

func TestRegistryNamesSorted(t *testing.T) {
	logs, err := NewLogReader(t.TempDir())
	require.NoError(t, err)
	reg, err := NewRegistry(NewReputationLookup(nil), logs)
	require.NoError(t, err)

	assert.Equal(t, []string{ReputationName, LogReaderName}, reg.Names())
}

func TestReputationKnownAddress(t *testing.T) {
	lookup := NewReputationLookup(nil)

	first := lookup.Lookup("45.12.34.7")
	second := lookup.Lookup("45.12.34.7")

	assert.Equal(t, 85, first.RiskScore)
	assert.Equal(t, "Malicious", first.Status)
	assert.Equal(t, "Unknown/Proxy", first.Geolocation)
	assert.Equal(t, []string{"SSH Brute Force", "Port Scanning"}, first.AttackHistory)
	assert.Equal(t, "BadActor Networks Ltd.", first.ISP)
	assert.Equal(t, first, second)

	high := lookup.Lookup("198.51.100.14")
	assert.Equal(t, 92, high.RiskScore)
	assert.Equal(t, "High Risk", high.Status)
}

func TestReputationDefaultIsBenign(t *testing.T) {
	lookup := NewReputationLookup(nil)

	rec := lookup.Lookup("8.8.8.8")
	assert.Equal(t, "8.8.8.8", rec.IP)
	assert.Equal(t, 10, rec.RiskScore)
	assert.Equal(t, "Benign", rec.Status)
	assert.Equal(t, "US", rec.Geolocation)
	assert.Empty(t, rec.AttackHistory)
	assert.NotNil(t, rec.AttackHistory)
	assert.Equal(t, "Cloud Provider Inc.", rec.ISP)
}

func TestReputationSubstringMatch(t *testing.T) {
	lookup := NewReputationLookup(nil)

	rec := lookup.Lookup("Source IP: 45.12.34.7 (ssh)")
	assert.Equal(t, "Malicious", rec.Status)
	assert.Equal(t, "Source IP: 45.12.34.7 (ssh)", rec.IP)
}

func TestReputationRecordsAreIndependentCopies(t *testing.T) {
	lookup := NewReputationLookup(nil)

	rec := lookup.Lookup("45.12.34.7")
	rec.AttackHistory[0] = "tampered"

	again := lookup.Lookup("45.12.34.7")
	assert.Equal(t, "SSH Brute Force", again.AttackHistory[0])
}

func TestLoadReputationTableMerges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intel.yaml")
	content := `entries:
  - key: 203.0.113.9
    risk_score: 70
    status: Suspicious
    geolocation: NL
    attack_history: ["Port Scanning"]
    isp: Example Hosting
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	extra, err := LoadReputationTable(path)
	require.NoError(t, err)

	lookup := NewReputationLookup(DefaultReputationTable().Merge(extra))
	assert.Equal(t, "Suspicious", lookup.Lookup("203.0.113.9").Status)
	assert.Equal(t, "Malicious", lookup.Lookup("45.12.34.7").Status)
	assert.Equal(t, "Benign", lookup.Lookup("8.8.8.8").Status)
}

func TestLoadReputationTableRejectsEmptyKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entries:\n  - status: x\n"), 0600))

	_, err := LoadReputationTable(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty key")
}

func TestFirstIPv4(t *testing.T) {
	assert.Equal(t, "45.12.34.7", FirstIPv4("[ALERT] SSH Brute Force detected from IP 45.12.34.7"))
	assert.Equal(t, "10.0.0.1", FirstIPv4("bad 999.1.1.1 then 10.0.0.1"))
	assert.Equal(t, "", FirstIPv4("no address here"))
}

func TestLogReader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth.log"), []byte("Failed password for root"), 0600))

	reader, err := NewLogReader(dir)
	require.NoError(t, err)

	out, err := reader.Invoke(context.Background(), "auth.log")
	require.NoError(t, err)
	assert.Equal(t, "Failed password for root", out)

	_, err = reader.Invoke(context.Background(), "../outside.log")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the log directory")

	_, err = reader.Invoke(context.Background(), "missing.log")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLogReaderRejectsSymlinkEscape(t *testing.T) {
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("TOPSECRET"), 0600))

	dir := t.TempDir()
	if err := os.Symlink(secret, filepath.Join(dir, "auth.log")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	reader, err := NewLogReader(dir)
	require.NoError(t, err)

	out, err := reader.Invoke(context.Background(), "auth.log")
	require.Error(t, err)
	assert.Nil(t, out)
}
