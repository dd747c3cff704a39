package capability

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReputationName is the registry name of the IP reputation lookup.
const ReputationName = "check_ip_reputation"

// ReputationRecord is the structured answer of the reputation lookup.
type ReputationRecord struct {
	IP            string   `json:"ip" yaml:"-"`
	RiskScore     int      `json:"risk_score" yaml:"risk_score"`
	Status        string   `json:"status" yaml:"status"`
	Geolocation   string   `json:"geolocation" yaml:"geolocation"`
	AttackHistory []string `json:"attack_history" yaml:"attack_history"`
	ISP           string   `json:"isp" yaml:"isp"`
}

// ReputationEntry binds a lookup key to a fixed record.
type ReputationEntry struct {
	Key    string           `yaml:"key"`
	Record ReputationRecord `yaml:",inline"`
}

// ReputationTable is an ordered set of entries plus the record returned
// when nothing matches. The first matching entry wins.
type ReputationTable struct {
	Entries []ReputationEntry `yaml:"entries"`
	Default *ReputationRecord `yaml:"default,omitempty"`
}

// DefaultReputationTable returns the built-in mock threat intelligence.
func DefaultReputationTable() *ReputationTable {
	return &ReputationTable{
		Entries: []ReputationEntry{
			{
				Key: "45.12.34.7",
				Record: ReputationRecord{
					RiskScore:     85,
					Status:        "Malicious",
					Geolocation:   "Unknown/Proxy",
					AttackHistory: []string{"SSH Brute Force", "Port Scanning"},
					ISP:           "BadActor Networks Ltd.",
				},
			},
			{
				Key: "198.51.100.14",
				Record: ReputationRecord{
					RiskScore:     92,
					Status:        "High Risk",
					Geolocation:   "Eastern Europe",
					AttackHistory: []string{"Data Exfiltration", "Ransomware C2"},
					ISP:           "Bulletproof Hosting Inc.",
				},
			},
		},
		Default: &ReputationRecord{
			RiskScore:     10,
			Status:        "Benign",
			Geolocation:   "US",
			AttackHistory: []string{},
			ISP:           "Cloud Provider Inc.",
		},
	}
}

// LoadReputationTable reads additional entries from a YAML file.
func LoadReputationTable(path string) (*ReputationTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var table ReputationTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse reputation table %s: %w", path, err)
	}
	for i, entry := range table.Entries {
		if strings.TrimSpace(entry.Key) == "" {
			return nil, fmt.Errorf("reputation table %s: entry %d has empty key", path, i)
		}
	}
	return &table, nil
}

// Merge returns a new table where entries of other replace entries with the
// same key and new keys are appended in their file order.
func (t *ReputationTable) Merge(other *ReputationTable) *ReputationTable {
	merged := &ReputationTable{Default: t.Default}
	merged.Entries = append(merged.Entries, t.Entries...)
	if other == nil {
		return merged
	}

	for _, entry := range other.Entries {
		replaced := false
		for i := range merged.Entries {
			if merged.Entries[i].Key == entry.Key {
				merged.Entries[i] = entry
				replaced = true
				break
			}
		}
		if !replaced {
			merged.Entries = append(merged.Entries, entry)
		}
	}
	if other.Default != nil {
		merged.Default = other.Default
	}
	return merged
}

// ReputationLookup answers IP reputation queries from a fixed table.
// Answers never vary for a given argument.
type ReputationLookup struct {
	table *ReputationTable
}

// NewReputationLookup creates the lookup. A nil table uses the built-in data.
func NewReputationLookup(table *ReputationTable) *ReputationLookup {
	if table == nil {
		table = DefaultReputationTable()
	}
	if table.Default == nil {
		table = table.Merge(nil)
		table.Default = DefaultReputationTable().Default
	}
	return &ReputationLookup{table: table}
}

// Name returns the registry name.
func (l *ReputationLookup) Name() string {
	return ReputationName
}

// Description is shown to the model.
func (l *ReputationLookup) Description() string {
	return "Checks the reputation of an IP address against threat intelligence feeds. " +
		"Argument: the IP address. Returns risk score, status, geolocation, attack history and ISP."
}

// Invoke returns the ReputationRecord for the argument.
func (l *ReputationLookup) Invoke(_ context.Context, argument string) (any, error) {
	return l.Lookup(argument), nil
}

// Lookup matches the argument against each key by substring.
func (l *ReputationLookup) Lookup(argument string) ReputationRecord {
	for _, entry := range l.table.Entries {
		if strings.Contains(argument, entry.Key) {
			return entry.Record.withIP(argument)
		}
	}
	return l.table.Default.withIP(argument)
}

func (r ReputationRecord) withIP(ip string) ReputationRecord {
	out := r
	out.IP = ip
	out.AttackHistory = append([]string{}, r.AttackHistory...)
	return out
}

var ipv4Candidate = regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)

// FirstIPv4 returns the first valid IPv4 address in text, or "".
func FirstIPv4(text string) string {
	for _, candidate := range ipv4Candidate.FindAllString(text, -1) {
		addr, err := netip.ParseAddr(candidate)
		if err == nil && addr.Is4() {
			return candidate
		}
	}
	return ""
}
