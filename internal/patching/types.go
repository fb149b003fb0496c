package patching

import (
	"fmt"
	"strings"
)

// Unknown replaces any host identity field the OS could not report.
const Unknown = "Unknown"

// NotCollected is written to the domain column when the domain lookup is
// disabled.
const NotCollected = "N/A"

// Columns is the fixed column set of every per-host and combined file.
var Columns = []string{"patch_id", "installed", "hostname", "domain", "ip_address", "os_version"}

// Installed reports whether a target patch is present. It serializes as
// "Yes"/"No".
type Installed bool

func (i Installed) String() string {
	if i {
		return "Yes"
	}
	return "No"
}

// MarshalCSV implements gocsv.TypeMarshaller.
func (i Installed) MarshalCSV() (string, error) {
	return i.String(), nil
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (i *Installed) UnmarshalCSV(s string) error {
	v, err := ParseInstalled(s)
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// ParseInstalled accepts Yes/No and true/false in any case.
func ParseInstalled(s string) (Installed, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true":
		return true, nil
	case "no", "false":
		return false, nil
	default:
		return false, fmt.Errorf("invalid installed value %q", s)
	}
}

// Record is one row: the state of one target patch on one host.
type Record struct {
	PatchID   string    `csv:"patch_id"`
	Installed Installed `csv:"installed"`
	Hostname  string    `csv:"hostname"`
	Domain    string    `csv:"domain"`
	IPAddress string    `csv:"ip_address"`
	OSVersion string    `csv:"os_version"`
}

// Values returns the record's cells in Columns order.
func (r Record) Values() []string {
	return []string{r.PatchID, r.Installed.String(), r.Hostname, r.Domain, r.IPAddress, r.OSVersion}
}

// RecordFromValues is the inverse of Values.
func RecordFromValues(values []string) (Record, error) {
	if len(values) != len(Columns) {
		return Record{}, fmt.Errorf("expected %d cells, got %d", len(Columns), len(values))
	}
	installed, err := ParseInstalled(values[1])
	if err != nil {
		return Record{}, err
	}
	return Record{
		PatchID:   values[0],
		Installed: installed,
		Hostname:  values[2],
		Domain:    values[3],
		IPAddress: values[4],
		OSVersion: values[5],
	}, nil
}

// Identity describes the host a collection run executes on.
type Identity struct {
	Hostname  string
	Domain    string
	IPAddress string
	OSVersion string
}

// missing lists the blank fields by column name.
func (id Identity) missing() []string {
	var fields []string
	if strings.TrimSpace(id.Hostname) == "" {
		fields = append(fields, "hostname")
	}
	if strings.TrimSpace(id.Domain) == "" {
		fields = append(fields, "domain")
	}
	if strings.TrimSpace(id.IPAddress) == "" {
		fields = append(fields, "ip_address")
	}
	if strings.TrimSpace(id.OSVersion) == "" {
		fields = append(fields, "os_version")
	}
	return fields
}

func (id Identity) withSentinels() Identity {
	fill := func(s string) string {
		if s = strings.TrimSpace(s); s == "" {
			return Unknown
		}
		return s
	}
	return Identity{
		Hostname:  fill(id.Hostname),
		Domain:    fill(id.Domain),
		IPAddress: fill(id.IPAddress),
		OSVersion: fill(id.OSVersion),
	}
}

// PatchSet is the set of patch ids installed on a host.
type PatchSet map[string]struct{}

// NewPatchSet builds a set from raw ids, trimming whitespace and dropping
// blanks. Matching against the set is exact.
func NewPatchSet(ids ...string) PatchSet {
	set := make(PatchSet, len(ids))
	set.Add(ids...)
	return set
}

func (s PatchSet) Add(ids ...string) {
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			s[id] = struct{}{}
		}
	}
}

func (s PatchSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}
