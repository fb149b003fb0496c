package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/breeze-rmm/patchaudit/internal/patching"
)

func hostRecords(host, osVersion string, installed map[string]bool, targets ...string) []patching.Record {
	records := make([]patching.Record, 0, len(targets))
	for _, id := range targets {
		records = append(records, patching.Record{
			PatchID:   id,
			Installed: patching.Installed(installed[id]),
			Hostname:  host,
			Domain:    "corp.example",
			IPAddress: "10.0.0.1",
			OSVersion: osVersion,
		})
	}
	return records
}

func writeHostFile(t *testing.T, dir, host string, format Format, records []patching.Record) string {
	t.Helper()
	path := filepath.Join(dir, host+"_updates"+format.Ext())
	if err := WriteFile(path, format, records); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
	return path
}

func TestEncodeCSV(t *testing.T) {
	var buf bytes.Buffer
	records := hostRecords("H1", "Windows 10", map[string]bool{"KB1": true}, "KB1", "KB2")
	if err := EncodeCSV(&buf, records); err != nil {
		t.Fatalf("EncodeCSV: %v", err)
	}
	want := "patch_id,installed,hostname,domain,ip_address,os_version\n" +
		"KB1,Yes,H1,corp.example,10.0.0.1,Windows 10\n" +
		"KB2,No,H1,corp.example,10.0.0.1,Windows 10\n"
	if buf.String() != want {
		t.Fatalf("EncodeCSV =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestEncodeCSVEmptyWritesHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeCSV(&buf, nil); err != nil {
		t.Fatalf("EncodeCSV: %v", err)
	}
	if strings.TrimSpace(buf.String()) != strings.Join(patching.Columns, ",") {
		t.Fatalf("expected header only, got %q", buf.String())
	}
}

func TestDecodeCSVAcceptsReorderedColumnsAndBOM(t *testing.T) {
	in := "\xEF\xBB\xBFhostname,patch_id,installed,domain,ip_address,os_version\n" +
		"H1,KB1,Yes,D,1.2.3.4,Windows 10\n"
	records, err := DecodeCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("DecodeCSV: %v", err)
	}
	want := patching.Record{PatchID: "KB1", Installed: true, Hostname: "H1", Domain: "D", IPAddress: "1.2.3.4", OSVersion: "Windows 10"}
	if len(records) != 1 || records[0] != want {
		t.Fatalf("got %+v, want %+v", records, want)
	}
}

func TestDecodeCSVSchemaMismatch(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"missing column", "patch_id,installed,hostname,domain,ip_address\nKB1,Yes,H1,D,1.2.3.4\n"},
		{"legacy header", "KB_Number,Installed,Hostname,Domain,IP_Address,Operating System\n"},
		{"extra column", "patch_id,installed,hostname,domain,ip_address,os_version,notes\n"},
		{"duplicate column", "patch_id,installed,hostname,domain,ip_address,os_version,hostname\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCSV(strings.NewReader(tt.in))
			if !errors.Is(err, ErrSchemaMismatch) {
				t.Fatalf("expected ErrSchemaMismatch, got %v", err)
			}
		})
	}
}

func TestCSVRewriteIsByteIdentical(t *testing.T) {
	dir := t.TempDir()
	records := hostRecords("H1", "Windows 11", map[string]bool{"KB2": true}, "KB1", "KB2", "KB3")

	path := writeHostFile(t, dir, "H1", CSV, records)
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	writeHostFile(t, dir, "H1", CSV, records)
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("rewrite changed file:\n%s\n---\n%s", first, second)
	}

	back, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !reflect.DeepEqual(back, records) {
		t.Fatalf("read back %+v, want %+v", back, records)
	}
}

func TestWriteFileLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	writeHostFile(t, dir, "H1", CSV, hostRecords("H1", "Windows 10", nil, "KB1"))

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "H1_updates.csv" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("unexpected directory contents %v", names)
	}
}

func TestXLSXRoundTrip(t *testing.T) {
	dir := t.TempDir()
	records := hostRecords("H1", "Windows Server 2019", map[string]bool{"KB1": true}, "KB1", "KB2")
	records[1].OSVersion = ""

	path := writeHostFile(t, dir, "H1", XLSX, records)
	back, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !reflect.DeepEqual(back, records) {
		t.Fatalf("read back %+v, want %+v", back, records)
	}
}

func TestAggregateNByK(t *testing.T) {
	for _, format := range []Format{CSV, XLSX} {
		t.Run(string(format), func(t *testing.T) {
			dir := t.TempDir()
			const n, k = 3, 4
			targets := []string{"KB1", "KB2", "KB3", "KB4"}
			for i := 0; i < n; i++ {
				host := fmt.Sprintf("H%d", i)
				writeHostFile(t, dir, host, format, hostRecords(host, "Windows 10", map[string]bool{"KB1": true}, targets...))
			}

			report, err := Aggregate(context.Background(), dir, AggregateOptions{Format: format})
			if err != nil {
				t.Fatalf("Aggregate: %v", err)
			}
			if len(report.Records) != n*k {
				t.Fatalf("got %d rows, want %d", len(report.Records), n*k)
			}
			if len(report.Files) != n || len(report.Skipped) != 0 {
				t.Fatalf("files=%d skipped=%d", len(report.Files), len(report.Skipped))
			}
			if report.Records[0].Hostname != "H0" || report.Records[n*k-1].Hostname != fmt.Sprintf("H%d", n-1) {
				t.Fatal("rows should follow file name order")
			}
		})
	}
}

func TestAggregateEmptyDirectory(t *testing.T) {
	report, err := Aggregate(context.Background(), t.TempDir(), AggregateOptions{Format: CSV})
	if err != nil {
		t.Fatalf("empty directory should not be an error: %v", err)
	}
	if len(report.Records) != 0 || report.Err() != nil {
		t.Fatalf("expected empty report, got %+v", report)
	}
}

func TestAggregateSkipsMismatchedFile(t *testing.T) {
	dir := t.TempDir()
	writeHostFile(t, dir, "H1", CSV, hostRecords("H1", "Windows 10", nil, "KB1", "KB2"))
	bad := filepath.Join(dir, "H2_updates.csv")
	if err := os.WriteFile(bad, []byte("KB_Number,Installed\nKB1,Yes\n"), 0644); err != nil {
		t.Fatal(err)
	}
	writeHostFile(t, dir, "H3", CSV, hostRecords("H3", "Windows 11", nil, "KB1", "KB2"))

	report, err := Aggregate(context.Background(), dir, AggregateOptions{Format: CSV})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(report.Records) != 4 {
		t.Fatalf("got %d rows, want 4 from the two valid files", len(report.Records))
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Path != bad {
		t.Fatalf("expected %s skipped, got %+v", bad, report.Skipped)
	}
	if !errors.Is(report.Err(), ErrSchemaMismatch) {
		t.Fatalf("Err() = %v, want schema mismatch", report.Err())
	}
	var schemaErr *SchemaError
	if !errors.As(report.Err(), &schemaErr) || schemaErr.Path != bad {
		t.Fatalf("schema error should carry the path: %v", report.Err())
	}
}

func TestAggregateExcludesOwnOutputs(t *testing.T) {
	dir := t.TempDir()
	records := hostRecords("H1", "Windows 10", nil, "KB1")
	writeHostFile(t, dir, "H1", CSV, records)
	for _, name := range []string{"aggregated_updates.csv", "aggregated_updates_Windows_10_No.csv", "cleaned_updates_report.csv"} {
		if err := WriteFile(filepath.Join(dir, name), CSV, records); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	report, err := Aggregate(context.Background(), dir, AggregateOptions{
		Format:  CSV,
		Exclude: []string{"aggregated_updates", "cleaned_updates_report"},
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(report.Files) != 1 || filepath.Base(report.Files[0]) != "H1_updates.csv" {
		t.Fatalf("unexpected inputs %v", report.Files)
	}
}

func TestDedupeIdempotent(t *testing.T) {
	a := hostRecords("H1", "Windows 10", map[string]bool{"KB1": true}, "KB1", "KB2")
	records := append(append([]patching.Record{}, a...), a[0], a[1], a[0])
	once := Dedupe(records)
	twice := Dedupe(once)
	if len(once) != 2 {
		t.Fatalf("got %d rows, want 2", len(once))
	}
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("Dedupe not idempotent: %+v vs %+v", once, twice)
	}
	if !reflect.DeepEqual(once, a) {
		t.Fatalf("first occurrences should be kept in order: %+v", once)
	}
}

func TestDedupeKeepsRowsDifferingInOneField(t *testing.T) {
	a := hostRecords("H1", "Windows 10", nil, "KB1")[0]
	b := a
	b.IPAddress = "10.0.0.2"
	if got := Dedupe([]patching.Record{a, b}); len(got) != 2 {
		t.Fatalf("rows differing in ip_address are not duplicates, got %d", len(got))
	}
}

func TestPartitionByOSAndInstalled(t *testing.T) {
	var records []patching.Record
	records = append(records, hostRecords("H1", "Windows 10", map[string]bool{"KB1": true}, "KB1", "KB2")...)
	records = append(records, hostRecords("H2", "Windows Server 2019", map[string]bool{"KB2": true}, "KB1", "KB2")...)
	records = append(records, hostRecords("H3", "Windows 10", nil, "KB1")...)

	parts := PartitionBy(records, ByOSAndInstalled)
	var names []string
	for _, p := range parts {
		names = append(names, fmt.Sprintf("%s=%d", p.Name, len(p.Records)))
	}
	want := []string{"Windows_10_Yes=1", "Windows_10_No=2", "Windows_Server_2019_No=1", "Windows_Server_2019_Yes=1"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("partitions %v, want %v", names, want)
	}
}

func TestWriteCombinedCSVPartitions(t *testing.T) {
	dir := t.TempDir()
	records := hostRecords("H1", "Windows 10", map[string]bool{"KB1": true}, "KB1", "KB2")
	path := filepath.Join(dir, "aggregated_updates.csv")

	written, err := WriteCombined(path, CSV, records, PartitionBy(records, ByOSAndInstalled))
	if err != nil {
		t.Fatalf("WriteCombined: %v", err)
	}
	want := []string{
		path,
		filepath.Join(dir, "aggregated_updates_Windows_10_Yes.csv"),
		filepath.Join(dir, "aggregated_updates_Windows_10_No.csv"),
	}
	if !reflect.DeepEqual(written, want) {
		t.Fatalf("written %v, want %v", written, want)
	}
	part, err := ReadFile(want[2])
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(part) != 1 || part[0].PatchID != "KB2" {
		t.Fatalf("unexpected partition contents %+v", part)
	}
}

func TestWriteCombinedXLSXSheets(t *testing.T) {
	dir := t.TempDir()
	records := hostRecords("H1", "Windows 10", map[string]bool{"KB1": true}, "KB1", "KB2")
	path := filepath.Join(dir, "aggregated_updates.xlsx")

	written, err := WriteCombined(path, XLSX, records, PartitionBy(records, ByOSAndInstalled))
	if err != nil {
		t.Fatalf("WriteCombined: %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("xlsx partitions belong in one workbook, got %v", written)
	}
	// The first sheet holds every record.
	back, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !reflect.DeepEqual(back, records) {
		t.Fatalf("All sheet = %+v, want %+v", back, records)
	}
}

func TestWriteCombinedXLSXKeepsInstalledSuffix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aggregated_updates.xlsx")
	records := hostRecords("H1", "Microsoft Windows 10 Pro 10.0.19045.3803 Build 19045.3803",
		map[string]bool{"KB1": true}, "KB1", "KB2")

	if _, err := WriteCombined(path, XLSX, records, PartitionBy(records, ByOSAndInstalled)); err != nil {
		t.Fatalf("WriteCombined: %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 3 || sheets[0] != AllSheet {
		t.Fatalf("sheets = %v, want All plus two partitions", sheets)
	}
	if !strings.HasSuffix(sheets[1], "_Yes") || !strings.HasSuffix(sheets[2], "_No") {
		t.Fatalf("partition sheets %v lost their installed suffix", sheets[1:])
	}
	for _, name := range sheets {
		if len([]rune(name)) > maxSheetName {
			t.Fatalf("sheet %q longer than %d", name, maxSheetName)
		}
	}
}

func TestWriteCombinedCSVCollidingPartitionNames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aggregated_updates.csv")
	records := append(hostRecords("H1", "Win/10", nil, "KB1"), hostRecords("H2", "Win_10", nil, "KB1")...)

	written, err := WriteCombined(path, CSV, records, PartitionBy(records, ByOSAndInstalled))
	if err != nil {
		t.Fatalf("WriteCombined: %v", err)
	}
	want := []string{
		path,
		filepath.Join(dir, "aggregated_updates_Win_10_No.csv"),
		filepath.Join(dir, "aggregated_updates_Win_10_2_No.csv"),
	}
	if !reflect.DeepEqual(written, want) {
		t.Fatalf("written %v, want %v", written, want)
	}
	for i, p := range want[1:] {
		part, err := ReadFile(p)
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", p, err)
		}
		if len(part) != 1 || part[0].Hostname != records[i].Hostname {
			t.Fatalf("%s holds %+v, want the row of %s", p, part, records[i].Hostname)
		}
	}
}

func TestSheetName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Windows_10_Yes", "Windows_10_Yes"},
		{"a/b\\c:d*e?f[g]", "a_b_c_d_e_f_g_"},
		{"'quoted'", "quoted"},
		{"", "Sheet"},
		{"Microsoft_Windows_Server_2022_Datacenter_No", "Microsoft_Windows_Server_202_No"},
		{"Microsoft_Windows_10_Pro_10.0.19045.3803_Build_19045.3803_Yes", "Microsoft_Windows_10_Pro_10_Yes"},
		{strings.Repeat("y", 40) + "_Installed", strings.Repeat("y", 31)},
	}
	for _, tt := range tests {
		if got := SheetName(tt.in); got != tt.want {
			t.Errorf("SheetName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUniqueSheetName(t *testing.T) {
	used := map[string]bool{}
	long := strings.Repeat("x", 31)
	got := []string{
		uniqueSheetName("All", used),
		uniqueSheetName("all", used),
		uniqueSheetName(long, used),
		uniqueSheetName(long, used),
		uniqueSheetName("Windows_10_Yes", used),
		uniqueSheetName("windows_10_yes", used),
	}
	want := []string{"All", "all_2", long, strings.Repeat("x", 29) + "_2", "Windows_10_Yes", "windows_10_2_yes"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"csv": CSV, ".XLSX": XLSX, " Csv ": CSV} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("json"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}
