package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/cyberpolicy/cracklab/internal/decrypt"
	"github.com/cyberpolicy/cracklab/pkg/client"
)

func sampleReports() []client.DecryptReport {
	at := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	return []client.DecryptReport{
		{GUID: "g-bob", ReceivedAt: at, SourceIP: "10.0.0.2"},
		{GUID: "g-alice", ReceivedAt: at.Add(time.Minute)},
		{GUID: "g-bob", ReceivedAt: at.Add(2 * time.Minute)},
		{GUID: "stray", ReceivedAt: at.Add(3 * time.Minute)},
	}
}

func sampleRoster(t *testing.T) decrypt.Roster {
	t.Helper()
	r, err := decrypt.ParseRoster(strings.NewReader("alice@x.edu,g-alice,8,26\nbob@x.edu,g-bob,8,26\n"))
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestPrintReport_text(t *testing.T) {
	var buf bytes.Buffer
	if err := printReport(&buf, "text", false, sampleReports(), sampleRoster(t)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"EMAIL", "?", "alice@x.edu", "bob@x.edu"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "GUID") {
		t.Error("raw reports printed without --scan")
	}
	if strings.Index(out, "alice@x.edu") > strings.Index(out, "bob@x.edu") {
		t.Error("tally must be sorted by email")
	}
}

func TestPrintReport_scan(t *testing.T) {
	var buf bytes.Buffer
	if err := printReport(&buf, "text", true, sampleReports(), nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "10.0.0.2") {
		t.Errorf("scan output missing raw report:\n%s", buf.String())
	}
}

func TestPrintReport_json(t *testing.T) {
	var buf bytes.Buffer
	if err := printReport(&buf, "json", false, sampleReports(), sampleRoster(t)); err != nil {
		t.Fatal(err)
	}
	var out struct {
		Counts []decrypt.Count `json:"counts"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Counts) != 3 || out.Counts[2].Email != "bob@x.edu" || out.Counts[2].Reports != 2 {
		t.Errorf("unexpected counts: %+v", out.Counts)
	}
}

func TestPrintReport_badFormat(t *testing.T) {
	if err := printReport(&bytes.Buffer{}, "yaml", false, nil, nil); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestPrintSubmitResult(t *testing.T) {
	var buf bytes.Buffer
	printSubmitResult(&buf, &client.SubmitResult{Correct: false, Message: "Not correct"})
	if !strings.Contains(buf.String(), "Not correct") {
		t.Errorf("unexpected output %q", buf.String())
	}

	buf.Reset()
	printSubmitResult(&buf, &client.SubmitResult{Correct: true, FirstSuccess: true, ReceiptID: "lab1:s1:x:y"})
	if !strings.Contains(buf.String(), "lab1:s1:x:y") || !strings.Contains(buf.String(), "First success: true") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestNewClient_adminRequiresSecret(t *testing.T) {
	apiURL, adminSecret = "http://localhost:1", ""
	if _, err := newClient(true); err == nil {
		t.Error("expected an error without admin secret")
	}
	adminSecret = "s"
	if _, err := newClient(true); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
