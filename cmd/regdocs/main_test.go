package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/dgallion1/regdocs/internal/pipeline"
)

func TestPageArgs(t *testing.T) {
	file, page, err := pageArgs([]string{"pedoman.pdf", "12"})
	if err != nil || file != "pedoman.pdf" || page != 12 {
		t.Errorf("unexpected %q %d %v", file, page, err)
	}
	for _, bad := range []string{"0", "-1", "dua"} {
		if _, _, err := pageArgs([]string{"a.pdf", bad}); err == nil {
			t.Errorf("expected error for page %q", bad)
		}
	}
}

func TestFilterFlags(t *testing.T) {
	var ff filterFlags
	cmd := &cobra.Command{Use: "x"}
	ff.bind(cmd)
	if err := cmd.ParseFlags([]string{"--file", "a.pdf", "--bookmark", "BAB II", "--chapter", "umum"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	f := ff.filter(cmd)
	if f.FileName != "a.pdf" || f.Bookmark != "BAB II" || f.ChapterTitleContains != "umum" {
		t.Errorf("unexpected filter %+v", f)
	}
	if f.HasTables != nil {
		t.Error("expected has-tables unset when the flag is absent")
	}

	if err := cmd.ParseFlags([]string{"--has-tables=false"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f := ff.filter(cmd); f.HasTables == nil || *f.HasTables {
		t.Errorf("expected has-tables=false filter, got %v", f.HasTables)
	}
}

func TestRunCommand_Offline(t *testing.T) {
	t.Setenv("REGDOCS_EMBED_PROVIDER", "hash")
	t.Setenv("REGDOCS_STORE_DRIVER", "memory")
	t.Setenv("REGDOCS_CHUNK_ENCODING", "words")

	src := filepath.Join(t.TempDir(), "pedoman.txt")
	doc := "BAB I PENDAHULUAN\nPedoman ini mengatur tata kelola.\fBAB II KETENTUAN UMUM\nPegawai wajib hadir."
	if err := os.WriteFile(src, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	dataDir := t.TempDir()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"run", "--data-dir", dataDir, "--log-level", "error", src})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("run: %v", err)
	}

	var reports []pipeline.Report
	if err := json.Unmarshal(out.Bytes(), &reports); err != nil {
		t.Fatalf("decode output %q: %v", out.String(), err)
	}
	if len(reports) != 1 || reports[0].Inserted != 2 || len(reports[0].Files) != 4 {
		t.Fatalf("unexpected reports %+v", reports)
	}
	if !strings.HasPrefix(reports[0].Files[0], filepath.Join(dataDir, "pedoman")) {
		t.Errorf("expected stage files under %s, got %s", dataDir, reports[0].Files[0])
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out.String(), "regdocs dev") {
		t.Errorf("unexpected output %q", out.String())
	}
}
