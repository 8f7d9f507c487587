package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const lockedYAML = "service:\n  name: locked\n"

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "notifyd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLockDryRun(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, lockedYAML)

	report, err := Lock(path, true)
	if err != nil {
		t.Fatalf("Lock() failed: %v", err)
	}
	if report.Written {
		t.Fatal("report.Written = true, want false in dry-run")
	}
	if report.Hash == "" {
		t.Fatal("dry-run should still compute the hash")
	}
	if _, err := os.Stat(filepath.Join(dir, ChecksumFile)); !os.IsNotExist(err) {
		t.Fatal(".checksums should not be written in dry-run mode")
	}
}

func TestLockThenVerify(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, lockedYAML)

	if err := VerifyLock(path); err != nil {
		t.Fatalf("VerifyLock() without manifest should pass: %v", err)
	}

	report, err := Lock(path, false)
	if err != nil {
		t.Fatalf("Lock() failed: %v", err)
	}
	if !report.Written {
		t.Fatal("report.Written = false, want true")
	}

	manifest, err := LoadChecksums(dir)
	if err != nil {
		t.Fatalf("LoadChecksums() failed: %v", err)
	}
	if manifest.Hashes["notifyd.yaml"] != report.Hash {
		t.Fatalf("manifest hash = %q, want %q", manifest.Hashes["notifyd.yaml"], report.Hash)
	}
	if err := VerifyLock(path); err != nil {
		t.Fatalf("VerifyLock() after lock: %v", err)
	}

	writeConfig(t, dir, lockedYAML+"  log_level: debug\n")
	err = VerifyLock(path)
	if err == nil || !strings.Contains(err.Error(), "hash mismatch") {
		t.Fatalf("expected hash mismatch after edit, got %v", err)
	}
}

func TestLockKeepsOtherHashes(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, lockedYAML)
	other := filepath.Join(dir, "staging.yaml")
	if err := os.WriteFile(other, []byte("plugins_dir: ./p\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Lock(other, false); err != nil {
		t.Fatal(err)
	}
	if err := VerifyLock(path); err == nil || !strings.Contains(err.Error(), "no hash") {
		t.Fatalf("unlisted config should fail once a manifest exists, got %v", err)
	}
	if _, err := Lock(path, false); err != nil {
		t.Fatal(err)
	}

	manifest, err := LoadChecksums(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(manifest.Hashes) != 2 {
		t.Fatalf("len(manifest.Hashes) = %d, want 2", len(manifest.Hashes))
	}
}

func TestLoadChecksumsRejectsUnknownVersion(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ChecksumFile), []byte("version: 2\nhashes: {}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadChecksums(dir); err == nil {
		t.Fatal("expected error for version 2 manifest")
	}
}
