package fsx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomic_ReplaceAndNoTempLeft(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a_en.json"), []byte("old"), 0o600); err != nil {
		t.Fatalf("写入旧文件失败：%v", err)
	}

	if err := WriteFileAtomic(dir, "a_en.json", []byte("[]"), 0o600); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "a_en.json"))
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	if string(b) != "[]" {
		t.Fatalf("内容不一致：%q", string(b))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}

func TestWriteFileAtomic_RenameFail_KeepsOldContent(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a_en.json"), []byte("old"), 0o644); err != nil {
		t.Fatalf("写入旧文件失败：%v", err)
	}

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return os.ErrPermission
	}
	defer func() { renameFunc = old }()

	if err := WriteFileAtomic(dir, "a_en.json", []byte("new"), 0o644); err == nil {
		t.Fatalf("期望失败，但得到 nil")
	}

	b, err := os.ReadFile(filepath.Join(dir, "a_en.json"))
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	if string(b) != "old" {
		t.Fatalf("rename 失败时不应改动原文件，实际=%q", string(b))
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}

func TestWriteFileAtomic_TargetConflictDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "a_en.json"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	err := WriteFileAtomic(dir, "a_en.json", []byte("[]"), 0o644)
	if !IsPathTypeConflict(err) {
		t.Fatalf("期望 PathTypeConflictError，实际：%T %v", err, err)
	}
}

func TestFileMode_FallbackWhenMissing(t *testing.T) {
	dir := t.TempDir()
	if got := FileMode(filepath.Join(dir, "nope.json"), 0o640); got != 0o640 {
		t.Fatalf("期望 fallback 0640，实际 %o", got)
	}
	p := filepath.Join(dir, "x.json")
	if err := os.WriteFile(p, []byte("[]"), 0o600); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if got := FileMode(p, 0o644); got != 0o600 {
		t.Fatalf("期望沿用 0600，实际 %o", got)
	}
}
