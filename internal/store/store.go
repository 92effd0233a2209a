package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/John-Robertt/imginject/internal/domain"
	"github.com/John-Robertt/imginject/internal/infra/fsx"
)

// 错误类别。
const (
	KindLoad  = "load"
	KindParse = "parse"
	KindWrite = "write"
)

// Error 是文档读写阶段的可追溯错误。
// 上层据此把失败归类为 load_failed / parse_failed / write_failed 并写入 report。
type Error struct {
	Kind string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Load 读取并解析一个文档。
//
// 顶层必须是数组；每个元素必须是对象（null/数字/字符串都视为解析失败）。
func Load(path string) (*domain.Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Kind: KindLoad, Path: path, Err: err}
	}

	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &Error{Kind: KindParse, Path: path, Err: errors.New("顶层不是 JSON 数组")}
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, &Error{Kind: KindParse, Path: path, Err: err}
	}

	doc := &domain.Document{Path: path, Records: make([]*domain.Record, 0, len(raws))}
	for i, raw := range raws {
		rec := &domain.Record{}
		if err := rec.UnmarshalJSON(raw); err != nil {
			return nil, &Error{Kind: KindParse, Path: path, Err: fmt.Errorf("第 %d 条记录：%w", i, err)}
		}
		doc.Records = append(doc.Records, rec)
	}
	return doc, nil
}

// Encode 把记录序列化为带 2 空格缩进的 JSON 数组（不转义 <>&，保留非 ASCII 字符）。
func Encode(records []*domain.Record) ([]byte, error) {
	if records == nil {
		records = []*domain.Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Save 原子回写文档到 doc.Path（沿用原文件权限）。
func Save(doc *domain.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	b, err := Encode(doc.Records)
	if err != nil {
		return &Error{Kind: KindWrite, Path: doc.Path, Err: err}
	}
	dir, name := filepath.Split(doc.Path)
	if dir == "" {
		dir = "."
	}
	if err := fsx.WriteFileAtomic(dir, name, b, fsx.FileMode(doc.Path, 0o644)); err != nil {
		return &Error{Kind: KindWrite, Path: doc.Path, Err: err}
	}
	return nil
}
