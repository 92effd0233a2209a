package domain

import (
	"encoding/json"
	"strings"

	"github.com/John-Robertt/imginject/internal/jsonx"
)

const (
	FieldTitle  = "title"
	FieldImages = "images"
)

// Record 是文档中的一个 JSON 对象。
//
// 约束：
// - 原有键（含未知字段）与键顺序必须原样回写
// - images 由处理流程整体覆盖，不与上一次运行的结果合并
type Record struct {
	fields jsonx.Object
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var o jsonx.Object
	if err := o.UnmarshalJSON(b); err != nil {
		return err
	}
	if o == nil {
		// 显式 null 不是对象；交给上层按“非对象记录”处理。
		return jsonx.ErrNotObject
	}
	r.fields = o
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	if r.fields == nil {
		return []byte("{}"), nil
	}
	return r.fields.MarshalJSON()
}

// Title 返回可用于检索的标题。
// title 缺失、不是字符串、或去空白后为空，都视为“无标题”。
func (r *Record) Title() (string, bool) {
	raw, ok := r.fields.Get(FieldTitle)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

// SetImages 覆盖 images 字段。nil 写成 []，保证处理后的记录总是带有 images。
func (r *Record) SetImages(images []EncodedImage) error {
	if images == nil {
		images = []EncodedImage{}
	}
	b, err := jsonx.Marshal(images)
	if err != nil {
		return err
	}
	r.fields.Set(FieldImages, b)
	return nil
}

// Images 解析当前 images 字段；字段缺失或格式不符时 ok=false。
func (r *Record) Images() ([]EncodedImage, bool) {
	raw, ok := r.fields.Get(FieldImages)
	if !ok {
		return nil, false
	}
	var out []EncodedImage
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return nil, false
	}
	return out, true
}

// Keys 按原始顺序返回记录的全部键。
func (r *Record) Keys() []string { return r.fields.Keys() }

// Document 是一个待增强的 JSON 文件：记录数组 + 来源路径。
// 整体读入内存、逐条原地修改，全部处理完才整体回写。
type Document struct {
	Path    string
	Records []*Record
}
