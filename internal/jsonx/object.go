package jsonx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Field 是 JSON 对象中的一个键值对；Value 保留原始 JSON 文本，不做二次解释。
type Field struct {
	Key   string
	Value json.RawMessage
}

// Object 是保留键顺序的 JSON 对象。
//
// encoding/json 的 map 会按字典序重排键，文档回写时必须保持原有键顺序，
// 因此记录与 metatags 都以 Object 解码。
type Object []Field

// ErrNotObject 表示输入不是 JSON 对象（例如数组、字符串或数字）。
var ErrNotObject = errors.New("不是 JSON 对象")

func (o *Object) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if bytes.Equal(trimmed, []byte("null")) {
		*o = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return ErrNotObject
	}

	out := make(Object, 0, 8)
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := kt.(string)
		if !ok {
			return fmt.Errorf("对象键不是字符串：%v", kt)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("解析键 %q 失败：%w", key, err)
		}
		// 重复键：后者覆盖前者，但保留首次出现的位置。
		out.Set(key, raw)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = out
	return nil
}

func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		if len(bytes.TrimSpace(f.Value)) == 0 {
			buf.WriteString("null")
			continue
		}
		buf.Write(f.Value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get 返回 key 对应的原始值。
func (o Object) Get(key string) (json.RawMessage, bool) {
	for _, f := range o {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Set 写入 key：已存在则原位替换，否则追加到末尾。
func (o *Object) Set(key string, value json.RawMessage) {
	for i := range *o {
		if (*o)[i].Key == key {
			(*o)[i].Value = value
			return
		}
	}
	*o = append(*o, Field{Key: key, Value: value})
}

// Keys 按原始顺序返回所有键。
func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for _, f := range o {
		keys = append(keys, f.Key)
	}
	return keys
}

// Marshal 与 json.Marshal 相同，但不转义 <、>、&（输出保持可读，URL 原样写入）。
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
