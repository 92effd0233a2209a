package cse

import (
	"encoding/json"
	"strings"

	"github.com/John-Robertt/imginject/internal/jsonx"
)

type pagemap struct {
	Metatags []json.RawMessage `json:"metatags"`
}

// ExtractImageURLs 从每个结果的 pagemap.metatags 中挑出图片 URL。
//
// 规则：
// - 按结果顺序遍历，每个结果最多取一个
// - metatags 按顺序检查，每个 mapping 内按键出现顺序检查
// - 键名包含 "image"（大小写不敏感）且值是以 http 开头的非空字符串时命中
// - 字段缺失或格式不对只会让该结果没有候选，不会报错
func ExtractImageURLs(resp *Response) []string {
	out := []string{}
	if resp == nil {
		return out
	}
	for _, it := range resp.Items {
		if u, ok := itemImage(it); ok {
			out = append(out, u)
		}
	}
	return out
}

func itemImage(it Item) (string, bool) {
	if len(it.Pagemap) == 0 {
		return "", false
	}
	var pm pagemap
	if err := json.Unmarshal(it.Pagemap, &pm); err != nil {
		return "", false
	}
	for _, raw := range pm.Metatags {
		var tags jsonx.Object
		if err := json.Unmarshal(raw, &tags); err != nil {
			continue
		}
		for _, f := range tags {
			if !strings.Contains(strings.ToLower(f.Key), "image") {
				continue
			}
			var v string
			if err := json.Unmarshal(f.Value, &v); err != nil {
				continue
			}
			if v != "" && strings.HasPrefix(v, "http") {
				return v, true
			}
		}
	}
	return "", false
}
