package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Selection 描述从目录中挑选文档的规则。
type Selection struct {
	// Suffix 为文件名后缀（例如 "_en.json"）。
	Suffix string
	// Exclude 为需要排除的完整文件名。
	Exclude []string
	// Skip 为排序后跳过的前 N 个。
	Skip int
	// Take 为跳过后最多取的个数；0 表示不限。
	Take int
}

// ListDocuments 列出 dir 下（不递归）符合 sel 的文档，返回绝对路径。
//
// 规则：
// - 只看普通文件；同名目录/符号链接不算
// - 按文件名字典序排序后再应用 Skip/Take，保证不同文件系统下结果一致
func ListDocuments(dir string, sel Selection) ([]string, error) {
	abs, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]struct{}, len(sel.Exclude))
	for _, x := range sel.Exclude {
		if x = strings.TrimSpace(x); x != "" {
			excluded[x] = struct{}{}
		}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, sel.Suffix) {
			continue
		}
		if _, ok := excluded[name]; ok {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	skip := sel.Skip
	if skip < 0 {
		skip = 0
	}
	if skip >= len(names) {
		return []string{}, nil
	}
	names = names[skip:]
	if sel.Take > 0 && len(names) > sel.Take {
		names = names[:sel.Take]
	}

	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, filepath.Join(abs, n))
	}
	return out, nil
}
