package imgx

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/John-Robertt/imginject/internal/domain"
	"github.com/John-Robertt/imginject/internal/infra/httpx"
)

// Fetch 下载单张图片并编码为 base64。
//
// 约束：
// - 非 2xx 视为失败，不读取 body
// - 空 body 视为失败
// - 类型只看 Content-Type，不校验图片内容
func Fetch(ctx context.Context, c *http.Client, url string) (domain.EncodedImage, error) {
	if c == nil {
		return domain.EncodedImage{}, errors.New("nil http client")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.EncodedImage{}, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return domain.EncodedImage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.EncodedImage{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	r, err := httpx.DecodeBody(resp)
	if err != nil {
		return domain.EncodedImage{}, err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return domain.EncodedImage{}, err
	}
	if len(b) == 0 {
		return domain.EncodedImage{}, errors.New("图片内容为空")
	}

	return domain.EncodedImage{
		Data: base64.StdEncoding.EncodeToString(b),
		Type: ClassifyType(resp.Header.Get("Content-Type")),
		URL:  url,
	}, nil
}

// ClassifyType 把 Content-Type 归一为 image/jpeg|png|gif|webp 之一。
//
// 按子串匹配（大小写不敏感），不认识的一律归为 image/jpeg。
func ClassifyType(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "png"):
		return domain.ImageTypePNG
	case strings.Contains(ct, "gif"):
		return domain.ImageTypeGIF
	case strings.Contains(ct, "webp"):
		return domain.ImageTypeWebP
	default:
		return domain.ImageTypeJPEG
	}
}
