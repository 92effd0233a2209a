package domain

// 图片 MIME 类型（封闭集合）。无法识别的 Content-Type 一律视为 jpeg。
const (
	ImageTypeJPEG = "image/jpeg"
	ImageTypePNG  = "image/png"
	ImageTypeGIF  = "image/gif"
	ImageTypeWebP = "image/webp"
)

// EncodedImage 是一张下载成功的图片（base64 内联）。
//
// 不变量：Data 非空 <=> 下载成功；失败的下载不会产生 EncodedImage。
type EncodedImage struct {
	Data string `json:"data"`
	Type string `json:"type"`
	URL  string `json:"url"`
}
