// Package photo 校验并规范化学生上传的照片
package photo

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// ErrUnsupportedImage 文件无法解码为受支持的图片
var ErrUnsupportedImage = errors.New("不支持的图片格式")

// Options 照片处理参数
type Options struct {
	MaxEdge     int // 长边上限（像素），0 表示不缩放
	JPEGQuality int
}

// Result 处理结果
type Result struct {
	Data      []byte
	Extension string // 带点的小写扩展名，如 ".jpg"
	Width     int
	Height    int
	Resized   bool
}

// Normalize 解码照片（按 EXIF 自动旋转），超过长边上限时等比缩小并按原格式重新编码。
// 未缩放时原样返回输入字节，避免无谓的有损重编码。
func Normalize(data []byte, filename string, opts Options) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, ext)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	b := img.Bounds()
	res := &Result{Data: data, Extension: ext, Width: b.Dx(), Height: b.Dy()}
	if opts.MaxEdge <= 0 || (b.Dx() <= opts.MaxEdge && b.Dy() <= opts.MaxEdge) {
		return res, nil
	}

	resized := imaging.Fit(img, opts.MaxEdge, opts.MaxEdge, imaging.Lanczos)
	encoded, err := encode(resized, format, opts.JPEGQuality)
	if err != nil {
		return nil, err
	}

	rb := resized.Bounds()
	res.Data = encoded
	res.Width = rb.Dx()
	res.Height = rb.Dy()
	res.Resized = true
	return res, nil
}

// ContentType 根据扩展名返回 MIME 类型
func ContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

func encode(img image.Image, format imaging.Format, quality int) ([]byte, error) {
	if quality <= 0 {
		quality = 90
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("重新编码图片失败: %w", err)
	}
	return buf.Bytes(), nil
}
