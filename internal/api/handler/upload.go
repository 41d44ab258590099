package handler

import (
	"fmt"
	"io"
	"mime/multipart"

	"intake-forms/backend/internal/dto"
)

// readUpload 读取 multipart 文件内容；limit > 0 时超过上限返回错误
func readUpload(fh *multipart.FileHeader, limit int64) (dto.UploadedFile, error) {
	if limit > 0 && fh.Size > limit {
		return dto.UploadedFile{}, fmt.Errorf("文件 %s 超过 %d 字节", fh.Filename, limit)
	}
	f, err := fh.Open()
	if err != nil {
		return dto.UploadedFile{}, err
	}
	defer f.Close()

	r := io.Reader(f)
	if limit > 0 {
		r = io.LimitReader(f, limit+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return dto.UploadedFile{}, err
	}
	if limit > 0 && int64(len(content)) > limit {
		return dto.UploadedFile{}, fmt.Errorf("文件 %s 超过 %d 字节", fh.Filename, limit)
	}
	return dto.UploadedFile{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}
