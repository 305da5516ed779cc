package service

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"step_tracker_backend/internal/config"
	"step_tracker_backend/internal/util"
)

// NormalizedImage 重新编码后的截图
type NormalizedImage struct {
	Data        []byte
	Extension   string
	ContentType string
	Width       int
	Height      int
}

// ImageService 上传截图的校验与重新编码
type ImageService struct {
	MaxBytes  int64
	MaxPixels int
	Quality   int
}

func NewImageService(c config.CampaignConfig) *ImageService {
	return &ImageService{
		MaxBytes:  c.MaxUploadBytes,
		MaxPixels: c.MaxPixels,
		Quality:   c.JPEGQuality,
	}
}

// Normalize 校验图片并铺到白色不透明画布上，输出 JPEG
// 完整重新编码会丢弃 EXIF 等元数据
func (s *ImageService) Normalize(data []byte) (*NormalizedImage, error) {
	if s.MaxBytes > 0 && int64(len(data)) > s.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", util.ErrTooLarge, len(data), s.MaxBytes)
	}

	if _, err := util.ValidateMimeType(data, util.AllowedImageTypes); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidImage, err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty dimensions", util.ErrInvalidImage)
	}
	if s.MaxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(s.MaxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", util.ErrInvalidImage, cfg.Width, cfg.Height, s.MaxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(canvas, canvas.Bounds(), img, bounds.Min, draw.Over)

	quality := s.Quality
	if quality <= 0 {
		quality = jpeg.DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return &NormalizedImage{
		Data:        buf.Bytes(),
		Extension:   ".jpg",
		ContentType: util.MimeJPEG,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}
