package qrcode

import (
	"bytes"
	"image"
	"image/png"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/makiuchi-d/gozxing/qrcode/decoder"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/mx-space/folio/internal/pkg/response"
	"go.uber.org/zap"
)

const (
	Size         = 1024
	Margin       = 2
	maxTextRunes = 1000
)

// Encode renders text as a Size x Size PNG with error correction level H.
func Encode(text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation("text is required")
	}
	if utf8.RuneCountInString(text) > maxTextRunes {
		return nil, apperr.Validation("text must be at most %d characters", maxTextRunes)
	}
	hints := map[gozxing.EncodeHintType]interface{}{
		gozxing.EncodeHintType_ERROR_CORRECTION: decoder.ErrorCorrectionLevel_H,
		gozxing.EncodeHintType_MARGIN:           Margin,
		gozxing.EncodeHintType_CHARACTER_SET:    "UTF-8",
	}
	matrix, err := zxqr.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, Size, Size, hints)
	if err != nil {
		return nil, apperr.Validation("text cannot be encoded as a QR code")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, matrix); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads the text back out of a QR code image rendered by Encode:
// an unrotated code on a plain quiet zone.
func Decode(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", err
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_CHARACTER_SET: "UTF-8",
		gozxing.DecodeHintType_PURE_BARCODE:  true,
	}
	result, err := zxqr.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", err
	}
	return result.GetText(), nil
}

type Handler struct {
	logger *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logger: logger.Named("QRCodeHandler")}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/qrcode", h.generate)
}

func (h *Handler) generate(c *gin.Context) {
	text := c.Query("text")
	if text == "" {
		response.BadRequest(c, "text is required")
		return
	}
	img, err := Encode(text)
	if err != nil {
		if apperr.Status(err) >= 500 {
			h.logger.Error("encode qr code", zap.Int("length", len(text)), zap.Error(err))
		}
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", img)
}
