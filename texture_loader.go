package lightmapper

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"path"
	"strings"

	"github.com/gekko3d/lightmapper/ktx2"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

type TextureFormat uint32

const (
	TextureFormatUnknown TextureFormat = iota
	TextureFormatRGBA8Unorm
	// TextureFormatKtx2 keeps the container's Vulkan format in TextureAsset.VkFormat.
	TextureFormatKtx2
)

type TextureAsset struct {
	Width    uint32
	Height   uint32
	Format   TextureFormat
	VkFormat uint32
	// Levels[0] is the full-size image.
	Levels [][]byte
	Source string
}

// TextureDecoder turns file bytes into a texture.
type TextureDecoder func(data []byte) (*TextureAsset, error)

func defaultTextureDecoders() map[string]TextureDecoder {
	return map[string]TextureDecoder{
		".ktx2": decodeKtx2,
		".png":  imageDecoder(png.Decode),
		".bmp":  imageDecoder(bmp.Decode),
		".tif":  imageDecoder(tiff.Decode),
		".tiff": imageDecoder(tiff.Decode),
		".webp": imageDecoder(webp.Decode),
	}
}

func textureExt(p string) string {
	return strings.ToLower(path.Ext(p))
}

func decodeKtx2(data []byte) (*TextureAsset, error) {
	tex, err := ktx2.Parse(data)
	if err != nil {
		return nil, err
	}
	levels := make([][]byte, len(tex.Levels))
	for i, lvl := range tex.Levels {
		levels[i] = lvl.Data
	}
	return &TextureAsset{
		Width:    tex.PixelWidth,
		Height:   max(tex.PixelHeight, 1),
		Format:   TextureFormatKtx2,
		VkFormat: tex.VkFormat,
		Levels:   levels,
	}, nil
}

func imageDecoder(decode func(io.Reader) (image.Image, error)) TextureDecoder {
	return func(data []byte) (*TextureAsset, error) {
		img, err := decode(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "decode image")
		}

		bounds := img.Bounds()
		rgba, ok := img.(*image.RGBA)
		if !ok || rgba.Stride != 4*bounds.Dx() {
			rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
			draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
		}

		return &TextureAsset{
			Width:  uint32(bounds.Dx()),
			Height: uint32(bounds.Dy()),
			Format: TextureFormatRGBA8Unorm,
			Levels: [][]byte{rgba.Pix},
		}, nil
	}
}
