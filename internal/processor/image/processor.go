package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"github.com/not-nullexception/render-thumbnails/internal/db/models"
	"github.com/not-nullexception/render-thumbnails/internal/logger"
	"github.com/not-nullexception/render-thumbnails/internal/minio"
	"github.com/not-nullexception/render-thumbnails/internal/thumbs"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"  // BMP source support
	_ "golang.org/x/image/tiff" // TIFF source support
	_ "golang.org/x/image/webp" // WebP source support
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 80

// Params describes one render request.
type Params struct {
	Width  int
	Height int
	// MaxArea caps the source pixel count that is decoded. Zero disables the check.
	MaxArea int64
	// Force renders again even if the thumbnail is already stored.
	Force bool
}

// Output is the result of a transform that produced something. It is either
// a stored thumbnail or an error the caller should report.
type Output struct {
	Path   string
	Width  int
	Height int
	Cached bool

	errMsg string
}

// IsError reports whether the transform ended in an error state.
func (o *Output) IsError() bool {
	return o.errMsg != ""
}

// ErrorDetail is the human readable cause of an error output.
func (o *Output) ErrorDetail() string {
	return o.errMsg
}

// NewErrorOutput builds an output that reports detail as its error.
func NewErrorOutput(detail string) *Output {
	return &Output{errMsg: detail}
}

func errorOutput(format string, args ...any) *Output {
	return NewErrorOutput("Error creating thumbnail: " + fmt.Sprintf(format, args...))
}

// Processor renders thumbnails of originals kept in object storage.
type Processor struct {
	minioClient minio.Client
	logger      zerolog.Logger
	quality     int
}

// New returns a Processor writing JPEG thumbnails at the given quality.
func New(minioClient minio.Client, quality int) *Processor {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Processor{
		minioClient: minioClient,
		logger:      logger.GetLogger("image-processor"),
		quality:     quality,
	}
}

// mimeFormats maps the stored mime type of a bitmap to its decoder name.
var mimeFormats = map[string]string{
	"image/jpeg":     "jpeg",
	"image/pjpeg":    "jpeg",
	"image/png":      "png",
	"image/gif":      "gif",
	"image/webp":     "webp",
	"image/bmp":      "bmp",
	"image/x-bmp":    "bmp",
	"image/x-ms-bmp": "bmp",
	"image/tiff":     "tiff",
}

// outputFormats maps decoded source formats to the format thumbnails are
// written in.
var outputFormats = map[string]string{
	"jpeg": "jpeg",
	"png":  "png",
	"gif":  "gif",
	"webp": "png",
	"bmp":  "png",
	"tiff": "png",
}

var encodeFormats = map[string]imaging.Format{
	"jpeg": imaging.JPEG,
	"png":  imaging.PNG,
	"gif":  imaging.GIF,
}

var contentTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
}

// sourceFormat returns the decoder name for the record's mime type. An empty
// name with ok set means the record does not say and the header decides.
func sourceFormat(file *models.File) (string, bool) {
	if file.MediaType != "" && file.MediaType != models.MediaTypeBitmap {
		return "", false
	}
	mime := file.MIME()
	if mime == "" {
		return "", true
	}
	format, ok := mimeFormats[mime]
	return format, ok
}

// TransformNow renders file within the requested box and stores the result.
// A non-nil error means nothing was produced at all. Problems with the source
// image itself come back as an Output with IsError set.
//
// Dimensions and mime type come from the file record when it has them, so a
// stored thumbnail is found without downloading the original.
func (p *Processor) TransformNow(ctx context.Context, file *models.File, params Params) (*Output, error) {
	if params.Width <= 0 || params.Height <= 0 {
		return errorOutput("invalid size %dx%d", params.Width, params.Height), nil
	}

	format, ok := sourceFormat(file)
	if !ok {
		return errorOutput("unsupported media type %s (%s)", file.MIME(), file.MediaType), nil
	}

	var (
		imgData []byte
		err     error
	)
	width, height, area := file.Width, file.Height, file.Area()
	if format == "" || area == 0 {
		// The record is incomplete, read the header instead
		imgData, err = p.fetchSource(ctx, file.Name)
		if err != nil {
			return nil, err
		}
		cfg, headerFormat, err := image.DecodeConfig(bytes.NewReader(imgData))
		if err != nil {
			return errorOutput("unable to read image header: %v", err), nil
		}
		format, width, height = headerFormat, cfg.Width, cfg.Height
		area = int64(width) * int64(height)
	}

	if params.MaxArea > 0 && area > params.MaxArea {
		return errorOutput("Image exceeds maximum area of %d pixels", params.MaxArea), nil
	}

	outFormat, ok := outputFormats[format]
	if !ok {
		return errorOutput("unsupported image format: %s", format), nil
	}
	var outExt string
	if outFormat != format {
		outExt = outFormat
	}

	newWidth, newHeight := fitWithin(width, height, params.Width, params.Height)
	thumbKey := thumbs.ThumbKey(file.Name, newWidth, outExt)

	p.logger.Debug().
		Str("name", file.Name).
		Str("format", format).
		Str("media_type", file.MediaType).
		Int64("original_size", file.Size).
		Int("original_width", width).
		Int("original_height", height).
		Int("new_width", newWidth).
		Int("new_height", newHeight).
		Msg("Image details")

	var checkedKey string
	if imgData == nil {
		if out, err := p.storedThumbnail(ctx, thumbKey, newWidth, newHeight, params); out != nil || err != nil {
			return out, err
		}
		checkedKey = thumbKey
		imgData, err = p.fetchSource(ctx, file.Name)
		if err != nil {
			return nil, err
		}
	}

	// Decode the image, applying any EXIF orientation
	img, err := imaging.Decode(bytes.NewReader(imgData), imaging.AutoOrientation(true))
	if err != nil {
		return errorOutput("unable to decode image: %v", err), nil
	}

	// The oriented bounds decide the final size
	bounds := img.Bounds()
	newWidth, newHeight = fitWithin(bounds.Dx(), bounds.Dy(), params.Width, params.Height)
	thumbKey = thumbs.ThumbKey(file.Name, newWidth, outExt)
	if thumbKey != checkedKey {
		if out, err := p.storedThumbnail(ctx, thumbKey, newWidth, newHeight, params); out != nil || err != nil {
			return out, err
		}
	}

	// Resize the image if needed
	resizedImg := img
	if newWidth != bounds.Dx() || newHeight != bounds.Dy() {
		resizedImg = imaging.Resize(img, newWidth, newHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	err = imaging.Encode(&buf, resizedImg, encodeFormats[outFormat],
		imaging.JPEGQuality(p.quality),
		imaging.PNGCompressionLevel(png.BestCompression),
	)
	if err != nil {
		return nil, fmt.Errorf("error encoding thumbnail: %w", err)
	}

	err = p.minioClient.PutObject(ctx, bytes.NewReader(buf.Bytes()), int64(buf.Len()), thumbKey, contentTypes[outFormat])
	if err != nil {
		return nil, fmt.Errorf("error uploading thumbnail %s: %w", thumbKey, err)
	}

	p.logger.Info().
		Str("name", file.Name).
		Str("object", thumbKey).
		Int("original_size", len(imgData)).
		Int("thumb_size", buf.Len()).
		Msg("Thumbnail rendered and uploaded")

	return &Output{Path: thumbKey, Width: newWidth, Height: newHeight}, nil
}

// storedThumbnail returns a cached output when thumbKey already exists and
// params does not force a new render. Both results are nil otherwise.
func (p *Processor) storedThumbnail(ctx context.Context, thumbKey string, width, height int, params Params) (*Output, error) {
	if params.Force {
		return nil, nil
	}
	exists, err := p.minioClient.ObjectExists(ctx, thumbKey)
	if err != nil {
		return nil, fmt.Errorf("error checking thumbnail %s: %w", thumbKey, err)
	}
	if !exists {
		return nil, nil
	}
	p.logger.Debug().Str("object", thumbKey).Msg("Thumbnail already stored")
	return &Output{Path: thumbKey, Width: width, Height: height, Cached: true}, nil
}

func (p *Processor) fetchSource(ctx context.Context, name string) ([]byte, error) {
	srcKey := thumbs.SourceKey(name)
	reader, err := p.minioClient.GetObject(ctx, srcKey)
	if err != nil {
		return nil, fmt.Errorf("error getting source %s: %w", srcKey, err)
	}
	defer reader.Close()

	// Read the entire image into memory
	imgData, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("error reading source %s: %w", srcKey, err)
	}
	return imgData, nil
}

// fitWithin scales width x height down to fit the box, keeping the aspect
// ratio. Images already inside the box keep their size.
func fitWithin(width, height, maxWidth, maxHeight int) (int, int) {
	if width <= 0 || height <= 0 {
		return width, height
	}
	widthFactor := float64(maxWidth) / float64(width)
	heightFactor := float64(maxHeight) / float64(height)
	scaleFactor := math.Min(widthFactor, heightFactor)
	if scaleFactor >= 1.0 {
		return width, height
	}

	newWidth := int(math.Round(float64(width) * scaleFactor))
	newHeight := int(math.Round(float64(height) * scaleFactor))
	return max(newWidth, 1), max(newHeight, 1)
}
