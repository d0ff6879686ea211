package design

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Type identifies one entry of the fixed design catalog.
type Type string

const (
	TypeBanner           Type = "banner"
	TypePoster           Type = "poster"
	TypeMagazineCover    Type = "magazineCover"
	TypeFlyer            Type = "flyer"
	TypeYoutubeThumbnail Type = "youtubeThumbnail"
	TypeLogo             Type = "logo"
)

// Valid reports whether the type belongs to the catalog.
func (t Type) Valid() bool {
	switch t {
	case TypeBanner, TypePoster, TypeMagazineCover, TypeFlyer, TypeYoutubeThumbnail, TypeLogo:
		return true
	}
	return false
}

// sizeCatalog maps aspect-ratio tokens to the pixel dimensions sent to the
// raster model.
var sizeCatalog = map[string]string{
	"1:1":  "1024x1024",
	"4:3":  "1024x768",
	"16:9": "1024x576",
	"9:16": "576x1024",
}

var customSizePattern = regexp.MustCompile(`^(\d{1,5})x(\d{1,5})$`)

// resolveSize turns a size token into pixel dimensions. Known ratio tokens
// come from the catalog; anything else must be an explicit WxH pair with
// positive dimensions.
func resolveSize(size string) (string, error) {
	if px, ok := sizeCatalog[size]; ok {
		return px, nil
	}
	m := customSizePattern.FindStringSubmatch(size)
	if m == nil {
		return "", fmt.Errorf("unknown size %q", size)
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	if w <= 0 || h <= 0 {
		return "", fmt.Errorf("size dimensions must be positive")
	}
	return size, nil
}

// Design is the persisted artifact of one successful generation.
type Design struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID uuid.UUID      `gorm:"type:uuid;index;not null" json:"account_id"`
	Prompt    string         `gorm:"type:text;not null" json:"prompt"`
	Type      Type           `gorm:"size:32;not null" json:"type"`
	Size      string         `gorm:"size:32;not null" json:"size"`
	Images    pq.StringArray `gorm:"type:text[]" json:"images"`
	SVG       string         `gorm:"column:svg;type:text" json:"svg,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName returns the table name.
func (Design) TableName() string {
	return "designs"
}

// Format identifies a download output format.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// ParseFormat maps a query token to a download format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "svg", "vector", "":
		return FormatSVG, nil
	case "png", "raster":
		return FormatPNG, nil
	}
	return "", ErrUnsupportedFormat
}
