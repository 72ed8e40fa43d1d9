package ads

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
)

// Provider names the network that fills a placement.
type Provider string

const (
	ProviderManual  Provider = "manual"
	ProviderAdSense Provider = "adsense"
	ProviderGAM     Provider = "gam"
)

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderManual, ProviderAdSense, ProviderGAM:
		return true
	}
	return false
}

// defaultAdSenseFormat is applied when an AdSense placement names no format.
const defaultAdSenseFormat = "auto"

// Placement is a named slot on the site and the provider configuration used
// to fill it. Only the fields of the active provider are kept.
type Placement struct {
	ID       uuid.UUID `json:"id"`
	Key      string    `json:"key"`
	Name     string    `json:"name"`
	Provider Provider  `json:"provider"`
	Format   AdType    `json:"format"`
	Enabled  bool      `json:"enabled"`

	AdSenseClientID   *string `json:"adsenseClientId"`
	AdSenseSlotID     *string `json:"adsenseSlotId"`
	AdSenseFormat     *string `json:"adsenseFormat"`
	AdSenseResponsive bool    `json:"adsenseResponsive"`

	GAMNetworkCode *string  `json:"gamNetworkCode"`
	GAMAdUnitPath  *string  `json:"gamAdUnitPath"`
	GAMSizes       [][2]int `json:"gamSizes"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreatePlacementInput is the payload for creating a placement.
type CreatePlacementInput struct {
	Key      string   `json:"key" validate:"required,max=120"`
	Name     string   `json:"name" validate:"required,max=200"`
	Provider Provider `json:"provider" validate:"required,oneof=manual adsense gam"`
	Format   AdType   `json:"format" validate:"omitempty,oneof=banner sidebar popup inline"`
	Enabled  *bool    `json:"enabled"`

	AdSenseClientID   *string `json:"adsenseClientId" validate:"omitempty,max=64"`
	AdSenseSlotID     *string `json:"adsenseSlotId" validate:"omitempty,max=64"`
	AdSenseFormat     *string `json:"adsenseFormat" validate:"omitempty,max=40"`
	AdSenseResponsive *bool   `json:"adsenseResponsive"`

	GAMNetworkCode *string  `json:"gamNetworkCode" validate:"omitempty,max=32"`
	GAMAdUnitPath  *string  `json:"gamAdUnitPath" validate:"omitempty,max=200"`
	GAMSizes       [][2]int `json:"gamSizes" validate:"omitempty,max=20"`
}

// UpdatePlacementInput patches a placement. Provider fields left nil keep
// their stored value; switching provider clears the other provider's fields.
type UpdatePlacementInput struct {
	Key      *string   `json:"key" validate:"omitempty,min=1,max=120"`
	Name     *string   `json:"name" validate:"omitempty,min=1,max=200"`
	Provider *Provider `json:"provider" validate:"omitempty,oneof=manual adsense gam"`
	Format   *AdType   `json:"format" validate:"omitempty,oneof=banner sidebar popup inline"`
	Enabled  *bool     `json:"enabled"`

	AdSenseClientID   *string `json:"adsenseClientId" validate:"omitempty,max=64"`
	AdSenseSlotID     *string `json:"adsenseSlotId" validate:"omitempty,max=64"`
	AdSenseFormat     *string `json:"adsenseFormat" validate:"omitempty,max=40"`
	AdSenseResponsive *bool   `json:"adsenseResponsive"`

	GAMNetworkCode *string  `json:"gamNetworkCode" validate:"omitempty,max=32"`
	GAMAdUnitPath  *string  `json:"gamAdUnitPath" validate:"omitempty,max=200"`
	GAMSizes       [][2]int `json:"gamSizes" validate:"omitempty,max=20"`
}

// normalize trims identifiers, drops configuration that does not belong to
// the provider and checks the provider's required fields.
func (p *Placement) normalize() error {
	p.Key = strings.TrimSpace(p.Key)
	p.Name = strings.TrimSpace(p.Name)
	if p.Key == "" || p.Name == "" {
		return fmt.Errorf("%w: key and name required", httpx.ErrValidation)
	}
	if p.Format == "" {
		p.Format = AdTypeBanner
	}
	if !p.Format.Valid() {
		return fmt.Errorf("%w: unknown format %q", httpx.ErrValidation, p.Format)
	}
	p.AdSenseClientID = trimmed(p.AdSenseClientID)
	p.AdSenseSlotID = trimmed(p.AdSenseSlotID)
	p.AdSenseFormat = trimmed(p.AdSenseFormat)
	p.GAMNetworkCode = trimmed(p.GAMNetworkCode)
	p.GAMAdUnitPath = trimmed(p.GAMAdUnitPath)

	switch p.Provider {
	case ProviderAdSense:
		p.clearGAM()
		if p.AdSenseClientID == nil || p.AdSenseSlotID == nil {
			return fmt.Errorf("%w: adsense placements need adsenseClientId and adsenseSlotId", httpx.ErrValidation)
		}
		if p.AdSenseFormat == nil {
			format := defaultAdSenseFormat
			p.AdSenseFormat = &format
		}
	case ProviderGAM:
		p.clearAdSense()
		if p.GAMNetworkCode == nil || p.GAMAdUnitPath == nil || len(p.GAMSizes) == 0 {
			return fmt.Errorf("%w: gam placements need gamNetworkCode, gamAdUnitPath and gamSizes", httpx.ErrValidation)
		}
		for _, size := range p.GAMSizes {
			if size[0] <= 0 || size[1] <= 0 {
				return fmt.Errorf("%w: gam sizes must be positive", httpx.ErrValidation)
			}
		}
	case ProviderManual:
		p.clearAdSense()
		p.clearGAM()
	default:
		return fmt.Errorf("%w: unknown provider %q", httpx.ErrValidation, p.Provider)
	}
	return nil
}

func (p *Placement) clearAdSense() {
	p.AdSenseClientID = nil
	p.AdSenseSlotID = nil
	p.AdSenseFormat = nil
	p.AdSenseResponsive = true
}

func (p *Placement) clearGAM() {
	p.GAMNetworkCode = nil
	p.GAMAdUnitPath = nil
	p.GAMSizes = nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
