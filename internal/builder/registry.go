package builder

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// WidgetType tags a widget. The set is closed; see Registry.
type WidgetType string

const (
	TypeHeading     WidgetType = "heading"
	TypeText        WidgetType = "text"
	TypeImage       WidgetType = "image"
	TypeButton      WidgetType = "button"
	TypeVideo       WidgetType = "video"
	TypeIcon        WidgetType = "icon"
	TypeSection     WidgetType = "section"
	TypeColumn      WidgetType = "column"
	TypeDivider     WidgetType = "divider"
	TypeAccordion   WidgetType = "accordion"
	TypeForm        WidgetType = "form"
	TypeCTA         WidgetType = "cta"
	TypeSocial      WidgetType = "social"
	TypeCard        WidgetType = "card"
	TypeAlert       WidgetType = "alert"
	TypeNavbar      WidgetType = "navbar"
	TypeAnchor      WidgetType = "anchor"
	TypeFooter      WidgetType = "footer"
	TypeBreadcrumb  WidgetType = "breadcrumb"
	TypeTable       WidgetType = "table"
	TypeList        WidgetType = "list"
	TypeProgressBar WidgetType = "progressBar"
	TypeStats       WidgetType = "stats"
	TypeSearchBar   WidgetType = "searchBar"
	TypeNewsletter  WidgetType = "newsletter"
	TypeContactInfo WidgetType = "contactInfo"
	TypeGallery     WidgetType = "gallery"
	TypeCarousel    WidgetType = "carousel"
	TypeAudioPlayer WidgetType = "audioPlayer"
	TypeProductCard WidgetType = "productCard"
	TypePricing     WidgetType = "pricing"
	TypeTestimonial WidgetType = "testimonial"
	TypeCountdown   WidgetType = "countdown"
	TypeMap         WidgetType = "map"
	TypeWeather     WidgetType = "weather"
	TypeSocialShare WidgetType = "socialShare"
	TypeRating      WidgetType = "rating"
	TypeTimeline    WidgetType = "timeline"
)

// DefaultRenderHeight is the rendered height of a widget type with no entry
// of its own in the render height table.
const DefaultRenderHeight = 200

// Dimension is a length in pixels or a percentage of the parent
type Dimension struct {
	Value   float64
	Percent bool
}

// Px returns a pixel dimension
func Px(v float64) Dimension { return Dimension{Value: v} }

// Pct returns a percentage dimension
func Pct(v float64) Dimension { return Dimension{Value: v, Percent: true} }

func (d Dimension) String() string {
	if d.Percent {
		return strconv.FormatFloat(d.Value, 'f', -1, 64) + "%"
	}
	return strconv.FormatFloat(d.Value, 'f', -1, 64) + "px"
}

// propValue is the form a dimension takes inside a props bag
func (d Dimension) propValue() any {
	if d.Percent {
		return strconv.FormatFloat(d.Value, 'f', -1, 64) + "%"
	}
	return d.Value
}

// MarshalJSON encodes pixels as a number and percentages as "N%"
func (d Dimension) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.propValue())
}

// UnmarshalJSON accepts a number, "Npx" or "N%"
func (d *Dimension) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	dim, ok := parseDimension(raw)
	if !ok {
		return fmt.Errorf("invalid dimension %s", data)
	}
	*d = dim
	return nil
}

// Spec describes a widget type: palette metadata, drop defaults and capabilities.
type Spec struct {
	Type         WidgetType `json:"type"`
	Label        string     `json:"label"`
	Category     string     `json:"category"`
	Width        Dimension  `json:"width"`
	Height       Dimension  `json:"height"`
	RenderHeight float64    `json:"renderHeight"`
	Container    bool       `json:"container"`
	DefaultProps Props      `json:"defaultProps,omitempty"`
}

// renderHeights is the fallback vertical extent of widgets with no explicit height
var renderHeights = map[WidgetType]float64{
	TypeHeading: 120,
	TypeImage:   240,
	TypeSection: 520,
	TypeAnchor:  40,
}

func spec(t WidgetType, label, category string, w, h Dimension, props Props) Spec {
	rh, ok := renderHeights[t]
	if !ok {
		rh = DefaultRenderHeight
	}
	return Spec{
		Type:         t,
		Label:        label,
		Category:     category,
		Width:        w,
		Height:       h,
		RenderHeight: rh,
		Container:    t == TypeSection || t == TypeColumn,
		DefaultProps: props,
	}
}

// palette lists every widget type in palette order
var palette = []Spec{
	spec(TypeHeading, "Heading", "basic", Px(400), Px(60), Props{"text": "Heading", "level": 2}),
	spec(TypeText, "Text", "basic", Px(400), Px(100), Props{"text": "Write something here."}),
	spec(TypeButton, "Button", "basic", Px(150), Px(50), Props{"label": "Click me", "href": "#"}),
	spec(TypeIcon, "Icon", "basic", Px(48), Px(48), Props{"icon": "star"}),
	spec(TypeDivider, "Divider", "basic", Pct(100), Px(2), Props{"color": "#e5e7eb"}),

	spec(TypeSection, "Section", "layout", Px(800), Px(400), Props{"columns": 2, "background": "#ffffff"}),
	spec(TypeColumn, "Column", "layout", Px(400), Px(400), nil),
	spec(TypeAnchor, "Anchor", "layout", Pct(100), Px(0), Props{"name": "anchor"}),

	spec(TypeImage, "Image", "media", Px(300), Px(200), Props{"src": "", "alt": ""}),
	spec(TypeVideo, "Video", "media", Px(480), Px(270), Props{"src": ""}),
	spec(TypeGallery, "Gallery", "media", Px(600), Px(400), Props{"images": []any{}}),
	spec(TypeCarousel, "Carousel", "media", Px(800), Px(400), Props{"slides": []any{}, "autoplay": true}),
	spec(TypeAudioPlayer, "Audio Player", "media", Px(400), Px(80), Props{"src": ""}),
	spec(TypeMap, "Map", "media", Px(600), Px(360), Props{"address": ""}),

	spec(TypeAccordion, "Accordion", "content", Px(500), Px(200), Props{"items": []any{}}),
	spec(TypeCTA, "Call to Action", "content", Px(600), Px(200), Props{"title": "Book your visit", "buttonLabel": "Book now"}),
	spec(TypeCard, "Card", "content", Px(300), Px(360), Props{"title": "Card title"}),
	spec(TypeAlert, "Alert", "content", Px(500), Px(60), Props{"message": "Heads up!", "variant": "info"}),
	spec(TypeTable, "Table", "content", Px(600), Px(240), Props{"rows": []any{}}),
	spec(TypeList, "List", "content", Px(300), Px(160), Props{"items": []any{}, "ordered": false}),
	spec(TypeContactInfo, "Contact Info", "content", Px(300), Px(160), Props{"phone": "", "email": "", "address": ""}),
	spec(TypeTestimonial, "Testimonial", "content", Px(500), Px(220), Props{"quote": "", "author": ""}),
	spec(TypeTimeline, "Timeline", "content", Px(600), Px(400), Props{"events": []any{}}),

	spec(TypeNavbar, "Navbar", "navigation", Pct(100), Px(64), Props{"links": []any{}}),
	spec(TypeFooter, "Footer", "navigation", Pct(100), Px(160), Props{"text": ""}),
	spec(TypeBreadcrumb, "Breadcrumb", "navigation", Px(400), Px(32), Props{"items": []any{}}),
	spec(TypeSocial, "Social Links", "navigation", Px(200), Px(40), Props{"links": []any{}}),
	spec(TypeSocialShare, "Social Share", "navigation", Px(240), Px(40), Props{"networks": []any{"facebook", "x"}}),

	spec(TypeForm, "Form", "forms", Px(400), Px(320), Props{"fields": []any{}, "submitLabel": "Send"}),
	spec(TypeSearchBar, "Search Bar", "forms", Px(400), Px(48), Props{"placeholder": "Search..."}),
	spec(TypeNewsletter, "Newsletter", "forms", Px(500), Px(180), Props{"title": "Stay in touch"}),

	spec(TypeProductCard, "Product Card", "commerce", Px(280), Px(380), Props{"name": "", "price": 0}),
	spec(TypePricing, "Pricing", "commerce", Px(320), Px(420), Props{"plans": []any{}}),

	spec(TypeProgressBar, "Progress Bar", "widgets", Px(300), Px(24), Props{"value": 50}),
	spec(TypeStats, "Stats", "widgets", Px(600), Px(140), Props{"items": []any{}}),
	spec(TypeCountdown, "Countdown", "widgets", Px(400), Px(120), Props{"target": ""}),
	spec(TypeWeather, "Weather", "widgets", Px(260), Px(160), Props{"location": ""}),
	spec(TypeRating, "Rating", "widgets", Px(160), Px(32), Props{"value": 5, "max": 5}),
}

var registry = func() map[WidgetType]Spec {
	m := make(map[WidgetType]Spec, len(palette))
	for _, s := range palette {
		m[s.Type] = s
	}
	return m
}()

// Lookup returns the spec of a widget type
func Lookup(t WidgetType) (Spec, bool) {
	s, ok := registry[t]
	return s, ok
}

// Types returns every widget spec in palette order
func Types() []Spec {
	out := make([]Spec, len(palette))
	copy(out, palette)
	return out
}

// Valid reports whether t is a known widget type
func Valid(t WidgetType) bool {
	_, ok := registry[t]
	return ok
}

// IsContainer reports whether widgets of type t own children
func IsContainer(t WidgetType) bool {
	return registry[t].Container
}

// RenderHeight returns the fallback rendered height of type t
func RenderHeight(t WidgetType) float64 {
	if s, ok := registry[t]; ok {
		return s.RenderHeight
	}
	return DefaultRenderHeight
}

// ParseType validates a widget type name
func ParseType(name string) (WidgetType, error) {
	t := WidgetType(strings.TrimSpace(name))
	if !Valid(t) {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return t, nil
}
