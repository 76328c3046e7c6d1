package receipt

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/0xV8/orderbuddy-main/internal/model"
)

type Align byte

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Line is one printed row. Text already fits the row width. A line with QR
// set prints a QR code carrying that payload instead of text.
type Line struct {
	Text   string
	Align  Align
	Bold   bool
	Double bool
	QR     string
}

// Document is the device-independent receipt. The ESC/POS encoder and the
// raster renderer both consume it.
type Document struct {
	Columns int
	Lines   []Line
}

const (
	DefaultColumns    = 48
	MinColumns        = 16
	MaxColumns        = 255
	DefaultTimeLayout = "02/01/2006 15:04"
)

type Options struct {
	Columns    int
	CodePage   string
	Currency   string
	Brand      string
	MenuURL    string
	TimeLayout string
	Location   *time.Location
}

func (o Options) withDefaults() Options {
	if o.Columns <= 0 {
		o.Columns = DefaultColumns
	}
	o.Columns = min(max(o.Columns, MinColumns), MaxColumns)
	if o.CodePage == "" {
		o.CodePage = DefaultCodePage
	}
	if o.TimeLayout == "" {
		o.TimeLayout = DefaultTimeLayout
	}
	return o
}

type builder struct {
	cols  int
	lines []Line
}

func (b *builder) width(double bool) int {
	if double {
		return b.cols / 2
	}
	return b.cols
}

func (b *builder) text(s string, align Align, bold, double bool) {
	for _, l := range wrap(s, b.width(double)) {
		b.lines = append(b.lines, Line{Text: l, Align: align, Bold: bold, Double: double})
	}
}

func (b *builder) multiline(s string, align Align) {
	for _, part := range strings.Split(s, "\n") {
		b.text(part, align, false, false)
	}
}

func (b *builder) pair(indent int, left, right string, bold bool) {
	for _, l := range columns(left, right, b.cols, indent) {
		b.lines = append(b.lines, Line{Text: l, Bold: bold})
	}
}

func (b *builder) indented(indent int, s string) {
	for _, l := range wrapIndent(s, b.cols, indent) {
		b.lines = append(b.lines, Line{Text: l})
	}
}

func (b *builder) separator() {
	b.lines = append(b.lines, Line{Text: strings.Repeat("-", b.cols)})
}

// Layout arranges an order into receipt lines. It is pure: identical inputs
// give identical documents.
func Layout(order *model.Order, restaurant *model.RestaurantInfo, opts Options) Document {
	opts = opts.withDefaults()
	if order == nil {
		order = &model.Order{}
	}
	if restaurant == nil {
		restaurant = &model.RestaurantInfo{}
	}
	b := &builder{cols: opts.Columns}

	// Header
	if title := restaurantTitle(restaurant); title != "" {
		b.text(title, AlignCenter, true, true)
	}
	if restaurant.Address != "" {
		b.multiline(restaurant.Address, AlignCenter)
	}
	if restaurant.Header != "" {
		b.multiline(restaurant.Header, AlignCenter)
	}
	b.separator()

	// Order
	ref := "#" + order.ShortCode()
	if order.Origin != nil && order.Origin.Name != "" {
		ref += " " + order.Origin.Name
	}
	b.text(ref, AlignLeft, true, true)
	if order.OrderCode != "" {
		b.pair(0, "Order", order.OrderCode, false)
	}
	if order.StartedAt != "" {
		b.pair(0, "Ordered", formatTime(order.StartedAt, opts), false)
	}
	if order.EndedAt != "" {
		b.pair(0, "Completed", formatTime(order.EndedAt, opts), false)
	}
	if c := order.Customer; c != nil {
		if c.Name != "" {
			b.text("Customer: "+c.Name, AlignLeft, false, false)
		}
		if c.Phone != "" {
			b.text("Phone: "+c.Phone, AlignLeft, false, false)
		}
	}
	b.separator()

	// Items
	var computed int64
	for _, item := range order.Items {
		computed += itemTotal(item)
		b.pair(0, item.Name, FormatCents(item.PriceCents), true)
		for _, v := range item.Variants {
			b.pair(2, "> "+v.Name, formatDelta(v.PriceCents), false)
		}
		for _, m := range item.Modifiers {
			b.indented(2, "- "+m.Name)
			for _, o := range m.Options {
				b.pair(4, o.Name, formatDelta(o.PriceCents), false)
			}
		}
		if strings.TrimSpace(item.Notes) != "" {
			b.indented(2, "Note: "+item.Notes)
		}
		b.separator()
	}

	// Totals
	if n := len(order.Items); n > 0 {
		b.text("Items: "+strconv.Itoa(n), AlignLeft, false, false)
	}
	total := computed
	if order.TotalPriceCents != 0 && order.TotalPriceCents != computed {
		b.pair(0, "Subtotal", FormatCents(computed), false)
		total = order.TotalPriceCents
	}
	b.pair(0, "TOTAL", opts.Currency+FormatCents(total), true)

	// Footer
	if restaurant.Footer != "" {
		b.lines = append(b.lines, Line{})
		b.multiline(restaurant.Footer, AlignCenter)
	}
	if link := menuLink(opts.MenuURL, restaurant); link != "" && len(link) <= maxQRData {
		b.lines = append(b.lines, Line{}, Line{QR: link, Align: AlignCenter})
	}
	if opts.Brand != "" {
		b.text(opts.Brand, AlignRight, true, false)
	}

	return Document{Columns: opts.Columns, Lines: b.lines}
}

func restaurantTitle(r *model.RestaurantInfo) string {
	name, loc := strings.TrimSpace(r.DisplayName()), strings.TrimSpace(r.LocationName)
	switch {
	case name != "" && loc != "":
		return name + " - " + loc
	case name != "":
		return name
	}
	return loc
}

func itemTotal(item model.Item) int64 {
	sum := item.PriceCents
	for _, v := range item.Variants {
		sum += v.PriceCents
	}
	for _, m := range item.Modifiers {
		for _, o := range m.Options {
			sum += o.PriceCents
		}
	}
	return sum
}

func formatTime(raw string, opts Options) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	if opts.Location != nil {
		t = t.In(opts.Location)
	}
	return t.Format(opts.TimeLayout)
}

// menuLink points customers at the location's online menu.
func menuLink(base string, r *model.RestaurantInfo) string {
	if base == "" || r.RestaurantID == "" || r.LocationID == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" +
		url.PathEscape(r.RestaurantID) + "/" +
		url.PathEscape(r.LocationName) + "/" +
		url.PathEscape(r.LocationID)
}
