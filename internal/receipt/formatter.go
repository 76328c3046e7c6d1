package receipt

import (
	"github.com/0xV8/orderbuddy-main/internal/model"
)

// Formatter turns orders into ESC/POS text receipts.
type Formatter struct {
	opts Options
}

func NewFormatter(opts Options) (*Formatter, error) {
	opts = opts.withDefaults()
	if _, err := lookupCodePage(opts.CodePage); err != nil {
		return nil, err
	}
	return &Formatter{opts: opts}, nil
}

// OptionsFor applies the per-printer column override, clamped to
// [MinColumns, MaxColumns].
func (f *Formatter) OptionsFor(printer *model.PrinterInfo) Options {
	opts := f.opts
	if printer != nil && printer.Columns > 0 {
		opts.Columns = min(max(printer.Columns, MinColumns), MaxColumns)
	}
	return opts
}

// Format is deterministic for identical inputs and performs no I/O.
func (f *Formatter) Format(order *model.Order, restaurant *model.RestaurantInfo, printer *model.PrinterInfo) ([]byte, error) {
	opts := f.OptionsFor(printer)
	return Encode(Layout(order, restaurant, opts), opts.CodePage)
}
