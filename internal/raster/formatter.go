// Package raster prints receipts as bitmaps: the receipt layout is rendered
// to HTML, captured by a headless browser and sent as ESC/POS raster data.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"image/png"
	"time"

	"github.com/0xV8/orderbuddy-main/internal/model"
	"github.com/0xV8/orderbuddy-main/internal/receipt"
)

const DefaultRenderTimeout = 30 * time.Second

type Config struct {
	Width         int
	TemplatePath  string
	RenderTimeout time.Duration
}

// Formatter produces raster print jobs. It shares the text receipt's layout
// so both printer types print the same content.
type Formatter struct {
	text    *receipt.Formatter
	tmpl    *template.Template
	shot    Screenshotter
	width   int
	timeout time.Duration
}

func NewFormatter(text *receipt.Formatter, shot Screenshotter, cfg Config) (*Formatter, error) {
	tmpl, err := LoadTemplate(cfg.TemplatePath)
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = DefaultRenderTimeout
	}
	return &Formatter{text: text, tmpl: tmpl, shot: shot, width: cfg.Width, timeout: cfg.RenderTimeout}, nil
}

func (f *Formatter) Format(order *model.Order, restaurant *model.RestaurantInfo, printer *model.PrinterInfo) ([]byte, error) {
	doc := receipt.Layout(order, restaurant, f.text.OptionsFor(printer))

	var html bytes.Buffer
	if err := RenderHTML(&html, f.tmpl, doc, f.width); err != nil {
		return nil, &receipt.FormattingError{Err: err}
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	shot, err := f.shot.Screenshot(ctx, html.String(), f.width)
	if err != nil {
		return nil, &receipt.FormattingError{Err: err}
	}
	img, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		return nil, &receipt.FormattingError{Err: fmt.Errorf("failed to decode PNG: %w", err)}
	}
	return EncodeImage(img, f.width), nil
}
