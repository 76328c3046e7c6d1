package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/0xV8/orderbuddy-main/internal/model"
	"github.com/0xV8/orderbuddy-main/internal/receipt"
)

// ValidationError rejects a request before any guard or network work.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// Validate checks the preconditions every print request must meet.
func Validate(req *model.PrintRequest) error {
	if req == nil {
		return invalid("data", "print payload is null")
	}
	if req.PrinterInfo == nil {
		return invalid("printerInfo", "printer identifier payload is null")
	}
	if strings.TrimSpace(req.PrinterInfo.IP) == "" {
		return invalid("printerInfo.ip", "printer ip is required")
	}
	if p := req.PrinterInfo.Port; p < 0 || p > 65535 {
		return invalid("printerInfo.port", "printer port out of range")
	}
	// zero means the configured width
	if c := req.PrinterInfo.Columns; c != 0 && (c < receipt.MinColumns || c > receipt.MaxColumns) {
		return invalid("printerInfo.columns",
			fmt.Sprintf("printer columns must be between %d and %d", receipt.MinColumns, receipt.MaxColumns))
	}
	if req.Order == nil {
		return invalid("order", "order in payload is null")
	}
	if strings.TrimSpace(req.Order.ID) == "" {
		return invalid("order._id", "order id is required")
	}
	return nil
}

// DecodeRequest parses a print request strictly: unknown fields and
// trailing data are rejected.
func DecodeRequest(data string) (*model.PrintRequest, error) {
	if strings.TrimSpace(data) == "" {
		return nil, invalid("data", "Missing data")
	}
	dec := json.NewDecoder(strings.NewReader(data))
	dec.DisallowUnknownFields()

	var req *model.PrintRequest
	if err := dec.Decode(&req); err != nil {
		return nil, invalid("data", "invalid print payload: "+err.Error())
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, invalid("data", "invalid print payload: unexpected data after request")
	}
	if req == nil {
		return nil, invalid("data", "print payload is null")
	}
	return req, nil
}
