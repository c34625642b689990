package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/manifest-network/benchie/internal/models"
	"github.com/manifest-network/benchie/internal/output"
)

// OutputHandler writes results as JSON lines.
type OutputHandler struct {
	enc *json.Encoder
}

// NewOutputHandler returns a handler writing to w, or to os.Stdout if w is nil.
func NewOutputHandler(w io.Writer) *OutputHandler {
	if w == nil {
		w = os.Stdout
	}
	return &OutputHandler{enc: json.NewEncoder(w)}
}

func (h *OutputHandler) WriteResult(_ context.Context, result *models.Result) error {
	if err := h.enc.Encode(output.NewRecord(result)); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

func (h *OutputHandler) Close() error {
	return nil
}
