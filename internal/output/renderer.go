package output

import (
	"io"

	"github.com/brokerdb/sqlguard/internal/validator"
)

// Renderer renders the outcome of one sqlguard validate call to a terminal.
type Renderer interface {
	RenderAccepted(sql string, plan validator.Plan)
	RenderRejected(sql string, err *validator.Error)
}

// NewRenderer builds the Lip Gloss terminal renderer. sqlguard validate has
// one consumer — a human reading a terminal — so unlike the teacher's
// format-selectable renderer, there is only one implementation.
func NewRenderer(w io.Writer) Renderer {
	return &TextRenderer{w: w}
}
