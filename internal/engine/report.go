package engine

import (
	"github.com/google/uuid"

	"github.com/netly/wgtopo/internal/model"
)

// Report wraps a build Result with an identifier a caller can log,
// correlate across a diagnostics pipeline, or hand back to a user
// reporting a problem, without having to derive one from the Result's
// contents (which carries no natural identity of its own).
type Report struct {
	ID     string
	Result *Result
}

// BuildReport runs Build and wraps its Result in a Report carrying a
// freshly generated build ID.
func BuildReport(doc *model.Document, ks KeyStore, opts Options) (*Report, error) {
	result, err := Build(doc, ks, opts)
	if err != nil {
		return nil, err
	}
	return &Report{ID: uuid.NewString(), Result: result}, nil
}
