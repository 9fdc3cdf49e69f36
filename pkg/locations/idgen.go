package locations

import (
	"strconv"

	"github.com/openagenda-tools/uniqloc/pkg/errors"
)

// IDGenerator produces canonical ids of the form {prefix}{n}.
type IDGenerator struct {
	prefix string
}

// NewIDGenerator creates a generator for prefix, which must not be empty.
func NewIDGenerator(prefix string) (*IDGenerator, error) {
	if prefix == "" {
		return nil, errors.NewValidationError("id_prefix", prefix, "cannot be empty")
	}
	return &IDGenerator{prefix: prefix}, nil
}

// Prefix returns the configured prefix.
func (g *IDGenerator) Prefix() string {
	return g.prefix
}

// Next returns the next unused id. Numbering starts at the count of assigned
// locations plus one and skips ids already present in the index. Callers must
// assign the result before asking for another id.
func (g *IDGenerator) Next(ix *Index) string {
	n := ix.CountAssigned() + 1
	for {
		id := g.prefix + strconv.Itoa(n)
		if _, taken := ix.FindByCanonicalID(id); !taken {
			return id
		}
		n++
	}
}
