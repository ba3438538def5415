package columnar

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/cespare/xxhash/v2"
)

// SchemaKey derives the schema partition key for a schema. Structurally equal
// schemas always produce the same key.
func SchemaKey(schema *arrow.Schema) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(schema.Fingerprint()))
}
