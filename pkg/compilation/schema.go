package compilation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// manifestSchema describes the shape a Manifest must have to be trusted
// once read back from the L3 tier. It exists to catch truncation or a
// format drift between binary versions rather than to police callers.
const manifestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["key", "last_write_time", "assembly_name", "language", "source_files"],
  "properties": {
    "key": {"type": "string", "minLength": 1},
    "last_write_time": {"type": "string"},
    "assembly_name": {"type": "string"},
    "language": {"type": "string"},
    "source_files": {"type": "array", "items": {"type": "string"}},
    "source_file_times": {"type": "object"},
    "reference_paths": {"type": "array", "items": {"type": "string"}}
  }
}`

var manifestSchemaLoader = gojsonschema.NewStringLoader(manifestSchema)

// validateManifest checks m against manifestSchema, treating any schema
// violation as equivalent to a cache miss rather than a hard error.
func validateManifest(m Manifest) error {
	inputLoader := gojsonschema.NewGoLoader(m)

	result, err := gojsonschema.Validate(manifestSchemaLoader, inputLoader)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrManifestInvalid, err)
	}

	if !result.Valid() {
		return fmt.Errorf("%w: %s", ErrManifestInvalid, result.Errors()[0].String())
	}

	return nil
}
