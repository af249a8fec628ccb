package security

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const envelopeSchemaURL = "https://offlinekit.local/schemas/cached-user.json"

// envelopeSchema describes a decrypted cached-user envelope. It is a shape
// check only; authenticity is covered by the AEAD tag.
const envelopeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["user", "profile", "security_logs", "last_sync"],
  "properties": {
    "user": {
      "type": "object",
      "required": ["id"],
      "properties": {"id": {"type": ["string", "number"]}}
    },
    "profile": {"type": "object"},
    "security_logs": {"type": "array"},
    "last_sync": {"type": "string", "format": "date-time"}
  }
}`

func compileEnvelopeSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(envelopeSchema))
	if err != nil {
		return nil, fmt.Errorf("parse envelope schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(envelopeSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add envelope schema: %w", err)
	}
	return c.Compile(envelopeSchemaURL)
}

// VerifyIntegrity checks that blob is a well-formed cached-user envelope.
func (s *Service) VerifyIntegrity(blob []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(blob))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIntegrityCheckFailure, err)
	}
	if err := s.schema.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrIntegrityCheckFailure, err)
	}
	return nil
}
