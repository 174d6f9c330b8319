package network

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"
)

// Protocol groups every message body so a single schema documents the wire
// format. It is never sent.
type Protocol struct {
	Envelope   Envelope      `json:"envelope" jsonschema:"description=Frame body; payload holds one of the messages below"`
	Join       JoinMsg       `json:"join"`
	Welcome    WelcomeMsg    `json:"welcome"`
	Action     ActionMsg     `json:"action"`
	State      StateMsg      `json:"state"`
	Error      ErrorMsg      `json:"error"`
	PathQuery  PathQueryMsg  `json:"path_query"`
	PathResult PathResultMsg `json:"path_result"`
}

// Schema reflects the protocol into a JSON schema document.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(Protocol))
	schema.Title = "Gridchase Protocol"
	schema.Description = "Length-prefixed JSON envelopes exchanged between gridchase servers, clients and spectators"
	return schema
}

// WriteSchema writes the indented schema to outPath, replacing any existing
// file only once the new one is fully written.
func WriteSchema(outPath string) error {
	data, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}

	return nil
}
