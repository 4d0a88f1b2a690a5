package protocol

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/cmd.schema.json
var cmdSchemaJSON string

var cmdSchema = jsonschema.MustCompileString("cmd.schema.json", cmdSchemaJSON)

// DecodeCmd validates raw against the CMD schema and decodes it. On a
// validation failure the returned message still carries ReqID when one could
// be read, so the caller can address its RESULT.
func DecodeCmd(raw []byte) (CmdMsg, error) {
	var cmd CmdMsg
	var doc any
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	if err := d.Decode(&doc); err != nil {
		return cmd, fmt.Errorf("decode cmd: %w", err)
	}
	if m, ok := doc.(map[string]any); ok {
		if id, ok := m["req_id"].(string); ok {
			cmd.ReqID = id
		}
	}
	if err := cmdSchema.Validate(doc); err != nil {
		return cmd, fmt.Errorf("invalid cmd: %w", err)
	}
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return cmd, fmt.Errorf("decode cmd: %w", err)
	}
	return cmd, nil
}
