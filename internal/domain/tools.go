package domain

import "encoding/json"

// UnmarshalJSON accepts tool declarations in either of the two shapes client
// CLIs send: the nested {"type":"function","function":{...}} form and the
// flat {"name":...,"input_schema":...} form. Both normalize to the flat
// declaration the wire layer consumes.
func (t *ToolDeclaration) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type     string `json:"type"`
		Function *struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Parameters  any    `json:"parameters"`
		} `json:"function"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Parameters  any    `json:"parameters"`
		InputSchema any    `json:"input_schema"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	if probe.Function != nil {
		t.Name = probe.Function.Name
		t.Description = probe.Function.Description
		t.ParameterSchema = probe.Function.Parameters
		return nil
	}

	t.Name = probe.Name
	t.Description = probe.Description
	t.ParameterSchema = probe.Parameters
	if t.ParameterSchema == nil {
		t.ParameterSchema = probe.InputSchema
	}
	return nil
}
