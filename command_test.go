package mcp_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcp "github.com/agentsmithers/go-mcp-bridge"
)

func nopHandler(context.Context, mcp.Args) (any, error) { return nil, nil }

type staticSource []mcp.Command

func (s staticSource) Commands() []mcp.Command { return s }

func TestRegistryRegister(t *testing.T) {
	tests := []struct {
		name    string
		cmd     mcp.Command
		wantErr string
	}{
		{
			name: "valid",
			cmd:  mcp.Command{Name: "Echo", Handler: nopHandler},
		},
		{
			name:    "empty name",
			cmd:     mcp.Command{Name: " ", Handler: nopHandler},
			wantErr: "empty command name",
		},
		{
			name:    "nil handler",
			cmd:     mcp.Command{Name: "Echo"},
			wantErr: "nil handler",
		},
		{
			name: "duplicate parameter",
			cmd: mcp.Command{Name: "Echo", Handler: nopHandler, Params: []mcp.Param{
				{Name: "a", Type: mcp.Scalar(mcp.KindString)},
				{Name: "a", Type: mcp.Scalar(mcp.KindInt)},
			}},
			wantErr: `duplicate parameter "a"`,
		},
		{
			name: "enum without values",
			cmd: mcp.Command{Name: "Echo", Handler: nopHandler, Params: []mcp.Param{
				{Name: "mode", Type: mcp.EnumOf()},
			}},
			wantErr: "enum without values",
		},
		{
			name: "nested array",
			cmd: mcp.Command{Name: "Echo", Handler: nopHandler, Params: []mcp.Param{
				{Name: "grid", Type: mcp.ArrayOf(mcp.KindArray)},
			}},
			wantErr: "nested arrays are not supported",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reg := mcp.NewRegistry()
			err := reg.Register(tc.cmd)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				assert.Equal(t, 0, reg.Len())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, reg.Len())
		})
	}
}

func TestRegistryLookupIsCaseInsensitive(t *testing.T) {
	reg := mcp.NewRegistry()
	reg.MustRegister(mcp.Command{Name: "Get_Loaded_Assemblies", Handler: nopHandler})

	for _, name := range []string{"Get_Loaded_Assemblies", "get_loaded_assemblies", "GET_LOADED_ASSEMBLIES"} {
		cmd, ok := reg.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, "Get_Loaded_Assemblies", cmd.Name)
	}

	_, ok := reg.Lookup("Missing")
	assert.False(t, ok)
}

func TestRegistryLastRegistrationWins(t *testing.T) {
	reg := mcp.NewRegistry()
	reg.MustRegister(mcp.Command{Name: "echo", Description: "first", Handler: nopHandler})
	reg.MustRegister(mcp.Command{Name: "ECHO", Description: "second", Handler: nopHandler})

	require.Equal(t, 1, reg.Len())
	cmd, ok := reg.Lookup("Echo")
	require.True(t, ok)
	assert.Equal(t, "second", cmd.Description)
}

func TestRegistryListIsSorted(t *testing.T) {
	reg := mcp.NewRegistry()
	require.NoError(t, reg.RegisterSource(staticSource{
		{Name: "zeta", Handler: nopHandler},
		{Name: "Alpha", Handler: nopHandler},
		{Name: "beta", Handler: nopHandler},
	}))

	var names []string
	for _, c := range reg.List() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Alpha", "beta", "zeta"}, names)
}

func TestCommandTool(t *testing.T) {
	cmd := mcp.Command{
		Name: "Namespaces_From_Assembly",
		Params: []mcp.Param{
			{Name: "assemblyName", Type: mcp.Scalar(mcp.KindString)},
			{Name: "ilOpcodes", Type: mcp.ArrayOf(mcp.KindString)},
			{Name: "ilLineNumber", Type: mcp.Scalar(mcp.KindInt32), Description: "Line to patch"},
			{Name: "ratio", Type: mcp.Scalar(mcp.KindFloat64), Optional: true, Default: 0.5},
			{Name: "verbose", Type: mcp.Scalar(mcp.KindBool), Optional: true},
			{Name: "token", Type: mcp.Scalar(mcp.KindUUID), Optional: true},
			{Name: "mode", Type: mcp.EnumOf("Read", "Write"), Optional: true},
			{Name: "options", Type: mcp.Scalar(mcp.KindObject), Optional: true},
		},
		Handler: nopHandler,
	}

	tool := cmd.Tool()

	assert.Equal(t, "Namespaces_From_Assembly", tool.Name)
	assert.Equal(t, "Executes the Namespaces_From_Assembly command.", tool.Description)
	assert.Equal(t, "Namespaces_From_Assembly", tool.InputSchema.Title)
	assert.Equal(t, "Input schema for Namespaces_From_Assembly.", tool.InputSchema.Description)
	assert.Equal(t, "object", tool.InputSchema.Type)
	assert.Equal(t, []string{"assemblyName", "ilOpcodes", "ilLineNumber"}, tool.InputSchema.Required)

	props := tool.InputSchema.Properties
	require.Len(t, props, 8)
	assert.Equal(t, "string", props["assemblyName"].Type)
	assert.Equal(t, "Parameter 'assemblyName' for Namespaces_From_Assembly", props["assemblyName"].Description)
	assert.Equal(t, "array", props["ilOpcodes"].Type)
	require.NotNil(t, props["ilOpcodes"].Items)
	assert.Equal(t, "string", props["ilOpcodes"].Items.Type)
	assert.Equal(t, "integer", props["ilLineNumber"].Type)
	assert.Equal(t, "Line to patch", props["ilLineNumber"].Description)
	assert.Equal(t, "number", props["ratio"].Type)
	assert.Equal(t, 0.5, props["ratio"].Default)
	assert.Equal(t, "boolean", props["verbose"].Type)
	assert.Equal(t, "string", props["token"].Type)
	assert.Equal(t, "uuid", props["token"].Format)
	assert.Equal(t, []string{"Read", "Write"}, props["mode"].Enum)
	assert.Equal(t, "object", props["options"].Type)
}

func TestCommandToolWithoutParamsHasEmptyRequired(t *testing.T) {
	cmd := mcp.Command{Name: "Help", Description: "Lists commands", Handler: nopHandler}

	bs, err := json.Marshal(cmd.Tool())
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(bs, &got))
	schema := got["inputSchema"].(map[string]any)
	assert.Equal(t, []any{}, schema["required"])
	assert.Equal(t, map[string]any{}, schema["properties"])
	assert.Equal(t, "Lists commands", got["description"])
}

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  mcp.Type
		want string
	}{
		{mcp.Scalar(mcp.KindString), "String"},
		{mcp.Scalar(mcp.KindInt32), "Int32"},
		{mcp.Scalar(mcp.KindBool), "Boolean"},
		{mcp.Scalar(mcp.KindUUID), "Guid"},
		{mcp.ArrayOf(mcp.KindString), "String[]"},
		{mcp.EnumOf("A"), "Enum"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.typ.String())
		})
	}
}
