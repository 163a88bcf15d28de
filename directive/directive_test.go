package directive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeAs(t *testing.T) {
	tests := []struct {
		option   Option
		existing Syntax
		want     Syntax
	}{
		{option: Disabled, existing: "", want: SyntaxLegacy},
		{option: Disabled, existing: SyntaxDirective, want: SyntaxLegacy},
		{option: Enabled, existing: "", want: SyntaxLegacy},
		{option: Enabled, existing: SyntaxDirective, want: SyntaxDirective},
		{option: Enabled, existing: SyntaxLegacy, want: SyntaxLegacy},
		{option: Preserve, existing: "", want: SyntaxDirective},
		{option: Preserve, existing: SyntaxLegacy, want: SyntaxLegacy},
		{option: Preserve, existing: SyntaxDirective, want: SyntaxDirective},
		{option: Overwrite, existing: SyntaxLegacy, want: SyntaxDirective},
		{option: Only, existing: SyntaxLegacy, want: SyntaxDirective},
	}

	for _, tt := range tests {
		t.Run(string(tt.option)+"/"+string(tt.existing), func(t *testing.T) {
			ctx := NewContext(Config{Default: tt.option})
			assert.Equal(t, tt.want, ctx.SerializeAs("yfm_cut", tt.existing))
		})
	}
}

func TestParseAcceptance(t *testing.T) {
	tests := []struct {
		option    Option
		legacy    bool
		directive bool
		plugin    PluginValue
	}{
		{option: Disabled, legacy: true, directive: false, plugin: PluginDisabled},
		{option: Enabled, legacy: true, directive: true, plugin: PluginEnabled},
		{option: Preserve, legacy: true, directive: true, plugin: PluginEnabled},
		{option: Overwrite, legacy: true, directive: true, plugin: PluginEnabled},
		{option: Only, legacy: false, directive: true, plugin: PluginOnly},
	}

	for _, tt := range tests {
		t.Run(string(tt.option), func(t *testing.T) {
			ctx := NewContext(Config{Default: tt.option})
			assert.Equal(t, tt.legacy, ctx.AcceptsLegacy("yfm_note"))
			assert.Equal(t, tt.directive, ctx.AcceptsDirective("yfm_note"))
			assert.Equal(t, tt.plugin, ctx.MdPluginValueFor("yfm_note"))
		})
	}
}

func TestPerExtensionOverride(t *testing.T) {
	ctx := NewContext(Config{Default: Only, ByExtension: map[string]Option{"yfm_cut": Disabled}})
	assert.Equal(t, Disabled, ctx.ValueFor("yfm_cut"))
	assert.Equal(t, Only, ctx.ValueFor("yfm_note"))
	assert.Equal(t, Only, ctx.Option())
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig("preserve, yfm_cut=only")
	require.NoError(t, err)
	assert.Equal(t, Preserve, cfg.Default)
	assert.Equal(t, Only, cfg.ByExtension["yfm_cut"])
	assert.Equal(t, "preserve,yfm_cut=only", cfg.String())

	cfg, err = ParseConfig("")
	require.NoError(t, err)
	assert.Equal(t, Disabled, cfg.Default)

	_, err = ParseConfig("sometimes")
	require.Error(t, err)

	_, err = ParseConfig("yfm_cut=never")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Config{Default: Enabled}.Validate())
	assert.Error(t, Config{}.Validate())
	assert.Error(t, Config{Default: Enabled, ByExtension: map[string]Option{" ": Only}}.Validate())
}

func TestSyntaxOf(t *testing.T) {
	assert.Equal(t, SyntaxDirective, SyntaxOf(map[string]interface{}{AttrMarkup: "directive"}))
	assert.Equal(t, Syntax(""), SyntaxOf(map[string]interface{}{AttrMarkup: "{% cut"}))
	assert.Equal(t, Syntax(""), SyntaxOf(nil))
}
