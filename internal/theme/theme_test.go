package theme

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCSS_ContainsEveryToken(t *testing.T) {
	css := Default().CSS()

	assert.True(t, strings.HasPrefix(css, ":root {"))
	for name, value := range Default().Vars() {
		assert.Contains(t, css, name+": "+value+";")
	}
}

func TestWithDefaults_KeepsOverrides(t *testing.T) {
	th := Theme{Accent: "#ff00ff"}.WithDefaults()

	assert.Equal(t, "#ff00ff", th.Accent)
	assert.Equal(t, Default().Success, th.Success)
	assert.Equal(t, Default().Background, th.Background)
}

func TestTone(t *testing.T) {
	th := Default()
	assert.Equal(t, th.Success, th.Tone("success"))
	assert.Equal(t, th.Warning, th.Tone("warning"))
	assert.Equal(t, th.Error, th.Tone("error"))
	assert.Equal(t, th.Text, th.Tone("unknown"))
}

func TestTerminal_ToneFallsBackToTitle(t *testing.T) {
	st := Default().Terminal()
	assert.Equal(t, st.Title.Render("x"), st.Tone("nope").Render("x"))
}
