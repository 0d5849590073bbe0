// pkg/cobrax/topics/topics_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: testing/fstest, cobra
// PURPOSE: Test topic discovery, flag-style lookup, and the help command

package topics

import (
	"bytes"
	"testing"
	"testing/fstest"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFiles() fstest.MapFS {
	return fstest.MapFS{
		"proxies.md":            {Data: []byte("# Proxies\n\nSet proxy in the manifest.")},
		"option-insecure.txt":   {Data: []byte("Skip TLS verification")},
		"nested/manifest.txt":   {Data: []byte("Manifest format")},
		"notes.json":            {Data: []byte("{}")},
		"offline/payloads.txxt": {Data: []byte("Offline payloads")},
	}
}

func TestScanTopics(t *testing.T) {
	tests := []struct {
		name       string
		extensions []string
		want       []string
	}{
		{"default extensions", nil, []string{"manifest", "option-insecure", "proxies"}},
		{"custom extensions", []string{".txt", ".md", ".txxt"}, []string{"manifest", "option-insecure", "payloads", "proxies"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := NewWithOptions(testFiles(), Options{Extensions: tt.extensions})
			require.NoError(t, tm.scanTopics())
			assert.Equal(t, tt.want, tm.ListTopics())
		})
	}
}

func TestGetTopic(t *testing.T) {
	tm := NewWithOptions(testFiles(), Options{})
	require.NoError(t, tm.scanTopics())

	tests := []struct {
		input string
		want  string
		found bool
	}{
		{"proxies", "proxies", true},
		{"option-insecure", "option-insecure", true},
		{"insecure", "option-insecure", true},
		{"--insecure", "option-insecure", true},
		{"-i", "", false},
		{"missing", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			topic, ok := tm.GetTopic(tt.input)
			assert.Equal(t, tt.found, ok)
			if ok {
				assert.Equal(t, tt.want, topic.Name)
			}
		})
	}
}

type upperRenderer struct{ formats []string }

func (r *upperRenderer) Render(content, format string) string {
	r.formats = append(r.formats, format)
	return "<" + content + ">"
}

func TestHelpCommand(t *testing.T) {
	root := &cobra.Command{Use: "kitman", Run: func(*cobra.Command, []string) {}}
	root.AddCommand(&cobra.Command{Use: "install", Short: "Install the toolkit", Run: func(*cobra.Command, []string) {}})
	renderer := &upperRenderer{}
	_, err := InitializeWithOptions(root, testFiles(), Options{Renderer: renderer})
	require.NoError(t, err)

	run := func(args ...string) string {
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&out)
		root.SetArgs(args)
		require.NoError(t, root.Execute())
		return out.String()
	}

	assert.Equal(t, "<# Proxies\n\nSet proxy in the manifest.>", run("help", "proxies"))
	assert.Equal(t, []string{".md"}, renderer.formats)

	list := run("help", "topics")
	assert.Contains(t, list, "General topics:\n  manifest\n  proxies\n")
	assert.Contains(t, list, "Option topics:\n  --insecure\n")
	assert.Contains(t, list, "kitman help <topic>")

	assert.Contains(t, run("help", "install"), "Install the toolkit")
}
