package version_test

import (
	"strings"
	"testing"

	// Packages
	version "github.com/mutablelogic/go-pgbus/pkg/version"
	assert "github.com/stretchr/testify/assert"
)

func Test_Version_001(t *testing.T) {
	assert := assert.New(t)

	t.Run("Dev", func(t *testing.T) {
		assert.Equal("dev", version.Version())
	})

	t.Run("Hash", func(t *testing.T) {
		version.GitHash = "abc123"
		defer func() { version.GitHash = "" }()
		assert.Equal("abc123", version.Version())

		version.GitTag = "v1.0.0"
		defer func() { version.GitTag = "" }()
		assert.Equal("v1.0.0", version.Version())
	})

	t.Run("Compiler", func(t *testing.T) {
		assert.True(strings.HasPrefix(version.Compiler(), "go"))
		assert.NotEmpty(version.ExecName())
	})
}
