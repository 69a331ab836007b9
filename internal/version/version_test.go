package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShort(t *testing.T) {
	assert.Equal(t, Version, Short())

	old := GitCommit
	t.Cleanup(func() { GitCommit = old })
	GitCommit = "0123456789abcdef"
	assert.Equal(t, Version+" (0123456)", Short())
}

func TestInfo(t *testing.T) {
	info := Get()
	assert.Equal(t, "irsengine", info.Name)
	assert.Contains(t, info.String(), "Git Commit: "+GitCommit)
	assert.NotEmpty(t, info.Platform)
}
