package modules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	registry := DefaultRegistry()

	names := registry.Names()
	assert.Len(t, names, 25)

	for _, name := range []string{
		"ec2_eip",
		"iam_access_key",
		"rds_snapshot",
		"s3_lifecycle",
		"cloudtrail",
		"mq_broker_info",
		"ce_cost_info",
	} {
		m, ok := registry.Get(name)
		require.True(t, ok, "module %s not registered", name)
		assert.Equal(t, name, m.Name())
		assert.NotEmpty(t, m.Summary())
		assert.NotEmpty(t, m.Doc())
	}
}
