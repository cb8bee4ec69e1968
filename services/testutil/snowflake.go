package testutil

import (
	"testing"

	"github.com/bwmarrin/snowflake"
)

// NewSnowflakeNode returns an ID generator for tests.
func NewSnowflakeNode(t *testing.T) *snowflake.Node {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}
	return node
}
