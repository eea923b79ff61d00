package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// NumberGenerator hands out unique, roughly time-ordered order numbers.
type NumberGenerator struct {
	node *snowflake.Node
}

// NewNumberGenerator needs a node id unique per running instance (0-1023).
func NewNumberGenerator(nodeID int64) (*NumberGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("order number node: %w", err)
	}
	return &NumberGenerator{node: node}, nil
}

// Next returns e.g. ORD-20261015-1E3XKQ2Z4ZK0.
func (g *NumberGenerator) Next(at time.Time) string {
	return fmt.Sprintf("ORD-%s-%s", at.UTC().Format("20060102"), strings.ToUpper(g.node.Generate().Base36()))
}
