package gen

import (
	"boostfix/pkg/config"

	"github.com/bwmarrin/snowflake"
)

// IDGenerator hands out unique, roughly time-ordered identifiers.
type IDGenerator interface {
	GenerateID() string
}

type SnowflakeNode struct {
	node *snowflake.Node
}

func NewSnowflakeNode(nodeID int64) (*SnowflakeNode, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &SnowflakeNode{node: node}, nil
}

// Provide builds the engine's node from ENGINE.NODE_ID.
func Provide(cfg *config.Config) (IDGenerator, error) {
	return NewSnowflakeNode(cfg.Engine.NodeID)
}

func (s *SnowflakeNode) GenerateID() string {
	return s.node.Generate().String()
}
