package common

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID generates a UUID with an optional prefix
func GenerateUUID(prefix string) string {
	id := uuid.New()
	if prefix != "" {
		return fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(id.String(), "-", ""))
	}
	return id.String()
}

// GenerateSwapID generates a swap ID with "swp" prefix
func GenerateSwapID() string {
	return GenerateUUID("swp")
}

// GenerateSettlementID generates a settlement ID with "stl" prefix
func GenerateSettlementID() string {
	return GenerateUUID("stl")
}

// GenerateLiquidationID generates a liquidation ID with "liq" prefix
func GenerateLiquidationID() string {
	return GenerateUUID("liq")
}
