package notify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductInventoryTopic(t *testing.T) {
	assert.Equal(t, "products:p1:inventory", ProductInventoryTopic("p1"))
	assert.Equal(t, "products:9b2e:inventory", ProductInventoryTopic("9b2e"))
}

func TestNewInventoryUpdate_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		available int
		expected  string
	}{
		{"Positive quantity", 5, StatusInStock},
		{"One left", 1, StatusInStock},
		{"Zero", 0, StatusOutOfStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update := NewInventoryUpdate("p1", tt.available)
			assert.Equal(t, tt.expected, update.Status)
			assert.Equal(t, tt.available, update.Available)
		})
	}
}

func TestInventoryUpdate_WireFormat(t *testing.T) {
	// Field names are the consumer contract and must not drift
	data, err := json.Marshal(NewInventoryUpdate("p1", 0))
	require.NoError(t, err)
	assert.JSONEq(t, `{"productId":"p1","available":0,"status":"OUT_OF_STOCK"}`, string(data))
}
