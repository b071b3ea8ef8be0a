package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "***111", MaskPhone("+250788000111"))
	assert.Equal(t, "12", MaskPhone("12"))
	assert.Equal(t, "", MaskPhone(""))
}

func TestRedactPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "menu keys only", input: "1*1*2", expected: "1*1*2"},
		{name: "free text", input: "1*1*2*3*Help I am trapped*1", expected: "1*1*2*3*<text:17>*1"},
		{name: "empty token kept", input: "1*", expected: "1*"},
		{name: "long number is text", input: "1*6*5*112", expected: "1*6*5*<text:3>"},
		{name: "unicode length", input: "1*Ndakomeretse cyane é", expected: "1*<text:20>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RedactPath(tt.input))
		})
	}
}

func TestClean(t *testing.T) {
	assert.Equal(t, "Call me on ***111 please", Clean("  Call me on +250 788 000 111 please "))
	assert.Equal(t, "Fire at the market", Clean("Fire at the market"))
}
