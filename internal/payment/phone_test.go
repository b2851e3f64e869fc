package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickbite/orderflow/internal/fault"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"national with leading zero", "0771234567", "256771234567"},
		{"international plus", "+256771234567", "256771234567"},
		{"international double zero", "00256771234567", "256771234567"},
		{"already international", "256771234567", "256771234567"},
		{"spaces and dashes", "077 123-4567", "256771234567"},
		{"parentheses and dots", "(077) 123.4567", "256771234567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw, "256")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePhone_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"too short", "0771"},
		{"too long", "2567712345678901234"},
		{"letters", "07712call me"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizePhone(tt.raw, "256")
			require.Error(t, err)
			fe, ok := fault.As(err)
			require.True(t, ok)
			assert.Equal(t, "invalid_phone", fe.Code)
		})
	}
}
