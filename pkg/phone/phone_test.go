package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestE164(t *testing.T) {
	got, err := E164("18610559223", "CN")
	require.NoError(t, err)
	assert.Equal(t, "+8618610559223", got)

	got, err = E164("+86 186 1055 9223", "")
	require.NoError(t, err)
	assert.Equal(t, "+8618610559223", got)

	_, err = E164("", "CN")
	assert.ErrorIs(t, err, ErrInvalidNumber)
}

func TestNational(t *testing.T) {
	got, err := National("+8618610559223", "CN")
	require.NoError(t, err)
	assert.Equal(t, "18610559223", got)
}

func TestSame(t *testing.T) {
	tests := []struct {
		name     string
		stored   string
		incoming string
		want     bool
	}{
		{"national vs international", "+8618610559223", "18610559223", true},
		{"identical", "+8618610559223", "+8618610559223", true},
		{"different line", "+8618610559223", "18612035220", false},
		{"short suffix is not enough", "+8618610559223", "9223", false},
		{"other country same digits", "+18610559223", "18610559223", false},
		{"empty incoming", "+8618610559223", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Same(tt.stored, tt.incoming, "CN"))
		})
	}
}

func TestMask(t *testing.T) {
	assert.Equal(t, "186****9223", Mask("18610559223"))
	assert.Equal(t, "***", Mask("123"))
}
