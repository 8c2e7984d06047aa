package cli

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "0", want: "$0.00"},
		{in: "70", want: "$70.00"},
		{in: "12.5", want: "$12.50"},
		{in: "-3.456", want: "-$3.46"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmount(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestGauge(t *testing.T) {
	half := Gauge(decimal.NewFromInt(50), decimal.NewFromInt(100))
	assert.Equal(t, 10, strings.Count(half, "█"))
	assert.Contains(t, half, "$50.00 / $100.00")

	over := Gauge(decimal.NewFromInt(150), decimal.NewFromInt(100))
	assert.Equal(t, gaugeWidth, strings.Count(over, "█"))

	empty := Gauge(decimal.Zero, decimal.Zero)
	assert.Equal(t, gaugeWidth, strings.Count(empty, "░"))
}

func TestFormatMessages(t *testing.T) {
	assert.Contains(t, FormatSuccess("done"), "done")
	assert.Contains(t, FormatError("bad"), ErrorIcon)
	assert.Contains(t, FormatWarning("careful"), "careful")
	assert.Contains(t, FormatInfo("fyi"), "fyi")
	assert.Contains(t, FormatTitle("Budgets"), "Budgets")
	assert.Contains(t, RenderBox("Summary", "body"), "body")
}
