package cacti

import (
	"github.com/packagewjx/cacheflow/test"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
)

func TestParseReportFile(t *testing.T) {
	report, err := ParseReportFile(test.DataFile("cacti", "a15_L1_8KB.txt"))
	require.NoError(t, err)
	assert.Equal(t, 8192, report.SizeBytes)
	assert.Equal(t, 64, report.BlockBytes)
	assert.Equal(t, 2, report.Assoc)
	assert.Equal(t, 32.0, report.TechNM)
	assert.Equal(t, 0.170341, report.HeightMM)
	assert.Equal(t, 0.192616, report.WidthMM)
	assert.Equal(t, 0.170341*0.192616, report.AreaMM2)

	assert.NoError(t, report.Validate(Target{SizeBytes: 8192, BlockBytes: 64, Assoc: 2, TechNM: 32, Level: LevelL1}))
}

func TestParseReportMissing(t *testing.T) {
	_, err := ParseReport("Total cache size (bytes): 1024\nAssociativity: 2\n")
	require.Error(t, err)
	assert.Equal(t, ErrMissingField, errors.Cause(err))
	assert.Contains(t, err.Error(), "Block size (bytes)")
	assert.Contains(t, err.Error(), "Technology size (nm)")
	assert.Contains(t, err.Error(), "Cache height x width (mm)")

	_, err = ParseReportFile(test.DataFile("gem5", "stats.txt"))
	require.Error(t, err)
	assert.Equal(t, ErrMissingField, errors.Cause(err))
	assert.Contains(t, err.Error(), "stats.txt")
}

func TestValidateMismatch(t *testing.T) {
	report, err := ParseReport(strings.Join([]string{
		"Total cache size (bytes): 4096",
		"Block size (bytes): 32",
		"Associativity: 8",
		"Technology size (nm): 32.4",
		"Cache height x width (mm): 0.1 x 0.2",
	}, "\n"))
	require.NoError(t, err)
	assert.InDelta(t, 0.02, report.AreaMM2, 1e-12)

	target := Target{SizeBytes: 4096, BlockBytes: 32, Assoc: 8, TechNM: 32, Level: LevelL2}
	assert.NoError(t, report.Validate(target))

	target.Assoc = 16
	target.SizeBytes = 8192
	err = report.Validate(target)
	require.Error(t, err)
	assert.Equal(t, ErrMismatch, errors.Cause(err))
	assert.Contains(t, err.Error(), "associativity: got 8, expected 16")
	assert.Contains(t, err.Error(), "cache size: got 4096, expected 8192")

	target = Target{SizeBytes: 4096, BlockBytes: 32, Assoc: 8, TechNM: 45, Level: LevelL2}
	assert.Equal(t, ErrMismatch, errors.Cause(report.Validate(target)))
}
