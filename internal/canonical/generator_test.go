package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costlink/costlink/internal/common"
	"github.com/costlink/costlink/internal/config"
	"github.com/costlink/costlink/internal/model"
)

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := NewGenerator(config.Default().Canonical)
	require.NoError(t, err)
	return g
}

func floatp(v float64) *float64 { return &v }
func intp(v int) *int           { return &v }

func TestKeyIgnoresFormattingNoise(t *testing.T) {
	g := newTestGenerator(t)

	base := &model.Item{
		ID:       "item-1",
		TenantID: "t1",
		Code:     intp(310),
		Family:   "Rectangular Duct",
		TypeName: "Standard",
		Material: "galvanized",
		Unit:     "m",
		WidthMM:  floatp(300),
		HeightMM: floatp(200),
	}

	// Same thing, different formatting: case, whitespace, a revision
	// marker, a material synonym, a unit alias, and near-identical
	// dimensions inside the bucketing grid.
	noisy := &model.Item{
		ID:       "item-2",
		TenantID: "t1",
		Code:     intp(310),
		Family:   "  RECTANGULAR   duct ",
		TypeName: "Standard rev. B",
		Material: "galv",
		Unit:     "meter",
		WidthMM:  floatp(302),
		HeightMM: floatp(198),
	}

	baseKey, err := g.Key(base)
	require.NoError(t, err)
	noisyKey, err := g.Key(noisy)
	require.NoError(t, err)

	assert.Equal(t, baseKey, noisyKey)
	assert.Len(t, baseKey, 64)
}

func TestKeyDistinguishesGeometry(t *testing.T) {
	g := newTestGenerator(t)

	narrow := &model.Item{Code: intp(310), Family: "Duct", WidthMM: floatp(300)}
	wide := &model.Item{Code: intp(310), Family: "Duct", WidthMM: floatp(400)}

	narrowKey, err := g.Key(narrow)
	require.NoError(t, err)
	wideKey, err := g.Key(wide)
	require.NoError(t, err)

	assert.NotEqual(t, narrowKey, wideKey)
}

func TestKeyDistinguishesClassification(t *testing.T) {
	g := newTestGenerator(t)

	a := &model.Item{Code: intp(310), Family: "Duct"}
	b := &model.Item{Code: intp(320), Family: "Duct"}

	keyA, err := g.Key(a)
	require.NoError(t, err)
	keyB, err := g.Key(b)
	require.NoError(t, err)

	assert.NotEqual(t, keyA, keyB)
}

func TestKeyMissingRequiredFields(t *testing.T) {
	g := newTestGenerator(t)

	_, err := g.Key(&model.Item{Family: "Duct"})
	assert.ErrorIs(t, err, common.ErrMissingField)

	_, err = g.Key(&model.Item{Code: intp(310)})
	assert.ErrorIs(t, err, common.ErrMissingField)
}

func TestKeyDeterministic(t *testing.T) {
	g := newTestGenerator(t)

	item := &model.Item{
		Code:     intp(310),
		Family:   "Rectangular Duct",
		TypeName: "Standard",
		Unit:     "m",
		WidthMM:  floatp(300),
	}

	first, err := g.Key(item)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		key, keyErr := g.Key(item)
		require.NoError(t, keyErr)
		assert.Equal(t, first, key)
	}
}

func TestNormalizeText(t *testing.T) {
	g := newTestGenerator(t)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"collapses whitespace and case", "  Rectangular   DUCT ", "rectangular duct"},
		{"expands material synonym", "galv steel", "galvanized steel"},
		{"strips diacritics", "Kanäl", "kanal"},
		{"removes revision marker", "Standard rev. B", "standard"},
		{"removes version token", "Elbow v2.1", "elbow"},
		{"removes project token", "Flex proj-123 Hose", "flex hose"},
		{"keeps degree sign", "90°-Elbow", "90° elbow"},
		{"empty input", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.NormalizeText(tt.input))
		})
	}
}

func TestNormalizeUnit(t *testing.T) {
	g := newTestGenerator(t)

	tests := []struct {
		input string
		want  string
	}{
		{"meter", "m"},
		{"Meters", "m"},
		{"STK", "ea"},
		{"pcs", "ea"},
		{"m²", "sqm"},
		{" M ", "m"},
		{"roll", "roll"}, // unknown units pass through
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, g.NormalizeUnit(tt.input), "input %q", tt.input)
	}
}

func TestBucketing(t *testing.T) {
	g := newTestGenerator(t)

	assert.InDelta(t, 300, g.BucketDimension(298), 0.001)
	assert.InDelta(t, 295, g.BucketDimension(297), 0.001)
	assert.InDelta(t, 300, g.BucketDimension(300), 0.001)
	assert.InDelta(t, 45, g.BucketAngle(44), 0.001)
	assert.InDelta(t, 45, g.BucketAngle(46.2), 0.001)

	// A non-positive grid disables bucketing.
	assert.InDelta(t, 298, g.Bucket(298, 0), 0.001)
}

func TestNewGeneratorRejectsBadPattern(t *testing.T) {
	cfg := config.Default().Canonical
	cfg.RevisionPatterns = append(cfg.RevisionPatterns, "(unclosed")

	_, err := NewGenerator(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}
