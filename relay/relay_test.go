package relay

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/oadr2-ven/log2"
)

func testBank(t testing.TB, n int) (*Bank, *MockDriver) {
	points := make([]string, n)
	for i := range points {
		points[i] = fmt.Sprintf("relay%d", i)
	}
	d := NewMockDriver()
	return NewBank(log2.NewTest(t, log2.LDebug), d, points), d
}

func TestWritePattern(t *testing.T) {
	t.Parallel()
	b, d := testBank(t, 4)

	changed, err := b.Write(2.5)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{
		"set:relay0:true",
		"set:relay1:true",
		"set:relay2:true",
		"set:relay3:false",
	}, d.Ops())
	assert.Equal(t, 2.5, b.Level())
}

func TestWriteWholeRange(t *testing.T) {
	t.Parallel()
	const n = 4
	for lvl := 0; lvl <= n; lvl++ {
		b, d := testBank(t, n)
		_, err := b.Write(float64(lvl))
		require.NoError(t, err)
		for i := 0; i < n; i++ {
			on, err := d.Get(fmt.Sprintf("relay%d", i))
			require.NoError(t, err)
			assert.Equal(t, i < lvl, on, "level=%d point=%d", lvl, i)
		}
	}
}

func TestWriteDedup(t *testing.T) {
	t.Parallel()
	b, d := testBank(t, 3)

	changed, err := b.Write(2)
	require.NoError(t, err)
	assert.True(t, changed)
	d.ResetOps()

	changed, err = b.Write(2)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, d.Ops(), "repeated write must not touch the driver")
}

func TestWriteZeroPoints(t *testing.T) {
	t.Parallel()
	b, _ := testBank(t, 0)
	changed, err := b.Write(3)
	require.NoError(t, err)
	assert.True(t, changed)
	// level is cached even with nothing to drive
	assert.Equal(t, 3.0, b.Level())
}

func TestWriteDriverError(t *testing.T) {
	t.Parallel()
	b, d := testBank(t, 2)
	d.SetErr = fmt.Errorf("stuck relay")
	_, err := b.Write(1)
	require.Error(t, err)
	// failed write must not be recorded as current
	assert.Equal(t, 0.0, b.Level())
}

func TestReadEnds(t *testing.T) {
	t.Parallel()
	b, d := testBank(t, 4)

	lvl, err := b.Read()
	require.NoError(t, err)
	assert.Equal(t, 0.0, lvl)

	for i := 0; i < 4; i++ {
		d.SetState(fmt.Sprintf("relay%d", i), true)
	}
	lvl, err = b.Read()
	require.NoError(t, err)
	assert.Equal(t, 4.0, lvl)
}

func TestReadPrefix(t *testing.T) {
	t.Parallel()
	b, d := testBank(t, 4)
	d.SetState("relay0", true)
	d.SetState("relay1", true)
	lvl, err := b.Read()
	require.NoError(t, err)
	assert.Equal(t, 2.0, lvl)
}

func TestSync(t *testing.T) {
	t.Parallel()
	b, d := testBank(t, 3)
	d.SetState("relay0", true)
	d.SetState("relay1", true)

	lvl, err := b.Sync()
	require.NoError(t, err)
	assert.Equal(t, 2.0, lvl)
	assert.Equal(t, 2.0, b.Level())

	// same level again is now a no-op
	d.ResetOps()
	changed, err := b.Write(2)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, d.Ops())
}

func TestSyncError(t *testing.T) {
	t.Parallel()
	b, d := testBank(t, 3)
	d.GetErr = fmt.Errorf("bus error")
	_, err := b.Sync()
	require.Error(t, err)
	assert.Equal(t, 0.0, b.Level())
}
