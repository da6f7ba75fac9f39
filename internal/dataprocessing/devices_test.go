package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "qcmpulse/internal/errors"
	"qcmpulse/pkg/contracts/domain"
)

func TestRenameMap(t *testing.T) {
	tests := []struct {
		device domain.DeviceKind
		vendor string
		want   string
	}{
		{domain.DeviceNext, "Relative_time", domain.ColumnTime},
		{domain.DeviceNext, "Time", domain.ColumnAbsTime},
		{domain.DeviceNext, "Frequency_2", "5th_freq"},
		{domain.DeviceNext, "Dissipation_6", "13th_dis"},
		{domain.DeviceIFormat, "Channel A Fundamental Frequency [Hz]", "fundamental_freq"},
		{domain.DeviceIFormat, "Channel A 3. Dissipation  [ ]", "3rd_dis"},
		{domain.DeviceQSense, "F_1:7", "7th_freq"},
		{domain.DeviceQSense, "Meas. Temp. Time", domain.ColumnTempTime},
		{domain.DeviceAWSensors, "Delta_F/n_n=11_(Hz)", "11th_freq"},
		{domain.DeviceAWSensors, "Delta_D_n=3_()", "3rd_dis"},
	}

	for _, tt := range tests {
		t.Run(string(tt.device)+"/"+tt.vendor, func(t *testing.T) {
			m, err := RenameMap(tt.device)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m[tt.vendor])
		})
	}

	_, err := RenameMap("unknown")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestRenameColumns_WrongDevice(t *testing.T) {
	raw := NewRawTable([]string{"Time_1", "F_1:1"}, [][]string{{"0", "1"}})

	_, err := RenameColumns(raw, domain.DeviceNext)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeFormat))
	assert.Contains(t, err.Error(), "wrong device")
}

func TestAdapt_QSense(t *testing.T) {
	raw := NewRawTable(
		[]string{"Time_1", "F_1:1", "D_1:1", "F_1:3", "D_1:3", "Tact", "Notes"},
		[][]string{
			{"0", "-1", "1", "-10", "2", "24.9", "a"},
			{"1", "-2", "1", "-20", "", "25.0", "b"},
		},
	)

	t.Run("theoretical mode adds nothing", func(t *testing.T) {
		tbl, err := Adapt(raw, domain.DeviceQSense, AdaptOptions{})
		require.NoError(t, err)

		assert.Equal(t, []float64{-1, -2}, tbl.Freq[domain.Fundamental])
		assert.Equal(t, []float64{-30, -60}, tbl.Freq[domain.Third])
		assert.InDelta(t, 2e-6, tbl.Dis[domain.Third][0], 1e-18)
		assert.True(t, isNaN(tbl.Dis[domain.Third][1]))
		assert.Nil(t, tbl.Freq[domain.Fifth], "absent overtones stay not analyzed")
		assert.Equal(t, []float64{24.9, 25.0}, tbl.Temp)
	})

	t.Run("measured mode adds offsets after un-normalizing", func(t *testing.T) {
		var offsets domain.CalibrationOffsetSet
		offsets.Freq[domain.Third] = domain.Offset{Value: 15e6, Set: true}
		offsets.Dis[domain.Third] = domain.Offset{Value: 1e-6, Set: true}

		tbl, err := Adapt(raw, domain.DeviceQSense, AdaptOptions{Offsets: &offsets})
		require.NoError(t, err)

		assert.Equal(t, 15e6-30, tbl.Freq[domain.Third][0])
		assert.InDelta(t, 3e-6, tbl.Dis[domain.Third][0], 1e-18)
		assert.Equal(t, -1.0, tbl.Freq[domain.Fundamental][0], "unset offsets are not applied")
	})

	assert.Equal(t, "-10", raw.Cell(0, "F_1:3"), "input is never modified")
}

func TestAdapt_AbsoluteDevices(t *testing.T) {
	raw := NewRawTable(
		[]string{"Time", "Relative_time", "Frequency_0", "Dissipation_0", "Temperature"},
		[][]string{
			{"10:00:01", "0", "4972000", "0.00001", "25"},
			{"10:00:02", "1", "4971990", "0.00002", "25"},
		},
	)

	tbl, err := Adapt(raw, domain.DeviceNext, AdaptOptions{})
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 1}, tbl.Time)
	assert.Equal(t, []string{"10:00:01", "10:00:02"}, tbl.AbsTime)
	assert.Equal(t, []float64{4972000, 4971990}, tbl.Freq[domain.Fundamental])
	assert.Equal(t, []float64{0.00001, 0.00002}, tbl.Dis[domain.Fundamental])
}

func TestToCanonical(t *testing.T) {
	t.Run("missing time", func(t *testing.T) {
		_, err := ToCanonical(NewRawTable([]string{"fundamental_freq"}, [][]string{{"1"}}))
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeFormat))
	})

	t.Run("time must not decrease", func(t *testing.T) {
		raw := NewRawTable([]string{"Time", "fundamental_freq"}, [][]string{{"2", "1"}, {"1", "1"}})
		_, err := ToCanonical(raw)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeFormat))
	})

	t.Run("empty columns are not analyzed", func(t *testing.T) {
		raw := NewRawTable([]string{"Time", "fundamental_freq", "3rd_freq"}, [][]string{{"0", "1", ""}, {"1", "2", ""}})
		tbl, err := ToCanonical(raw)
		require.NoError(t, err)
		assert.Nil(t, tbl.Freq[domain.Third])
		assert.True(t, IsCanonical(raw))
	})
}
