package qsd

import (
	"bytes"
	"fmt"

	apperrors "qcmpulse/internal/errors"
	"qcmpulse/pkg/contracts/domain"
)

// Marker anchors every relative offset of the layout. The last occurrence is used.
const Marker = "XtalDriveTimeFloat"

// SecondsPerDay converts the container's day-based timestamps into seconds
const SecondsPerDay = 86400.0

const (
	magicSensorBlock = 0xee
	magicRunTable    = 0x01
	magicTimeArray   = 0x0b
	flagExtraHeader  = 0x02
)

// Recording is the decoded content of a container. Time, Freq and Dis each hold one row per
// (sensor, overtone) run in file order and are zero padded to their own longest row.
type Recording struct {
	Time       [][]float64
	Freq       [][]float64
	Dis        [][]float64
	RowLengths []int
	Sensors    int
}

// OvertonesPerSensor returns how many runs belong to each sensor
func (r *Recording) OvertonesPerSensor() int {
	if r.Sensors == 0 {
		return 0
	}
	return len(r.RowLengths) / r.Sensors
}

// Series splits the decoded rows into per (sensor, overtone) runs
func (r *Recording) Series() []domain.SensorOvertoneSeries {
	per := r.OvertonesPerSensor()
	if per == 0 {
		return nil
	}
	out := make([]domain.SensorOvertoneSeries, 0, len(r.RowLengths))
	for i, length := range r.RowLengths {
		s := domain.SensorOvertoneSeries{
			SensorIndex: i / per,
			Overtone:    domain.Overtone(i % per),
			Length:      length,
		}
		if i < len(r.Time) {
			s.Time = r.Time[i]
		}
		if i < len(r.Freq) {
			s.Freq = r.Freq[i]
		}
		if i < len(r.Dis) {
			s.Dis = r.Dis[i]
		}
		out = append(out, s)
	}
	return out
}

// Decode parses a container held in memory. Any layout violation is reported as a FORMAT
// error with the byte offset where it was detected; no partial result is returned.
func Decode(buf []byte) (*Recording, error) {
	anchor := bytes.LastIndex(buf, []byte(Marker))
	if anchor < 0 {
		return nil, apperrors.NewFormatError(fmt.Sprintf("marker %q not found", Marker), -1)
	}

	d := &decoder{c: NewCursor(buf)}
	if err := d.c.Seek(anchor + 30); err != nil {
		return nil, err
	}
	if err := d.header(); err != nil {
		return nil, err
	}
	if err := d.runs(); err != nil {
		return nil, err
	}

	return &Recording{
		Time:       padRows(d.time),
		Freq:       padRows(d.freq),
		Dis:        padRows(d.dis),
		RowLengths: d.rowLengths,
		Sensors:    d.sensors,
	}, nil
}

type decoder struct {
	c          *Cursor
	sensors    int
	time       [][]float64
	freq       [][]float64
	dis        [][]float64
	rowLengths []int
}

// header reads the sensor block and the first run, which is laid out differently
// from the ones that follow.
func (d *decoder) header() error {
	c := d.c

	ns, err := c.PeekByte()
	if err != nil {
		return err
	}
	if ns != 1 && ns != 4 {
		return apperrors.NewFormatError(fmt.Sprintf("invalid sensor count %d, expected 1 or 4", ns), c.Offset())
	}
	d.sensors = int(ns)

	if err := c.Skip(4); err != nil {
		return err
	}
	n, err := c.PeekU32LE()
	if err != nil {
		return err
	}
	if err := c.Skip(4 + 4*int(ns)); err != nil {
		return err
	}
	if err := c.Expect(magicSensorBlock); err != nil {
		return err
	}
	if err := c.Skip(16); err != nil {
		return err
	}

	repeat, err := c.PeekU32LE()
	if err != nil {
		return err
	}
	if uint64(repeat) != uint64(n)+1 {
		return apperrors.NewFormatError(fmt.Sprintf("invalid size repetition %d, expected %d", repeat, uint64(n)+1), c.Offset())
	}
	if err := c.Skip(4); err != nil {
		return err
	}

	flag, err := c.PeekByte()
	if err != nil {
		return err
	}
	if flag == flagExtraHeader {
		if err := c.Skip(8); err != nil {
			return err
		}
	}
	if err := c.Expect(magicRunTable); err != nil {
		return err
	}
	if err := c.Skip(12); err != nil {
		return err
	}
	if err := c.Expect(magicTimeArray); err != nil {
		return err
	}
	if err := c.Skip(6); err != nil {
		return err
	}

	timeCount, err := d.count(n)
	if err != nil {
		return err
	}
	t, err := c.PeekF64ArrayLE(timeCount)
	if err != nil {
		return err
	}
	d.time = append(d.time, daysToSeconds(t))
	if err := c.Skip(timeCount*8 + 10); err != nil {
		return err
	}

	n, err = c.PeekU32LE()
	if err != nil {
		return err
	}
	d.rowLengths = append(d.rowLengths, int(n))
	if err := c.Skip(4); err != nil {
		return err
	}
	return d.freqDis(n)
}

// runs reads the remaining runs until every declared sensor has been terminated by a
// zero count. Each iteration moves the cursor forward, so the loop ends at the latest
// when the buffer is exhausted.
func (d *decoder) runs() error {
	c := d.c
	remaining := d.sensors

	for {
		if err := c.Skip(9); err != nil {
			return err
		}
		n, err := c.PeekU32LE()
		if err != nil {
			return err
		}
		if n == 0 {
			remaining--
			if err := c.Skip(40); err != nil {
				return err
			}
			if n, err = c.PeekU32LE(); err != nil {
				return err
			}
			if remaining == 0 {
				return nil
			}
		}

		d.rowLengths = append(d.rowLengths, int(n))
		if err := c.Skip(22); err != nil {
			return err
		}
		timeCount, err := d.count(n)
		if err != nil {
			return err
		}
		t, err := c.PeekF64ArrayLE(timeCount)
		if err != nil {
			return err
		}
		d.time = append(d.time, daysToSeconds(t))
		if err := c.Skip(timeCount*8 + 2); err != nil {
			return err
		}

		if n, err = c.PeekU32LE(); err != nil {
			return err
		}
		if err := c.Skip(4); err != nil {
			return err
		}
		if err := d.freqDis(n); err != nil {
			return err
		}
	}
}

// freqDis reads the frequency and dissipation arrays of one run, leaving the cursor one
// byte before the end of the dissipation array.
func (d *decoder) freqDis(n uint32) error {
	c := d.c
	count, err := d.count(n)
	if err != nil {
		return err
	}

	f, err := c.PeekF64ArrayLE(count)
	if err != nil {
		return err
	}
	d.freq = append(d.freq, f)
	if err := c.Skip(count*8 + 6); err != nil {
		return err
	}

	dis, err := c.PeekF64ArrayLE(count)
	if err != nil {
		return err
	}
	d.dis = append(d.dis, dis)
	return c.Skip(count*8 - 1)
}

// count validates a declared sample count against the bytes left in the buffer
func (d *decoder) count(n uint32) (int, error) {
	if uint64(n) > uint64(d.c.Remaining()/8) {
		return 0, apperrors.NewFormatError(
			fmt.Sprintf("declared count %d exceeds remaining %d bytes", n, d.c.Remaining()), d.c.Offset())
	}
	return int(n), nil
}

func daysToSeconds(t []float64) []float64 {
	out := make([]float64, len(t))
	if len(t) == 0 {
		return out
	}
	for i, v := range t {
		out[i] = (v - t[0]) * SecondsPerDay
	}
	return out
}

// padRows zero pads every row to the longest one so the rows stack into a rectangle
func padRows(rows [][]float64) [][]float64 {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	out := make([][]float64, len(rows))
	for i, r := range rows {
		padded := make([]float64, width)
		copy(padded, r)
		out[i] = padded
	}
	return out
}
