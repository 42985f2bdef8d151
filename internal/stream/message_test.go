package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taoyao-code/marine-sim/internal/sensor"
)

func TestProtocolNames(t *testing.T) {
	assert.Equal(t, ProtocolFrame, ProtocolFor(sensor.ProtocolNMEA2000))
	assert.Equal(t, ProtocolSentence, ProtocolFor(sensor.ProtocolNMEA0183))

	for _, name := range []string{"ascii-sentence", "nmea0183", "0183"} {
		p, ok := ParseProtocol(name)
		assert.True(t, ok, name)
		assert.Equal(t, ProtocolSentence, p, name)
	}
	p, ok := ParseProtocol("nmea2000")
	assert.True(t, ok)
	assert.Equal(t, ProtocolFrame, p)
	_, ok = ParseProtocol("seatalk")
	assert.False(t, ok)
}

func TestFilter(t *testing.T) {
	all := NewFilter(nil)
	assert.True(t, all.Allows(ProtocolSentence))
	assert.True(t, all.Allows(ProtocolFrame))

	text := NewFilter([]string{"nmea0183", "bogus"})
	assert.True(t, text.Allows(ProtocolSentence))
	assert.False(t, text.Allows(ProtocolFrame))
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		wantErr bool
		frames  bool
	}{
		{"仅帧", []string{"nmea2000"}, false, true},
		{"带空格", []string{" nmea0183", "can-frame "}, false, true},
		{"未知名称", []string{"nmea2000", "bogus"}, true, false},
		{"全部为空", []string{"", " "}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFilter(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownProtocol)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.frames, f.Allows(ProtocolFrame))
		})
	}
}

func TestRecorder(t *testing.T) {
	a := &Recorder{}
	a.Publish(Message{Protocol: ProtocolSentence, Seq: 1})
	a.Publish(Message{Protocol: ProtocolFrame, Seq: 2})
	assert.Len(t, a.Messages(), 2)

	a.Reset()
	assert.Empty(t, a.Messages())
	Discard.Publish(Message{})
}
