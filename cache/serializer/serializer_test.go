package serializer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type device struct {
	Serial string `json:"serial" msgpack:"serial"`
	Name   string `json:"name" msgpack:"name"`
	Online bool   `json:"online" msgpack:"online"`
}

func TestNew(t *testing.T) {
	tests := []struct {
		typ     string
		name    string
		wantErr bool
	}{
		{"", "json", false},
		{"json", "json", false},
		{"msgpack", "msgpack", false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			s, err := New(tt.typ)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedSerializer)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, s.Name())
		})
	}
}

func TestRoundTrip(t *testing.T) {
	in := device{Serial: "G090LF", Name: "Kitchen", Online: true}

	for _, typ := range []string{"json", "msgpack"} {
		t.Run(typ, func(t *testing.T) {
			s, err := New(typ)
			require.NoError(t, err)

			data, err := s.Marshal(in)
			require.NoError(t, err)

			var out device
			require.NoError(t, s.Unmarshal(data, &out))
			assert.Equal(t, in, out)
		})
	}
}
