package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID    string            `json:"id" msgpack:"id"`
	Data  map[string]string `json:"data" msgpack:"data"`
	Count int               `json:"count" msgpack:"count"`
}

func testSample() sample {
	return sample{ID: "s-1", Data: map[string]string{"k": "v"}, Count: 42}
}

func TestCodecs_RoundTrip(t *testing.T) {
	for _, c := range []Codec{NewMsgPackCodec(), NewJSONCodec()} {
		t.Run(c.Name(), func(t *testing.T) {
			encoded, err := c.Encode(testSample())
			require.NoError(t, err)
			assert.NotEmpty(t, encoded)

			var decoded sample
			require.NoError(t, c.Decode(encoded, &decoded))
			assert.Equal(t, testSample(), decoded)
		})
	}
}

func TestSerializer_Compressions(t *testing.T) {
	for _, comp := range []Compression{CompressionNone, CompressionGzip, CompressionZstd} {
		t.Run(string(comp), func(t *testing.T) {
			s := NewSerializer(NewMsgPackCodec(), comp)

			data, err := s.Serialize(testSample())
			require.NoError(t, err)

			var decoded sample
			require.NoError(t, s.Deserialize(data, &decoded))
			assert.Equal(t, testSample(), decoded)
		})
	}
}

func TestSerializer_Name(t *testing.T) {
	assert.Equal(t, "msgpack+zstd", DefaultSerializer().Name())
	assert.Equal(t, "json", NewSerializer(NewJSONCodec(), CompressionNone).Name())
}

func TestSerializer_DeserializeGarbage(t *testing.T) {
	s := DefaultSerializer()
	var decoded sample
	err := s.Deserialize([]byte("definitely not zstd"), &decoded)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "zstd")
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, c)

	c, err = ParseCompression("zstd")
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, c)

	_, err = ParseCompression("lz4")
	assert.Error(t, err)
}

func TestByName(t *testing.T) {
	c, err := ByName("json")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	_, err = ByName("xml")
	assert.Error(t, err)
}
