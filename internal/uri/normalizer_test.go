package uri

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizer_Normalize(t *testing.T) {
	n := NewNormalizer(Config{})

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "ipfs uri",
			input:    "ipfs://QmHash/42.json",
			expected: "https://gateway.pinata.cloud/ipfs/QmHash/42.json",
		},
		{
			name:     "ipfs uri with redundant path",
			input:    "ipfs://ipfs/QmHash/42.png",
			expected: "https://gateway.pinata.cloud/ipfs/QmHash/42.png",
		},
		{
			name:     "arweave uri",
			input:    "ar://abc123",
			expected: "https://arweave.net/abc123",
		},
		{
			name:     "http url untouched",
			input:    "https://example.com/meta/42",
			expected: "https://example.com/meta/42",
		},
		{
			name:     "empty stays empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, n.Normalize(tt.input))
		})
	}
}

func TestNormalizer_CustomGateway(t *testing.T) {
	n := NewNormalizer(Config{IPFSGateway: "https://ipfs.io/", ArweaveGateway: "https://ar.example"})

	assert.Equal(t, "https://ipfs.io/ipfs/QmHash", n.Normalize("ipfs://QmHash"))
	assert.Equal(t, "https://ar.example/tx", n.Normalize("ar://tx"))
}

func TestParseDataURI(t *testing.T) {
	payload := `{"image":"ipfs://QmImage"}`

	parsed, err := ParseDataURI("data:application/json;base64," + base64.StdEncoding.EncodeToString([]byte(payload)))
	require.NoError(t, err)
	assert.Equal(t, "application/json", parsed.MimeType)
	assert.Equal(t, payload, string(parsed.Data))

	parsed, err = ParseDataURI("data:application/json;utf8,%7B%22image%22%3A%22x%22%7D")
	require.NoError(t, err)
	assert.Equal(t, `{"image":"x"}`, string(parsed.Data))

	parsed, err = ParseDataURI("data:,hello")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", parsed.MimeType)

	_, err = ParseDataURI("data:application/json;base64")
	assert.ErrorIs(t, err, ErrInvalidDataURI)

	_, err = ParseDataURI("https://example.com")
	assert.ErrorIs(t, err, ErrInvalidDataURI)
}

func TestIsImageDataURI(t *testing.T) {
	svg := `<svg xmlns="http://www.w3.org/2000/svg" width="1" height="1"></svg>`
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

	assert.True(t, IsImageDataURI("data:image/svg+xml;base64,"+base64.StdEncoding.EncodeToString([]byte(svg))))
	assert.True(t, IsImageDataURI("data:image/png;base64,"+base64.StdEncoding.EncodeToString(png)))
	assert.False(t, IsImageDataURI("data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte(svg))))
	assert.False(t, IsImageDataURI("data:text/plain,hello"))
	assert.False(t, IsImageDataURI("data:image/png;base64,"))
}
