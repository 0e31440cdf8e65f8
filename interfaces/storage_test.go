package interfaces

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContentID(t *testing.T) {
	id := ComputeID([]byte("sprite"))
	parsed, err := NewContentIDFromHex("0x" + id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
	require.Len(t, id.Short(), 16)

	_, err = NewContentIDFromHex("abcd")
	require.Error(t, err)
	_, err = NewContentIDFromHex(string(make([]byte, 64)))
	require.Error(t, err)
}

func TestNewStorageBackendLocation(t *testing.T) {
	loc, err := NewStorageBackendLocation("s3://key:secret@bucket/blobs?region=eu-west-1&public=yes")
	require.NoError(t, err)
	require.Equal(t, "s3", loc.Scheme)
	require.Equal(t, "bucket", loc.Host)
	require.Equal(t, "/blobs", loc.Path)
	require.Equal(t, "eu-west-1", loc.GetParam("region"))
	require.True(t, loc.GetParamBool("public"))
	require.Equal(t, "key", loc.User.Username())
	require.Equal(t, "s3://key:xxxxx@bucket/blobs?region=eu-west-1&public=yes", loc.String())

	plain, err := NewStorageBackendLocation("ipfs://127.0.0.1:5001/mirror")
	require.NoError(t, err)
	require.Equal(t, "ipfs://127.0.0.1:5001/mirror", plain.String())

	for _, uri := range []string{"ftp://host/x", "vault://secret", "::bad"} {
		_, err := NewStorageBackendLocation(uri)
		require.ErrorIs(t, err, ErrInvalidLocationURI, uri)
	}
}
