package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmissionPolicyAcceptsWithinBounds(t *testing.T) {
	p := AdmissionPolicy{MaxFileSize: 1024}
	require.NoError(t, p.Evaluate("report.pdf", 512))
}

func TestAdmissionPolicyRejectsOversizedFile(t *testing.T) {
	p := AdmissionPolicy{MaxFileSize: 1024 * 1024}
	err := p.Evaluate("movie.mp4", 2*1024*1024)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrRejected))
}

func TestAdmissionPolicyRejectsUnsafeFilename(t *testing.T) {
	p := AdmissionPolicy{}
	cases := []string{"../escape.txt", "/etc/passwd", "", ".", ".."}
	for _, name := range cases {
		err := p.Evaluate(name, 10)
		require.Error(t, err, name)
		assert.True(t, IsKind(err, ErrRejected), name)
	}
}

func TestAdmissionPolicyRejectsDisallowedExtension(t *testing.T) {
	p := AdmissionPolicy{AllowedExtensions: []string{".txt", ".pdf"}}
	require.NoError(t, p.Evaluate("notes.txt", 10))
	require.NoError(t, p.Evaluate("NOTES.PDF", 10))

	err := p.Evaluate("payload.exe", 10)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrRejected))
}

func TestAdmissionPolicyEmptyAllowListPermitsAnyExtension(t *testing.T) {
	p := AdmissionPolicy{}
	require.NoError(t, p.Evaluate("anything.xyz", 10))
}
