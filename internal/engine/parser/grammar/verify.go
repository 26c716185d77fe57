package grammar

import (
	"crypto/sha256"
	"fmt"
	"os"
)

type VerificationIssue struct {
	ArtifactPath string
	ExpectedHash string
	ActualHash   string
	Reason       string
}

func (i VerificationIssue) Error() string {
	return fmt.Sprintf("grammar %s: %s (expected %s, got %s)", i.ArtifactPath, i.Reason, i.ExpectedHash, i.ActualHash)
}

// Verify checks the manifest's shared object against its recorded checksum.
func Verify(manifest Manifest) error {
	a := manifest.Artifact
	data, err := os.ReadFile(a.SharedObjectPath)
	if err != nil {
		return VerificationIssue{
			ArtifactPath: a.SharedObjectPath,
			ExpectedHash: a.SharedObjectHash,
			ActualHash:   "<missing>",
			Reason:       "artifact missing or unreadable",
		}
	}

	actual := fmt.Sprintf("%x", sha256.Sum256(data))
	if actual == a.SharedObjectHash {
		return nil
	}
	return VerificationIssue{
		ArtifactPath: a.SharedObjectPath,
		ExpectedHash: a.SharedObjectHash,
		ActualHash:   actual,
		Reason:       "checksum mismatch",
	}
}
