package query

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dan-solli/airesponse/pkg/llm"
)

// resolvedImage is what the model receives plus the identity used in the cache key
type resolvedImage struct {
	URL    string
	Digest string
}

// resolveImage turns an image reference into a URL the model can fetch.
// Local files are inlined as data URLs. Files and data URLs are identified by
// content hash, remote URLs by their text.
func resolveImage(ref string) (resolvedImage, error) {
	switch {
	case ref == "":
		return resolvedImage{}, nil

	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		return resolvedImage{URL: ref, Digest: "url:" + ref}, nil

	case strings.HasPrefix(ref, "data:"):
		data, err := decodeDataURL(ref)
		if err != nil {
			return resolvedImage{}, invalidImage(ref, err)
		}
		return resolvedImage{URL: ref, Digest: contentDigest(data)}, nil

	default:
		data, err := os.ReadFile(ref)
		if err != nil {
			return resolvedImage{}, invalidImage(ref, err)
		}
		mimeType, err := imageMIME(ref, data)
		if err != nil {
			return resolvedImage{}, invalidImage(ref, err)
		}
		url := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
		return resolvedImage{URL: url, Digest: contentDigest(data)}, nil
	}
}

func invalidImage(ref string, err error) error {
	name := ref
	if strings.HasPrefix(ref, "data:") && len(ref) > 32 {
		name = ref[:32] + "..."
	}
	return llm.NewError(llm.KindInvalidRequest, fmt.Errorf("image %q: %w", name, err))
}

func decodeDataURL(ref string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("data URL has no payload")
	}
	if !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("data URL must be base64 encoded")
	}
	if !strings.HasPrefix(header, "image/") {
		return nil, fmt.Errorf("data URL is not an image")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return data, nil
}

// imageMIME sniffs the content, falling back to the file extension
func imageMIME(path string, data []byte) (string, error) {
	if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
		return sniffed, nil
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); strings.HasPrefix(byExt, "image/") {
		if i := strings.IndexByte(byExt, ';'); i >= 0 {
			byExt = byExt[:i]
		}
		return byExt, nil
	}
	return "", fmt.Errorf("not an image")
}

func contentDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}
